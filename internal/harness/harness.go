package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/tap/internal/tap"
	"github.com/roach88/tap/internal/testutil"
)

// Option configures a harness run.
type Option func(*runConfig)

type runConfig struct {
	logger   *slog.Logger
	observer tap.Observer
}

// WithLogger sets the logger for harness and runtime logs.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithObserver adds an observer receiving every runtime event next to the
// harness's own recorder (a journal or metrics observer, say).
func WithObserver(obs tap.Observer) Option {
	return func(c *runConfig) {
		c.observer = obs
	}
}

// Harness executes one scenario against a mounted demo resource.
type Harness struct {
	scenario *Scenario
	driver   driver
	closed   bool
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run mounts a fresh root with sequential instance IDs and a fresh
// logical clock, so the same scenario always yields the same trace.
//
// Execution flow:
// 1. Mount the resource with the scenario props
// 2. Execute steps, checking expect_error on each
// 3. Capture the trace and final state
// 4. Evaluate assertions
// 5. Close the root if the steps did not
//
// A non-nil error means the scenario could not be executed at all; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	d, ok := demos[scenario.Resource]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", scenario.Resource)
	}

	rec := testutil.NewRecorder()
	topts := testutil.Options(tap.MultiObserver{rec, cfg.observer}, tap.WithLogger(cfg.logger))
	if scenario.MaxPasses > 0 {
		topts = append(topts, tap.WithMaxPasses(scenario.MaxPasses))
	}

	result := NewResult(scenario.Name)
	drv, err := d.start(scenario.Props, topts)
	if mismatch := checkError("mount", scenario.ExpectError, err); mismatch != "" {
		result.AddError(mismatch)
	}
	if err != nil {
		if errors.Is(err, errBadProps) {
			return nil, err
		}
		result.Trace = rec.Events()
		for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
			result.AddError(msg)
		}
		return result, nil
	}

	h := &Harness{scenario: scenario, driver: drv, logger: cfg.logger}
	defer h.close()

	if err := h.executeSteps(result); err != nil {
		return nil, err
	}

	result.Trace = rec.Events()
	if !h.closed {
		state, err := genericValue(drv.State())
		if err != nil {
			return nil, fmt.Errorf("snapshot final state: %w", err)
		}
		result.State = state
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps runs all steps in order.
func (h *Harness) executeSteps(result *Result) error {
	for i, step := range h.scenario.Steps {
		err := h.executeStep(step)
		if errors.Is(err, errBadProps) {
			return fmt.Errorf("step %d: %w", i, err)
		}

		label := fmt.Sprintf("step %d (%s)", i, step.Kind())
		if mismatch := checkError(label, step.ExpectError, err); mismatch != "" {
			result.AddError(mismatch)
		}

		h.logger.Info("step completed",
			"step", i,
			"kind", step.Kind(),
			"call", step.Call,
			"error", err,
		)
	}
	return nil
}

func (h *Harness) executeStep(step Step) error {
	switch step.Kind() {
	case StepCall:
		args, err := callArgs(step.Args)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadProps, err)
		}
		return h.driver.Call(step, args)
	case StepProps:
		return h.driver.UpdateInput(step.Props)
	case StepFlush:
		return h.driver.FlushSync()
	case StepClose:
		h.closed = true
		return h.driver.Close()
	default:
		return fmt.Errorf("%w: step has no kind", errBadProps)
	}
}

func (h *Harness) close() {
	if h.closed {
		return
	}
	h.closed = true
	if err := h.driver.Close(); err != nil {
		h.logger.Warn("close failed", "scenario", h.scenario.Name, "error", err)
	}
}

// checkError compares an outcome with an expected error and returns a
// failure message, or "" if they agree. want matches the error's code or
// any substring of its message.
func checkError(label, want string, err error) string {
	switch {
	case want == "" && err == nil:
		return ""
	case want == "":
		return fmt.Sprintf("%s: unexpected error: %v", label, err)
	case err == nil:
		return fmt.Sprintf("%s: expected error %q, got none", label, want)
	case string(tap.CodeOf(err)) == want || strings.Contains(err.Error(), want):
		return ""
	default:
		return fmt.Sprintf("%s: expected error %q, got: %v", label, want, err)
	}
}
