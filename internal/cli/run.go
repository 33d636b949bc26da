package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/tap/internal/harness"
	"github.com/roach88/tap/internal/journal"
	"github.com/roach88/tap/internal/tap"
	"github.com/roach88/tap/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DB      string
	RunID   string
	Metrics bool
	OTel    bool
}

// RunOutput is the JSON payload of a single scenario run.
type RunOutput struct {
	Scenario string            `json:"scenario"`
	Pass     bool              `json:"pass"`
	Events   int               `json:"events"`
	Errors   []string          `json:"errors,omitempty"`
	State    any               `json:"state,omitempty"`
	Metrics  []telemetry.Count `json:"metrics,omitempty"`
	OTel     []telemetry.Count `json:"otel,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario file",
		Long: `Run one scenario file (.yaml, .yml or .cue) and report the result.

With --db the event trace is journaled to a SQLite database under a run ID
(a fresh UUIDv7 unless --run is given) and can be inspected with "tap trace".
--metrics and --otel print per-kind event counts gathered through the
Prometheus and OpenTelemetry observers.

Examples:
  tap run testdata/scenarios/counter_basic.yaml
  tap run ticker.cue --db tap.db --metrics
  tap run todos.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal events to this SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "journal run ID (default: new UUIDv7)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report Prometheus event counts")
	cmd.Flags().BoolVar(&opts.OTel, "otel", false, "report OpenTelemetry event counts")

	return cmd
}

func runScenario(cmd *cobra.Command, path string, opts *RunOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(out.GetErrWriter(), opts.Verbose)

	if !fileExists(path) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario not found: %s", path))
	}
	if !isScenarioFile(path) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unsupported scenario file: %s (want .yaml, .yml or .cue)", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	hopts := []harness.Option{harness.WithLogger(logger)}
	var observers tap.MultiObserver

	var runID string
	var jobs *journal.EventObserver
	if opts.DB != "" {
		j, err := journal.Open(opts.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()

		runID = opts.RunID
		if runID == "" {
			runID = tap.UUIDv7Generator{}.Generate()
		}
		if err := j.BeginRun(ctx, runID, scenario.Name); err != nil {
			return WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		jobs = journal.Observer(j, runID)
		observers = append(observers, jobs)
		out.VerboseLog("journaling to %s as run %s", opts.DB, runID)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		observers = append(observers, telemetry.NewPrometheusObserver(reg))
	}

	var collector *telemetry.OTelCollector
	if opts.OTel {
		collector, err = telemetry.NewOTelCollector()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start otel collector", err)
		}
		defer collector.Shutdown(ctx)
		observers = append(observers, collector.Observer())
	}

	if len(observers) > 0 {
		hopts = append(hopts, harness.WithObserver(observers))
	}

	result, err := harness.Run(scenario, hopts...)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to execute scenario %s", scenario.Name), err)
	}
	logger.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "events", len(result.Trace))

	output := RunOutput{
		Scenario: result.Scenario,
		Pass:     result.Pass,
		Events:   len(result.Trace),
		Errors:   result.Errors,
		State:    result.State,
	}
	if reg != nil {
		if output.Metrics, err = telemetry.PrometheusCounts(reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}
	if collector != nil {
		if output.OTel, err = collector.Counts(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to collect otel metrics", err)
		}
	}
	if jobs != nil && jobs.Failures() > 0 {
		output.Errors = append(output.Errors, fmt.Sprintf("journal: %d events not written", jobs.Failures()))
		output.Pass = false
	}

	report := Report{
		Data:  output,
		RunID: runID,
		Text:  func(w io.Writer) { printRunText(w, output, runID) },
	}
	if !output.Pass {
		report.Fail = &CLIError{Code: "E_SCENARIO_FAILED", Message: "scenario failed", Details: output.Errors}
	}
	if err := out.Emit(report); err != nil {
		return err
	}

	if !output.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", output.Scenario))
	}
	return nil
}

func printRunText(w io.Writer, o RunOutput, runID string) {
	mark := "✓"
	if !o.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%d events)\n", mark, o.Scenario, o.Events)
	for _, e := range o.Errors {
		fmt.Fprintf(w, "    %s\n", e)
	}
	if runID != "" {
		fmt.Fprintf(w, "run: %s\n", runID)
	}
	printCounts(w, "metrics", o.Metrics)
	printCounts(w, "otel", o.OTel)
}

func printCounts(w io.Writer, title string, counts []telemetry.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %-10s %-20s %d\n", c.Kind, c.Resource, c.Value)
	}
}

// isScenarioFile reports whether path has a scenario extension.
func isScenarioFile(path string) bool {
	for _, ext := range []string{".yaml", ".yml", ".cue"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
