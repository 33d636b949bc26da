package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tap/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Parallel int    // scenarios run at once
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run every scenario in a directory",
		Long: `Run every scenario file under a directory.

Each scenario's assertions must hold. When golden/<name>.golden exists next
to a scenario file, the canonical trace snapshot must also match it byte
for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tap test ./scenarios
  tap test ./scenarios --filter "todos*"
  tap test ./scenarios --update
  tap test ./scenarios --parallel 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "scenarios to run concurrently (0 = unlimited)")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := harness.FindScenarios(dir, opts.Filter)
	if err != nil {
		var notFound *harness.ScenarioDirNotFoundError
		if errors.As(err, &notFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		return reportTests(cmd, opts, result)
	}

	// Load everything first; load failures are reported per file.
	var loaded []*harness.Scenario
	var loadedAt []int
	for i, file := range files {
		result.Scenarios[i] = ScenarioResult{Name: scenarioName(file), File: file}
		s, err := harness.LoadScenario(file)
		if err != nil {
			result.Scenarios[i].Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
			continue
		}
		result.Scenarios[i].Name = s.Name
		loaded = append(loaded, s)
		loadedAt = append(loadedAt, i)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	runs, runErr := harness.RunAll(ctx, loaded, opts.Parallel, harness.WithLogger(logger))

	for k, idx := range loadedAt {
		sr := &result.Scenarios[idx]
		res := runs[k]
		if res == nil {
			msg := "not executed"
			if runErr != nil {
				msg = fmt.Sprintf("execution failed: %v", runErr)
			}
			sr.Errors = []string{msg}
			continue
		}
		sr.Pass = res.Pass
		sr.Errors = res.Errors

		if err := checkGolden(sr.File, res, opts.Update); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
		}
	}

	for _, sr := range result.Scenarios {
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	return reportTests(cmd, opts, result)
}

// scenarioName is the file name without extension.
func scenarioName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName(scenarioFile)+".golden")
}

// checkGolden compares result against the scenario's golden file, or
// rewrites it when update is set. A missing golden file is not an error.
func checkGolden(scenarioFile string, result *harness.Result, update bool) error {
	data, err := harness.Snapshot(result)
	if err != nil {
		return err
	}

	goldenPath := goldenFilePath(scenarioFile)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return errors.New("trace does not match golden file (run with --update to regenerate)")
	}
	return nil
}

// reportTests writes result and fails the command when any scenario did.
func reportTests(cmd *cobra.Command, opts *TestOptions, result TestResult) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	report := Report{
		Data: result,
		Text: func(w io.Writer) { printTestText(w, result, opts.Update) },
	}
	if result.Failed > 0 {
		report.Fail = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := out.Emit(report); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func printTestText(w io.Writer, result TestResult, updated bool) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, sr := range result.Scenarios {
		if sr.Pass {
			if updated {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
			} else {
				fmt.Fprintf(w, "✓ %s\n", sr.Name)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
