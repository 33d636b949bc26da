package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/tap/internal/journal"
	"github.com/roach88/tap/internal/tap"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Kind     string // optional - filter to one event kind
	Verify   bool
}

// TraceResult holds the timeline of one journaled run.
type TraceResult struct {
	RunID    string      `json:"run_id"`
	Timeline []tap.Event `json:"timeline"`
	Stats    TraceStats  `json:"stats"`
	Verified bool        `json:"verified,omitempty"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
	Instances   int            `json:"instances"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled runs",
		Long: `Inspect runs journaled by "tap run --db".

Without --run, lists every run in the journal. With --run, prints the run's
event timeline in emission order and per-kind statistics. --verify
recomputes each event digest and fails on the first mismatch.

Examples:
  tap trace --db tap.db
  tap trace --db tap.db --run 0190c7c4-...
  tap trace --db tap.db --run 0190c7c4-... --kind effect
  tap trace --db tap.db --run 0190c7c4-... --verify --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter timeline to one event kind")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify event digests")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if !fileExists(opts.Database) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Database))
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.RunID == "" {
		return listRuns(ctx, out, j)
	}

	events, err := j.ReadRun(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := TraceResult{
		RunID:    opts.RunID,
		Timeline: filterEvents(events, opts.Kind),
		Stats:    traceStats(events),
	}

	if opts.Verify && len(events) > 0 {
		if err := j.Verify(ctx, opts.RunID); err != nil {
			_ = out.Emit(Report{
				Fail:  &CLIError{Code: "E_DIGEST_MISMATCH", Message: err.Error()},
				RunID: opts.RunID,
			})
			return WrapExitError(ExitFailure, "journal verification failed", err)
		}
		result.Verified = true
	}

	empty := len(events) == 0
	return out.Emit(Report{
		Data:  result,
		RunID: opts.RunID,
		Text:  func(w io.Writer) { printTraceText(w, result, empty) },
	})
}

func listRuns(ctx context.Context, out *OutputFormatter, j *journal.Journal) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if runs == nil {
		runs = []journal.Run{}
	}

	return out.Emit(Report{
		Data: runs,
		Text: func(w io.Writer) {
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%s  %-24s %d events\n", r.ID, r.Scenario, r.Events)
			}
		},
	})
}

// filterEvents keeps events of kind; empty keeps everything.
func filterEvents(events []tap.Event, kind string) []tap.Event {
	filtered := make([]tap.Event, 0, len(events))
	for _, e := range events {
		if kind == "" || string(e.Kind) == kind {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func traceStats(events []tap.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events), ByKind: map[string]int{}}
	instances := map[string]bool{}
	for _, e := range events {
		stats.ByKind[string(e.Kind)]++
		if e.Instance != "" {
			instances[e.Instance] = true
		}
	}
	stats.Instances = len(instances)
	return stats
}

func printTraceText(w io.Writer, r TraceResult, empty bool) {
	if empty {
		fmt.Fprintf(w, "No events found for run: %s\n", r.RunID)
		return
	}

	fmt.Fprintf(w, "Run: %s\n\n", r.RunID)
	fmt.Fprintln(w, "Timeline:")
	for _, e := range r.Timeline {
		line := fmt.Sprintf("  [%d] %-8s %s", e.Seq, e.Kind, e.Path)
		if e.Slot >= 0 {
			line += fmt.Sprintf(" slot=%d", e.Slot)
		}
		if e.Detail != "" {
			line += " " + e.Detail
		}
		fmt.Fprintln(w, line)
	}

	kinds := make([]string, 0, len(r.Stats.ByKind))
	for k := range r.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d events, %d instances\n", r.Stats.TotalEvents, r.Stats.Instances)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-8s %d\n", k, r.Stats.ByKind[k])
	}
	if r.Verified {
		fmt.Fprintln(w, "✓ digests verified")
	}
}
