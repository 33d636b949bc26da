package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tap/internal/canon"
	"github.com/roach88/tap/internal/tap"
)

// TraceSnapshot captures the trace and final state of a scenario execution.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	Scenario string      `json:"scenario"`
	Trace    []tap.Event `json:"trace"`
	State    any         `json:"state,omitempty"`
}

// Snapshot returns the canonical JSON form of result, the content of its
// golden file.
func Snapshot(result *Result) ([]byte, error) {
	data, err := canon.MarshalCanonical(TraceSnapshot{
		Scenario: result.Scenario,
		Trace:    result.Trace,
		State:    result.State,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", result.Scenario, err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
