package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ============================================================================
// YAML
// ============================================================================

func TestLoadScenario_YAML(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/todos_list.yaml")
	require.NoError(t, err)

	assert.Equal(t, "todos_list", s.Name)
	assert.Equal(t, "todos", s.Resource)
	assert.Equal(t, []any{"a", "b"}, s.Props["items"])
	require.Len(t, s.Steps, 9)
	assert.Equal(t, StepCall, s.Steps[0].Kind())
	assert.Equal(t, "a", s.Steps[0].Item)
	assert.Equal(t, StepFlush, s.Steps[1].Kind())
	require.NotNil(t, s.Steps[7].Index)
	assert.Equal(t, 5, *s.Steps[7].Index)
	assert.Len(t, s.Assertions, 5)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typo.yaml", `
name: typo
description: d
resource: counter
assertion:
  - type: trace_count
    event: pass
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

// ============================================================================
// CUE
// ============================================================================

func TestLoadScenario_CUE(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ticker_effects.cue")
	require.NoError(t, err)

	assert.Equal(t, "ticker_effects", s.Name)
	assert.Equal(t, "ticker", s.Resource)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "SetLimit", s.Steps[0].Call)
	assert.Len(t, s.Steps[0].Args, 1)
	assert.True(t, s.Steps[1].Flush)
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, AssertFinalState, s.Assertions[2].Type)
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "unknown resource",
			src: `name: "x", description: "d", resource: "nope"
assertions: [{type: "trace_count", event: "pass", count: 1}]`,
		},
		{
			name: "unknown field",
			src: `name: "x", description: "d", resource: "counter", colour: "red"
assertions: [{type: "trace_count", event: "pass", count: 1}]`,
		},
		{
			name: "no assertions",
			src:  `name: "x", description: "d", resource: "counter", assertions: []`,
		},
		{
			name: "negative count",
			src: `name: "x", description: "d", resource: "counter"
assertions: [{type: "trace_count", event: "pass", count: -1}]`,
		},
		{
			name: "missing description",
			src: `name: "x", resource: "counter"
assertions: [{type: "trace_count", event: "pass", count: 1}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE([]byte(tt.src), "test.cue")
			assert.Error(t, err)
		})
	}
}

func TestParseCUE_SyntaxError(t *testing.T) {
	_, err := ParseCUE([]byte(`name: {`), "broken.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CUE")
}

// ============================================================================
// Validation
// ============================================================================

func validScenario() *Scenario {
	return &Scenario{
		Name:        "s",
		Description: "d",
		Resource:    "counter",
		Assertions:  []Assertion{{Type: AssertTraceCount, Event: "pass", Count: 1}},
	}
}

func TestValidateScenario(t *testing.T) {
	idx := -1
	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"unknown resource", func(s *Scenario) { s.Resource = "clock" }, `unknown resource "clock"`},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"empty step", func(s *Scenario) { s.Steps = []Step{{}} }, "steps[0]: exactly one of"},
		{"two kinds", func(s *Scenario) { s.Steps = []Step{{Call: "Add", Flush: true}} }, "steps[0]: exactly one of"},
		{"args on flush", func(s *Scenario) { s.Steps = []Step{{Flush: true, Args: []any{1}}} }, "only apply to call"},
		{"item and index", func(s *Scenario) {
			i := 0
			s.Steps = []Step{{Call: "Toggle", Item: "a", Index: &i}}
		}, "mutually exclusive"},
		{"negative index", func(s *Scenario) { s.Steps = []Step{{Call: "Toggle", Index: &idx}} }, "index must be non-negative"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_magic"}} }, `unknown assertion type "trace_magic"`},
		{"contains without event", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceContains}} }, "event is required"},
		{"order without events", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceOrder}} }, "events list is required"},
		{"state without expect", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertFinalState}} }, "expect is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// ============================================================================
// Discovery
// ============================================================================

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "")
	writeFile(t, dir, "a.cue", "")
	writeFile(t, dir, "nested/c.yml", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, "golden/a.golden", "")
	writeFile(t, dir, "golden/stale.yaml", "")

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yml"),
	}, files)

	files, err = FindScenarios(dir, "[ab]")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarios_MissingDir(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "missing"), "")

	var notFound *ScenarioDirNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestFindScenarios_BadFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")

	_, err := FindScenarios(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
