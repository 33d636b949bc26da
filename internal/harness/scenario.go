package harness

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Scenario defines a conformance scenario.
// A scenario mounts one demo resource, drives it through steps and asserts
// on the resulting event trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Resource is the demo resource to mount: counter, todos or ticker.
	Resource string `yaml:"resource" json:"resource"`

	// Props are the initial props, decoded into the resource's props type.
	Props map[string]any `yaml:"props,omitempty" json:"props,omitempty"`

	// MaxPasses overrides the per-flush pass limit when positive.
	MaxPasses int `yaml:"max_passes,omitempty" json:"max_passes,omitempty"`

	// ExpectError, if set, is the error the initial mount must fail with
	// (an error code such as PASSES_EXCEEDED, or a message substring).
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`

	// Steps drive the mounted resource in order.
	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Step is one driver action. Exactly one of Call, Props, Flush and Close
// is set.
type Step struct {
	// Call names an action on the store facade, or on a list item when
	// Item or Index is set.
	Call string `yaml:"call,omitempty" json:"call,omitempty"`

	// Args are the action arguments.
	Args []any `yaml:"args,omitempty" json:"args,omitempty"`

	// Item selects a list item by key.
	Item string `yaml:"item,omitempty" json:"item,omitempty"`

	// Index selects a list item by position.
	Index *int `yaml:"index,omitempty" json:"index,omitempty"`

	// Props replaces the root input (UpdateInput).
	Props map[string]any `yaml:"props,omitempty" json:"props,omitempty"`

	// Flush runs pending updates synchronously.
	Flush bool `yaml:"flush,omitempty" json:"flush,omitempty"`

	// Close disposes the root.
	Close bool `yaml:"close,omitempty" json:"close,omitempty"`

	// ExpectError, if set, is the error this step must fail with.
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
}

// Step kinds.
const (
	StepCall  = "call"
	StepProps = "props"
	StepFlush = "flush"
	StepClose = "close"
)

// Kind returns the step kind, or "" if none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Call != "" {
		kinds = append(kinds, StepCall)
	}
	if s.Props != nil {
		kinds = append(kinds, StepProps)
	}
	if s.Flush {
		kinds = append(kinds, StepFlush)
	}
	if s.Close {
		kinds = append(kinds, StepClose)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event kind (and Path, Detail if set) occurred
	// - "trace_order": Events occurred in the given order
	// - "trace_count": events of Event kind (at Path if set) occurred exactly Count times
	// - "final_state": the final state contains Expect (subset match)
	Type string `yaml:"type" json:"type"`

	// Event is the event kind (trace_contains, trace_count).
	Event string `yaml:"event,omitempty" json:"event,omitempty"`

	// Path restricts matches to one instance path.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Detail restricts matches to one event detail (trace_contains).
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Events is the expected order (trace_order). Each entry is "kind" or
	// "kind path", e.g. "teardown todos/a".
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// Expect contains expected state fields (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario file. Files ending in .cue are
// validated against the embedded #Scenario schema; everything else is
// parsed as YAML. Unknown fields are rejected in both formats.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = ParseCUE(data, path)
	} else {
		scenario, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseYAML decodes a YAML scenario with strict field checking. It does not
// validate the result.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// ParseCUE compiles a CUE scenario, unifies it with #Scenario and decodes
// the concrete result. filename is used in error positions.
func ParseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}

	var scenario Scenario
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, ok := demos[s.Resource]; !ok {
		return fmt.Errorf("unknown resource %q (want one of %s)", s.Resource, strings.Join(demoNames(), ", "))
	}

	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	kind := s.Kind()
	if kind == "" {
		return fmt.Errorf("steps[%d]: exactly one of call, props, flush or close is required", index)
	}
	if kind != StepCall && (len(s.Args) > 0 || s.Item != "" || s.Index != nil) {
		return fmt.Errorf("steps[%d]: args, item and index only apply to call", index)
	}
	if s.Item != "" && s.Index != nil {
		return fmt.Errorf("steps[%d]: item and index are mutually exclusive", index)
	}
	if s.Index != nil && *s.Index < 0 {
		return fmt.Errorf("steps[%d]: index must be non-negative", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
