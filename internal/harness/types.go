package harness

import "github.com/roach88/tap/internal/tap"

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass indicates overall success: every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every runtime event up to the end of the steps, in
	// emission order.
	Trace []tap.Event `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final store state in generic JSON form (maps, slices,
	// strings, bools and json.Number). Nil when the root was closed or
	// never mounted.
	State any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []tap.Event{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
