package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/tap/internal/tap"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []tap.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Kind, ev.Path)
			if ev.Detail != "" {
				fmt.Fprintf(&buf, " (%s)", ev.Detail)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// eventMatches reports whether e has kind and, when set, path and detail.
func eventMatches(e tap.Event, kind, path, detail string) bool {
	if string(e.Kind) != kind {
		return false
	}
	if path != "" && e.Path != path {
		return false
	}
	if detail != "" && e.Detail != detail {
		return false
	}
	return true
}

func describeEvent(kind, path, detail string) string {
	desc := kind
	if path != "" {
		desc += " at " + path
	}
	if detail != "" {
		desc += " (" + detail + ")"
	}
	return desc
}

// assertTraceContains checks that some event matches kind, path and detail.
func assertTraceContains(trace []tap.Event, a Assertion) error {
	for _, e := range trace {
		if eventMatches(e, a.Event, a.Path, a.Detail) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeEvent(a.Event, a.Path, a.Detail),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed events occur in order. Events
// don't need to be consecutive; each entry matches the first event after
// the previous match.
func assertTraceOrder(trace []tap.Event, a Assertion) error {
	pos := 0
	for i, want := range a.Events {
		kind, path, _ := strings.Cut(want, " ")

		found := -1
		for j := pos; j < len(trace); j++ {
			if eventMatches(trace[j], kind, path, "") {
				found = j
				break
			}
		}

		if found < 0 {
			actual := fmt.Sprintf("%q not found", want)
			if i > 0 {
				actual = fmt.Sprintf("%q not found after %q", want, a.Events[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
		pos = found + 1
	}
	return nil
}

// assertTraceCount checks that exactly Count events match kind and path.
func assertTraceCount(trace []tap.Event, a Assertion) error {
	count := 0
	for _, e := range trace {
		if eventMatches(e, a.Event, a.Path, a.Detail) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeEvent(a.Event, a.Path, a.Detail)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the final state against Expect with subset
// semantics: every expected key must be present and match, nested objects
// recurse, lists must match element-wise with the same length.
func assertFinalState(state any, a Assertion) error {
	if state == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "a final state",
			Actual:   "root closed or never mounted",
		}
	}

	expected, err := genericValue(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	if path, ok := subsetMatch(state, expected, "state"); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", path, render(lookupPath(expected, path))),
			Actual:   fmt.Sprintf("%s = %s", path, render(lookupPath(state, path))),
		}
	}
	return nil
}

// subsetMatch reports whether actual contains expected. On mismatch it
// returns the dotted path of the first differing value.
func subsetMatch(actual, expected any, path string) (string, bool) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return path, false
		}
		keys := make([]string, 0, len(exp))
		for k := range exp {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			av, ok := act[k]
			if !ok {
				return path + "." + k, false
			}
			if p, ok := subsetMatch(av, exp[k], path+"."+k); !ok {
				return p, false
			}
		}
		return "", true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return path, false
		}
		for i := range exp {
			if p, ok := subsetMatch(act[i], exp[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	default:
		if reflect.DeepEqual(actual, expected) {
			return "", true
		}
		return path, false
	}
}

// lookupPath resolves a path produced by subsetMatch; missing parts yield nil.
func lookupPath(v any, path string) any {
	rest := strings.TrimPrefix(path, "state")
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v, rest = m[rest[:end]], rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			var i int
			fmt.Sscanf(rest[1:end], "%d", &i)
			rest = rest[end+1:]
			l, ok := v.([]any)
			if !ok || i >= len(l) {
				return nil
			}
			v = l[i]
		default:
			return nil
		}
	}
	return v
}

func render(v any) string {
	if v == nil {
		return "<missing>"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// genericValue converts v to its JSON shape with json.Number numbers, so
// YAML, CUE and Go values compare alike.
func genericValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return out, nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
