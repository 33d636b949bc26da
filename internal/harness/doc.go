// Package harness provides conformance testing for tap resources.
//
// The harness mounts one of the built-in demo resources as a store, drives
// it through the steps of a scenario and validates the runtime event trace
// and the final state.
//
// # Scenario Format
//
// Scenarios are YAML files (or CUE files checked against an embedded
// #Scenario schema) with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	resource: todos            # counter | todos | ticker
//	props: { items: [a, b] }
//	max_passes: 100            # optional pass limit per flush
//	expect_error: ""           # optional: the mount must fail with this
//	steps:
//	  - call: Toggle           # action on the facade...
//	    item: a                # ...or on a list item (item: key | index: n)
//	  - flush: true
//	  - props: { items: [a] }  # UpdateInput
//	  - call: Remove
//	    args: [zzz]
//	    expect_error: "not found"
//	  - close: true
//	assertions:
//	  - type: trace_contains
//	    event: teardown
//	    path: todos/a
//	  - type: trace_order
//	    events: ["create todos/a", "create todos"]
//	  - type: trace_count
//	    event: pass
//	    count: 3
//	  - type: final_state
//	    expect: { remaining: 1 }
//
// expect_error matches an error code (MISSING_RESOURCE, PASSES_EXCEEDED, ...)
// or a substring of the error message.
//
// # Deterministic Testing
//
// Every run uses sequential instance IDs (t-1, t-2, ...) and a fresh logical
// clock, so a scenario always produces the same trace. Snapshot renders the
// trace and final state as canonical JSON for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/todos_list.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
