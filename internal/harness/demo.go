package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/tap/internal/tap"
	"github.com/roach88/tap/internal/tapstore"
)

// ============================================================================
// counter
// ============================================================================

// CounterProps configures the counter demo.
type CounterProps struct {
	Start int `json:"start"`
	Step  int `json:"step"`
}

// CounterState is the observable counter state.
type CounterState struct {
	Count int `json:"count"`
	Step  int `json:"step"`
}

// CounterActions are the counter's actions.
type CounterActions struct {
	Increment func()
	Add       func(n int)
	Reset     func() error
}

// ErrAlreadyAtStart is returned by Reset when the count equals the start value.
var ErrAlreadyAtStart = errors.New("counter already at start")

// Counter is a single state cell with a props-driven step.
var Counter = tap.New("counter", func(c *tap.Ctx, p CounterProps) tapstore.Output[CounterState, CounterActions] {
	count, set := tap.State(c, p.Start)
	step := p.Step
	if step == 0 {
		step = 1
	}

	actions := tap.Memo(c, func() CounterActions {
		return CounterActions{
			Increment: func() { set.Update(func(n int) int { return n + step }) },
			Add:       func(n int) { set.Update(func(prev int) int { return prev + n }) },
			Reset: func() error {
				if count == p.Start {
					return ErrAlreadyAtStart
				}
				set.Set(p.Start)
				return nil
			},
		}
	}, tap.Deps{set, step, count, p.Start})

	state := CounterState{Count: count, Step: step}
	return tapstore.Output[CounterState, CounterActions]{
		State: state,
		Api:   tapstore.UseApi(c, state, actions),
	}
})

// ============================================================================
// todos
// ============================================================================

// TodoProps configures one todo item.
type TodoProps struct {
	Title string `json:"title"`
}

// TodoState is the observable state of one item.
type TodoState struct {
	Title   string `json:"title"`
	Done    bool   `json:"done"`
	Toggles int    `json:"toggles"`
}

// TodoActions are the actions of one item.
type TodoActions struct {
	Toggle func()
}

// Todo is one item of the todos list with its own toggle counter.
var Todo = tap.New("todo", func(c *tap.Ctx, p TodoProps) tapstore.Output[TodoState, TodoActions] {
	done, setDone := tap.State(c, false)
	toggles, setToggles := tap.State(c, 0)

	actions := tap.Memo(c, func() TodoActions {
		return TodoActions{Toggle: func() {
			setDone.Update(func(d bool) bool { return !d })
			setToggles.Update(func(n int) int { return n + 1 })
		}}
	}, tap.Deps{setDone, setToggles})

	state := TodoState{Title: p.Title, Done: done, Toggles: toggles}
	return tapstore.Output[TodoState, TodoActions]{
		State: state,
		Api:   tapstore.UseApi(c, state, actions),
	}
})

// TodosProps seeds the list. Later prop changes do not replace the titles
// held in state.
type TodosProps struct {
	Items []string `json:"items"`
}

// TodosState is the observable list state.
type TodosState struct {
	Items     []TodoState `json:"items"`
	Remaining int         `json:"remaining"`
}

// TodosActions are the list actions. Item actions are reached through the
// list's lookup.
type TodosActions struct {
	Add    func(title string) error
	Remove func(title string) error

	items *tap.RefObject[*tapstore.Lookup[TodoState, TodoActions]]
}

// Todos is a keyed list of Todo items.
var Todos = tap.New("todos", func(c *tap.Ctx, p TodosProps) tapstore.Output[TodosState, TodosActions] {
	titles, set := tap.StateFunc(c, func() []string {
		return append([]string(nil), p.Items...)
	})

	els := make([]tap.Element[TodoProps, tapstore.Output[TodoState, TodoActions]], len(titles))
	for i, title := range titles {
		els[i] = Todo.Keyed(title, TodoProps{Title: title})
	}
	lookup := tapstore.LookupResources(c, els)

	items := tap.Ref[*tapstore.Lookup[TodoState, TodoActions]](c, nil)
	tap.Effect(c, func() tap.Cleanup {
		items.Current = lookup
		return nil
	}, nil)

	actions := tap.Memo(c, func() TodosActions {
		return TodosActions{
			Add: func(title string) error {
				if title == "" {
					return errors.New("title is required")
				}
				if contains(titles, title) {
					return fmt.Errorf("todo %q already exists", title)
				}
				set.Update(func(prev []string) []string {
					return append(append([]string(nil), prev...), title)
				})
				return nil
			},
			Remove: func(title string) error {
				if !contains(titles, title) {
					return fmt.Errorf("todo %q not found", title)
				}
				set.Update(func(prev []string) []string {
					out := make([]string, 0, len(prev))
					for _, t := range prev {
						if t != title {
							out = append(out, t)
						}
					}
					return out
				})
				return nil
			},
			items: items,
		}
	}, tap.Deps{set, titles, items})

	states := lookup.States()
	remaining := 0
	for _, s := range states {
		if !s.Done {
			remaining++
		}
	}

	state := TodosState{Items: states, Remaining: remaining}
	return tapstore.Output[TodosState, TodosActions]{
		State: state,
		Api:   tapstore.UseApi(c, state, actions),
	}
})

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// ticker
// ============================================================================

// TickerProps configures the ticker demo.
type TickerProps struct {
	Limit int `json:"limit"`
}

// TickerState is the observable ticker state.
type TickerState struct {
	Ticks   int  `json:"ticks"`
	Limit   int  `json:"limit"`
	Running bool `json:"running"`
}

// TickerActions are the ticker's actions.
type TickerActions struct {
	SetLimit func(n int)
}

// Ticker advances its tick count from an effect until it reaches its limit,
// one pass per tick. A mount-only effect marks it running and its cleanup
// runs on teardown.
var Ticker = tap.New("ticker", func(c *tap.Ctx, p TickerProps) tapstore.Output[TickerState, TickerActions] {
	ticks, setTicks := tap.State(c, 0)
	limit, setLimit := tap.State(c, p.Limit)
	running, setRunning := tap.State(c, false)
	log := c.Logger()

	tap.Effect(c, func() tap.Cleanup {
		setRunning.Set(true)
		return func() { log.Debug("ticker stopped") }
	}, tap.Deps{})

	tap.Effect(c, func() tap.Cleanup {
		if ticks < limit {
			setTicks.Set(ticks + 1)
		}
		return nil
	}, tap.Deps{ticks, limit})

	actions := tap.Memo(c, func() TickerActions {
		return TickerActions{SetLimit: func(n int) { setLimit.Set(n) }}
	}, tap.Deps{setLimit})

	state := TickerState{Ticks: ticks, Limit: limit, Running: running}
	return tapstore.Output[TickerState, TickerActions]{
		State: state,
		Api:   tapstore.UseApi(c, state, actions),
	}
})
