package tap

import (
	"io"
	"log/slog"
	"sync"
)

// recorder collects events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind EventKind, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind && (path == "" || e.Path == path) {
			n++
		}
	}
	return n
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// testOptions returns deterministic options that keep test output quiet.
// Flushes happen only through FlushSync unless extra installs a scheduler
// that runs.
func testOptions(rec *recorder, extra ...Option) []Option {
	opts := []Option{
		WithScheduler(NewQueue()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(NewSequenceGenerator("t")),
		WithClock(NewClock()),
	}
	if rec != nil {
		opts = append(opts, WithObserver(rec))
	}
	return append(opts, extra...)
}

// catchPanic runs fn and returns the recovered value, nil if fn returned.
func catchPanic(fn func()) (rec any) {
	defer func() {
		rec = recover()
	}()
	fn()
	return nil
}

// counterResource is a state cell exposed with its setter.
type counterOut struct {
	Value int
	Set   *Setter[int]
}

func newCounter() *Resource[int, counterOut] {
	return New("counter", func(c *Ctx, initial int) counterOut {
		v, set := State(c, initial)
		return counterOut{Value: v, Set: set}
	})
}
