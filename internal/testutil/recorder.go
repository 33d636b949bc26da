package testutil

import (
	"sync"

	"github.com/roach88/tap/internal/tap"
)

// Recorder is a tap.Observer that keeps every event in order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []tap.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe implements tap.Observer.
func (r *Recorder) Observe(e tap.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []tap.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tap.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns the number of events of kind. An empty path matches every
// instance.
func (r *Recorder) Count(kind tap.EventKind, path string) int {
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

// Kinds returns the kinds of the events recorded for path, in order. An
// empty path matches every instance.
func (r *Recorder) Kinds(path string) []tap.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tap.EventKind
	for _, e := range r.events {
		if path == "" || e.Path == path {
			out = append(out, e.Kind)
		}
	}
	return out
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
