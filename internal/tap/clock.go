package tap

import "sync/atomic"

// Clock is the monotonic logical clock stamping runtime events.
//
// Every Event carries a strictly increasing Seq from this clock, so traces
// order deterministically without wall-clock timestamps. Roots may share a
// clock (WithClock) to interleave their events in one trace.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
