package tap

import "log/slog"

// DefaultMaxPasses is the default number of consecutive passes one flush may
// run before failing with PassesExceededError.
const DefaultMaxPasses = 1000

type options struct {
	scheduler Scheduler
	logger    *slog.Logger
	observer  Observer
	maxPasses int
	ids       IDGenerator
	clock     *Clock
	eager     bool
}

// Option configures a root created by CreateResource.
type Option func(*options)

func defaultOptions() options {
	return options{
		maxPasses: DefaultMaxPasses,
		ids:       UUIDv7Generator{},
		eager:     true,
	}
}

// WithScheduler sets the scheduler flushes are deferred to.
//
// Default: a fresh Queue per root, run by a goroutine the root owns and
// stops on Close. Roots created with Inherit share their parent's scheduler
// and do not start a loop of their own. A Queue passed here is run (or
// drained) by the caller.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver sets the observer receiving runtime events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithMaxPasses sets the maximum consecutive passes per flush.
//
// Default: 1000 (DefaultMaxPasses).
// Use WithMaxPasses(3) in tests exercising runaway effects.
func WithMaxPasses(n int) Option {
	return func(o *options) {
		o.maxPasses = n
	}
}

// WithIDGenerator sets the instance ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithClock sets the logical clock stamping events. Default: a new Clock.
func WithClock(c *Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithEager controls whether CreateResource evaluates the first pass right
// away (true, the default) or on first access.
func WithEager(eager bool) Option {
	return func(o *options) {
		o.eager = eager
	}
}

// Inherit returns options carrying the scheduler, logger, observer, clock and
// ID generator of the root c belongs to, so a root created from inside a
// resource (see tapstore.UseStore) runs on the same loop and shows up in the
// same trace.
func Inherit(c *Ctx) []Option {
	c.check()
	o := c.f.root.opts
	return []Option{
		WithScheduler(o.scheduler),
		WithLogger(o.logger),
		WithObserver(o.observer),
		WithClock(o.clock),
		WithIDGenerator(o.ids),
		WithMaxPasses(o.maxPasses),
	}
}
