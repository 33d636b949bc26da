package tap

import "log/slog"

// Ctx is the handle a resource function receives for one evaluation pass.
// It is only valid until the pass returns: primitives called with a stale
// Ctx fail with a StructuralViolation.
type Ctx struct {
	f *fiber
}

// check panics with a StructuralViolation unless c belongs to the pass
// currently running on its instance.
func (c *Ctx) check() {
	if c == nil || c.f == nil {
		panic(violation(nil, -1, "primitive called outside an active evaluation pass"))
	}
	if !c.f.evaluating || c.f.passCtx != c {
		panic(violation(c.f, -1, "primitive called outside an active evaluation pass"))
	}
}

// Path returns the instance path from its root, e.g. "todos/b".
func (c *Ctx) Path() string {
	c.check()
	return c.f.path
}

// Key returns the list key of the instance ("" outside lists).
func (c *Ctx) Key() string {
	c.check()
	return c.f.key
}

// Logger returns the root logger annotated with the instance path.
func (c *Ctx) Logger() *slog.Logger {
	c.check()
	return c.f.root.log.With("path", c.f.path)
}

// Post returns a function queueing a task on the root this instance belongs
// to. Tasks run at the end of the next flush, after subscribers were
// notified, on the flushing goroutine; posting schedules that flush. The
// returned function is safe to call from any goroutine and after the pass.
func (c *Ctx) Post() func(task func()) {
	c.check()
	return c.f.root.post
}

// Scheduler returns the scheduler of the root this instance belongs to.
// Effects use it to defer work until after the current flush.
func (c *Ctx) Scheduler() Scheduler {
	c.check()
	return c.f.root.opts.scheduler
}
