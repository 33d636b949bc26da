package tap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// errFlushActive is returned by flush when the root is already flushing.
var errFlushActive = errors.New("flush already active")

// update is one queued setter call.
type update struct {
	cell *stateCell
	fn   func(prev any) any
}

// listener wraps a subscriber so each Subscribe call has its own identity.
type listener struct {
	fn func()
}

// root owns a tree of instances and drives its flushes.
//
// Concurrency: enqueue, post, Subscribe, snapshot reads and Err are safe from
// any goroutine. Passes, commits, effects, listeners and posted tasks run on
// whichever goroutine holds the flush (the scheduler loop, or the caller of
// FlushSync); acquire guarantees there is at most one at a time.
type root struct {
	opts  options
	log   *slog.Logger
	fiber *fiber
	stop  context.CancelFunc // stops the root-owned queue loop, if any

	mounted atomic.Bool

	flushMu   sync.Mutex
	flushIdle *sync.Cond
	flushing  bool
	flusher   int64 // goroutine holding the flush

	// owned by the flushing goroutine
	props    any
	touched  []*fiber
	disposed bool

	mu           sync.Mutex
	updates      []update
	posted       []func()
	nextProps    any
	propsPending bool
	scheduled    bool // a runScheduled task is pending in the scheduler
	closed       bool

	snapMu   sync.RWMutex
	snapshot any
	lastErr  error

	listenersMu sync.Mutex
	listeners   []*listener
}

func newRoot(def *definition, props any, opts []Option) *root {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var stop context.CancelFunc
	if o.scheduler == nil {
		q := NewQueue()
		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = q.Run(ctx) }()
		o.scheduler, stop = q, cancel
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = NewClock()
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}
	if o.maxPasses <= 0 {
		o.maxPasses = DefaultMaxPasses
	}

	r := &root{
		opts:  o,
		props: props,
		stop:  stop,
	}
	r.flushIdle = sync.NewCond(&r.flushMu)
	r.fiber = r.spawn(def, nil, "", def.name)
	r.log = o.logger.With("resource", def.name, "instance", r.fiber.id)
	return r
}

// emit stamps an event and hands it to the observer.
func (r *root) emit(kind EventKind, f *fiber, slot int, detail string) {
	if r.opts.observer == nil {
		return
	}
	e := Event{
		Seq:    r.opts.clock.Next(),
		Kind:   kind,
		Slot:   slot,
		Detail: detail,
	}
	if f != nil {
		e.Instance = f.id
		e.Resource = f.def.name
		e.Key = f.key
		e.Path = f.path
	}
	r.opts.observer.Observe(e)
}

// enqueue queues a setter call and makes sure a flush is scheduled.
func (r *root) enqueue(u update) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.updates = append(r.updates, u)
	schedule := !r.scheduled
	r.scheduled = true
	r.mu.Unlock()

	if schedule {
		r.opts.scheduler.Schedule(r.runScheduled)
	}
}

// post queues task to run at the end of the next flush, after subscribers
// were notified, and makes sure a flush is scheduled.
func (r *root) post(task func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.posted = append(r.posted, task)
	schedule := !r.scheduled
	r.scheduled = true
	r.mu.Unlock()

	if schedule {
		r.opts.scheduler.Schedule(r.runScheduled)
	}
}

// requeue puts updates back in front of the pending ones.
func (r *root) requeue(ups []update) {
	if len(ups) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.updates = append(append([]update(nil), ups...), r.updates...)
}

// setProps queues new input for the root instance.
func (r *root) setProps(props any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextProps = props
	r.propsPending = true
}

// runScheduled is the task handed to the scheduler.
func (r *root) runScheduled() {
	r.mu.Lock()
	r.scheduled = false
	r.mu.Unlock()

	err := r.flush()
	if errors.Is(err, errFlushActive) {
		// The running flush drains the queue before it returns.
		return
	}
	r.snapMu.Lock()
	r.lastErr = err
	r.snapMu.Unlock()
	if err != nil {
		r.log.Error("tap flush failed", "error", err)
	}
}

// flushSync runs a flush on the calling goroutine. A flush running on
// another goroutine is waited for first; one running on this goroutine is a
// re-entrant call and fails.
func (r *root) flushSync() error {
	for {
		err := r.flush()
		if !errors.Is(err, errFlushActive) {
			return err
		}
		if !r.await() {
			return violation(r.fiber, -1, "flush requested while the root is already flushing")
		}
	}
}

// acquire makes the calling goroutine the flushing one, or reports false if
// a flush is active.
func (r *root) acquire() bool {
	id := goroutineID()
	r.flushMu.Lock()
	defer r.flushMu.Unlock()
	if r.flushing {
		return false
	}
	r.flushing = true
	r.flusher = id
	return true
}

func (r *root) release() {
	r.flushMu.Lock()
	r.flushing = false
	r.flusher = 0
	r.flushMu.Unlock()
	r.flushIdle.Broadcast()
}

// await blocks until no flush is active. It returns false at once when the
// active flush belongs to the calling goroutine.
func (r *root) await() bool {
	id := goroutineID()
	r.flushMu.Lock()
	defer r.flushMu.Unlock()
	for r.flushing {
		if r.flusher == id {
			return false
		}
		r.flushIdle.Wait()
	}
	return true
}

// flush applies queued updates and runs passes until nothing is dirty.
// Subscribers are notified once if anything committed, after the last pass,
// then posted tasks run.
func (r *root) flush() error {
	if !r.acquire() {
		return errFlushActive
	}

	quota := newPassQuota(r.opts.maxPasses)
	committed := false
	var errs []error
	failed := false

	for {
		r.mu.Lock()
		ups := r.updates
		r.updates = nil
		if r.propsPending {
			r.props = r.nextProps
			r.nextProps = nil
			r.propsPending = false
			r.fiber.markDirty()
		}
		closed := r.closed
		r.mu.Unlock()

		if closed {
			break
		}

		if err := r.apply(ups); err != nil {
			errs = append(errs, err)
			failed = true
			break
		}

		if !r.fiber.dirty {
			break
		}

		if err := quota.check(r.fiber.def.name); err != nil {
			errs = append(errs, err)
			failed = true
			break
		}

		batch, err := r.pass()
		if err != nil {
			errs = append(errs, err)
			failed = true
			break
		}
		committed = true

		errs = append(errs, r.runEffects(batch)...)
	}

	err := errors.Join(errs...)
	if err != nil {
		r.emit(EventError, r.fiber, -1, err.Error())
	}

	if committed {
		r.notify()
	}
	if perr := r.runPosted(); perr != nil {
		err = errors.Join(err, perr)
	}

	r.mu.Lock()
	closed := r.closed
	reschedule := false
	// Updates left by a failed flush wait for the next trigger.
	pending := len(r.posted) > 0 || (!failed && (len(r.updates) > 0 || r.propsPending))
	if !closed && pending && !r.scheduled {
		r.scheduled = true
		reschedule = true
	}
	r.mu.Unlock()

	if closed {
		if cerr := r.disposeLocked(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	r.release()

	if reschedule {
		r.opts.scheduler.Schedule(r.runScheduled)
	}
	return err
}

// runPosted runs the tasks posted so far. A panicking task does not stop
// the others.
func (r *root) runPosted() error {
	r.mu.Lock()
	tasks := r.posted
	r.posted = nil
	r.mu.Unlock()

	var errs []error
	for _, task := range tasks {
		if err := r.runTask(task); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *root) runTask(task func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.fiber.wrapPanic(rec, "posted task")
		}
	}()
	task()
	return nil
}

// apply runs queued updates in order. Each updater sees the value left by
// the previous one. Updates for instances that never committed or were torn
// down are dropped. When an updater panics, the updates after it go back to
// the front of the queue.
func (r *root) apply(ups []update) (err error) {
	var cur *fiber
	i := 0
	defer func() {
		if rec := recover(); rec != nil {
			err = cur.wrapPanic(rec, "update")
			r.requeue(ups[i+1:])
		}
	}()

	for i = range ups {
		u := ups[i]
		f := u.cell.fiber
		if f.dead || !f.committed {
			r.log.Debug("tap update dropped", "path", f.path, "dead", f.dead)
			continue
		}
		cur = f
		next := u.fn(u.cell.value)
		if SameValue(u.cell.value, next) {
			continue
		}
		u.cell.value = next
		f.markDirty()
	}
	return nil
}

// pass evaluates the tree from the root and commits it. On failure every
// instance evaluated by the pass is rolled back to its last commit.
func (r *root) pass() (batch *commitBatch, err error) {
	r.touched = r.touched[:0]

	defer func() {
		if rec := recover(); rec != nil {
			for _, f := range r.touched {
				f.abort()
			}
			r.touched = r.touched[:0]
			batch = nil
			if e, ok := rec.(error); ok {
				err = e
			} else {
				err = r.fiber.wrapPanic(rec, "pass")
			}
			r.log.Debug("tap pass aborted", "error", err)
		}
	}()

	out := r.fiber.evaluate(r.props)

	batch = &commitBatch{}
	r.fiber.commitTo(batch)
	r.touched = r.touched[:0]

	r.snapMu.Lock()
	r.snapshot = out
	r.snapMu.Unlock()
	r.mounted.Store(true)

	r.log.Debug("tap pass committed", "effects", len(batch.effects), "removed", len(batch.removed))
	return batch, nil
}

// runEffects tears down removed instances, then runs the cleanups of all
// effects whose deps changed, then their bodies.
func (r *root) runEffects(b *commitBatch) []error {
	var errs []error
	for _, f := range b.removed {
		f.teardown(&errs)
	}
	for _, cell := range b.effects {
		cell.runCleanup(&errs)
	}
	for _, cell := range b.effects {
		cell.runBody(&errs)
	}
	return errs
}

// notify calls the subscribers registered when it starts.
func (r *root) notify() {
	r.listenersMu.Lock()
	snapshot := make([]*listener, len(r.listeners))
	copy(snapshot, r.listeners)
	r.listenersMu.Unlock()

	r.emit(EventNotify, r.fiber, -1, fmt.Sprintf("listeners=%d", len(snapshot)))

	for _, l := range snapshot {
		r.callListener(l)
	}
}

func (r *root) callListener(l *listener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tap listener panicked", "panic", rec)
		}
	}()
	l.fn()
}

func (r *root) subscribe(fn func()) func() {
	l := &listener{fn: fn}

	r.listenersMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.listenersMu.Lock()
			defer r.listenersMu.Unlock()
			for i, cur := range r.listeners {
				if cur == l {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// close stops accepting updates and tears the tree down. A flush running on
// another goroutine is waited for; called during a flush of this root on the
// same goroutine, the teardown happens when that flush ends.
func (r *root) close() error {
	r.mu.Lock()
	r.closed = true
	r.updates = nil
	r.posted = nil
	r.mu.Unlock()

	for !r.acquire() {
		if !r.await() {
			return nil
		}
	}
	defer r.release()
	return r.disposeLocked()
}

// disposeLocked requires the flush to be held.
func (r *root) disposeLocked() error {
	if r.disposed {
		return nil
	}
	r.disposed = true
	if r.stop != nil {
		r.stop()
	}

	var errs []error
	r.fiber.teardown(&errs)

	r.listenersMu.Lock()
	r.listeners = nil
	r.listenersMu.Unlock()

	r.log.Debug("tap root closed", "errors", len(errs))
	return errors.Join(errs...)
}

func (r *root) state() any {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snapshot
}

func (r *root) err() error {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.lastErr
}

// Root is a top-level resource instance exposed as an external store:
// State reads the latest committed output, Subscribe is told about every
// commit, FlushSync forces pending updates through.
type Root[P, R any] struct {
	r *root
}

// CreateResource creates the root instance of el. Unless WithEager(false) is
// given, the first pass runs before CreateResource returns and its failure is
// returned.
func CreateResource[P, R any](el Element[P, R], opts ...Option) (*Root[P, R], error) {
	if el.res == nil {
		return nil, &StructuralViolation{Slot: -1, Message: "element has no resource"}
	}

	r := newRoot(el.res.def, el.Props, opts)
	if r.opts.eager {
		if err := r.flushSync(); err != nil {
			_ = r.close()
			return nil, fmt.Errorf("create %s: %w", el.res.def.name, err)
		}
	}
	return &Root[P, R]{r: r}, nil
}

// State returns the latest committed output. A lazy root runs its first pass
// here, after any flush already in progress on another goroutine; if that
// fails the zero value is returned and Err reports why.
func (rt *Root[P, R]) State() R {
	if !rt.r.mounted.Load() {
		if err := rt.r.flushSync(); err != nil {
			rt.r.snapMu.Lock()
			rt.r.lastErr = err
			rt.r.snapMu.Unlock()
		}
	}
	return cast[R](rt.r.state())
}

// Subscribe registers fn to be called after every flush that committed.
// Listeners added or removed while subscribers are being notified take
// effect from the next notification. The returned function unsubscribes and
// is safe to call more than once.
func (rt *Root[P, R]) Subscribe(fn func()) (unsubscribe func()) {
	return rt.r.subscribe(fn)
}

// FlushSync applies every pending update and runs the resulting passes,
// effects, notification and posted tasks before returning. A flush running
// on another goroutine (the scheduler loop) is waited for. Calling it from
// inside a flush of the same root (resource code, an effect, a listener)
// fails with a StructuralViolation; the running flush picks pending updates
// up anyway.
func (rt *Root[P, R]) FlushSync() error {
	return rt.r.flushSync()
}

// UpdateInput replaces the root props and flushes synchronously.
func (rt *Root[P, R]) UpdateInput(props P) error {
	rt.r.setProps(props)
	return rt.r.flushSync()
}

// Close tears the instance tree down, children first, running every
// remaining cleanup once, and stops the root-owned scheduler loop. Updates
// after Close are dropped.
func (rt *Root[P, R]) Close() error {
	return rt.r.close()
}

// Err returns the error of the last flush run by the scheduler (or by the
// first State of a lazy root), nil if it succeeded.
func (rt *Root[P, R]) Err() error {
	return rt.r.err()
}

// Scheduler returns the scheduler the root defers flushes to.
func (rt *Root[P, R]) Scheduler() Scheduler {
	return rt.r.opts.scheduler
}

// ID returns the instance ID of the root instance.
func (rt *Root[P, R]) ID() string {
	return rt.r.fiber.id
}
