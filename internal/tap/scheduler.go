package tap

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler defers flush work. State setters never evaluate synchronously;
// they hand the owning root's flush to its scheduler instead.
type Scheduler interface {
	Schedule(task func())
}

// Queue is the default Scheduler: a FIFO of deferred tasks drained by one
// goroutine.
//
// This is where batching comes from. Every setter call made before the queue
// is drained lands in the same pending batch of its root, and the root keeps
// at most one flush task queued, so N setter calls in one turn cost one pass
// and one notification.
//
// Thread-safety: Schedule is safe from any goroutine (effect bodies doing
// asynchronous work call setters from their own goroutines). Drain and Run
// must be called from exactly one goroutine, the one that owns the roots
// using this queue.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Schedule appends a task. Tasks scheduled after Close are dropped.
func (q *Queue) Schedule(task func()) {
	q.Enqueue(task)
}

// Enqueue appends a task and reports whether it was accepted.
func (q *Queue) Enqueue(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, task)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryDequeue pops the front task without blocking.
func (q *Queue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	// Nil out the slot so the closure (and everything it captured) can be
	// collected.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return task, true
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks scheduled by the tasks themselves. Returns the number of
// tasks run.
func (q *Queue) Drain() int {
	n := 0
	for {
		task, ok := q.tryDequeue()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// Run is the single-writer loop: it runs tasks as they arrive until ctx is
// cancelled or the queue is closed and empty.
func (q *Queue) Run(ctx context.Context) error {
	slog.Debug("tap queue starting")

	for {
		if task, ok := q.tryDequeue(); ok {
			task()
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("tap queue stopping: context cancelled")
			q.Close()
			return ctx.Err()

		case <-q.signal:
			// The signal channel is closed by Close, which makes this case
			// fire immediately.
			if q.isClosed() && q.Len() == 0 {
				slog.Debug("tap queue stopping: queue closed")
				return nil
			}
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks and wakes a blocked Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Immediate runs every task synchronously on the scheduling goroutine.
//
// A root still never re-enters an active flush: a setter called during a
// pass or from an effect is picked up by the flush already in progress, so
// the follow-up pass happens before that flush returns. Outside a flush
// every setter call evaluates and notifies at once (no batching).
type Immediate struct{}

// Schedule runs task now.
func (Immediate) Schedule(task func()) { task() }
