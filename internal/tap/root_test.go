package tap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// External store contract
// ============================================================================

func TestRoot_FlushSyncReflectsLatestWrite(t *testing.T) {
	root, err := CreateResource(newCounter().With(0), testOptions(nil)...)
	require.NoError(t, err)

	root.State().Set.Set(7)
	require.NoError(t, root.FlushSync())
	assert.Equal(t, 7, root.State().Value)
}

func TestRoot_BatchesSetterCalls(t *testing.T) {
	q := NewQueue()
	rec := &recorder{}
	root, err := CreateResource(newCounter().With(0), testOptions(rec, WithScheduler(q))...)
	require.NoError(t, err)

	notified := 0
	root.Subscribe(func() { notified++ })

	set := root.State().Set
	for i := 0; i < 3; i++ {
		set.Update(func(prev int) int { return prev + 1 })
	}
	assert.Equal(t, 1, q.Len(), "one flush task per batch")
	assert.Equal(t, 0, root.State().Value)

	q.Drain()
	assert.Equal(t, 3, root.State().Value)
	assert.Equal(t, 1, notified)
	assert.Equal(t, 2, rec.count(EventPass, ""))
	assert.NoError(t, root.Err())
}

func TestRoot_SnapshotSafeNotification(t *testing.T) {
	root, err := CreateResource(newCounter().With(0), testOptions(nil)...)
	require.NoError(t, err)

	var calls []string
	var unsubB func()
	added := false
	root.Subscribe(func() {
		calls = append(calls, "a")
		unsubB()
		if !added {
			added = true
			root.Subscribe(func() { calls = append(calls, "c") })
		}
	})
	unsubB = root.Subscribe(func() { calls = append(calls, "b") })

	root.State().Set.Set(1)
	require.NoError(t, root.FlushSync())
	assert.Equal(t, []string{"a", "b"}, calls, "b was subscribed when the pass began, c was not")

	calls = nil
	root.State().Set.Set(2)
	require.NoError(t, root.FlushSync())
	assert.Equal(t, []string{"a", "c"}, calls)
}

func TestRoot_UnsubscribeIsIdempotent(t *testing.T) {
	root, err := CreateResource(newCounter().With(0), testOptions(nil)...)
	require.NoError(t, err)

	n := 0
	unsub := root.Subscribe(func() { n++ })
	other := root.Subscribe(func() {})
	unsub()
	unsub()

	root.State().Set.Set(1)
	require.NoError(t, root.FlushSync())
	assert.Equal(t, 0, n)
	other()
}

func TestRoot_ListenerPanicDoesNotStopOthers(t *testing.T) {
	root, err := CreateResource(newCounter().With(0), testOptions(nil)...)
	require.NoError(t, err)

	reached := false
	root.Subscribe(func() { panic("listener") })
	root.Subscribe(func() { reached = true })

	root.State().Set.Set(1)
	require.NoError(t, root.FlushSync())
	assert.True(t, reached)
}

func TestRoot_ImmediateScheduler(t *testing.T) {
	root, err := CreateResource(newCounter().With(0), testOptions(nil, WithScheduler(Immediate{}))...)
	require.NoError(t, err)

	notified := 0
	root.Subscribe(func() { notified++ })

	root.State().Set.Set(4)
	assert.Equal(t, 4, root.State().Value, "no flush needed")
	assert.Equal(t, 1, notified)
}

func TestRoot_LazyFirstPass(t *testing.T) {
	renders := 0
	res := New("lazy", func(c *Ctx, p int) int {
		renders++
		return p
	})

	root, err := CreateResource(res.With(3), testOptions(nil, WithEager(false))...)
	require.NoError(t, err)
	assert.Equal(t, 0, renders)

	assert.Equal(t, 3, root.State())
	assert.Equal(t, 3, root.State())
	assert.Equal(t, 1, renders)
}

func TestRoot_LazyFailureReportedByErr(t *testing.T) {
	res := New("lazy", func(c *Ctx, p int) int {
		panic(errBoom)
	})

	root, err := CreateResource(res.With(0), testOptions(nil, WithEager(false))...)
	require.NoError(t, err)

	assert.Equal(t, 0, root.State())
	assert.ErrorIs(t, root.Err(), errBoom)
}

func TestRoot_ReentrantFlushIsViolation(t *testing.T) {
	var root *Root[int, int]
	var flushErr error
	res := New("reentrant", func(c *Ctx, p int) int {
		Effect(c, func() Cleanup {
			if root != nil {
				flushErr = root.FlushSync()
			}
			return nil
		}, nil)
		return p
	})

	var err error
	root, err = CreateResource(res.With(0), testOptions(nil)...)
	require.NoError(t, err)

	require.NoError(t, root.UpdateInput(1))
	assert.True(t, IsStructuralViolation(flushErr))
}

func TestRoot_SetterDuringPassSchedulesFollowUp(t *testing.T) {
	rec := &recorder{}
	res := New("derive", func(c *Ctx, target int) int {
		v, set := State(c, 0)
		if v != target {
			set.Set(target)
		}
		return v
	})

	root, err := CreateResource(res.With(5), testOptions(rec)...)
	require.NoError(t, err)

	assert.Equal(t, 5, root.State())
	assert.Equal(t, 2, rec.count(EventPass, ""))
}

func TestRoot_CloseDropsUpdates(t *testing.T) {
	rec := &recorder{}
	root, err := CreateResource(newCounter().With(0), testOptions(rec)...)
	require.NoError(t, err)

	set := root.State().Set
	require.NoError(t, root.Close())
	set.Set(3)
	require.NoError(t, root.FlushSync())

	assert.Equal(t, 0, root.State().Value)
	assert.Equal(t, 1, rec.count(EventTeardown, "counter"))
	assert.Equal(t, 1, rec.count(EventPass, ""))
}

func TestRoot_CloseFromEffectDefersTeardown(t *testing.T) {
	var root *Root[int, int]
	cleanups := 0
	res := New("selfclose", func(c *Ctx, p int) int {
		Effect(c, func() Cleanup {
			if p == 1 {
				require.NoError(t, root.Close())
			}
			return func() { cleanups++ }
		}, Deps{p})
		return p
	})

	var err error
	root, err = CreateResource(res.With(0), testOptions(nil)...)
	require.NoError(t, err)

	require.NoError(t, root.UpdateInput(1))
	assert.Equal(t, 2, cleanups, "cleanup of the first run, then teardown")
}

func TestRoot_EventSequence(t *testing.T) {
	rec := &recorder{}
	res := New("single", func(c *Ctx, _ int) int {
		Effect(c, func() Cleanup { return nil }, Deps{})
		return 0
	})

	root, err := CreateResource(res.With(0), testOptions(rec)...)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventPass, EventCreate, EventCommit, EventEffect, EventNotify}, rec.kinds())
	for i, e := range rec.events {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, root.ID(), e.Instance)
	}
	assert.Equal(t, "t-1", root.ID())
	assert.Equal(t, 0, rec.events[3].Slot)
	assert.Equal(t, -1, rec.events[0].Slot)
	assert.Equal(t, "mount", rec.events[0].Detail)
}

func TestRoot_RunLoopFlushesAsynchronously(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	root, err := CreateResource(newCounter().With(0), testOptions(nil, WithScheduler(q))...)
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	root.Subscribe(func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	root.State().Set.Set(9)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush did not run")
	}
	assert.Equal(t, 9, root.State().Value)
}

func TestInherit_CopiesRootOptions(t *testing.T) {
	q := NewQueue()
	clock := NewClock()
	var inherited []Option
	res := New("parent", func(c *Ctx, _ int) int {
		inherited = Inherit(c)
		assert.Same(t, q, c.Scheduler())
		return 0
	})

	_, err := CreateResource(res.With(0), testOptions(nil, WithScheduler(q), WithClock(clock))...)
	require.NoError(t, err)

	o := defaultOptions()
	for _, opt := range inherited {
		opt(&o)
	}
	assert.Same(t, q, o.scheduler)
	assert.Same(t, clock, o.clock)
	assert.True(t, o.eager, "eagerness is not inherited")
}

// ============================================================================
// Default scheduler and flush ownership
// ============================================================================

func TestRoot_DefaultSchedulerFlushesSetterFromGoroutine(t *testing.T) {
	// WithScheduler(nil) restores the default root-owned loop.
	root, err := CreateResource(newCounter().With(0), testOptions(nil, WithScheduler(nil))...)
	require.NoError(t, err)
	defer root.Close()

	done := make(chan struct{}, 1)
	root.Subscribe(func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	set := root.State().Set
	go set.Set(5)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("setter called from another goroutine never flushed")
	}
	assert.Equal(t, 5, root.State().Value)
	assert.NoError(t, root.Err())
}

func TestRoot_FlushSyncKeepsOneTaskPerRoot(t *testing.T) {
	q := NewQueue()
	root, err := CreateResource(newCounter().With(0), testOptions(nil, WithScheduler(q))...)
	require.NoError(t, err)

	set := root.State().Set
	for i := 1; i <= 100; i++ {
		set.Set(i)
		require.NoError(t, root.FlushSync())
	}
	assert.Equal(t, 100, root.State().Value)
	assert.Equal(t, 1, q.Len(), "the pending flush task is reused")

	assert.Equal(t, 1, q.Drain())
	set.Set(0)
	assert.Equal(t, 1, q.Len())
}

func TestRoot_LazyStateWaitsForFlushOnOtherGoroutine(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	renders := 0
	res := New("slow", func(c *Ctx, p int) int {
		renders++
		if renders == 1 {
			close(entered)
			<-release
		}
		return p
	})

	root, err := CreateResource(res.With(3), testOptions(nil, WithEager(false))...)
	require.NoError(t, err)

	flushed := make(chan error, 1)
	go func() { flushed <- root.FlushSync() }()
	<-entered

	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	assert.Equal(t, 3, root.State())
	assert.NoError(t, root.Err())
	require.NoError(t, <-flushed)
	assert.Equal(t, 1, renders)
}

func TestCtx_PostRunsAfterNotify(t *testing.T) {
	var post func(func())
	res := New("poster", func(c *Ctx, initial int) counterOut {
		post = c.Post()
		v, set := State(c, initial)
		return counterOut{Value: v, Set: set}
	})

	root, err := CreateResource(res.With(0), testOptions(nil)...)
	require.NoError(t, err)

	var order []string
	root.Subscribe(func() { order = append(order, "notify") })

	root.State().Set.Set(1)
	post(func() { order = append(order, "task") })
	require.NoError(t, root.FlushSync())
	assert.Equal(t, []string{"notify", "task"}, order)

	post(func() { panic("task failed") })
	post(func() { order = append(order, "after") })
	err = root.FlushSync()
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
	assert.Contains(t, err.Error(), "task failed")
	assert.Equal(t, "after", order[len(order)-1], "a panicking task does not stop the others")
}
