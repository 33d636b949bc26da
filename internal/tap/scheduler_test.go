package tap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		require.True(t, q.Enqueue(func() { order = append(order, n) }))
	}
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DrainRunsTasksScheduledByTasks(t *testing.T) {
	q := NewQueue()
	var order []string
	q.Schedule(func() {
		order = append(order, "first")
		q.Schedule(func() { order = append(order, "nested") })
	})
	q.Schedule(func() { order = append(order, "second") })

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []string{"first", "second", "nested"}, order)
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := NewQueue()
	q.Close()
	assert.False(t, q.Enqueue(func() {}))
	assert.Equal(t, 0, q.Len())

	// Close is idempotent.
	q.Close()
}

func TestQueue_Run_ProcessesUntilCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	ran := make(chan struct{})
	q.Schedule(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task was not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestQueue_Run_StopsWhenClosed(t *testing.T) {
	q := NewQueue()
	ran := 0
	q.Schedule(func() { ran++ })
	q.Close()

	err := q.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, ran, "tasks queued before Close still run")
}

func TestImmediate_RunsSynchronously(t *testing.T) {
	ran := false
	Immediate{}.Schedule(func() { ran = true })
	assert.True(t, ran)
}
