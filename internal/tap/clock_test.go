package tap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), c.Current())
}

func TestPassQuota(t *testing.T) {
	q := newPassQuota(3)
	for i := 0; i < 3; i++ {
		assert.NoError(t, q.check("loop"), "pass %d should be allowed", i+1)
	}

	err := q.check("loop")
	assert.True(t, IsPassesExceeded(err))
	assert.Equal(t, ErrCodePassesExceeded, CodeOf(err))

	var pe *PassesExceededError
	if assert.ErrorAs(t, err, &pe) {
		assert.Equal(t, 4, pe.Passes)
		assert.Equal(t, 3, pe.Limit)
		assert.Equal(t, "loop", pe.Resource)
	}
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("")
	assert.Equal(t, "inst-1", g.Generate())
	assert.Equal(t, "inst-2", g.Generate())

	g = NewSequenceGenerator("t")
	assert.Equal(t, "t-1", g.Generate())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
