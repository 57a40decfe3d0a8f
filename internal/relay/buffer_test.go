package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func TestBufferFIFO(t *testing.T) {
	b := NewBuffer()
	_, ok := b.Pop()
	assert.False(t, ok)

	b.Push([]byte{1})
	b.Push([]byte{2})
	assert.Equal(t, 2, b.Len())

	p, ok := b.Pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, p)
	p, _ = b.Pop()
	assert.Equal(t, []byte{2}, p)
	assert.Equal(t, 0, b.Len())
}

func TestBufferCapacityDropsOldest(t *testing.T) {
	clk := newClock()
	b := NewBuffer(WithBufferClock(clk.Now))
	for i := range 8 {
		b.Push([]byte{byte(i)})
		clk.Advance(time.Millisecond)
	}
	assert.Equal(t, DefaultBufferCap, b.Len())

	p, _ := b.Pop()
	assert.Equal(t, []byte{3}, p)
}

func TestBufferEvictsStale(t *testing.T) {
	clk := newClock()
	b := NewBuffer(WithBufferClock(clk.Now), WithMaxAge(100*time.Millisecond))

	b.Push([]byte{1})
	clk.Advance(60 * time.Millisecond)
	b.Push([]byte{2})
	clk.Advance(60 * time.Millisecond)
	b.Push([]byte{3}) // entry 1 is 120ms old

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(60), b.AgeMs())

	p, _ := b.Pop()
	assert.Equal(t, []byte{2}, p)
}

func TestBufferExactAgeIsKept(t *testing.T) {
	clk := newClock()
	b := NewBuffer(WithBufferClock(clk.Now), WithMaxAge(100*time.Millisecond))
	b.Push([]byte{1})
	clk.Advance(100 * time.Millisecond)
	b.Push([]byte{2})
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(100), b.AgeMs())
}

func TestBufferAgeEmpty(t *testing.T) {
	b := NewBuffer(WithCapacity(0))
	assert.Equal(t, int64(0), b.AgeMs())
	b.Push([]byte{1})
	b.Push([]byte{2})
	assert.Equal(t, 1, b.Len())
}

func TestBufferSteadyStateBounds(t *testing.T) {
	clk := newClock()
	b := NewBuffer(WithBufferClock(clk.Now))
	steps := []time.Duration{1, 7, 20, 45, 3, 90, 160, 2, 2, 30}
	for i := range 200 {
		b.Push([]byte{byte(i)})
		assert.LessOrEqual(t, b.AgeMs(), DefaultBufferMaxAge.Milliseconds())
		assert.LessOrEqual(t, b.Len(), DefaultBufferCap)
		if i%3 == 0 {
			b.Pop()
		}
		clk.Advance(steps[i%len(steps)] * time.Millisecond)
	}
}
