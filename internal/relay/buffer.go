package relay

import (
	"sync"
	"time"
)

const (
	DefaultBufferMaxAge = 150 * time.Millisecond
	DefaultBufferCap    = 5
)

type bufferedPacket struct {
	payload []byte
	at      time.Time
}

// Buffer is a small receive-side queue that favors latency over
// completeness: stale entries are evicted on every push and the queue never
// holds more than cap packets.
type Buffer struct {
	mu      sync.Mutex
	entries []bufferedPacket
	maxAge  time.Duration
	cap     int
	now     func() time.Time
}

type BufferOption func(*Buffer)

func WithMaxAge(d time.Duration) BufferOption {
	return func(b *Buffer) { b.maxAge = d }
}

func WithCapacity(n int) BufferOption {
	return func(b *Buffer) { b.cap = n }
}

func WithBufferClock(now func() time.Time) BufferOption {
	return func(b *Buffer) { b.now = now }
}

func NewBuffer(opts ...BufferOption) *Buffer {
	b := &Buffer{
		maxAge: DefaultBufferMaxAge,
		cap:    DefaultBufferCap,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cap < 1 {
		b.cap = 1
	}
	b.entries = make([]bufferedPacket, 0, b.cap+1)
	return b
}

// Push appends payload after evicting entries older than the max age.
// When the queue exceeds its capacity the oldest entry is dropped.
func (b *Buffer) Push(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	stale := 0
	for stale < len(b.entries) && now.Sub(b.entries[stale].at) > b.maxAge {
		stale++
	}
	b.entries = append(b.entries[stale:], bufferedPacket{payload: payload, at: now})
	if len(b.entries) > b.cap {
		b.entries = b.entries[len(b.entries)-b.cap:]
	}
}

// Pop returns the oldest payload. It never blocks.
func (b *Buffer) Pop() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return nil, false
	}
	p := b.entries[0].payload
	b.entries[0] = bufferedPacket{}
	b.entries = b.entries[1:]
	return p, true
}

// AgeMs is the spread between the newest and the oldest entry.
func (b *Buffer) AgeMs() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return 0
	}
	return b.entries[len(b.entries)-1].at.Sub(b.entries[0].at).Milliseconds()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
