package audio

import "sync/atomic"

// RingBuffer is a single-producer single-consumer float32 ring.
// Exactly one goroutine may Write and exactly one may Read.
type RingBuffer struct {
	buf []float32
	w   atomic.Uint64
	r   atomic.Uint64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]float32, capacity)}
}

// Write copies as many samples as fit and returns that count.
func (rb *RingBuffer) Write(samples []float32) int {
	w := rb.w.Load()
	free := uint64(len(rb.buf)) - (w - rb.r.Load())
	n := min(uint64(len(samples)), free)
	size := uint64(len(rb.buf))
	for i := uint64(0); i < n; i++ {
		rb.buf[(w+i)%size] = samples[i]
	}
	rb.w.Store(w + n)
	return int(n)
}

// Read fills out with up to len(out) samples and returns the count.
func (rb *RingBuffer) Read(out []float32) int {
	r := rb.r.Load()
	avail := rb.w.Load() - r
	n := min(uint64(len(out)), avail)
	size := uint64(len(rb.buf))
	for i := uint64(0); i < n; i++ {
		out[i] = rb.buf[(r+i)%size]
	}
	rb.r.Store(r + n)
	return int(n)
}

func (rb *RingBuffer) Len() int {
	return int(rb.w.Load() - rb.r.Load())
}

func (rb *RingBuffer) Cap() int {
	return len(rb.buf)
}

// FillPercent is Len over Cap in the 0..100 range.
func (rb *RingBuffer) FillPercent() float64 {
	return float64(rb.Len()) / float64(len(rb.buf)) * 100
}
