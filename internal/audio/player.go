package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Player sits between the network and the output device. Push runs on the
// network goroutine and Render on the device callback; each side must stay
// on a single goroutine.
type Player struct {
	ring   *RingBuffer
	dec    Decoder
	policy DropPolicy
	now    func() time.Time

	mu    sync.Mutex
	start time.Time
	index uint64

	received  atomic.Uint64
	dropped   atomic.Uint64
	overflow  atomic.Uint64
	underruns atomic.Uint64
}

type PlayerOption func(*Player)

func WithDecoder(d Decoder) PlayerOption {
	return func(p *Player) { p.dec = d }
}

func WithPolicy(dp DropPolicy) PlayerOption {
	return func(p *Player) { p.policy = dp }
}

func WithRingCapacity(samples int) PlayerOption {
	return func(p *Player) { p.ring = NewRingBuffer(samples) }
}

func WithClock(now func() time.Time) PlayerOption {
	return func(p *Player) { p.now = now }
}

func NewPlayer(opts ...PlayerOption) *Player {
	p := &Player{
		ring:   NewRingBuffer(SampleRate * PlaybackBufferMs / 1000),
		dec:    PCMDecoder{},
		policy: DefaultThresholdPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Push decodes payload and queues it for playback unless the policy drops it.
// It reports whether the samples reached the ring.
func (p *Player) Push(payload []byte) (bool, error) {
	samples, err := p.dec.Decode(payload)
	if err != nil {
		return false, err
	}
	p.received.Add(1)

	p.mu.Lock()
	now := p.now()
	if p.start.IsZero() {
		p.start = now
	}
	p.index++
	index, elapsed := p.index, now.Sub(p.start)
	p.mu.Unlock()

	fill := p.ring.FillPercent()
	if !p.policy.Keep(fill, elapsed, index) {
		p.dropped.Add(1)
		log.Debug().
			Str("module", "audio").
			Uint64("packet", index).
			Float64("fill", fill).
			Dur("elapsed", elapsed).
			Msg("dropping packet for latency")
		return false, nil
	}
	if n := p.ring.Write(samples); n < len(samples) {
		p.overflow.Add(uint64(len(samples) - n))
	}
	return true, nil
}

// Render fills out for the device. Missing samples become silence.
func (p *Player) Render(out []float32) int {
	n := p.ring.Read(out)
	if n < len(out) {
		clear(out[n:])
		p.underruns.Add(1)
	}
	return n
}

func (p *Player) Buffered() int { return p.ring.Len() }

// Reset restarts the call clock and packet counter.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Time{}
	p.index = 0
}

type PlayerStats struct {
	Received  uint64
	Dropped   uint64
	Overflow  uint64
	Underruns uint64
	Fill      float64
}

func (p *Player) Stats() PlayerStats {
	return PlayerStats{
		Received:  p.received.Load(),
		Dropped:   p.dropped.Load(),
		Overflow:  p.overflow.Load(),
		Underruns: p.underruns.Load(),
		Fill:      p.ring.FillPercent(),
	}
}
