package signal

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

// Stream is the byte stream a signaling connection runs over. *tls.Conn,
// *net.TCPConn and the WebSocket adapter all satisfy it.
type Stream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// Conn is the outbound half of one connection: a bounded FIFO drained by
// a single writer. Any goroutine may Enqueue.
type Conn struct {
	id           domain.ParticipantID
	stream       Stream
	send         chan proto.Message
	overflow     string
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool

	done     chan struct{}
	doneOnce sync.Once
	dropped  atomic.Uint64
}

var _ core.EventSink = (*Conn)(nil)

func NewConn(id domain.ParticipantID, stream Stream, queueSize int, overflow string, writeTimeout time.Duration) *Conn {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Conn{
		id:           id,
		stream:       stream,
		send:         make(chan proto.Message, queueSize),
		overflow:     overflow,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (c *Conn) ID() domain.ParticipantID { return c.id }

// Dropped counts messages evicted by the drop_oldest policy.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

func (c *Conn) Enqueue(m proto.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- m:
		return nil
	default:
	}
	if c.overflow != app.OverflowDropOldest {
		return core.ErrBackpressure
	}
	select {
	case <-c.send:
		c.dropped.Add(1)
	default:
	}
	select {
	case c.send <- m:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Shutdown stops accepting messages; the writer flushes what is queued and
// then closes the stream.
func (c *Conn) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Kick closes the stream immediately, discarding queued messages.
func (c *Conn) Kick() {
	c.Shutdown()
	c.doneOnce.Do(func() {
		close(c.done)
		_ = c.stream.Close()
		log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("connection kicked")
	})
}

// Done is closed once the connection was kicked.
func (c *Conn) Done() <-chan struct{} { return c.done }
