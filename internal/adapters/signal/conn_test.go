package signal

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufStream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *bufStream) Read([]byte) (int, error) { return 0, net.ErrClosed }

func (s *bufStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, net.ErrClosed
	}
	return s.buf.Write(p)
}

func (s *bufStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *bufStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *bufStream) SetReadDeadline(time.Time) error  { return nil }
func (s *bufStream) SetWriteDeadline(time.Time) error { return nil }
func (s *bufStream) RemoteAddr() net.Addr             { return &net.TCPAddr{} }

func drain(c *Conn) []proto.Message {
	var out []proto.Message
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func msg(s string) proto.Message { return proto.NewError(s) }

func TestConnDropNewest(t *testing.T) {
	c := NewConn("p", &bufStream{}, 2, app.OverflowDropNewest, 0)
	require.NoError(t, c.Enqueue(msg("1")))
	require.NoError(t, c.Enqueue(msg("2")))
	assert.ErrorIs(t, c.Enqueue(msg("3")), core.ErrBackpressure)
	assert.Equal(t, []proto.Message{msg("1"), msg("2")}, drain(c))
}

func TestConnDropOldest(t *testing.T) {
	c := NewConn("p", &bufStream{}, 2, app.OverflowDropOldest, 0)
	require.NoError(t, c.Enqueue(msg("1")))
	require.NoError(t, c.Enqueue(msg("2")))
	require.NoError(t, c.Enqueue(msg("3")))
	assert.Equal(t, uint64(1), c.Dropped())
	assert.Equal(t, []proto.Message{msg("2"), msg("3")}, drain(c))
}

func TestConnDisconnectMode(t *testing.T) {
	c := NewConn("p", &bufStream{}, 1, app.OverflowDisconnect, 0)
	require.NoError(t, c.Enqueue(msg("1")))
	assert.ErrorIs(t, c.Enqueue(msg("2")), core.ErrBackpressure)
}

func TestConnShutdownFlushes(t *testing.T) {
	stream := &bufStream{}
	c := NewConn("p", stream, 8, app.OverflowDisconnect, time.Second)
	ctl := &Controller{}
	require.NoError(t, c.Enqueue(&proto.Login{Username: "a"}))
	require.NoError(t, c.Enqueue(&proto.ListRooms{}))
	c.Shutdown()
	assert.ErrorIs(t, c.Enqueue(msg("late")), core.ErrConnClosed)

	ctl.writePump(c)

	assert.True(t, stream.isClosed())
	first, err := proto.ReadMessage(&stream.buf, proto.MaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, proto.TypeLogin, first.Type())
	second, err := proto.ReadMessage(&stream.buf, proto.MaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, proto.TypeListRooms, second.Type())
}

func TestConnKickDiscards(t *testing.T) {
	stream := &bufStream{}
	c := NewConn("p", stream, 8, app.OverflowDisconnect, 0)
	require.NoError(t, c.Enqueue(msg("queued")))
	c.Kick()
	c.Kick()

	assert.True(t, stream.isClosed())
	assert.ErrorIs(t, c.Enqueue(msg("late")), core.ErrConnClosed)
	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestConnConcurrentProducers(t *testing.T) {
	c := NewConn("p", &bufStream{}, 1000, app.OverflowDropOldest, 0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = c.Enqueue(msg("x"))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, drain(c), 1000)
	assert.Equal(t, uint64(1000), c.Dropped())
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("p"))
	assert.True(t, rl.Allow("p"))
	assert.False(t, rl.Allow("p"))
	assert.True(t, rl.Allow("q"), "limits are per participant")

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow("p"))

	rl.Forget("p")
	assert.True(t, rl.Allow("p"))
	assert.True(t, rl.Allow("p"))
	assert.False(t, rl.Allow("p"))
}
