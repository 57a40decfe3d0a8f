// Package client is the initiator side of the signaling protocol. It drives
// the key exchange, issues requests one at a time and surfaces everything
// the server pushes on its own as events.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dkeye/pqvoice/internal/pqc"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/dkeye/pqvoice/internal/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed    = errors.New("client: connection closed")
	ErrNoSession = errors.New("client: no key exchange completed")
)

// ServerError carries an Error message or a failed response from the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server: " + e.Message }

func serverError(msg *string) error {
	if msg == nil {
		return &ServerError{Message: "unknown error"}
	}
	return &ServerError{Message: *msg}
}

type Option func(*Client)

func WithScheme(s *pqc.Scheme) Option {
	return func(c *Client) { c.scheme = s }
}

func WithMaxFrameSize(n int) Option {
	return func(c *Client) { c.maxFrame = n }
}

func WithEventBuffer(n int) Option {
	return func(c *Client) { c.eventBuf = n }
}

type pending struct {
	accept func(proto.Message) bool
	reply  chan proto.Message
}

type Client struct {
	conn     net.Conn
	scheme   *pqc.Scheme
	maxFrame int
	eventBuf int
	logger   zerolog.Logger

	wmu   sync.Mutex
	reqMu sync.Mutex

	pmu     sync.Mutex
	pending *pending

	events  chan proto.Message
	dropped atomic.Uint64
	done    chan struct{}
	err     error

	smu     sync.Mutex
	session *pqc.Session
	pid     string
}

// Dial connects to a signaling server. A nil tlsCfg dials plain TCP.
func Dial(ctx context.Context, addr string, tlsCfg *tls.Config, opts ...Option) (*Client, error) {
	var (
		conn net.Conn
		err  error
	)
	if tlsCfg != nil {
		d := &tls.Dialer{Config: tlsCfg}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established stream and starts the reader.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:     conn,
		scheme:   pqc.DefaultScheme(),
		maxFrame: proto.MaxFrameSize,
		eventBuf: 256,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan proto.Message, c.eventBuf)
	c.logger = log.With().Str("module", "client").Str("addr", conn.RemoteAddr().String()).Logger()
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		m, err := proto.ReadMessage(c.conn, c.maxFrame)
		if err != nil {
			c.err = err
			close(c.done)
			return
		}
		if c.deliver(m) {
			continue
		}
		select {
		case c.events <- m:
		default:
			c.dropped.Add(1)
			c.logger.Warn().Str("type", string(m.Type())).Msg("event buffer full, dropping")
		}
	}
}

func (c *Client) deliver(m proto.Message) bool {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	p := c.pending
	if p == nil {
		return false
	}
	if _, isErr := m.(*proto.Error); !isErr && !p.accept(m) {
		return false
	}
	c.pending = nil
	p.reply <- m
	return true
}

func (c *Client) send(m proto.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := proto.WriteMessage(c.conn, m); err != nil {
		return fmt.Errorf("send %s: %w", m.Type(), err)
	}
	return nil
}

// request sends m and waits for the first message accept takes, or an Error.
func (c *Client) request(ctx context.Context, m proto.Message, accept func(proto.Message) bool) (proto.Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	p := &pending{accept: accept, reply: make(chan proto.Message, 1)}
	c.pmu.Lock()
	c.pending = p
	c.pmu.Unlock()
	defer func() {
		c.pmu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.pmu.Unlock()
	}()

	if err := c.send(m); err != nil {
		return nil, err
	}
	select {
	case r := <-p.reply:
		if e, ok := r.(*proto.Error); ok {
			return nil, &ServerError{Message: e.Message}
		}
		return r, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func is[T proto.Message](m proto.Message) bool {
	_, ok := m.(T)
	return ok
}

// Events yields server pushes that are not replies to a request. The channel
// closes when the connection ends.
func (c *Client) Events() <-chan proto.Message { return c.events }

func (c *Client) Done() <-chan struct{} { return c.done }

// Err is the reason the reader stopped. Valid after Done is closed.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) DroppedEvents() uint64 { return c.dropped.Load() }

// ParticipantID is set by a successful Login.
func (c *Client) ParticipantID() string {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.pid
}

// SessionKey derives a key from the exchanged secret.
func (c *Client) SessionKey(label string, n int) ([]byte, error) {
	c.smu.Lock()
	defer c.smu.Unlock()
	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session.DeriveKey(label, n)
}

// AudioKey is the key this participant's relay datagrams are sealed with.
func (c *Client) AudioKey() ([]byte, error) {
	return c.SessionKey(pqc.LabelAudio, relay.KeySize)
}

func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	c.smu.Lock()
	if c.session != nil {
		c.session.Wipe()
		c.session = nil
	}
	c.smu.Unlock()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
