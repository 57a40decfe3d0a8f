package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultEndpointTTL = 30 * time.Second

// Membership answers who may hear whom. The orchestrator satisfies it.
type Membership interface {
	RoomMates(pid domain.ParticipantID) ([]domain.ParticipantID, bool)
	AudioEnabled(pid domain.ParticipantID) bool
}

// Server forwards audio datagrams between members of the same room.
// Endpoints are learned from each participant's own packets.
type Server struct {
	conn    net.PacketConn
	codec   Codec
	members Membership
	keys    Keys
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu        sync.RWMutex
	endpoints map[domain.ParticipantID]*Endpoint

	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

type Option func(*Server)

func WithEndpointTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// WithAuth requires every datagram to carry a tag made with the sender's
// audio key. Tags are stripped before forwarding.
func WithAuth(keys Keys) Option {
	return func(s *Server) { s.keys = keys }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(conn net.PacketConn, codec Codec, members Membership, opts ...Option) *Server {
	s := &Server{
		conn:      conn,
		codec:     codec,
		members:   members,
		ttl:       DefaultEndpointTTL,
		now:       time.Now,
		endpoints: make(map[domain.ParticipantID]*Endpoint),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With().
		Str("module", "relay").
		Str("codec", codec.Name()).
		Bool("auth", s.keys != nil).
		Str("addr", conn.LocalAddr().String()).
		Logger()
	return s
}

// ListenUDP binds the relay socket.
func ListenUDP(host string, port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return conn, nil
}

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Close releases the socket without serving. Serve closes it on its own.
func (s *Server) Close() error { return s.conn.Close() }

// Serve reads datagrams until ctx is cancelled. The socket is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	if s.ttl > 0 {
		g.Go(func() error {
			s.sweepLoop(ctx)
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return s.readLoop(ctx)
	})

	s.logger.Info().Msg("audio relay listening")
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	s.logger.Info().Msg("audio relay stopped")
	return err
}

func (s *Server) readLoop(ctx context.Context) error {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("udp read error")
			continue
		}
		s.handle(buf[:n], from)
	}
}

func (s *Server) sweepLoop(ctx context.Context) {
	t := time.NewTicker(s.ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *Server) handle(data []byte, from net.Addr) {
	body := data
	if s.keys != nil {
		if len(data) < TagSize {
			s.dropped.Add(1)
			return
		}
		body = data[:len(data)-TagSize]
	}

	var pkt Packet
	if err := s.codec.Unmarshal(body, &pkt); err != nil {
		s.dropped.Add(1)
		s.logger.Debug().Err(err).Str("from", from.String()).Msg("undecodable datagram")
		return
	}
	pid := domain.ParticipantID(pkt.SessionID)
	if s.keys != nil {
		if err := s.verify(pid, data); err != nil {
			s.dropped.Add(1)
			s.logger.Debug().Err(err).Str("sid", pkt.SessionID).Str("from", from.String()).Msg("unauthenticated datagram")
			return
		}
	}
	mates, ok := s.members.RoomMates(pid)
	if !ok {
		s.dropped.Add(1)
		s.logger.Debug().Str("sid", pkt.SessionID).Msg("datagram from participant outside any room")
		return
	}

	now := s.now()
	src := s.learn(pid, from, now)
	if !s.members.AudioEnabled(pid) {
		src.MarkMuted()
		s.dropped.Add(1)
		return
	}
	src.MarkOk()

	s.forward(body, mates, now)
}

func (s *Server) verify(pid domain.ParticipantID, sealed []byte) error {
	key, ok := s.keys.AudioKey(pid)
	if !ok {
		return ErrNoKey
	}
	_, err := Open(key, sealed)
	return err
}

// learn records from as pid's endpoint, replacing it when the address moved.
func (s *Server) learn(pid domain.ParticipantID, from net.Addr, now time.Time) *Endpoint {
	s.mu.RLock()
	ep, ok := s.endpoints[pid]
	s.mu.RUnlock()
	if ok && ep.State() != EndpointDelete && ep.Addr.String() == from.String() {
		ep.Touch(now)
		return ep
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.endpoints[pid]; ok && cur.State() != EndpointDelete && cur.Addr.String() == from.String() {
		cur.Touch(now)
		return cur
	}
	ep = NewEndpoint(from, now)
	s.endpoints[pid] = ep
	s.logger.Info().Str("sid", string(pid)).Str("from", from.String()).Msg("learned audio endpoint")
	return ep
}

func (s *Server) forward(data []byte, mates []domain.ParticipantID, now time.Time) {
	targets := make([]*Endpoint, 0, len(mates))
	s.mu.RLock()
	for _, id := range mates {
		if ep, ok := s.endpoints[id]; ok {
			targets = append(targets, ep)
		}
	}
	s.mu.RUnlock()

	dirty := false
	for _, ep := range targets {
		if !ep.usable(now, s.ttl) {
			dirty = true
			continue
		}
		if _, err := s.conn.WriteTo(data, ep.Addr); err != nil {
			s.logger.Warn().Err(err).Str("to", ep.Addr.String()).Msg("udp write error, dropping endpoint")
			ep.MarkDelete()
			dirty = true
			continue
		}
		s.forwarded.Add(1)
	}

	// Cleanup is done outside the RLock.
	if dirty {
		s.Sweep()
	}
}

// Sweep removes deleted and expired endpoints.
func (s *Server) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ep := range s.endpoints {
		if !ep.usable(now, s.ttl) {
			delete(s.endpoints, id)
			n++
		}
	}
	return n
}

// Forget drops pid's endpoint. Called when the signaling connection ends.
func (s *Server) Forget(pid domain.ParticipantID) {
	s.mu.Lock()
	ep, ok := s.endpoints[pid]
	delete(s.endpoints, pid)
	s.mu.Unlock()
	if ok {
		ep.MarkDelete()
	}
}

// Endpoint returns pid's known endpoint, if any.
func (s *Server) Endpoint(pid domain.ParticipantID) (*Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[pid]
	return ep, ok
}

type Stats struct {
	Endpoints int
	Forwarded uint64
	Dropped   uint64
}

func (s *Server) Stats() Stats {
	s.mu.RLock()
	n := len(s.endpoints)
	s.mu.RUnlock()
	return Stats{Endpoints: n, Forwarded: s.forwarded.Load(), Dropped: s.dropped.Load()}
}
