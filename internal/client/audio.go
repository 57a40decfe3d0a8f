package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/dkeye/pqvoice/internal/relay"
	"github.com/rs/zerolog/log"
)

// AudioStream sends this participant's audio to the UDP relay and buffers
// what the relay forwards back.
type AudioStream struct {
	conn  *net.UDPConn
	codec relay.Codec
	sid   string
	buf   *relay.Buffer
	key   []byte
	seq   atomic.Uint32

	received atomic.Uint64
	invalid  atomic.Uint64
}

type StreamOption func(*AudioStream)

// WithStreamKey seals every outgoing datagram with key, as an
// authenticating relay expects. See Client.AudioKey.
func WithStreamKey(key []byte) StreamOption {
	return func(s *AudioStream) { s.key = append([]byte(nil), key...) }
}

// OpenAudioStream binds a UDP socket connected to the relay at addr.
// sid must be the participant id returned by Login.
func OpenAudioStream(addr, sid string, codec relay.Codec, buf *relay.Buffer, opts ...StreamOption) (*AudioStream, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve relay addr: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	if buf == nil {
		buf = relay.NewBuffer()
	}
	s := &AudioStream{conn: conn, codec: codec, sid: sid, buf: buf}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send wraps audio in a packet with the next sequence number.
func (s *AudioStream) Send(audio []byte) error {
	raw, err := s.codec.Marshal(&relay.Packet{
		SessionID:   s.sid,
		Sequence:    s.seq.Add(1) - 1,
		TimestampUS: uint64(time.Now().UnixMicro()),
		AudioData:   audio,
	})
	if err != nil {
		return err
	}
	if s.key != nil {
		if raw, err = relay.Seal(s.key, raw); err != nil {
			return err
		}
	}
	if len(raw) > relay.MaxDatagramSize {
		return fmt.Errorf("audio packet of %d bytes exceeds %d", len(raw), relay.MaxDatagramSize)
	}
	_, err = s.conn.Write(raw)
	return err
}

// Run receives forwarded packets into the buffer until ctx ends.
func (s *AudioStream) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	data := make([]byte, relay.MaxDatagramSize)
	for {
		n, err := s.conn.Read(data)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// connected UDP sockets surface ICMP errors on read
			log.Debug().Str("module", "client").Err(err).Msg("audio receive error")
			continue
		}
		var pkt relay.Packet
		if err := s.codec.Unmarshal(data[:n], &pkt); err != nil {
			s.invalid.Add(1)
			continue
		}
		s.received.Add(1)
		s.buf.Push(pkt.AudioData)
	}
}

// Next pops the oldest buffered payload.
func (s *AudioStream) Next() ([]byte, bool) { return s.buf.Pop() }

func (s *AudioStream) Received() uint64 { return s.received.Load() }

func (s *AudioStream) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *AudioStream) Close() error { return s.conn.Close() }
