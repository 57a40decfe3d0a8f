package relay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// MaxDatagramSize bounds a single audio datagram on the wire.
const MaxDatagramSize = 2048

var (
	ErrShortPacket   = errors.New("relay: truncated packet")
	ErrTrailingBytes = errors.New("relay: trailing bytes after packet")
	ErrUnknownCodec  = errors.New("relay: unknown codec")
)

// Packet is the UDP audio envelope. SessionID is the sender's participant id.
type Packet struct {
	SessionID   string `cbor:"session_id"`
	Sequence    uint32 `cbor:"sequence"`
	TimestampUS uint64 `cbor:"timestamp"`
	AudioData   []byte `cbor:"audio_data"`
}

type Codec interface {
	Name() string
	Marshal(p *Packet) ([]byte, error)
	Unmarshal(data []byte, p *Packet) error
}

// CodecFor resolves a codec by its config name.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", "bincode":
		return BincodeCodec{}, nil
	case "cbor":
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// BincodeCodec speaks the fixed-width little-endian layout used by the
// native clients: u64 length + session id, u32 sequence, u64 timestamp,
// u64 length + audio bytes.
type BincodeCodec struct{}

func (BincodeCodec) Name() string { return "bincode" }

func (BincodeCodec) Marshal(p *Packet) ([]byte, error) {
	buf := make([]byte, 0, 8+len(p.SessionID)+4+8+8+len(p.AudioData))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(p.SessionID)))
	buf = append(buf, p.SessionID...)
	buf = binary.LittleEndian.AppendUint32(buf, p.Sequence)
	buf = binary.LittleEndian.AppendUint64(buf, p.TimestampUS)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(p.AudioData)))
	buf = append(buf, p.AudioData...)
	return buf, nil
}

func (BincodeCodec) Unmarshal(data []byte, p *Packet) error {
	r := reader{buf: data}
	sid, err := r.bytes()
	if err != nil {
		return err
	}
	seq, err := r.u32()
	if err != nil {
		return err
	}
	ts, err := r.u64()
	if err != nil {
		return err
	}
	audio, err := r.bytes()
	if err != nil {
		return err
	}
	if len(r.buf) != 0 {
		return ErrTrailingBytes
	}
	p.SessionID = string(sid)
	p.Sequence = seq
	p.TimestampUS = ts
	p.AudioData = audio
	return nil
}

type reader struct {
	buf []byte
}

func (r *reader) u32() (uint32, error) {
	if len(r.buf) < 4 {
		return 0, ErrShortPacket
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if len(r.buf) < 8 {
		return 0, ErrShortPacket
	}
	v := binary.LittleEndian.Uint64(r.buf)
	r.buf = r.buf[8:]
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt32 || uint64(len(r.buf)) < n {
		return nil, ErrShortPacket
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out, nil
}

// CBORCodec encodes packets as deterministic CBOR maps.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	dec, err := cbor.DecOptions{
		MaxArrayElements:  16,
		MaxMapPairs:       16,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (*CBORCodec) Name() string { return "cbor" }

func (c *CBORCodec) Marshal(p *Packet) ([]byte, error) {
	return c.enc.Marshal(p)
}

func (c *CBORCodec) Unmarshal(data []byte, p *Packet) error {
	return c.dec.Unmarshal(data, p)
}
