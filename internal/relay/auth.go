package relay

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dkeye/pqvoice/internal/domain"
	"golang.org/x/crypto/blake2b"
)

// TagSize is the length of the authentication tag appended to a sealed
// datagram.
const TagSize = 16

// KeySize is the length of a per-participant audio key.
const KeySize = 32

var (
	ErrBadTag = errors.New("audio datagram failed authentication")
	ErrNoKey  = errors.New("no audio key for participant")
)

// Keys resolves the audio key a participant's datagrams are sealed with.
// The orchestrator satisfies it.
type Keys interface {
	AudioKey(pid domain.ParticipantID) ([]byte, bool)
}

// Seal appends a keyed BLAKE2b tag over datagram.
func Seal(key, datagram []byte) ([]byte, error) {
	tag, err := mac(key, datagram)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(datagram)+TagSize)
	out = append(out, datagram...)
	return append(out, tag...), nil
}

// Open verifies the trailing tag and returns the datagram without it.
func Open(key, sealed []byte) ([]byte, error) {
	if len(sealed) < TagSize {
		return nil, ErrShortPacket
	}
	body, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]
	want, err := mac(key, body)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(tag, want) != 1 {
		return nil, ErrBadTag
	}
	return body, nil
}

func mac(key, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("audio key: want %d bytes, got %d", KeySize, len(key))
	}
	h, err := blake2b.New(TagSize, key)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}
