package pqc

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Labels for the media streams a session keys.
const (
	LabelAudio = "audio"
	LabelVideo = "video"
)

const maxDerivedKeyLen = 255 * sha256.Size

var kdfSalt = []byte("pqvoice session v1")

// DeriveKey expands secret into length bytes bound to label with
// HKDF-SHA256. Different labels over the same secret give independent keys.
func DeriveKey(secret []byte, label string, length int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if length <= 0 || length > maxDerivedKeyLen {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeyLength, length)
	}
	r := hkdf.New(sha256.New, secret, kdfSalt, []byte(label))
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// Session holds the secret produced by one completed key exchange.
type Session struct {
	secret []byte
}

func NewSession(secret []byte) *Session {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Session{secret: s}
}

func (s *Session) DeriveKey(label string, length int) ([]byte, error) {
	return DeriveKey(s.secret, label, length)
}

func (s *Session) SecretLen() int { return len(s.secret) }

// Wipe zeroes the secret. The session is unusable afterwards.
func (s *Session) Wipe() {
	for i := range s.secret {
		s.secret[i] = 0
	}
	s.secret = nil
}
