package pqc

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"
)

const (
	SchemeKyber1024   = "Kyber1024"
	SchemeMLKEM1024   = "ML-KEM-1024"
	DefaultSchemeName = SchemeKyber1024
)

// Scheme is a KEM selected by name. Both sides of a handshake must use the
// same scheme; key and ciphertext sizes differ between schemes.
type Scheme struct {
	kem kem.Scheme
}

func NewScheme(name string) (*Scheme, error) {
	s := schemes.ByName(name)
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return &Scheme{kem: s}, nil
}

// DefaultScheme returns Kyber1024, the scheme existing clients speak.
func DefaultScheme() *Scheme {
	s, err := NewScheme(DefaultSchemeName)
	if err != nil {
		panic("pqc: default scheme unavailable: " + err.Error())
	}
	return s
}

func (s *Scheme) Name() string          { return s.kem.Name() }
func (s *Scheme) PublicKeySize() int    { return s.kem.PublicKeySize() }
func (s *Scheme) CiphertextSize() int   { return s.kem.CiphertextSize() }
func (s *Scheme) SharedSecretSize() int { return s.kem.SharedKeySize() }

// KeyPair is a single-use initiator keypair.
type KeyPair struct {
	scheme *Scheme
	pk     kem.PublicKey
	sk     kem.PrivateKey
	pkRaw  []byte
}

// GenerateKeyPair returns a fresh keypair. Keypairs are never reused across
// sessions.
func (s *Scheme) GenerateKeyPair() (*KeyPair, error) {
	pk, sk, err := s.kem.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGenerationFailed, err)
	}
	raw, err := pk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: marshal public key: %v", ErrKeyGenerationFailed, err)
	}
	return &KeyPair{scheme: s, pk: pk, sk: sk, pkRaw: raw}, nil
}

// PublicKeyBytes returns the encoded public key sent in KeyExchangeInit.
func (kp *KeyPair) PublicKeyBytes() []byte {
	out := make([]byte, len(kp.pkRaw))
	copy(out, kp.pkRaw)
	return out
}

// Encapsulate is the responder side: it produces a ciphertext for the peer's
// public key and the shared secret it encapsulates.
func (s *Scheme) Encapsulate(peerPublicKey []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(peerPublicKey) != s.kem.PublicKeySize() {
		return nil, nil, fmt.Errorf("%w: got %d, want %d",
			ErrInvalidPublicKeyLength, len(peerPublicKey), s.kem.PublicKeySize())
	}
	pk, err := s.kem.UnmarshalBinaryPublicKey(peerPublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncapsulationFailed, err)
	}
	ciphertext, sharedSecret, err = s.kem.Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncapsulationFailed, err)
	}
	return ciphertext, sharedSecret, nil
}

// Decapsulate is the initiator side. Only a structurally malformed
// ciphertext is an error; a well-formed foreign ciphertext yields an
// unrelated pseudorandom secret.
func (kp *KeyPair) Decapsulate(ciphertext []byte) ([]byte, error) {
	want := kp.scheme.kem.CiphertextSize()
	if len(ciphertext) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidCiphertextLength, len(ciphertext), want)
	}
	ss, err := kp.scheme.kem.Decapsulate(kp.sk, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecapsulationFailed, err)
	}
	return ss, nil
}
