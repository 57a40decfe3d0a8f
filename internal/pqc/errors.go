package pqc

import "errors"

var (
	ErrUnknownScheme           = errors.New("unknown kem scheme")
	ErrKeyGenerationFailed     = errors.New("key generation failed")
	ErrEncapsulationFailed     = errors.New("encapsulation failed")
	ErrDecapsulationFailed     = errors.New("decapsulation failed")
	ErrInvalidPublicKeyLength  = errors.New("invalid public key length")
	ErrInvalidCiphertextLength = errors.New("invalid ciphertext length")
	ErrInvalidKeyLength        = errors.New("invalid derived key length")
	ErrEmptySecret             = errors.New("empty shared secret")
)
