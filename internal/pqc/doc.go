// Package pqc implements the post-quantum key exchange carried inside the
// signaling protocol.
//
// The initiator generates a fresh KEM keypair per session and sends the
// public key in KeyExchangeInit. The responder encapsulates against it and
// returns the ciphertext in KeyExchangeResponse. The initiator decapsulates
// and both sides now hold the same secret, independent of the TLS session
// keys. Per-stream keys ("audio", "video") are expanded from that secret
// with DeriveKey.
//
// Decapsulating a well-formed ciphertext that was not produced for the
// keypair does not fail: the KEM returns a pseudorandom secret (implicit
// rejection). Callers must not try to turn that case into an error.
package pqc
