// Package signing provides deterministic signing and verification of
// payment payloads with nonce-based replay protection.
//
// Payloads are serialized with a canonical deterministic CBOR encoder, so
// the bytes signed on one machine are exactly the bytes recomputed during
// verification on another. Every signature is domain-separated by message
// kind and bound to a random 32-byte nonce and an expiry timestamp.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Domain tags the message kind covered by a signature. A signature made
// under one domain can never verify under another, which prevents a
// signed payment request from being replayed as a subscription agreement.
type Domain string

// Domain constants for all signed message kinds.
const (
	DomainSubscription   Domain = "PEERPAY_SUBSCRIPTION_V1"
	DomainPaymentRequest Domain = "PEERPAY_PAYMENT_REQUEST_V1"
	DomainCancellation   Domain = "PEERPAY_CANCELLATION_V1"
	DomainAttestation    Domain = "PEERPAY_ATTESTATION_V1"
)

// Verification and signing errors.
var (
	ErrInvalidSignature  = errors.New("signing: invalid signature")
	ErrExpired           = errors.New("signing: signature expired")
	ErrReplayDetected    = errors.New("signing: nonce already used")
	ErrMalformedEnvelope = errors.New("signing: malformed envelope")
	ErrDomainMismatch    = errors.New("signing: domain mismatch")
	ErrInvalidLifetime   = errors.New("signing: lifetime must be positive")
)

// Signer is the injected signing capability. The core never reads the
// private key itself; key custody belongs to the host application.
type Signer interface {
	// SignBytes signs the given message and returns a 64-byte Ed25519
	// signature.
	SignBytes(message []byte) ([]byte, error)

	// PublicKey returns the 32-byte Ed25519 public key matching the
	// signatures produced by SignBytes.
	PublicKey() ed25519.PublicKey
}

// LocalSigner is a Signer backed by an in-memory Ed25519 private key.
// Intended for tests and single-process embedders; production hosts
// typically wrap a hardware or keystore-backed signer instead.
type LocalSigner struct {
	priv ed25519.PrivateKey
}

// NewLocalSigner wraps an existing Ed25519 private key.
func NewLocalSigner(priv ed25519.PrivateKey) (*LocalSigner, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing: private key must be %d bytes, got %d",
			ed25519.PrivateKeySize, len(priv))
	}
	return &LocalSigner{priv: priv}, nil
}

// GenerateSigner creates a LocalSigner with a fresh random keypair.
func GenerateSigner(random io.Reader) (*LocalSigner, error) {
	if random == nil {
		random = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("signing: generate key: %w", err)
	}
	return &LocalSigner{priv: priv}, nil
}

// SignBytes implements Signer.
func (s *LocalSigner) SignBytes(message []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, message), nil
}

// PublicKey implements Signer.
func (s *LocalSigner) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}
