package signing

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"github.com/peerpay/authcore/nonce"
	"github.com/peerpay/authcore/types"
)

// Engine signs payloads and verifies envelopes. Signing serializes the
// payload canonically, attaches a fresh random nonce and an expiry, and
// signs the domain-separated digest. Verification walks the checks in a
// fixed order: expiry first, then nonce consumption, then the signature.
// An expired envelope never reaches the nonce store, so expired nonces
// are never persisted.
type Engine struct {
	signer Signer
	nonces nonce.Store
	clock  types.Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source, mainly for tests.
func WithClock(c types.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger used for verification failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an Engine around the given signing capability and
// nonce store.
func NewEngine(signer Signer, nonces nonce.Store, opts ...Option) *Engine {
	e := &Engine{
		signer: signer,
		nonces: nonces,
		clock:  types.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sign serializes payload canonically and signs it under the given
// domain with a fresh random nonce. The signature stays valid for ttl.
func (e *Engine) Sign(domain Domain, payload any, ttl time.Duration) (*Envelope, error) {
	n, err := nonce.Random()
	if err != nil {
		return nil, err
	}
	return e.SignWithNonce(domain, payload, n, ttl)
}

// SignWithNonce is Sign with a caller-chosen nonce. Used by tests and
// by flows that pre-commit a nonce before producing the signature.
func (e *Engine) SignWithNonce(domain Domain, payload any, n nonce.Nonce, ttl time.Duration) (*Envelope, error) {
	if ttl <= 0 {
		return nil, ErrInvalidLifetime
	}

	body, err := CanonicalBytes(payload)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	expiresAt := now.Add(ttl).Unix()

	digest := signingDigest(domain, body, n[:], expiresAt)
	sig, err := e.signer.SignBytes(digest)
	if err != nil {
		return nil, fmt.Errorf("signing: sign: %w", err)
	}

	return &Envelope{
		Domain:    string(domain),
		Payload:   body,
		Nonce:     n[:],
		Timestamp: now.Unix(),
		ExpiresAt: expiresAt,
		PublicKey: e.signer.PublicKey(),
		Signature: sig,
	}, nil
}

// Verify checks env against the expected domain and, on success,
// decodes the payload into out. Checks run in a fixed order:
//
//  1. structural validation and domain match
//  2. expiry against the engine clock
//  3. nonce consumption (exactly-once)
//  4. signature verification
//
// A nonce is consumed even when the signature later fails: a forged
// envelope burns its nonce rather than leaving it open for retry.
func (e *Engine) Verify(env *Envelope, domain Domain, out any) error {
	if err := env.validate(); err != nil {
		return err
	}
	if env.Domain != string(domain) {
		return fmt.Errorf("%w: got %q, want %q", ErrDomainMismatch, env.Domain, domain)
	}

	now := e.clock.Now()
	expiresAt := time.Unix(env.ExpiresAt, 0)
	if now.After(expiresAt) {
		return ErrExpired
	}

	n, err := nonce.FromBytes(env.Nonce)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	fresh, err := e.nonces.CheckAndMark(n, expiresAt)
	if err != nil {
		return fmt.Errorf("signing: nonce store: %w", err)
	}
	if !fresh {
		e.logger.Warn("replayed nonce rejected", "domain", env.Domain)
		return ErrReplayDetected
	}

	digest := signingDigest(domain, env.Payload, env.Nonce, env.ExpiresAt)
	if !ed25519.Verify(ed25519.PublicKey(env.PublicKey), digest, env.Signature) {
		e.logger.Warn("invalid signature rejected", "domain", env.Domain)
		return ErrInvalidSignature
	}

	if out != nil {
		if err := decodeCanonical(env.Payload, out); err != nil {
			return err
		}
	}
	return nil
}

// PublicKey returns the engine's signing public key.
func (e *Engine) PublicKey() ed25519.PublicKey {
	return e.signer.PublicKey()
}
