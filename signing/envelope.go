package signing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/peerpay/authcore/nonce"
)

// canonicalEnc is the deterministic CBOR encoder used for every payload
// and envelope. Both peers must produce identical bytes for identical
// values or signatures would never verify across machines.
var canonicalEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// strictDec rejects unknown fields and duplicate map keys so a payload
// cannot smuggle data that the canonical re-encoding would drop.
var strictDec = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// CanonicalBytes serializes v with the deterministic encoder. The same
// value always yields the same bytes.
func CanonicalBytes(v any) ([]byte, error) {
	b, err := canonicalEnc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("signing: canonical encode: %w", err)
	}
	return b, nil
}

// Envelope carries a signed payload together with everything a verifier
// needs: the domain, the canonical payload bytes, the replay nonce, the
// expiry window and the signer's public key.
type Envelope struct {
	_         struct{} `cbor:",toarray"`
	Domain    string
	Payload   []byte
	Nonce     []byte
	Timestamp int64
	ExpiresAt int64
	PublicKey []byte
	Signature []byte
}

// Encode serializes the envelope for transport.
func (e *Envelope) Encode() ([]byte, error) {
	return CanonicalBytes(e)
}

// DecodeEnvelope parses an envelope from its wire form and checks the
// structural invariants before any cryptographic work happens.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := strictDec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) validate() error {
	switch {
	case e.Domain == "":
		return fmt.Errorf("%w: empty domain", ErrMalformedEnvelope)
	case len(e.Nonce) != nonce.Size:
		return fmt.Errorf("%w: nonce must be %d bytes, got %d",
			ErrMalformedEnvelope, nonce.Size, len(e.Nonce))
	case len(e.PublicKey) != ed25519.PublicKeySize:
		return fmt.Errorf("%w: public key must be %d bytes, got %d",
			ErrMalformedEnvelope, ed25519.PublicKeySize, len(e.PublicKey))
	case len(e.Signature) != ed25519.SignatureSize:
		return fmt.Errorf("%w: signature must be %d bytes, got %d",
			ErrMalformedEnvelope, ed25519.SignatureSize, len(e.Signature))
	case e.ExpiresAt <= e.Timestamp:
		return fmt.Errorf("%w: expiry not after timestamp", ErrMalformedEnvelope)
	}
	return nil
}

// signingDigest builds the byte string covered by the signature:
//
//	domain || 0x00 || canonical payload || nonce || be64(expires_at)
//
// and hashes it with SHA-256. The zero byte after the domain keeps a
// domain from colliding with a payload prefix.
func signingDigest(domain Domain, payload, n []byte, expiresAt int64) []byte {
	var expiry [8]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(expiresAt))

	msg := make([]byte, 0, len(domain)+1+len(payload)+len(n)+8)
	msg = append(msg, domain...)
	msg = append(msg, 0x00)
	msg = append(msg, payload...)
	msg = append(msg, n...)
	msg = append(msg, expiry[:]...)

	sum := sha256.Sum256(msg)
	return sum[:]
}

// decodeCanonical parses the payload into v and requires that
// re-encoding v reproduces the input exactly. Payloads in any
// non-canonical CBOR form are rejected rather than silently normalized.
func decodeCanonical(payload []byte, v any) error {
	if err := strictDec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: payload decode: %v", ErrMalformedEnvelope, err)
	}
	again, err := canonicalEnc.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: payload re-encode: %v", ErrMalformedEnvelope, err)
	}
	if !bytes.Equal(again, payload) {
		return fmt.Errorf("%w: payload is not in canonical form", ErrMalformedEnvelope)
	}
	return nil
}
