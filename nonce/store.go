// Package nonce tracks used signature nonces for replay protection.
//
// Every verified signature consumes its nonce exactly once: the first
// caller to present a nonce wins, every later presentation is a replay.
// Expired records are dropped by periodic cleanup; cleanup is advisory
// for memory bounding only and is never relied upon for security, since
// an expired signature is already rejected at the expiry check.
package nonce

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// Size is the length in bytes of a signature nonce.
const Size = 32

// Nonce is the 32-byte random value attached to every signature.
type Nonce [Size]byte

// Random draws a fresh nonce from crypto/rand.
func Random() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return Nonce{}, fmt.Errorf("nonce: read random: %w", err)
	}
	return n, nil
}

// FromBytes copies b into a Nonce. b must be exactly Size bytes.
func FromBytes(b []byte) (Nonce, error) {
	var n Nonce
	if len(b) != Size {
		return Nonce{}, fmt.Errorf("nonce: need %d bytes, got %d", Size, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// Store is the replay-protection ledger consulted by signature
// verification. Implementations must be safe for concurrent use:
// for a given nonce, exactly one concurrent CheckAndMark call may
// observe it as fresh.
type Store interface {
	// CheckAndMark atomically records the nonce and returns true if it
	// was never seen before, or returns false if the nonce is already
	// present and unexpired (replay).
	CheckAndMark(n Nonce, expiresAt time.Time) (bool, error)

	// CleanupExpired removes all records whose expiry has passed.
	// It returns the number of records removed.
	CleanupExpired(now time.Time) (int, error)
}

// MemoryStore is the in-process Store used when a single process owns
// all verification paths.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[Nonce]time.Time
}

// NewMemoryStore creates an empty in-memory nonce store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[Nonce]time.Time)}
}

// CheckAndMark implements Store.
func (s *MemoryStore) CheckAndMark(n Nonce, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[n]; exists {
		return false, nil
	}
	s.seen[n] = expiresAt
	return true, nil
}

// CleanupExpired implements Store. A record is removed only once its
// expiry has strictly passed.
func (s *MemoryStore) CleanupExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for n, expiresAt := range s.seen {
		if expiresAt.Before(now) {
			delete(s.seen, n)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked nonces, for monitoring.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Contains reports whether a nonce has been marked, without marking it.
func (s *MemoryStore) Contains(n Nonce) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[n]
	return ok
}
