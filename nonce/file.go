package nonce

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// FileStore is a Store persisted as a single JSON bucket on disk and
// shared across OS processes. Every read-modify-write happens under an
// exclusive file lock, the same discipline the spending-limit ledger
// uses: two processes verifying the same nonce see exactly one winner.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates (or reuses) a nonce bucket under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("nonce: create dir: %w", err)
	}
	return &FileStore{
		path: filepath.Join(dir, "nonces.json"),
		lock: flock.New(filepath.Join(dir, "nonces.lock")),
	}, nil
}

// CheckAndMark implements Store with cross-process atomicity.
func (s *FileStore) CheckAndMark(n Nonce, expiresAt time.Time) (bool, error) {
	if err := s.lock.Lock(); err != nil {
		return false, fmt.Errorf("nonce: acquire lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	bucket, err := s.load()
	if err != nil {
		return false, err
	}

	key := hex.EncodeToString(n[:])
	if _, exists := bucket[key]; exists {
		return false, nil
	}
	bucket[key] = expiresAt.Unix()

	if err := s.save(bucket); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired implements Store.
func (s *FileStore) CleanupExpired(now time.Time) (int, error) {
	if err := s.lock.Lock(); err != nil {
		return 0, fmt.Errorf("nonce: acquire lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	bucket, err := s.load()
	if err != nil {
		return 0, err
	}

	cutoff := now.Unix()
	removed := 0
	for key, expiresAt := range bucket {
		if expiresAt < cutoff {
			delete(bucket, key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(bucket); err != nil {
		return 0, err
	}
	return removed, nil
}

// load reads the bucket; a missing file is an empty bucket.
func (s *FileStore) load() (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("nonce: read bucket: %w", err)
	}

	bucket := make(map[string]int64)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &bucket); err != nil {
			return nil, fmt.Errorf("nonce: decode bucket: %w", err)
		}
	}
	return bucket, nil
}

// save writes the bucket via a temp file and rename so that a crash
// mid-write never truncates the ledger.
func (s *FileStore) save(bucket map[string]int64) error {
	data, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("nonce: encode bucket: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("nonce: write bucket: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("nonce: replace bucket: %w", err)
	}
	return nil
}
