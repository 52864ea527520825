package limits

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/types"
)

// FileLedger is a Ledger persisted as one JSON record per peer, each
// guarded by its own exclusive lock file. Lock contention is bounded to
// a single peer: two processes reserving against different peers never
// block each other, and two processes reserving against the same peer
// serialize on that peer's lock.
//
// Every mutation follows the same sequence: acquire the peer lock, read
// the record, apply the period rollover, check and mutate, write via
// temp file and rename, release the lock. Any I/O failure surfaces as
// ErrStorage with the record unchanged on disk.
type FileLedger struct {
	dir string
}

// NewFileLedger creates (or reuses) a ledger directory.
func NewFileLedger(dir string) (*FileLedger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create dir: %v", ErrStorage, err)
	}
	return &FileLedger{dir: dir}, nil
}

// peerRecord is the on-disk layout of one peer's limit state. Pending
// reservations live inside the record so that a reservation made by one
// process can be rolled back or reaped by another.
type peerRecord struct {
	Limit        PeerSpendingLimit `json:"limit"`
	Reservations []Reservation     `json:"reservations,omitempty"`
}

// peerFile maps a peer identity to its record filename. Peer IDs are
// public keys or addresses, so they are hashed rather than embedded in
// the path.
func (f *FileLedger) peerFile(peer string) string {
	sum := sha256.Sum256([]byte(peer))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:16])+".json")
}

func (f *FileLedger) peerLock(peer string) *flock.Flock {
	sum := sha256.Sum256([]byte(peer))
	return flock.New(filepath.Join(f.dir, hex.EncodeToString(sum[:16])+".lock"))
}

// SetLimit implements Ledger.
func (f *FileLedger) SetLimit(peer string, limit types.Amount, period Period, now time.Time) error {
	if !period.Valid() {
		return errInvalidPeriod(period)
	}
	lock := f.peerLock(peer)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	defer lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	rec := &peerRecord{
		Limit: PeerSpendingLimit{
			PeerID:      peer,
			Limit:       limit,
			Spent:       types.Zero(limit.Unit()),
			Period:      period,
			PeriodStart: now,
		},
	}
	return f.save(peer, rec)
}

// GetLimit implements Ledger.
func (f *FileLedger) GetLimit(peer string, now time.Time) (PeerSpendingLimit, error) {
	lock := f.peerLock(peer)
	if err := lock.Lock(); err != nil {
		return PeerSpendingLimit{}, fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	defer lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	rec, err := f.load(peer)
	if err != nil {
		return PeerSpendingLimit{}, err
	}
	if rec.Limit.rollover(now) {
		if err := f.save(peer, rec); err != nil {
			return PeerSpendingLimit{}, err
		}
	}
	return rec.Limit, nil
}

// RemoveLimit implements Ledger.
func (f *FileLedger) RemoveLimit(peer string) error {
	lock := f.peerLock(peer)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	defer lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	if err := os.Remove(f.peerFile(peer)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove record: %v", ErrStorage, err)
	}
	return nil
}

// Reserve implements Ledger. The lock is held only for the read-check-
// write sequence; callers must not hold reservations open across
// network I/O without eventually committing or rolling back.
func (f *FileLedger) Reserve(peer string, amount types.Amount, now time.Time) (*Reservation, error) {
	lock := f.peerLock(peer)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	defer lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	rec, err := f.load(peer)
	if err != nil {
		return nil, err
	}
	rec.Limit.rollover(now)

	next, err := rec.Limit.Spent.CheckedAdd(amount)
	if err != nil {
		return nil, ErrLimitExceeded
	}
	if !next.IsWithinLimit(rec.Limit.Limit) {
		return nil, ErrLimitExceeded
	}
	rec.Limit.Spent = next

	r := Reservation{
		Token:      id.NewReservationID(),
		PeerID:     peer,
		Amount:     amount,
		ReservedAt: now,
	}
	rec.Reservations = append(rec.Reservations, r)

	if err := f.save(peer, rec); err != nil {
		return nil, err
	}
	return &r, nil
}

// Commit implements Ledger.
func (f *FileLedger) Commit(token id.ReservationID) error {
	return f.resolve(token, false)
}

// Rollback implements Ledger.
func (f *FileLedger) Rollback(token id.ReservationID) error {
	return f.resolve(token, true)
}

// resolve removes the reservation named by token from whichever peer
// record holds it, reversing the increment when release is true.
func (f *FileLedger) resolve(token id.ReservationID, release bool) error {
	peers, err := f.listPeers()
	if err != nil {
		return err
	}
	for _, peer := range peers {
		found, err := f.resolveAt(peer, token, release)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return ErrUnknownReservation
}

func (f *FileLedger) resolveAt(peer string, token id.ReservationID, release bool) (bool, error) {
	lock := f.peerLock(peer)
	if err := lock.Lock(); err != nil {
		return false, fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	defer lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	rec, err := f.load(peer)
	if errors.Is(err, ErrNoLimit) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for i, r := range rec.Reservations {
		if r.Token != token {
			continue
		}
		rec.Reservations = append(rec.Reservations[:i], rec.Reservations[i+1:]...)
		if release {
			releaseSpent(&rec.Limit, r.Amount)
		}
		return true, f.save(peer, rec)
	}
	return false, nil
}

// Remaining implements Ledger.
func (f *FileLedger) Remaining(peer string, now time.Time) (types.Amount, error) {
	l, err := f.GetLimit(peer, now)
	if err != nil {
		return types.Amount{}, err
	}
	return l.Remaining(), nil
}

// ReleaseStale implements Ledger.
func (f *FileLedger) ReleaseStale(now time.Time, timeout time.Duration) ([]Reservation, error) {
	peers, err := f.listPeers()
	if err != nil {
		return nil, err
	}

	var released []Reservation
	for _, peer := range peers {
		found, err := f.releaseStaleAt(peer, now, timeout)
		if err != nil {
			return released, err
		}
		released = append(released, found...)
	}
	return released, nil
}

func (f *FileLedger) releaseStaleAt(peer string, now time.Time, timeout time.Duration) ([]Reservation, error) {
	lock := f.peerLock(peer)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	defer lock.Unlock() //nolint:errcheck // lock release is best-effort on the error path

	rec, err := f.load(peer)
	if errors.Is(err, ErrNoLimit) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var released []Reservation
	kept := rec.Reservations[:0]
	for _, r := range rec.Reservations {
		if now.Sub(r.ReservedAt) < timeout {
			kept = append(kept, r)
			continue
		}
		releaseSpent(&rec.Limit, r.Amount)
		released = append(released, r)
	}
	if len(released) == 0 {
		return nil, nil
	}
	rec.Reservations = kept
	return released, f.save(peer, rec)
}

// releaseSpent subtracts a rolled-back amount from the spent counter.
// A period rollover since the reserve already zeroed the counter, so a
// failed subtraction leaves it at zero rather than wrapping.
func releaseSpent(l *PeerSpendingLimit, amount types.Amount) {
	reduced, err := l.Spent.CheckedSub(amount)
	if err != nil {
		reduced = types.Zero(l.Limit.Unit())
	}
	l.Spent = reduced
}

// listPeers returns the peer IDs of every record on disk, read from the
// records themselves since filenames are hashes.
func (f *FileLedger) listPeers() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir: %v", ErrStorage, err)
	}

	var peers []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: read record: %v", ErrStorage, err)
		}
		var rec peerRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record: %v", ErrStorage, err)
		}
		peers = append(peers, rec.Limit.PeerID)
	}
	return peers, nil
}

// load reads a peer record. A missing file means no limit is set.
func (f *FileLedger) load(peer string) (*peerRecord, error) {
	data, err := os.ReadFile(f.peerFile(peer))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoLimit
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read record: %v", ErrStorage, err)
	}

	var rec peerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", ErrStorage, err)
	}
	return &rec, nil
}

// save writes a peer record via temp file and rename so a crash
// mid-write never truncates the ledger.
func (f *FileLedger) save(peer string, rec *peerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", ErrStorage, err)
	}

	// Unique temp name per writer; a crashed writer's leftover can
	// never be picked up by a concurrent save.
	path := f.peerFile(peer)
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write record: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: replace record: %v", ErrStorage, err)
	}
	return nil
}
