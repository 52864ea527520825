package limits

import (
	"sync"
	"time"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/types"
)

// MemoryLedger is the in-process Ledger. It is safe for concurrent use
// within a single process but offers no cross-process guarantee; use
// FileLedger when more than one process shares the same limit state.
type MemoryLedger struct {
	mu           sync.Mutex
	limits       map[string]*PeerSpendingLimit
	reservations map[id.ReservationID]Reservation
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		limits:       make(map[string]*PeerSpendingLimit),
		reservations: make(map[id.ReservationID]Reservation),
	}
}

// SetLimit implements Ledger.
func (m *MemoryLedger) SetLimit(peer string, limit types.Amount, period Period, now time.Time) error {
	if !period.Valid() {
		return errInvalidPeriod(period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits[peer] = &PeerSpendingLimit{
		PeerID:      peer,
		Limit:       limit,
		Spent:       types.Zero(limit.Unit()),
		Period:      period,
		PeriodStart: now,
	}
	return nil
}

// GetLimit implements Ledger.
func (m *MemoryLedger) GetLimit(peer string, now time.Time) (PeerSpendingLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limits[peer]
	if !ok {
		return PeerSpendingLimit{}, ErrNoLimit
	}
	l.rollover(now)
	return *l, nil
}

// RemoveLimit implements Ledger.
func (m *MemoryLedger) RemoveLimit(peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.limits, peer)
	for token, r := range m.reservations {
		if r.PeerID == peer {
			delete(m.reservations, token)
		}
	}
	return nil
}

// Reserve implements Ledger.
func (m *MemoryLedger) Reserve(peer string, amount types.Amount, now time.Time) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limits[peer]
	if !ok {
		return nil, ErrNoLimit
	}
	l.rollover(now)

	next, err := l.Spent.CheckedAdd(amount)
	if err != nil {
		return nil, ErrLimitExceeded
	}
	if !next.IsWithinLimit(l.Limit) {
		return nil, ErrLimitExceeded
	}
	l.Spent = next

	r := Reservation{
		Token:      id.NewReservationID(),
		PeerID:     peer,
		Amount:     amount,
		ReservedAt: now,
	}
	m.reservations[r.Token] = r
	return &r, nil
}

// Commit implements Ledger.
func (m *MemoryLedger) Commit(token id.ReservationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reservations[token]; !ok {
		return ErrUnknownReservation
	}
	delete(m.reservations, token)
	return nil
}

// Rollback implements Ledger.
func (m *MemoryLedger) Rollback(token id.ReservationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[token]
	if !ok {
		return ErrUnknownReservation
	}
	delete(m.reservations, token)
	m.release(r)
	return nil
}

// Remaining implements Ledger.
func (m *MemoryLedger) Remaining(peer string, now time.Time) (types.Amount, error) {
	l, err := m.GetLimit(peer, now)
	if err != nil {
		return types.Amount{}, err
	}
	return l.Remaining(), nil
}

// ReleaseStale implements Ledger.
func (m *MemoryLedger) ReleaseStale(now time.Time, timeout time.Duration) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var released []Reservation
	for token, r := range m.reservations {
		if now.Sub(r.ReservedAt) < timeout {
			continue
		}
		delete(m.reservations, token)
		m.release(r)
		released = append(released, r)
	}
	return released, nil
}

// release subtracts a rolled-back reservation from the peer's spent
// counter. A period rollover since the reserve already zeroed the
// counter, so a failed subtraction is left at zero rather than wrapped.
func (m *MemoryLedger) release(r Reservation) {
	l, ok := m.limits[r.PeerID]
	if !ok {
		return
	}
	reduced, err := l.Spent.CheckedSub(r.Amount)
	if err != nil {
		reduced = types.Zero(l.Limit.Unit())
	}
	l.Spent = reduced
}
