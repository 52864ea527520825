// Package limits enforces per-peer spending limits through an atomic
// reserve/commit/rollback protocol.
//
// A reservation provisionally increments the peer's spent counter before
// any payment is attempted. Committing keeps the increment; rolling back
// reverses it. The check-then-increment sequence is indivisible: of two
// concurrent reservations that would jointly exceed a limit, exactly one
// succeeds. The file-backed ledger extends that guarantee across
// operating-system processes with an exclusive lock per peer record.
package limits

import (
	"errors"
	"fmt"
	"time"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/types"
)

// Ledger errors.
var (
	ErrLimitExceeded      = errors.New("limits: spending limit exceeded")
	ErrNoLimit            = errors.New("limits: no limit configured for peer")
	ErrUnknownReservation = errors.New("limits: unknown reservation")
	ErrStorage            = errors.New("limits: storage failure")
)

// Period is the rollover window of a spending limit.
type Period string

// Supported limit periods.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// next returns the instant the period starting at start rolls over.
func (p Period) next(start time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

func errInvalidPeriod(p Period) error {
	return fmt.Errorf("limits: invalid period %q", p)
}

// GlobalScope is the reserved peer key under which the ledger tracks
// aggregate spending across all peers. Real peer identities are public
// keys or addresses and cannot collide with it.
const GlobalScope = "__global__"

// PeerSpendingLimit is the persisted limit state for one peer.
type PeerSpendingLimit struct {
	PeerID      string       `json:"peer_id"`
	Limit       types.Amount `json:"limit"`
	Spent       types.Amount `json:"spent"`
	Period      Period       `json:"period"`
	PeriodStart time.Time    `json:"period_start"`
}

// Remaining returns limit minus spent, floored at zero.
func (l PeerSpendingLimit) Remaining() types.Amount {
	rem, err := l.Limit.CheckedSub(l.Spent)
	if err != nil {
		return types.Zero(l.Limit.Unit())
	}
	return rem
}

// rollover resets the spent counter when now has crossed into a new
// period. Returns true if a reset happened.
func (l *PeerSpendingLimit) rollover(now time.Time) bool {
	if now.Before(l.Period.next(l.PeriodStart)) {
		return false
	}
	l.Spent = types.Zero(l.Limit.Unit())
	l.PeriodStart = now
	return true
}

// Reservation is a provisional ledger increment awaiting commit or
// rollback. The token is the caller's capability to resolve it.
type Reservation struct {
	Token      id.ReservationID `json:"token"`
	PeerID     string           `json:"peer_id"`
	Amount     types.Amount     `json:"amount"`
	ReservedAt time.Time        `json:"reserved_at"`
}

// Ledger is the spending-limit store. Reserve, Commit and Rollback are
// atomic with respect to each other for a given peer. Infrastructure
// failures leave ledger state unchanged and are safe to retry.
type Ledger interface {
	// SetLimit creates or replaces the limit for peer, starting a fresh
	// period at now with nothing spent.
	SetLimit(peer string, limit types.Amount, period Period, now time.Time) error

	// GetLimit returns the current limit state for peer, with the
	// period rollover applied against now. ErrNoLimit if none is set.
	GetLimit(peer string, now time.Time) (PeerSpendingLimit, error)

	// RemoveLimit deletes the limit and any pending reservations for
	// peer. Removing an absent limit is not an error.
	RemoveLimit(peer string) error

	// Reserve atomically checks spent+amount against the limit and, if
	// within it, increments spent and returns a reservation. Returns
	// ErrLimitExceeded with no side effect when the amount does not
	// fit, and ErrNoLimit when the peer has no limit configured.
	Reserve(peer string, amount types.Amount, now time.Time) (*Reservation, error)

	// Commit finalizes a reservation. The increment already happened at
	// reserve time; commit discards the token without reversing it.
	Commit(token id.ReservationID) error

	// Rollback reverses a reservation, subtracting its amount back from
	// the peer's spent counter.
	Rollback(token id.ReservationID) error

	// Remaining returns how much the peer may still spend this period.
	Remaining(peer string, now time.Time) (types.Amount, error)

	// ReleaseStale rolls back every reservation older than timeout and
	// returns the released reservations for audit. Covers callers that
	// crashed between Reserve and Commit/Rollback.
	ReleaseStale(now time.Time, timeout time.Duration) ([]Reservation, error)
}
