// Package subscription models recurring payment agreements between two
// peers and their lifecycle.
//
// A subscription moves Draft -> Signed -> Active and ends in Expired or
// Cancelled. Terms are immutable after signing; a mid-cycle change goes
// through Modify, which computes a prorated credit and charge, records
// the previous terms in history and returns the subscription to Signed
// for the counterparty to re-sign. Terms are never overwritten in place.
package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/schedule"
	"github.com/peerpay/authcore/types"
)

// Lifecycle errors.
var (
	ErrInvalidTerms      = errors.New("subscription: invalid terms")
	ErrInvalidTransition = errors.New("subscription: invalid state transition")
	ErrNotActive         = errors.New("subscription: not active")
)

// Status is a subscription lifecycle state.
type Status string

// Lifecycle states.
const (
	StatusDraft     Status = "draft"
	StatusSigned    Status = "signed"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// Terms are the agreed payment conditions. Immutable once signed.
type Terms struct {
	Amount      types.Amount       `json:"amount"`
	Frequency   schedule.Frequency `json:"frequency"`
	MethodID    string             `json:"method_id"`
	Description string             `json:"description,omitempty"`
}

// Validate rejects incomplete terms: a zero amount, an empty method id
// or a malformed frequency.
func (t Terms) Validate() error {
	if t.Amount.IsZero() {
		return fmt.Errorf("%w: amount is zero", ErrInvalidTerms)
	}
	if t.MethodID == "" {
		return fmt.Errorf("%w: empty method id", ErrInvalidTerms)
	}
	if err := t.Frequency.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTerms, err)
	}
	return nil
}

// Modification records one mid-cycle terms change with its prorated
// credit against the old terms and charge under the new ones.
type Modification struct {
	ID             id.ModificationID `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	PreviousTerms  Terms             `json:"previous_terms"`
	NewTerms       Terms             `json:"new_terms"`
	PeriodStart    time.Time         `json:"period_start"`
	PeriodEnd      time.Time         `json:"period_end"`
	ChangeDate     time.Time         `json:"change_date"`
	Credit         types.Amount      `json:"credit"`
	Charge         types.Amount      `json:"charge"`
	types.Entity
}

// Subscription is one recurring payment agreement. The subscriber pays
// the provider according to the terms.
type Subscription struct {
	ID         id.SubscriptionID `json:"id"`
	Subscriber string            `json:"subscriber"`
	Provider   string            `json:"provider"`
	Terms      Terms             `json:"terms"`
	Status     Status            `json:"status"`

	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	SignedAt    *time.Time `json:"signed_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	LastPaidAt  *time.Time `json:"last_paid_at,omitempty"`

	// History holds every applied modification, oldest first.
	History []Modification `json:"history,omitempty"`

	types.Entity
}

// New creates a Draft subscription. Terms are validated at signing, not
// here, so callers can build drafts incrementally.
func New(subscriber, provider string, terms Terms, now time.Time) *Subscription {
	return &Subscription{
		ID:         id.NewSubscriptionID(),
		Subscriber: subscriber,
		Provider:   provider,
		Terms:      terms,
		Status:     StatusDraft,
		Entity:     types.NewEntityAt(now),
	}
}

// Sign moves Draft to Signed after validating the terms.
func (s *Subscription) Sign(now time.Time) error {
	if s.Status != StatusDraft {
		return transitionErr(s.Status, StatusSigned)
	}
	if err := s.Terms.Validate(); err != nil {
		return err
	}
	s.Status = StatusSigned
	s.SignedAt = &now
	s.TouchAt(now)
	return nil
}

// Activate moves Signed to Active. Activating an already Active
// subscription is a no-op.
func (s *Subscription) Activate(now time.Time) error {
	if s.Status == StatusActive {
		return nil
	}
	if s.Status != StatusSigned {
		return transitionErr(s.Status, StatusActive)
	}
	s.Status = StatusActive
	s.ActivatedAt = &now
	if s.StartAt == nil {
		s.StartAt = &now
	}
	s.TouchAt(now)
	return nil
}

// Cancel terminates an Active subscription.
func (s *Subscription) Cancel(now time.Time) error {
	if s.Status != StatusActive {
		return transitionErr(s.Status, StatusCancelled)
	}
	s.Status = StatusCancelled
	s.CancelledAt = &now
	s.TouchAt(now)
	return nil
}

// Expire terminates an Active subscription that ran past its end.
func (s *Subscription) Expire(now time.Time) error {
	if s.Status != StatusActive {
		return transitionErr(s.Status, StatusExpired)
	}
	s.Status = StatusExpired
	s.ExpiredAt = &now
	s.TouchAt(now)
	return nil
}

// Modify applies a mid-cycle terms change to an Active subscription.
// It validates the new terms, computes the proration for the current
// billing period, appends the change to history and returns the
// subscription to Signed for the counterparty to re-sign.
func (s *Subscription) Modify(newTerms Terms, periodStart, periodEnd, changeDate, now time.Time) (*Modification, error) {
	if s.Status != StatusActive {
		return nil, fmt.Errorf("%w: status %s", ErrNotActive, s.Status)
	}
	if err := newTerms.Validate(); err != nil {
		return nil, err
	}

	credit, charge, err := Prorate(s.Terms.Amount, newTerms.Amount, periodStart, periodEnd, changeDate)
	if err != nil {
		return nil, err
	}

	mod := Modification{
		ID:             id.NewModificationID(),
		SubscriptionID: s.ID,
		PreviousTerms:  s.Terms,
		NewTerms:       newTerms,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		ChangeDate:     changeDate,
		Credit:         credit,
		Charge:         charge,
		Entity:         types.NewEntityAt(now),
	}

	s.History = append(s.History, mod)
	s.Terms = newTerms
	s.Status = StatusSigned
	s.SignedAt = &now
	s.TouchAt(now)
	return &mod, nil
}

// dueAnchor is the instant the next payment is computed from: the last
// payment, or activation for a subscription never paid yet.
func (s *Subscription) dueAnchor() (time.Time, bool) {
	if s.LastPaidAt != nil {
		return *s.LastPaidAt, true
	}
	if s.ActivatedAt != nil {
		return *s.ActivatedAt, true
	}
	return time.Time{}, false
}

// NextDue returns when the next payment falls due.
func (s *Subscription) NextDue() (time.Time, error) {
	anchor, ok := s.dueAnchor()
	if !ok {
		return time.Time{}, ErrNotActive
	}
	return s.Terms.Frequency.NextDue(anchor)
}

// IsDue reports whether a payment is due at now. Only Active
// subscriptions fall due. The first payment is due immediately on
// activation.
func (s *Subscription) IsDue(now time.Time) (bool, error) {
	if s.Status != StatusActive {
		return false, nil
	}
	if s.EndAt != nil && now.After(*s.EndAt) {
		return false, nil
	}
	if s.LastPaidAt == nil {
		return true, nil
	}
	return s.Terms.Frequency.IsDue(now, *s.LastPaidAt)
}

// MarkPaid records a completed payment.
func (s *Subscription) MarkPaid(now time.Time) {
	s.LastPaidAt = &now
	s.TouchAt(now)
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ListOpts filters subscription listings.
type ListOpts struct {
	Status Status
	Peer   string
	Limit  int
	Offset int
}
