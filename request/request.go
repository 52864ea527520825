// Package request models one-shot payment requests between peers.
//
// A payment request is the non-recurring analog of a subscription: the
// same amount, method and signing discipline, without a frequency. It
// moves from pending to approved or denied, and an approved request is
// marked paid once execution produced a proof.
package request

import (
	"errors"
	"fmt"
	"time"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/types"
)

// Request errors.
var (
	ErrInvalidRequest = errors.New("request: invalid payment request")
	ErrAlreadyDecided = errors.New("request: already decided")
	ErrNotApproved    = errors.New("request: not approved")
)

// Status is a payment request's position in its workflow.
type Status string

// Workflow states.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusPaid     Status = "paid"
	StatusExpired  Status = "expired"
)

// Direction filters requests by which side of them we are on.
type Direction string

// Listing directions.
const (
	DirectionAny      Direction = ""
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// PaymentRequest asks one peer to pay another once.
type PaymentRequest struct {
	ID          id.RequestID `json:"id"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Amount      types.Amount `json:"amount"`
	MethodID    string       `json:"method_id"`
	Description string       `json:"description,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`

	Status     Status     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	ProofRef   string     `json:"proof_ref,omitempty"`
	types.Entity
}

// New creates a pending payment request from one peer to another.
func New(from, to string, amount types.Amount, methodID string, now time.Time) *PaymentRequest {
	return &PaymentRequest{
		ID:       id.NewRequestID(),
		From:     from,
		To:       to,
		Amount:   amount,
		MethodID: methodID,
		Status:   StatusPending,
		Entity:   types.NewEntityAt(now),
	}
}

// Validate rejects structurally invalid requests.
func (r *PaymentRequest) Validate() error {
	switch {
	case r.From == "" || r.To == "":
		return fmt.Errorf("%w: missing peer identity", ErrInvalidRequest)
	case r.From == r.To:
		return fmt.Errorf("%w: from and to are the same peer", ErrInvalidRequest)
	case r.Amount.IsZero():
		return fmt.Errorf("%w: amount is zero", ErrInvalidRequest)
	case r.MethodID == "":
		return fmt.Errorf("%w: empty method id", ErrInvalidRequest)
	}
	return nil
}

// IsExpired reports whether the request's optional expiry has passed.
func (r *PaymentRequest) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Approve decides a pending request positively.
func (r *PaymentRequest) Approve(now time.Time) error {
	return r.decide(StatusApproved, "", now)
}

// Deny decides a pending request negatively with a reason.
func (r *PaymentRequest) Deny(reason string, now time.Time) error {
	return r.decide(StatusDenied, reason, now)
}

// Expire marks a pending request whose expiry has passed.
func (r *PaymentRequest) Expire(now time.Time) error {
	return r.decide(StatusExpired, "request expired", now)
}

func (r *PaymentRequest) decide(status Status, reason string, now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: status %s", ErrAlreadyDecided, r.Status)
	}
	r.Status = status
	r.Reason = reason
	r.DecidedAt = &now
	r.TouchAt(now)
	return nil
}

// MarkPaid records completed execution of an approved request, with a
// reference to the payment proof.
func (r *PaymentRequest) MarkPaid(proofRef string, now time.Time) error {
	if r.Status != StatusApproved {
		return fmt.Errorf("%w: status %s", ErrNotApproved, r.Status)
	}
	r.Status = StatusPaid
	r.ProofRef = proofRef
	r.PaidAt = &now
	r.TouchAt(now)
	return nil
}

// ListOpts filters payment request listings. Direction is interpreted
// relative to the identity passed alongside it.
type ListOpts struct {
	Status    Status
	Direction Direction
	Limit     int
	Offset    int
}
