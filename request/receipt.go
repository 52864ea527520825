package request

import (
	"time"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/types"
)

// Receipt is the durable record of one executed payment: who was paid,
// how much, over which method, and the proof the executor returned.
// Receipts are written after the reservation commits and are never
// updated.
type Receipt struct {
	ID             id.ReceiptID       `json:"id"`
	RequestID      id.RequestID       `json:"request_id,omitempty"`
	SubscriptionID *id.SubscriptionID `json:"subscription_id,omitempty"`
	Payer          string             `json:"payer"`
	Payee          string             `json:"payee"`
	Amount         types.Amount       `json:"amount"`
	MethodID       string             `json:"method_id"`
	ProofRef       string             `json:"proof_ref"`
	PaidAt         time.Time          `json:"paid_at"`
	types.Entity
}

// NewReceipt records an executed payment request.
func NewReceipt(req *PaymentRequest, proofRef string, paidAt time.Time) *Receipt {
	return &Receipt{
		ID:        id.NewReceiptID(),
		RequestID: req.ID,
		Payer:     req.From,
		Payee:     req.To,
		Amount:    req.Amount,
		MethodID:  req.MethodID,
		ProofRef:  proofRef,
		PaidAt:    paidAt,
		Entity:    types.NewEntityAt(paidAt),
	}
}

// ReceiptListOpts filters receipt listings.
type ReceiptListOpts struct {
	Peer   string
	Since  time.Time
	Limit  int
	Offset int
}
