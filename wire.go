package authcore

import (
	"github.com/peerpay/authcore/types"
)

// Wire payloads carried inside signed envelopes. Each payload type maps
// to exactly one signing domain. Encoding is a fixed-order CBOR array so
// the signed bytes are stable across versions of this package.

// SubscriptionOffer is the payload signed under DomainSubscription when
// a draft subscription is signed and sent to the counterparty.
type SubscriptionOffer struct {
	_ struct{} `cbor:",toarray"`

	SubscriptionID string
	Subscriber     string
	Provider       string
	Amount         types.Amount
	Frequency      string
	MethodID       string
	Description    string
}

// PaymentRequestMessage is the payload signed under DomainPaymentRequest.
// From is the payee requesting to be paid; To is the payer expected to
// settle. ExpiresAt is a Unix timestamp, zero means no expiry.
type PaymentRequestMessage struct {
	_ struct{} `cbor:",toarray"`

	RequestID   string
	From        string
	To          string
	Amount      types.Amount
	MethodID    string
	Description string
	ExpiresAt   int64
}

// CancellationNotice is the payload signed under DomainCancellation when
// an active subscription is cancelled by either party.
type CancellationNotice struct {
	_ struct{} `cbor:",toarray"`

	SubscriptionID string
	CancelledBy    string
	Reason         string
}

// PaymentAttestation is the payload signed under DomainAttestation by
// the payer after a request settles, binding the receipt to the
// execution proof.
type PaymentAttestation struct {
	_ struct{} `cbor:",toarray"`

	ReceiptID string
	RequestID string
	Payer     string
	Payee     string
	Amount    types.Amount
	MethodID  string
	ProofRef  string
	PaidAt    int64
}
