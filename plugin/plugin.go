// Package plugin provides an extensible hook system for the payment
// authorization core. Plugins can observe lifecycle events to extend
// functionality: audit trails, notifications, metrics exporters.
package plugin

import (
	"context"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, core interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionSigned is called when a subscription's terms are signed.
type OnSubscriptionSigned interface {
	Plugin
	OnSubscriptionSigned(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionActivated is called when a subscription becomes active.
type OnSubscriptionActivated interface {
	Plugin
	OnSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionModified is called when a mid-cycle terms change is
// applied, with the proration that resulted.
type OnSubscriptionModified interface {
	Plugin
	OnSubscriptionModified(ctx context.Context, sub *subscription.Subscription, mod *subscription.Modification) error
}

// OnSubscriptionCancelled is called when a subscription is cancelled.
type OnSubscriptionCancelled interface {
	Plugin
	OnSubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionExpired is called when a subscription expires.
type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Payment authorization hooks
// ──────────────────────────────────────────────────

// OnPaymentEvaluated is called after auto-pay policy decided on a
// payment, whatever the outcome.
type OnPaymentEvaluated interface {
	Plugin
	OnPaymentEvaluated(ctx context.Context, req *request.PaymentRequest, decision autopay.Decision) error
}

// OnPaymentExecuted is called when a payment completed and its
// reservation was committed.
type OnPaymentExecuted interface {
	Plugin
	OnPaymentExecuted(ctx context.Context, req *request.PaymentRequest, proofRef string) error
}

// OnPaymentFailed is called when execution failed after authorization
// and the reservation was rolled back.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, req *request.PaymentRequest, err error) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnLimitExceeded is called when a reservation was denied because it
// would exceed the peer's spending limit.
type OnLimitExceeded interface {
	Plugin
	OnLimitExceeded(ctx context.Context, peer string, amount types.Amount) error
}

// OnStaleReservationsReleased is called when the reconciliation sweep
// rolled back reservations abandoned by a crashed caller.
type OnStaleReservationsReleased interface {
	Plugin
	OnStaleReservationsReleased(ctx context.Context, released []limits.Reservation) error
}

// ──────────────────────────────────────────────────
// Verification hooks
// ──────────────────────────────────────────────────

// OnVerificationFailed is called when a signed message was rejected:
// bad signature, expired, or replayed.
type OnVerificationFailed interface {
	Plugin
	OnVerificationFailed(ctx context.Context, peer string, err error) error
}
