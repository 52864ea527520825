// Package audithook bridges payment authorization events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not depend
// on any particular audit store. Callers inject a RecorderFunc adapter
// that bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/plugin"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                      = (*Extension)(nil)
	_ plugin.OnSubscriptionSigned        = (*Extension)(nil)
	_ plugin.OnSubscriptionActivated     = (*Extension)(nil)
	_ plugin.OnSubscriptionModified      = (*Extension)(nil)
	_ plugin.OnSubscriptionCancelled     = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired       = (*Extension)(nil)
	_ plugin.OnPaymentEvaluated          = (*Extension)(nil)
	_ plugin.OnPaymentExecuted           = (*Extension)(nil)
	_ plugin.OnPaymentFailed             = (*Extension)(nil)
	_ plugin.OnLimitExceeded             = (*Extension)(nil)
	_ plugin.OnStaleReservationsReleased = (*Extension)(nil)
	_ plugin.OnVerificationFailed        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges authorization lifecycle events to an audit backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionSigned implements plugin.OnSubscriptionSigned.
func (e *Extension) OnSubscriptionSigned(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionSigned, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
		"provider", sub.Provider,
		"amount", sub.Terms.Amount.String(),
	)
}

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (e *Extension) OnSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionActivated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
		"provider", sub.Provider,
	)
}

// OnSubscriptionModified implements plugin.OnSubscriptionModified.
func (e *Extension) OnSubscriptionModified(ctx context.Context, sub *subscription.Subscription, mod *subscription.Modification) error {
	return e.record(ctx, ActionSubscriptionModified, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"modification_id", mod.ID.String(),
		"previous_amount", mod.PreviousTerms.Amount.String(),
		"new_amount", mod.NewTerms.Amount.String(),
		"credit", mod.Credit.String(),
		"charge", mod.Charge.String(),
	)
}

// OnSubscriptionCancelled implements plugin.OnSubscriptionCancelled.
func (e *Extension) OnSubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCancelled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
	)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionExpired, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentEvaluated implements plugin.OnPaymentEvaluated.
func (e *Extension) OnPaymentEvaluated(ctx context.Context, req *request.PaymentRequest, decision autopay.Decision) error {
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if decision.Outcome == autopay.OutcomeDenied {
		outcome = OutcomeDenied
		severity = SeverityWarning
	}
	return e.record(ctx, ActionPaymentEvaluated, severity, outcome,
		ResourceRequest, req.ID.String(), CategoryAuthorization, nil,
		"from", req.From,
		"amount", req.Amount.String(),
		"method", req.MethodID,
		"decision", string(decision.Outcome),
		"reason", decision.Reason,
	)
}

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (e *Extension) OnPaymentExecuted(ctx context.Context, req *request.PaymentRequest, proofRef string) error {
	return e.record(ctx, ActionPaymentExecuted, SeverityInfo, OutcomeSuccess,
		ResourceRequest, req.ID.String(), CategoryPayment, nil,
		"to", req.To,
		"amount", req.Amount.String(),
		"method", req.MethodID,
		"proof", proofRef,
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, req *request.PaymentRequest, ferr error) error {
	return e.record(ctx, ActionPaymentFailed, SeverityError, OutcomeFailure,
		ResourceRequest, req.ID.String(), CategoryPayment, ferr,
		"to", req.To,
		"amount", req.Amount.String(),
		"method", req.MethodID,
	)
}

// ──────────────────────────────────────────────────
// Ledger and verification hooks
// ──────────────────────────────────────────────────

// OnLimitExceeded implements plugin.OnLimitExceeded.
func (e *Extension) OnLimitExceeded(ctx context.Context, peer string, amount types.Amount) error {
	return e.record(ctx, ActionLimitExceeded, SeverityWarning, OutcomeDenied,
		ResourceLedger, peer, CategoryAuthorization, nil,
		"peer", peer,
		"amount", amount.String(),
	)
}

// OnStaleReservationsReleased implements plugin.OnStaleReservationsReleased.
func (e *Extension) OnStaleReservationsReleased(ctx context.Context, released []limits.Reservation) error {
	peers := make([]string, 0, len(released))
	for _, r := range released {
		peers = append(peers, r.PeerID)
	}
	return e.record(ctx, ActionStaleReleased, SeverityWarning, OutcomeSuccess,
		ResourceLedger, "", CategoryAuthorization, nil,
		"count", len(released),
		"peers", peers,
	)
}

// OnVerificationFailed implements plugin.OnVerificationFailed.
func (e *Extension) OnVerificationFailed(ctx context.Context, peer string, verr error) error {
	return e.record(ctx, ActionVerificationFailed, SeverityCritical, OutcomeFailure,
		ResourceEnvelope, peer, CategorySecurity, verr,
		"peer", peer,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if rerr := e.recorder.Record(ctx, evt); rerr != nil {
		e.logger.Warn("audit record failed",
			"action", action,
			"error", rerr,
		)
		return rerr
	}
	return nil
}
