package autopay

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/types"
)

// SpendReader is the read-only view of the spending ledger the
// evaluator consults. limits.Ledger satisfies it.
type SpendReader interface {
	Remaining(peer string, now time.Time) (types.Amount, error)
}

// Evaluator applies auto-pay policy to individual payments.
type Evaluator struct {
	spend  SpendReader
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for denial and infrastructure events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator builds an Evaluator over the given spending ledger view.
func NewEvaluator(spend SpendReader, opts ...Option) *Evaluator {
	e := &Evaluator{
		spend:  spend,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether the payment may proceed without manual
// confirmation. Checks run in a fixed order: global switch, global
// limit, per-peer limit, then the rule scan. When the ledger cannot be
// read the decision is a denial (fail-closed) and the error is also
// returned so the caller can distinguish "against policy" from "cannot
// decide right now".
func (e *Evaluator) Evaluate(cfg Config, peer string, amount types.Amount, methodID string, now time.Time) (Decision, error) {
	if !cfg.Enabled {
		return Denied("auto-pay is disabled"), nil
	}

	if d, err := e.checkRemaining(limits.GlobalScope, amount, now, "global spending limit would be exceeded"); err != nil || d != nil {
		return deref(d), err
	}
	if d, err := e.checkRemaining(peer, amount, now, "spending limit for this peer would be exceeded"); err != nil || d != nil {
		return deref(d), err
	}

	for _, rule := range cfg.OrderedRules() {
		if !rule.Matches(peer, amount, methodID) {
			continue
		}
		if rule.RequireConfirmation {
			d := NeedsApproval()
			d.RuleID = rule.ID
			return d, nil
		}
		return Approved(rule.ID), nil
	}

	// no rule covers this payment: defer to manual confirmation
	return NeedsApproval(), nil
}

// checkRemaining denies when the scope has a limit the amount does not
// fit into. A nil decision means the check passed or no limit is set.
func (e *Evaluator) checkRemaining(scope string, amount types.Amount, now time.Time, reason string) (*Decision, error) {
	remaining, err := e.spend.Remaining(scope, now)
	if errors.Is(err, limits.ErrNoLimit) {
		return nil, nil
	}
	if err != nil {
		e.logger.Warn("spending ledger unavailable, denying", "scope", scope, "error", err)
		d := Denied("spending ledger is unavailable")
		return &d, fmt.Errorf("autopay: read ledger: %w", err)
	}
	if !amount.IsWithinLimit(remaining) {
		d := Denied(reason)
		return &d, nil
	}
	return nil, nil
}

func deref(d *Decision) Decision {
	if d == nil {
		return Decision{}
	}
	return *d
}
