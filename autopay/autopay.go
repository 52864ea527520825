// Package autopay decides whether a payment may proceed without manual
// confirmation.
//
// The evaluator checks, in order: the global auto-pay switch, the global
// spending limit, the per-peer spending limit, then the configured rules
// in priority order. A payment no rule covers is deferred to manual
// approval, not denied; absence of a rule is not a security failure.
// Evaluation never mutates the ledger; an approval only licenses the
// caller to attempt a reservation.
package autopay

import (
	"slices"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/types"
)

// Outcome is the kind of decision the evaluator reached.
type Outcome string

// Evaluation outcomes.
const (
	OutcomeApproved      Outcome = "approved"
	OutcomeDenied        Outcome = "denied"
	OutcomeNeedsApproval Outcome = "needs_approval"
)

// Decision is the evaluator's verdict on one payment.
type Decision struct {
	Outcome Outcome
	// RuleID names the rule that matched, when a rule was involved.
	RuleID id.RuleID
	// Reason is the human-readable ground for a denial.
	Reason string
}

// Approved builds an approval decision credited to a rule.
func Approved(ruleID id.RuleID) Decision {
	return Decision{Outcome: OutcomeApproved, RuleID: ruleID}
}

// Denied builds a denial with a human-readable reason.
func Denied(reason string) Decision {
	return Decision{Outcome: OutcomeDenied, Reason: reason}
}

// NeedsApproval builds a defer-to-manual-confirmation decision.
func NeedsApproval() Decision {
	return Decision{Outcome: OutcomeNeedsApproval}
}

// Rule is one auto-pay authorization rule. Rules are pure configuration:
// they hold no runtime counters and are evaluated in priority order.
type Rule struct {
	ID      id.RuleID `json:"id"`
	Name    string    `json:"name,omitempty"`
	Enabled bool      `json:"enabled"`

	// MaxAmount caps the payment size this rule covers. Nil means no cap.
	MaxAmount *types.Amount `json:"max_amount,omitempty"`

	// AllowedMethods restricts the payment methods this rule covers.
	// Empty means any method.
	AllowedMethods []string `json:"allowed_methods,omitempty"`

	// AllowedPeers restricts the peers this rule covers. Empty means
	// any peer.
	AllowedPeers []string `json:"allowed_peers,omitempty"`

	// RequireConfirmation makes a match defer to manual approval
	// instead of approving outright.
	RequireConfirmation bool `json:"require_confirmation,omitempty"`

	// Priority orders rules during evaluation; lower runs first. Rules
	// with equal priority keep insertion order.
	Priority int `json:"priority,omitempty"`

	types.Entity
}

// Matches reports whether the rule covers the given payment. Disabled
// rules never match.
func (r Rule) Matches(peer string, amount types.Amount, methodID string) bool {
	if !r.Enabled {
		return false
	}
	if r.MaxAmount != nil && !amount.IsWithinLimit(*r.MaxAmount) {
		return false
	}
	if len(r.AllowedMethods) > 0 && !slices.Contains(r.AllowedMethods, methodID) {
		return false
	}
	if len(r.AllowedPeers) > 0 && !slices.Contains(r.AllowedPeers, peer) {
		return false
	}
	return true
}

// Config is the auto-pay configuration snapshot an evaluation runs
// against. Callers load it from their store per evaluation; the
// evaluator itself keeps no rule state.
type Config struct {
	// Enabled is the global auto-pay switch. When false every payment
	// is denied outright.
	Enabled bool `json:"enabled"`

	// Rules in evaluation order (after sorting by Priority).
	Rules []Rule `json:"rules,omitempty"`
}

// OrderedRules returns the rules sorted by priority, preserving
// insertion order within equal priorities.
func (c Config) OrderedRules() []Rule {
	out := slices.Clone(c.Rules)
	slices.SortStableFunc(out, func(a, b Rule) int { return a.Priority - b.Priority })
	return out
}
