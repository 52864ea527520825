package autopay

import (
	"errors"
	"testing"
	"time"

	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/types"
)

var evalTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func amountPtr(a types.Amount) *types.Amount { return &a }

func lightningRule(max int64) Rule {
	return Rule{
		ID:             id.NewRuleID(),
		Name:           "small lightning payments",
		Enabled:        true,
		MaxAmount:      amountPtr(types.Sats(max)),
		AllowedMethods: []string{"lightning"},
	}
}

func TestEvaluateRuleScan(t *testing.T) {
	rule := lightningRule(5000)
	cfg := Config{Enabled: true, Rules: []Rule{rule}}
	e := NewEvaluator(limits.NewMemoryLedger())

	tests := []struct {
		name    string
		peer    string
		amount  types.Amount
		method  string
		outcome Outcome
	}{
		{"within rule", "alice", types.Sats(3000), "lightning", OutcomeApproved},
		{"at rule cap", "alice", types.Sats(5000), "lightning", OutcomeApproved},
		{"over rule cap", "alice", types.Sats(6000), "lightning", OutcomeNeedsApproval},
		{"wrong method", "alice", types.Sats(3000), "onchain", OutcomeNeedsApproval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Evaluate(cfg, tt.peer, tt.amount, tt.method, evalTime)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Outcome != tt.outcome {
				t.Fatalf("outcome = %s, want %s (reason %q)", d.Outcome, tt.outcome, d.Reason)
			}
			if tt.outcome == OutcomeApproved && d.RuleID != rule.ID {
				t.Fatalf("approval credited to %s, want %s", d.RuleID, rule.ID)
			}
		})
	}
}

func TestEvaluateGloballyDisabled(t *testing.T) {
	cfg := Config{Enabled: false, Rules: []Rule{lightningRule(5000)}}
	e := NewEvaluator(limits.NewMemoryLedger())

	d, err := e.Evaluate(cfg, "alice", types.Sats(100), "lightning", evalTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Outcome != OutcomeDenied {
		t.Fatalf("outcome = %s, want denied", d.Outcome)
	}
	if d.Reason == "" {
		t.Fatal("denial must carry a reason")
	}
}

func TestEvaluateGlobalLimit(t *testing.T) {
	ledger := limits.NewMemoryLedger()
	if err := ledger.SetLimit(limits.GlobalScope, types.Sats(1000), limits.PeriodDaily, evalTime); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	cfg := Config{Enabled: true, Rules: []Rule{lightningRule(5000)}}
	e := NewEvaluator(ledger)

	d, err := e.Evaluate(cfg, "alice", types.Sats(900), "lightning", evalTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Outcome != OutcomeApproved {
		t.Fatalf("within global limit: outcome = %s, want approved", d.Outcome)
	}

	d, err = e.Evaluate(cfg, "alice", types.Sats(1100), "lightning", evalTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Outcome != OutcomeDenied {
		t.Fatalf("over global limit: outcome = %s, want denied", d.Outcome)
	}
}

func TestEvaluatePerPeerLimit(t *testing.T) {
	ledger := limits.NewMemoryLedger()
	if err := ledger.SetLimit("alice", types.Sats(500), limits.PeriodDaily, evalTime); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	cfg := Config{Enabled: true, Rules: []Rule{lightningRule(5000)}}
	e := NewEvaluator(ledger)

	d, err := e.Evaluate(cfg, "alice", types.Sats(600), "lightning", evalTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Outcome != OutcomeDenied {
		t.Fatalf("over peer limit: outcome = %s, want denied", d.Outcome)
	}

	// a different peer is unaffected
	d, err = e.Evaluate(cfg, "bob", types.Sats(600), "lightning", evalTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Outcome != OutcomeApproved {
		t.Fatalf("other peer: outcome = %s, want approved", d.Outcome)
	}
}

func TestEvaluatePeerAllowList(t *testing.T) {
	rule := Rule{
		ID:           id.NewRuleID(),
		Enabled:      true,
		AllowedPeers: []string{"alice"},
	}
	cfg := Config{Enabled: true, Rules: []Rule{rule}}
	e := NewEvaluator(limits.NewMemoryLedger())

	d, _ := e.Evaluate(cfg, "alice", types.Sats(100), "lightning", evalTime)
	if d.Outcome != OutcomeApproved {
		t.Fatalf("listed peer: outcome = %s, want approved", d.Outcome)
	}
	d, _ = e.Evaluate(cfg, "mallory", types.Sats(100), "lightning", evalTime)
	if d.Outcome != OutcomeNeedsApproval {
		t.Fatalf("unlisted peer: outcome = %s, want needs approval", d.Outcome)
	}
}

func TestEvaluateDisabledRuleNeverMatches(t *testing.T) {
	rule := lightningRule(5000)
	rule.Enabled = false
	cfg := Config{Enabled: true, Rules: []Rule{rule}}
	e := NewEvaluator(limits.NewMemoryLedger())

	d, _ := e.Evaluate(cfg, "alice", types.Sats(100), "lightning", evalTime)
	if d.Outcome != OutcomeNeedsApproval {
		t.Fatalf("outcome = %s, want needs approval", d.Outcome)
	}
}

func TestEvaluateRequireConfirmation(t *testing.T) {
	rule := lightningRule(5000)
	rule.RequireConfirmation = true
	cfg := Config{Enabled: true, Rules: []Rule{rule}}
	e := NewEvaluator(limits.NewMemoryLedger())

	d, _ := e.Evaluate(cfg, "alice", types.Sats(100), "lightning", evalTime)
	if d.Outcome != OutcomeNeedsApproval {
		t.Fatalf("outcome = %s, want needs approval", d.Outcome)
	}
	if d.RuleID != rule.ID {
		t.Fatalf("deferral credited to %s, want %s", d.RuleID, rule.ID)
	}
}

func TestEvaluatePriorityOrder(t *testing.T) {
	broad := lightningRule(10000)
	broad.Priority = 10
	narrow := lightningRule(5000)
	narrow.Priority = 1
	cfg := Config{Enabled: true, Rules: []Rule{broad, narrow}}
	e := NewEvaluator(limits.NewMemoryLedger())

	d, _ := e.Evaluate(cfg, "alice", types.Sats(100), "lightning", evalTime)
	if d.Outcome != OutcomeApproved || d.RuleID != narrow.ID {
		t.Fatalf("got rule %s, want the lower-priority-number rule %s", d.RuleID, narrow.ID)
	}
}

type failingSpendReader struct{}

func (failingSpendReader) Remaining(string, time.Time) (types.Amount, error) {
	return types.Amount{}, errors.New("disk on fire")
}

func TestEvaluateFailsClosedOnLedgerError(t *testing.T) {
	cfg := Config{Enabled: true, Rules: []Rule{lightningRule(5000)}}
	e := NewEvaluator(failingSpendReader{})

	d, err := e.Evaluate(cfg, "alice", types.Sats(100), "lightning", evalTime)
	if err == nil {
		t.Fatal("expected the ledger error to surface")
	}
	if d.Outcome != OutcomeDenied {
		t.Fatalf("outcome = %s, want denied (fail closed)", d.Outcome)
	}
}
