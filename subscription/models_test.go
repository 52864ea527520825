package subscription

import (
	"errors"
	"testing"
	"time"

	"github.com/peerpay/authcore/schedule"
	"github.com/peerpay/authcore/types"
)

var subStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func monthlyTerms(sats int64) Terms {
	return Terms{
		Amount:    types.Sats(sats),
		Frequency: schedule.Monthly(1),
		MethodID:  "lightning",
	}
}

func activeSubscription(t *testing.T) *Subscription {
	t.Helper()
	s := New("alice", "bob", monthlyTerms(1000), subStart)
	if err := s.Sign(subStart); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := s.Activate(subStart); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return s
}

func TestLifecycleHappyPath(t *testing.T) {
	s := New("alice", "bob", monthlyTerms(1000), subStart)
	if s.Status != StatusDraft {
		t.Fatalf("new subscription status = %s, want draft", s.Status)
	}

	if err := s.Sign(subStart); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if s.Status != StatusSigned || s.SignedAt == nil {
		t.Fatalf("after Sign: status %s, signedAt %v", s.Status, s.SignedAt)
	}

	if err := s.Activate(subStart); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if s.Status != StatusActive || s.StartAt == nil {
		t.Fatalf("after Activate: status %s, startAt %v", s.Status, s.StartAt)
	}

	if err := s.Cancel(subStart.Add(time.Hour)); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if s.Status != StatusCancelled || !s.Status.Terminal() {
		t.Fatalf("after Cancel: status %s", s.Status)
	}
}

func TestSignRejectsIncompleteTerms(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
	}{
		{"zero amount", Terms{Amount: types.Sats(0), Frequency: schedule.Daily(), MethodID: "lightning"}},
		{"empty method", Terms{Amount: types.Sats(100), Frequency: schedule.Daily()}},
		{"bad frequency", Terms{Amount: types.Sats(100), Frequency: schedule.Monthly(42), MethodID: "lightning"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("alice", "bob", tt.terms, subStart)
			if err := s.Sign(subStart); !errors.Is(err, ErrInvalidTerms) {
				t.Fatalf("Sign = %v, want ErrInvalidTerms", err)
			}
			if s.Status != StatusDraft {
				t.Fatalf("failed sign must leave status draft, got %s", s.Status)
			}
		})
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	s := activeSubscription(t)
	first := *s.ActivatedAt
	if err := s.Activate(subStart.Add(time.Hour)); err != nil {
		t.Fatalf("second Activate: %v", err)
	}
	if !s.ActivatedAt.Equal(first) {
		t.Fatal("second Activate must not move the activation time")
	}
}

func TestInvalidTransitions(t *testing.T) {
	draft := New("alice", "bob", monthlyTerms(1000), subStart)
	if err := draft.Activate(subStart); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Activate on draft = %v, want ErrInvalidTransition", err)
	}
	if err := draft.Cancel(subStart); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel on draft = %v, want ErrInvalidTransition", err)
	}

	cancelled := activeSubscription(t)
	if err := cancelled.Cancel(subStart); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := cancelled.Sign(subStart); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Sign on cancelled = %v, want ErrInvalidTransition", err)
	}
	if err := cancelled.Expire(subStart); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expire on cancelled = %v, want ErrInvalidTransition", err)
	}
}

func TestIsDue(t *testing.T) {
	s := activeSubscription(t)

	// never paid: due immediately
	due, err := s.IsDue(subStart)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Fatal("freshly activated subscription should be due")
	}

	s.MarkPaid(subStart)
	due, err = s.IsDue(subStart.AddDate(0, 0, 15))
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Fatal("mid-period subscription should not be due")
	}

	due, err = s.IsDue(subStart.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Fatal("subscription should be due after a full period")
	}
}

func TestIsDueRespectsEnd(t *testing.T) {
	s := activeSubscription(t)
	end := subStart.AddDate(0, 0, 10)
	s.EndAt = &end

	due, err := s.IsDue(subStart.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Fatal("subscription past its end date must not fall due")
	}
}

func TestModifyKeepsHistoryAndRequiresResign(t *testing.T) {
	s := activeSubscription(t)
	oldTerms := s.Terms

	periodEnd := subStart.AddDate(0, 0, 30)
	change := subStart.AddDate(0, 0, 15)
	mod, err := s.Modify(monthlyTerms(2000), subStart, periodEnd, change, change)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}

	if s.Status != StatusSigned {
		t.Fatalf("modified subscription status = %s, want signed", s.Status)
	}
	if !s.Terms.Amount.Equal(types.Sats(2000)) {
		t.Fatalf("terms amount = %s, want 2000 sat", s.Terms.Amount)
	}
	if len(s.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(s.History))
	}
	if !s.History[0].PreviousTerms.Amount.Equal(oldTerms.Amount) {
		t.Fatal("history must preserve the previous terms")
	}
	if !mod.Credit.Equal(types.Sats(500)) {
		t.Fatalf("credit = %s, want 500 sat", mod.Credit)
	}
	if !mod.Charge.Equal(types.Sats(1000)) {
		t.Fatalf("charge = %s, want 1000 sat", mod.Charge)
	}

	// the new signed state activates again
	if err := s.Activate(change); err != nil {
		t.Fatalf("Activate after Modify: %v", err)
	}
	if s.Status != StatusActive {
		t.Fatalf("status = %s, want active", s.Status)
	}
}

func TestModifyRejectsInactive(t *testing.T) {
	s := New("alice", "bob", monthlyTerms(1000), subStart)
	_, err := s.Modify(monthlyTerms(2000), subStart, subStart.AddDate(0, 0, 30), subStart, subStart)
	if !errors.Is(err, ErrNotActive) {
		t.Fatalf("Modify on draft = %v, want ErrNotActive", err)
	}
}
