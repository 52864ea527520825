package authcore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerpay/authcore"
	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/method"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/schedule"
	"github.com/peerpay/authcore/signing"
	"github.com/peerpay/authcore/store/memory"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

type fakeExecutor struct {
	id    string
	fail  bool
	calls int
}

func (e *fakeExecutor) ID() string { return e.id }

func (e *fakeExecutor) Execute(_ context.Context, endpoint string, amount types.Amount) (*method.Proof, error) {
	e.calls++
	if e.fail {
		return nil, fmt.Errorf("channel to %s unavailable", endpoint)
	}
	return &method.Proof{
		MethodID:  e.id,
		Reference: fmt.Sprintf("preimage-%d", e.calls),
		Amount:    amount,
	}, nil
}

type testPeer struct {
	core  *authcore.Core
	exec  *fakeExecutor
	clock *types.FakeClock
}

func newTestPeer(t *testing.T, clock *types.FakeClock) *testPeer {
	t.Helper()

	signer, err := signing.GenerateSigner(nil)
	require.NoError(t, err)

	exec := &fakeExecutor{id: "lightning"}
	core := authcore.New(memory.New(), signer,
		authcore.WithClock(clock),
		authcore.WithExecutor(exec),
	)

	ctx := context.Background()
	require.NoError(t, core.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, core.Stop())
	})

	return &testPeer{core: core, exec: exec, clock: clock}
}

func enableAutoPay(t *testing.T, c *authcore.Core, maxAmount types.Amount) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, c.SetAutoPayEnabled(ctx, true))
	require.NoError(t, c.SaveRule(ctx, &autopay.Rule{
		Name:           "small lightning payments",
		Enabled:        true,
		MaxAmount:      &maxAmount,
		AllowedMethods: []string{"lightning"},
	}))
}

func TestAutoPayPipelineSettlesRequest(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	require.NoError(t, payer.core.SetSpendingLimit(payee.core.Self(), types.Sats(10000), limits.PeriodMonthly))
	enableAutoPay(t, payer.core, types.Sats(5000))

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(3000), "lightning", "coffee", nil)
	require.NoError(t, err)

	req, decision, err := payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeApproved, decision.Outcome)
	require.Equal(t, request.StatusPaid, req.Status)
	require.NotEmpty(t, req.ProofRef)
	require.Equal(t, 1, payer.exec.calls)

	// Budget was consumed and committed.
	remaining, err := payer.core.RemainingBudget(payee.core.Self())
	require.NoError(t, err)
	require.True(t, remaining.Equal(types.Sats(7000)))

	// A receipt binds the request to the execution proof.
	receipts, err := payer.core.ListReceipts(ctx, request.ReceiptListOpts{})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, req.ProofRef, receipts[0].ProofRef)

	att, err := payer.core.AttestReceipt(ctx, receipts[0].ID)
	require.NoError(t, err)
	require.Equal(t, string(signing.DomainAttestation), att.Domain)
}

func TestHandlePaymentRequestRejectsReplay(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	require.NoError(t, payer.core.SetSpendingLimit(payee.core.Self(), types.Sats(10000), limits.PeriodMonthly))
	enableAutoPay(t, payer.core, types.Sats(5000))

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(1000), "lightning", "", nil)
	require.NoError(t, err)

	_, _, err = payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)

	_, _, err = payer.core.HandlePaymentRequest(ctx, env)
	require.ErrorIs(t, err, signing.ErrReplayDetected)

	// The replay never reached the executor again.
	require.Equal(t, 1, payer.exec.calls)
}

func TestHandlePaymentRequestNeedsApprovalThenManual(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	require.NoError(t, payer.core.SetSpendingLimit(payee.core.Self(), types.Sats(10000), limits.PeriodMonthly))
	require.NoError(t, payer.core.SetAutoPayEnabled(ctx, true))
	// No rules configured: every request defers to manual approval.

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(2000), "lightning", "", nil)
	require.NoError(t, err)

	req, decision, err := payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeNeedsApproval, decision.Outcome)
	require.Equal(t, request.StatusPending, req.Status)
	require.Zero(t, payer.exec.calls)

	settled, err := payer.core.RespondToRequest(ctx, req.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, request.StatusPaid, settled.Status)
	require.Equal(t, 1, payer.exec.calls)
}

func TestHandlePaymentRequestDeniedWhenDisabled(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(2000), "lightning", "", nil)
	require.NoError(t, err)

	req, decision, err := payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeDenied, decision.Outcome)
	require.Equal(t, request.StatusDenied, req.Status)

	stored, err := payer.core.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, request.StatusDenied, stored.Status)
	require.NotEmpty(t, stored.Reason)
}

func TestExecutionFailureRollsBackReservation(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)
	payer.exec.fail = true

	require.NoError(t, payer.core.SetSpendingLimit(payee.core.Self(), types.Sats(10000), limits.PeriodMonthly))
	enableAutoPay(t, payer.core, types.Sats(5000))

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(3000), "lightning", "", nil)
	require.NoError(t, err)

	req, _, err := payer.core.HandlePaymentRequest(ctx, env)
	require.ErrorIs(t, err, method.ErrExecutionFailed)
	require.Equal(t, request.StatusApproved, req.Status)

	// The failed attempt consumed no budget.
	remaining, err := payer.core.RemainingBudget(payee.core.Self())
	require.NoError(t, err)
	require.True(t, remaining.Equal(types.Sats(10000)))
}

func TestLimitExhaustionDeniesSettlement(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	require.NoError(t, payer.core.SetSpendingLimit(payee.core.Self(), types.Sats(10000), limits.PeriodMonthly))
	enableAutoPay(t, payer.core, types.Sats(8000))

	_, env1, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(6000), "lightning", "", nil)
	require.NoError(t, err)
	_, _, err = payer.core.HandlePaymentRequest(ctx, env1)
	require.NoError(t, err)

	// 4000 remaining; 5000 no longer fits and the evaluator denies it.
	_, env2, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(5000), "lightning", "", nil)
	require.NoError(t, err)
	req, decision, err := payer.core.HandlePaymentRequest(ctx, env2)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeDenied, decision.Outcome)
	require.Equal(t, request.StatusDenied, req.Status)

	remaining, err := payer.core.RemainingBudget(payee.core.Self())
	require.NoError(t, err)
	require.True(t, remaining.Equal(types.Sats(4000)))
}

func TestGlobalBudgetIsConsumedAcrossPeers(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	alice := newTestPeer(t, clock)
	bob := newTestPeer(t, clock)

	require.NoError(t, payer.core.SetSpendingLimit(limits.GlobalScope, types.Sats(5000), limits.PeriodMonthly))
	enableAutoPay(t, payer.core, types.Sats(5000))

	_, env, err := alice.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(3000), "lightning", "", nil)
	require.NoError(t, err)
	_, decision, err := payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeApproved, decision.Outcome)

	remaining, err := payer.core.RemainingBudget(limits.GlobalScope)
	require.NoError(t, err)
	require.True(t, remaining.Equal(types.Sats(2000)))

	// A different peer draws from the same global pool.
	_, env, err = bob.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(3000), "lightning", "", nil)
	require.NoError(t, err)
	req, decision, err := payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeDenied, decision.Outcome)
	require.Equal(t, request.StatusDenied, req.Status)
}

func TestNoLimitsMeansUnlimited(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	enableAutoPay(t, payer.core, types.Sats(100000))

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(50000), "lightning", "", nil)
	require.NoError(t, err)

	req, decision, err := payer.core.HandlePaymentRequest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, autopay.OutcomeApproved, decision.Outcome)
	require.Equal(t, request.StatusPaid, req.Status)
}

func TestSubscriptionLifecycleAndDueSweep(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	provider := newTestPeer(t, clock)
	subscriber := "peer-subscriber"

	terms := subscription.Terms{
		Amount:    types.Sats(2500),
		Frequency: schedule.Daily(),
		MethodID:  "lightning",
	}

	sub, err := provider.core.CreateSubscription(ctx, subscriber, provider.core.Self(), terms)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusDraft, sub.Status)

	env, err := provider.core.SignSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, string(signing.DomainSubscription), env.Domain)

	require.NoError(t, provider.core.ActivateSubscription(ctx, sub.ID))
	// Activation is idempotent.
	require.NoError(t, provider.core.ActivateSubscription(ctx, sub.ID))

	// Never-paid subscriptions are due immediately.
	due, err := provider.core.DuePayments(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.True(t, due[0].Amount.Equal(types.Sats(2500)))
	require.Equal(t, subscriber, due[0].To)

	require.NoError(t, provider.core.MarkSubscriptionPaid(ctx, sub.ID))

	due, err = provider.core.DuePayments(ctx)
	require.NoError(t, err)
	require.Empty(t, due)

	// The next renewal comes due a day later.
	clock.Advance(25 * time.Hour)
	due, err = provider.core.DuePayments(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestCancelSubscriptionProducesSignedNotice(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	provider := newTestPeer(t, clock)

	sub, err := provider.core.CreateSubscription(ctx, "peer-subscriber", provider.core.Self(), subscription.Terms{
		Amount:    types.Sats(2500),
		Frequency: schedule.Monthly(15),
		MethodID:  "lightning",
	})
	require.NoError(t, err)

	_, err = provider.core.SignSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.NoError(t, provider.core.ActivateSubscription(ctx, sub.ID))

	env, err := provider.core.CancelSubscription(ctx, sub.ID, "no longer needed")
	require.NoError(t, err)
	require.Equal(t, string(signing.DomainCancellation), env.Domain)

	got, err := provider.core.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusCancelled, got.Status)

	// Terminal states admit no further transitions.
	require.Error(t, provider.core.ActivateSubscription(ctx, sub.ID))
}

func TestModifySubscriptionProratesAndResigns(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := types.NewFakeClock(start.Add(15 * 24 * time.Hour)) // halfway through March

	provider := newTestPeer(t, clock)

	sub, err := provider.core.CreateSubscription(ctx, "peer-subscriber", provider.core.Self(), subscription.Terms{
		Amount:    types.Sats(1000),
		Frequency: schedule.Monthly(1),
		MethodID:  "lightning",
	})
	require.NoError(t, err)

	_, err = provider.core.SignSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.NoError(t, provider.core.ActivateSubscription(ctx, sub.ID))

	newTerms := subscription.Terms{
		Amount:    types.Sats(2000),
		Frequency: schedule.Monthly(1),
		MethodID:  "lightning",
	}
	mod, err := provider.core.ModifySubscription(ctx, sub.ID, newTerms, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.True(t, mod.Credit.IsPositive())
	require.True(t, mod.Credit.LessThan(types.Sats(1000)))
	// Doubling the price doubles the prorated charge.
	doubled, err := mod.Credit.CheckedAdd(mod.Credit)
	require.NoError(t, err)
	require.True(t, doubled.Equal(mod.Charge))

	got, err := provider.core.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusSigned, got.Status)
	require.Len(t, got.History, 1)
	require.True(t, got.Terms.Amount.Equal(types.Sats(2000)))
}

func TestTamperedEnvelopeIsRejected(t *testing.T) {
	ctx := context.Background()
	clock := types.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payer := newTestPeer(t, clock)
	payee := newTestPeer(t, clock)

	_, env, err := payee.core.CreatePaymentRequest(ctx, payer.core.Self(), types.Sats(1000), "lightning", "", nil)
	require.NoError(t, err)

	env.Payload[0] ^= 0xff
	_, _, err = payer.core.HandlePaymentRequest(ctx, env)
	require.ErrorIs(t, err, signing.ErrInvalidSignature)
	require.True(t, authcore.Classify(err) == authcore.ClassInvalidMessage)
}
