package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/types"
)

type recordingPlugin struct {
	name     string
	executed []string
	failures []error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnPaymentExecuted(_ context.Context, _ *request.PaymentRequest, proofRef string) error {
	p.executed = append(p.executed, proofRef)
	return nil
}

func (p *recordingPlugin) OnPaymentFailed(_ context.Context, _ *request.PaymentRequest, err error) error {
	p.failures = append(p.failures, err)
	return nil
}

type failingPlugin struct{}

func (failingPlugin) Name() string { return "failing" }

func (failingPlugin) OnPaymentExecuted(_ context.Context, _ *request.PaymentRequest, _ string) error {
	return errors.New("hook exploded")
}

func testRequest() *request.PaymentRequest {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return request.New("alice", "bob", types.Sats(100), "lightning", now)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&recordingPlugin{name: "audit"}))
	require.Error(t, r.Register(&recordingPlugin{name: "audit"}))
	require.Equal(t, 1, r.Count())
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "audit"}
	require.NoError(t, r.Register(p))

	ctx := context.Background()
	r.EmitPaymentExecuted(ctx, testRequest(), "preimage-1")
	r.EmitPaymentFailed(ctx, testRequest(), errors.New("channel down"))
	// No implementer for this hook; dispatch is a no-op.
	r.EmitLimitExceeded(ctx, "alice", types.Sats(100))

	require.Equal(t, []string{"preimage-1"}, p.executed)
	require.Len(t, p.failures, 1)
}

func TestHookFailureDoesNotStopOthers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(failingPlugin{}))
	p := &recordingPlugin{name: "audit"}
	require.NoError(t, r.Register(p))

	r.EmitPaymentExecuted(context.Background(), testRequest(), "preimage-2")
	require.Equal(t, []string{"preimage-2"}, p.executed)
}

func TestGetAndList(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "audit"}
	require.NoError(t, r.Register(p))

	require.Equal(t, p, r.Get("audit"))
	require.Nil(t, r.Get("missing"))
	require.Len(t, r.List(), 1)
}
