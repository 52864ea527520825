package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/signing"
	"github.com/peerpay/authcore/subscription"
)

// stubStore satisfies store.Store without persisting anything. The
// in-memory store cannot be used here: it imports this package.
type stubStore struct{}

func (stubStore) CreateSubscription(context.Context, *subscription.Subscription) error { return nil }
func (stubStore) GetSubscription(context.Context, id.SubscriptionID) (*subscription.Subscription, error) {
	return nil, ErrSubscriptionNotFound
}
func (stubStore) ListSubscriptions(context.Context, subscription.ListOpts) ([]*subscription.Subscription, error) {
	return nil, nil
}
func (stubStore) UpdateSubscription(context.Context, *subscription.Subscription) error { return nil }
func (stubStore) DeleteSubscription(context.Context, id.SubscriptionID) error          { return nil }

func (stubStore) CreateRequest(context.Context, *request.PaymentRequest) error { return nil }
func (stubStore) GetRequest(context.Context, id.RequestID) (*request.PaymentRequest, error) {
	return nil, ErrRequestNotFound
}
func (stubStore) ListRequests(context.Context, string, request.ListOpts) ([]*request.PaymentRequest, error) {
	return nil, nil
}
func (stubStore) UpdateRequest(context.Context, *request.PaymentRequest) error { return nil }

func (stubStore) CreateReceipt(context.Context, *request.Receipt) error { return nil }
func (stubStore) GetReceipt(context.Context, id.ReceiptID) (*request.Receipt, error) {
	return nil, ErrNotFound
}
func (stubStore) ListReceipts(context.Context, request.ReceiptListOpts) ([]*request.Receipt, error) {
	return nil, nil
}

func (stubStore) SetAutoPayEnabled(context.Context, bool) error { return nil }
func (stubStore) AutoPayEnabled(context.Context) (bool, error)  { return false, nil }
func (stubStore) SaveRule(context.Context, *autopay.Rule) error { return nil }
func (stubStore) GetRule(context.Context, id.RuleID) (*autopay.Rule, error) {
	return nil, ErrRuleNotFound
}
func (stubStore) ListRules(context.Context) ([]*autopay.Rule, error) { return nil, nil }
func (stubStore) DeleteRule(context.Context, id.RuleID) error        { return nil }

func (stubStore) Migrate(context.Context) error { return nil }
func (stubStore) Ping(context.Context) error    { return nil }
func (stubStore) Close() error                  { return nil }

func newLifecycleCore(t *testing.T) *Core {
	t.Helper()
	signer, err := signing.GenerateSigner(nil)
	require.NoError(t, err)
	return New(stubStore{}, signer)
}

func TestReapWorkerExitsOnContextCancel(t *testing.T) {
	c := newLifecycleCore(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper still running after context cancel")
	}

	require.NoError(t, c.Stop())
}

func TestStopIsIdempotent(t *testing.T) {
	c := newLifecycleCore(t)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
}
