// Package store defines the unified persistence interface for the
// payment authorization core. Spending limits and nonces are not here:
// they live behind their own file-locked stores (limits.Ledger,
// nonce.Store) because their cross-process locking discipline does not
// fit a shared database handle.
package store

import (
	"context"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/subscription"
)

// Store is the unified storage interface for all persisted entities.
// Instead of embedding sub-interfaces, all methods are declared
// explicitly to avoid naming conflicts.
type Store interface {
	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error

	// Payment request methods. The self identity resolves the
	// incoming/outgoing direction filter.
	CreateRequest(ctx context.Context, r *request.PaymentRequest) error
	GetRequest(ctx context.Context, reqID id.RequestID) (*request.PaymentRequest, error)
	ListRequests(ctx context.Context, self string, opts request.ListOpts) ([]*request.PaymentRequest, error)
	UpdateRequest(ctx context.Context, r *request.PaymentRequest) error

	// Receipt methods
	CreateReceipt(ctx context.Context, rc *request.Receipt) error
	GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*request.Receipt, error)
	ListReceipts(ctx context.Context, opts request.ReceiptListOpts) ([]*request.Receipt, error)

	// Auto-pay configuration methods
	SetAutoPayEnabled(ctx context.Context, enabled bool) error
	AutoPayEnabled(ctx context.Context) (bool, error)
	SaveRule(ctx context.Context, r *autopay.Rule) error
	GetRule(ctx context.Context, ruleID id.RuleID) (*autopay.Rule, error)
	ListRules(ctx context.Context) ([]*autopay.Rule, error)
	DeleteRule(ctx context.Context, ruleID id.RuleID) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
