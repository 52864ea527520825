// Package memory provides an in-process Store for tests and embedders
// that do not need persistence.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/peerpay/authcore"
	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/store"
	"github.com/peerpay/authcore/subscription"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription
	requests      map[string]*request.PaymentRequest
	receipts      map[string]*request.Receipt
	rules         map[string]*autopay.Rule
	ruleOrder     []string
	autoPay       bool
}

func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		requests:      make(map[string]*request.PaymentRequest),
		receipts:      make(map[string]*request.Receipt),
		rules:         make(map[string]*autopay.Rule),
	}
}

// Subscription Store implementation

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return authcore.ErrAlreadyExists
	}
	cp := *sub
	s.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, authcore.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		if opts.Peer != "" && sub.Subscriber != opts.Peer && sub.Provider != opts.Peer {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; !exists {
		return authcore.ErrSubscriptionNotFound
	}
	cp := *sub
	s.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subID.String()]; !exists {
		return authcore.ErrSubscriptionNotFound
	}
	delete(s.subscriptions, subID.String())
	return nil
}

// Payment request Store implementation

func (s *Store) CreateRequest(_ context.Context, r *request.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[r.ID.String()]; exists {
		return authcore.ErrAlreadyExists
	}
	cp := *r
	s.requests[r.ID.String()] = &cp
	return nil
}

func (s *Store) GetRequest(_ context.Context, reqID id.RequestID) (*request.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.requests[reqID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, authcore.ErrRequestNotFound
}

func (s *Store) ListRequests(_ context.Context, self string, opts request.ListOpts) ([]*request.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*request.PaymentRequest, 0)
	for _, r := range s.requests {
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		switch opts.Direction {
		case request.DirectionIncoming:
			if r.To != self {
				continue
			}
		case request.DirectionOutgoing:
			if r.From != self {
				continue
			}
		}
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateRequest(_ context.Context, r *request.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[r.ID.String()]; !exists {
		return authcore.ErrRequestNotFound
	}
	cp := *r
	s.requests[r.ID.String()] = &cp
	return nil
}

// Receipt Store implementation

func (s *Store) CreateReceipt(_ context.Context, rc *request.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receipts[rc.ID.String()]; exists {
		return authcore.ErrAlreadyExists
	}
	cp := *rc
	s.receipts[rc.ID.String()] = &cp
	return nil
}

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*request.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rc, ok := s.receipts[receiptID.String()]; ok {
		cp := *rc
		return &cp, nil
	}
	return nil, authcore.ErrNotFound
}

func (s *Store) ListReceipts(_ context.Context, opts request.ReceiptListOpts) ([]*request.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*request.Receipt, 0)
	for _, rc := range s.receipts {
		if opts.Peer != "" && rc.Payer != opts.Peer && rc.Payee != opts.Peer {
			continue
		}
		if !opts.Since.IsZero() && rc.PaidAt.Before(opts.Since) {
			continue
		}
		cp := *rc
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaidAt.Before(result[j].PaidAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

// Auto-pay configuration Store implementation

func (s *Store) SetAutoPayEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoPay = enabled
	return nil
}

func (s *Store) AutoPayEnabled(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoPay, nil
}

func (s *Store) SaveRule(_ context.Context, r *autopay.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.ID.String()
	if _, exists := s.rules[key]; !exists {
		s.ruleOrder = append(s.ruleOrder, key)
	}
	cp := *r
	s.rules[key] = &cp
	return nil
}

func (s *Store) GetRule(_ context.Context, ruleID id.RuleID) (*autopay.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.rules[ruleID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, authcore.ErrRuleNotFound
}

func (s *Store) ListRules(_ context.Context) ([]*autopay.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*autopay.Rule, 0, len(s.rules))
	for _, key := range s.ruleOrder {
		if r, ok := s.rules[key]; ok {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID id.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ruleID.String()
	if _, exists := s.rules[key]; !exists {
		return authcore.ErrRuleNotFound
	}
	delete(s.rules, key)
	for i, k := range s.ruleOrder {
		if k == key {
			s.ruleOrder = append(s.ruleOrder[:i], s.ruleOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Core Store implementation

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// paginate applies limit/offset to an already-sorted slice.
func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
