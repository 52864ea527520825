// Package file provides a Store persisted as one JSON file per record,
// for wallets that share state between processes without a database.
// All operations serialize on a single lock file, so it trades
// throughput for the same cross-process safety the file-backed ledger
// and nonce stores give.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/peerpay/authcore"
	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/store"
	"github.com/peerpay/authcore/subscription"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

const (
	subscriptionsDir = "subscriptions"
	requestsDir      = "requests"
	receiptsDir      = "receipts"
	rulesDir         = "rules"
	settingsFile     = "settings.json"
	lockFile         = "store.lock"
)

// Store keeps every record as <dir>/<kind>/<id>.json. Record IDs are
// TypeIDs, so they are filesystem-safe as-is.
type Store struct {
	dir string
}

// New creates (or reuses) a store directory.
func New(dir string) (*Store, error) {
	for _, sub := range []string{subscriptionsDir, requestsDir, receiptsDir, rulesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("authcore/file: create dir: %w", err)
		}
	}
	return &Store{dir: dir}, nil
}

func (s *Store) lock() *flock.Flock {
	return flock.New(filepath.Join(s.dir, lockFile))
}

// withLock runs fn while holding the store lock exclusively.
func (s *Store) withLock(fn func() error) error {
	l := s.lock()
	if err := l.Lock(); err != nil {
		return fmt.Errorf("authcore/file: acquire lock: %w", err)
	}
	defer l.Unlock() //nolint:errcheck // lock release is best-effort on the error path
	return fn()
}

// withRLock runs fn while holding the store lock shared.
func (s *Store) withRLock(fn func() error) error {
	l := s.lock()
	if err := l.RLock(); err != nil {
		return fmt.Errorf("authcore/file: acquire lock: %w", err)
	}
	defer l.Unlock() //nolint:errcheck // lock release is best-effort on the error path
	return fn()
}

func (s *Store) recordPath(kind, key string) string {
	return filepath.Join(s.dir, kind, key+".json")
}

// writeJSON replaces a record via unique temp file and rename so a
// crash mid-write never truncates it.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("authcore/file: encode record: %w", err)
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("authcore/file: write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("authcore/file: replace record: %w", err)
	}
	return nil
}

// readJSON loads a record. Missing files surface as notFound.
func readJSON(path string, v any, notFound error) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("authcore/file: read record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("authcore/file: decode record: %w", err)
	}
	return nil
}

func (s *Store) create(kind, key string, v any) error {
	return s.withLock(func() error {
		path := s.recordPath(kind, key)
		if _, err := os.Stat(path); err == nil {
			return authcore.ErrAlreadyExists
		}
		return writeJSON(path, v)
	})
}

func (s *Store) update(kind, key string, v any, notFound error) error {
	return s.withLock(func() error {
		path := s.recordPath(kind, key)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return notFound
		}
		return writeJSON(path, v)
	})
}

func (s *Store) remove(kind, key string, notFound error) error {
	return s.withLock(func() error {
		err := os.Remove(s.recordPath(kind, key))
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}
		if err != nil {
			return fmt.Errorf("authcore/file: remove record: %w", err)
		}
		return nil
	})
}

// readAll decodes every record of one kind, appending into out via
// decode. Leftover temp files from crashed writers are skipped.
func (s *Store) readAll(kind string, decode func(data []byte) error) error {
	dir := filepath.Join(s.dir, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("authcore/file: read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("authcore/file: read record: %w", err)
		}
		if err := decode(data); err != nil {
			return fmt.Errorf("authcore/file: decode record: %w", err)
		}
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	return s.create(subscriptionsDir, sub.ID.String(), sub)
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	sub := new(subscription.Subscription)
	err := s.withRLock(func() error {
		return readJSON(s.recordPath(subscriptionsDir, subID.String()), sub, authcore.ErrSubscriptionNotFound)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	result := make([]*subscription.Subscription, 0)
	err := s.withRLock(func() error {
		return s.readAll(subscriptionsDir, func(data []byte) error {
			sub := new(subscription.Subscription)
			if err := json.Unmarshal(data, sub); err != nil {
				return err
			}
			if opts.Status != "" && sub.Status != opts.Status {
				return nil
			}
			if opts.Peer != "" && sub.Subscriber != opts.Peer && sub.Provider != opts.Peer {
				return nil
			}
			result = append(result, sub)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	return s.update(subscriptionsDir, sub.ID.String(), sub, authcore.ErrSubscriptionNotFound)
}

func (s *Store) DeleteSubscription(_ context.Context, subID id.SubscriptionID) error {
	return s.remove(subscriptionsDir, subID.String(), authcore.ErrSubscriptionNotFound)
}

// ==================== Payment request Store ====================

func (s *Store) CreateRequest(_ context.Context, r *request.PaymentRequest) error {
	return s.create(requestsDir, r.ID.String(), r)
}

func (s *Store) GetRequest(_ context.Context, reqID id.RequestID) (*request.PaymentRequest, error) {
	r := new(request.PaymentRequest)
	err := s.withRLock(func() error {
		return readJSON(s.recordPath(requestsDir, reqID.String()), r, authcore.ErrRequestNotFound)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListRequests(_ context.Context, self string, opts request.ListOpts) ([]*request.PaymentRequest, error) {
	result := make([]*request.PaymentRequest, 0)
	err := s.withRLock(func() error {
		return s.readAll(requestsDir, func(data []byte) error {
			r := new(request.PaymentRequest)
			if err := json.Unmarshal(data, r); err != nil {
				return err
			}
			if opts.Status != "" && r.Status != opts.Status {
				return nil
			}
			switch opts.Direction {
			case request.DirectionIncoming:
				if r.To != self {
					return nil
				}
			case request.DirectionOutgoing:
				if r.From != self {
					return nil
				}
			}
			result = append(result, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateRequest(_ context.Context, r *request.PaymentRequest) error {
	return s.update(requestsDir, r.ID.String(), r, authcore.ErrRequestNotFound)
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(_ context.Context, rc *request.Receipt) error {
	return s.create(receiptsDir, rc.ID.String(), rc)
}

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*request.Receipt, error) {
	rc := new(request.Receipt)
	err := s.withRLock(func() error {
		return readJSON(s.recordPath(receiptsDir, receiptID.String()), rc, authcore.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (s *Store) ListReceipts(_ context.Context, opts request.ReceiptListOpts) ([]*request.Receipt, error) {
	result := make([]*request.Receipt, 0)
	err := s.withRLock(func() error {
		return s.readAll(receiptsDir, func(data []byte) error {
			rc := new(request.Receipt)
			if err := json.Unmarshal(data, rc); err != nil {
				return err
			}
			if opts.Peer != "" && rc.Payer != opts.Peer && rc.Payee != opts.Peer {
				return nil
			}
			if !opts.Since.IsZero() && rc.PaidAt.Before(opts.Since) {
				return nil
			}
			result = append(result, rc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaidAt.Before(result[j].PaidAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

// ==================== Auto-pay configuration Store ====================

// settings is the on-disk layout of the store-wide flags.
type settings struct {
	AutoPayEnabled bool `json:"auto_pay_enabled"`
}

func (s *Store) SetAutoPayEnabled(_ context.Context, enabled bool) error {
	return s.withLock(func() error {
		return writeJSON(filepath.Join(s.dir, settingsFile), settings{AutoPayEnabled: enabled})
	})
}

func (s *Store) AutoPayEnabled(_ context.Context) (bool, error) {
	var cfg settings
	err := s.withRLock(func() error {
		err := readJSON(filepath.Join(s.dir, settingsFile), &cfg, nil)
		return err
	})
	if err != nil {
		return false, err
	}
	// Missing settings file: auto-pay stays off.
	return cfg.AutoPayEnabled, nil
}

func (s *Store) SaveRule(_ context.Context, r *autopay.Rule) error {
	return s.withLock(func() error {
		return writeJSON(s.recordPath(rulesDir, r.ID.String()), r)
	})
}

func (s *Store) GetRule(_ context.Context, ruleID id.RuleID) (*autopay.Rule, error) {
	r := new(autopay.Rule)
	err := s.withRLock(func() error {
		return readJSON(s.recordPath(rulesDir, ruleID.String()), r, authcore.ErrRuleNotFound)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListRules(_ context.Context) ([]*autopay.Rule, error) {
	result := make([]*autopay.Rule, 0)
	err := s.withRLock(func() error {
		return s.readAll(rulesDir, func(data []byte) error {
			r := new(autopay.Rule)
			if err := json.Unmarshal(data, r); err != nil {
				return err
			}
			result = append(result, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID id.RuleID) error {
	return s.remove(rulesDir, ruleID.String(), authcore.ErrRuleNotFound)
}

// ==================== Core Store ====================

// Migrate ensures the record directories exist. Records need no schema
// migration: each file is self-describing JSON.
func (s *Store) Migrate(_ context.Context) error {
	for _, sub := range []string{subscriptionsDir, requestsDir, receiptsDir, rulesDir} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o700); err != nil {
			return fmt.Errorf("authcore/file: create dir: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("authcore/file: %w", err)
	}
	return nil
}

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
