// Package sqlite implements store.Store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	// Registers the sqlite migration executor with grove/migrate.
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/peerpay/authcore"
	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/request"
	authstore "github.com/peerpay/authcore/store"
	"github.com/peerpay/authcore/subscription"
)

// compile-time interface check
var _ authstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("authcore/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("authcore/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, authcore.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Peer != "" {
		q = q.Where("(subscriber = ? OR provider = ?)", opts.Peer, opts.Peer)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return authcore.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error {
	res, err := s.sdb.NewDelete((*subscriptionModel)(nil)).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return authcore.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Payment request Store ====================

func (s *Store) CreateRequest(ctx context.Context, r *request.PaymentRequest) error {
	m := toRequestModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRequest(ctx context.Context, reqID id.RequestID) (*request.PaymentRequest, error) {
	m := new(requestModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", reqID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, authcore.ErrRequestNotFound
		}
		return nil, err
	}
	return fromRequestModel(m)
}

func (s *Store) ListRequests(ctx context.Context, self string, opts request.ListOpts) ([]*request.PaymentRequest, error) {
	var models []requestModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	switch opts.Direction {
	case request.DirectionIncoming:
		q = q.Where("to_peer = ?", self)
	case request.DirectionOutgoing:
		q = q.Where("from_peer = ?", self)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*request.PaymentRequest, len(models))
	for i := range models {
		r, err := fromRequestModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *request.PaymentRequest) error {
	m := toRequestModel(r)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return authcore.ErrRequestNotFound
	}
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, rc *request.Receipt) error {
	m := toReceiptModel(rc)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*request.Receipt, error) {
	m := new(receiptModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", receiptID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, authcore.ErrNotFound
		}
		return nil, err
	}
	return fromReceiptModel(m)
}

func (s *Store) ListReceipts(ctx context.Context, opts request.ReceiptListOpts) ([]*request.Receipt, error) {
	var models []receiptModel
	q := s.sdb.NewSelect(&models)

	if opts.Peer != "" {
		q = q.Where("(payer = ? OR payee = ?)", opts.Peer, opts.Peer)
	}
	if !opts.Since.IsZero() {
		q = q.Where("paid_at >= ?", opts.Since)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("paid_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*request.Receipt, len(models))
	for i := range models {
		rc, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rc
	}
	return result, nil
}

// ==================== Auto-pay configuration Store ====================

func (s *Store) SetAutoPayEnabled(ctx context.Context, enabled bool) error {
	m := &settingModel{
		Key:       settingAutoPayEnabled,
		Value:     strconv.FormatBool(enabled),
		UpdatedAt: now(),
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.sdb.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) AutoPayEnabled(ctx context.Context) (bool, error) {
	m := new(settingModel)
	err := s.sdb.NewSelect(m).
		Where("key = ?", settingAutoPayEnabled).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			// never configured: auto-pay stays off
			return false, nil
		}
		return false, err
	}
	return strconv.ParseBool(m.Value)
}

func (s *Store) SaveRule(ctx context.Context, r *autopay.Rule) error {
	m := toRuleModel(r)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.sdb.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) GetRule(ctx context.Context, ruleID id.RuleID) (*autopay.Rule, error) {
	m := new(ruleModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", ruleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, authcore.ErrRuleNotFound
		}
		return nil, err
	}
	return fromRuleModel(m)
}

func (s *Store) ListRules(ctx context.Context) ([]*autopay.Rule, error) {
	var models []ruleModel
	q := s.sdb.NewSelect(&models).OrderExpr("priority ASC, created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*autopay.Rule, len(models))
	for i := range models {
		r, err := fromRuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.RuleID) error {
	res, err := s.sdb.NewDelete((*ruleModel)(nil)).
		Where("id = ?", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return authcore.ErrRuleNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
