package authcore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/id"
	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/method"
	"github.com/peerpay/authcore/nonce"
	"github.com/peerpay/authcore/plugin"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/signing"
	"github.com/peerpay/authcore/store"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

// Core is the payment authorization engine. It owns the signing engine,
// the spending-limit ledger and the auto-pay evaluator, and coordinates
// the verify-evaluate-reserve-execute-commit pipeline for incoming
// payment requests.
type Core struct {
	self      string
	store     store.Store
	ledger    limits.Ledger
	nonces    nonce.Store
	engine    *signing.Engine
	methods   *method.Registry
	evaluator *autopay.Evaluator
	plugins   *plugin.Registry
	clock     types.Clock
	logger    *slog.Logger

	// Background reaper
	stopChan chan struct{}
	stopOnce sync.Once
	stopErr  error
	wg       sync.WaitGroup

	// Configuration
	envelopeTTL        time.Duration
	reservationTimeout time.Duration
	reapInterval       time.Duration
}

// New creates a new Core instance. The signer identifies this peer; by
// default the peer identity is the hex-encoded Ed25519 public key.
func New(s store.Store, signer signing.Signer, opts ...Option) *Core {
	c := &Core{
		self:               hex.EncodeToString(signer.PublicKey()),
		store:              s,
		ledger:             limits.NewMemoryLedger(),
		nonces:             nonce.NewMemoryStore(),
		methods:            method.NewRegistry(),
		plugins:            plugin.NewRegistry(),
		clock:              types.SystemClock{},
		logger:             slog.Default(),
		stopChan:           make(chan struct{}),
		envelopeTTL:        5 * time.Minute,
		reservationTimeout: 5 * time.Minute,
		reapInterval:       time.Minute,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.engine = signing.NewEngine(signer, c.nonces,
		signing.WithClock(c.clock),
		signing.WithLogger(c.logger),
	)
	c.evaluator = autopay.NewEvaluator(c.ledger, autopay.WithLogger(c.logger))

	return c
}

// Option configures a Core instance.
type Option func(*Core)

// WithSelf overrides the peer identity used for direction filtering and
// outgoing messages.
func WithSelf(self string) Option {
	return func(c *Core) {
		c.self = self
	}
}

// WithLedger sets the spending-limit ledger. Use limits.NewFileLedger
// when more than one process shares the wallet state.
func WithLedger(l limits.Ledger) Option {
	return func(c *Core) {
		c.ledger = l
	}
}

// WithNonceStore sets the replay-protection nonce store.
func WithNonceStore(n nonce.Store) Option {
	return func(c *Core) {
		c.nonces = n
	}
}

// WithClock sets the time source.
func WithClock(clock types.Clock) Option {
	return func(c *Core) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		c.logger = logger
		c.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *Core) {
		_ = c.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithExecutor registers a payment method executor.
func WithExecutor(e method.Executor) Option {
	return func(c *Core) {
		c.methods.Register(e)
	}
}

// WithEnvelopeTTL sets the lifetime of outgoing signed envelopes.
func WithEnvelopeTTL(ttl time.Duration) Option {
	return func(c *Core) {
		c.envelopeTTL = ttl
	}
}

// WithReservationTimeout sets how old a pending reservation may grow
// before the reaper rolls it back.
func WithReservationTimeout(timeout time.Duration) Option {
	return func(c *Core) {
		c.reservationTimeout = timeout
	}
}

// WithReapInterval sets how often the background reaper runs.
func WithReapInterval(interval time.Duration) Option {
	return func(c *Core) {
		c.reapInterval = interval
	}
}

// Start migrates the store, initializes plugins and begins the
// background reaper.
func (c *Core) Start(ctx context.Context) error {
	if err := c.store.Migrate(ctx); err != nil {
		return err
	}

	c.plugins.EmitInit(ctx, c)

	c.wg.Add(1)
	go c.reapWorker(ctx)

	c.logger.Info("authcore started",
		"self", c.self,
		"envelope_ttl", c.envelopeTTL,
		"reservation_timeout", c.reservationTimeout,
	)

	return nil
}

// Stop shuts down the Core. Safe to call more than once; repeated
// calls return the first shutdown error.
func (c *Core) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()

		c.plugins.EmitShutdown(context.Background())
		c.stopErr = c.store.Close()
	})
	return c.stopErr
}

// Self returns this peer's identity.
func (c *Core) Self() string { return c.self }

// PublicKey returns this peer's Ed25519 public key.
func (c *Core) PublicKey() []byte { return c.engine.PublicKey() }

// Methods returns the payment method registry.
func (c *Core) Methods() *method.Registry { return c.methods }

// ──────────────────────────────────────────────────
// Subscription Management
// ──────────────────────────────────────────────────

// CreateSubscription creates a draft subscription between this peer and
// the counterparty.
func (c *Core) CreateSubscription(ctx context.Context, subscriber, provider string, terms subscription.Terms) (*subscription.Subscription, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	sub := subscription.New(subscriber, provider, terms, c.clock.Now())
	if err := c.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubscription retrieves a subscription by ID.
func (c *Core) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return c.store.GetSubscription(ctx, subID)
}

// ListSubscriptions lists subscriptions matching the filter.
func (c *Core) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return c.store.ListSubscriptions(ctx, opts)
}

// SignSubscription signs a draft subscription and returns the envelope
// to hand to the counterparty. The subscription moves to Signed.
func (c *Core) SignSubscription(ctx context.Context, subID id.SubscriptionID) (*signing.Envelope, error) {
	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if err := sub.Sign(c.clock.Now()); err != nil {
		return nil, err
	}

	env, err := c.engine.Sign(signing.DomainSubscription, SubscriptionOffer{
		SubscriptionID: sub.ID.String(),
		Subscriber:     sub.Subscriber,
		Provider:       sub.Provider,
		Amount:         sub.Terms.Amount,
		Frequency:      sub.Terms.Frequency.String(),
		MethodID:       sub.Terms.MethodID,
		Description:    sub.Terms.Description,
	}, c.envelopeTTL)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionSigned(ctx, sub)
	return env, nil
}

// ActivateSubscription activates a signed subscription. Activating an
// already active subscription is a no-op.
func (c *Core) ActivateSubscription(ctx context.Context, subID id.SubscriptionID) error {
	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	wasActive := sub.Status == subscription.StatusActive
	if err := sub.Activate(c.clock.Now()); err != nil {
		return err
	}
	if wasActive {
		return nil
	}

	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	c.plugins.EmitSubscriptionActivated(ctx, sub)
	return nil
}

// CancelSubscription cancels an active subscription and returns the
// signed cancellation notice for the counterparty.
func (c *Core) CancelSubscription(ctx context.Context, subID id.SubscriptionID, reason string) (*signing.Envelope, error) {
	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if err := sub.Cancel(c.clock.Now()); err != nil {
		return nil, err
	}

	env, err := c.engine.Sign(signing.DomainCancellation, CancellationNotice{
		SubscriptionID: sub.ID.String(),
		CancelledBy:    c.self,
		Reason:         reason,
	}, c.envelopeTTL)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionCancelled(ctx, sub)
	return env, nil
}

// ExpireSubscription expires an active subscription.
func (c *Core) ExpireSubscription(ctx context.Context, subID id.SubscriptionID) error {
	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	if err := sub.Expire(c.clock.Now()); err != nil {
		return err
	}
	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	c.plugins.EmitSubscriptionExpired(ctx, sub)
	return nil
}

// ModifySubscription replaces the terms of an active subscription. The
// proration credit and charge for the current period are recorded in
// the modification history, and the new terms require a fresh signature
// before the subscription is active again.
func (c *Core) ModifySubscription(ctx context.Context, subID id.SubscriptionID, newTerms subscription.Terms, periodStart, periodEnd time.Time) (*subscription.Modification, error) {
	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	mod, err := sub.Modify(newTerms, periodStart, periodEnd, now, now)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionModified(ctx, sub, mod)
	return mod, nil
}

// MarkSubscriptionPaid records a settled renewal so the next due date
// advances.
func (c *Core) MarkSubscriptionPaid(ctx context.Context, subID id.SubscriptionID) error {
	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	sub.MarkPaid(c.clock.Now())
	return c.store.UpdateSubscription(ctx, sub)
}

// DuePayments sweeps active subscriptions where this peer is the
// provider and creates a pending payment request for every renewal that
// is due. The returned requests are ready to sign and send.
func (c *Core) DuePayments(ctx context.Context) ([]*request.PaymentRequest, error) {
	subs, err := c.store.ListSubscriptions(ctx, subscription.ListOpts{
		Status: subscription.StatusActive,
		Peer:   c.self,
	})
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var due []*request.PaymentRequest
	for _, sub := range subs {
		if sub.Provider != c.self {
			continue
		}
		isDue, err := sub.IsDue(now)
		if err != nil || !isDue {
			continue
		}

		req := request.New(c.self, sub.Subscriber, sub.Terms.Amount, sub.Terms.MethodID, now)
		req.Description = fmt.Sprintf("renewal of %s", sub.ID)
		if err := c.store.CreateRequest(ctx, req); err != nil {
			return due, err
		}
		due = append(due, req)
	}
	return due, nil
}

// ──────────────────────────────────────────────────
// Payment Requests
// ──────────────────────────────────────────────────

// CreatePaymentRequest creates an outgoing payment request asking the
// counterparty to pay this peer, and returns the request together with
// its signed envelope.
func (c *Core) CreatePaymentRequest(ctx context.Context, to string, amount types.Amount, methodID, description string, expiresAt *time.Time) (*request.PaymentRequest, *signing.Envelope, error) {
	req := request.New(c.self, to, amount, methodID, c.clock.Now())
	req.Description = description
	req.ExpiresAt = expiresAt
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	var expiry int64
	if expiresAt != nil {
		expiry = expiresAt.Unix()
	}
	env, err := c.engine.Sign(signing.DomainPaymentRequest, PaymentRequestMessage{
		RequestID:   req.ID.String(),
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		MethodID:    req.MethodID,
		Description: req.Description,
		ExpiresAt:   expiry,
	}, c.envelopeTTL)
	if err != nil {
		return nil, nil, err
	}

	if err := c.store.CreateRequest(ctx, req); err != nil {
		return nil, nil, err
	}
	return req, env, nil
}

// HandlePaymentRequest verifies an incoming signed payment request,
// evaluates the auto-pay policy and, if approved, settles it. The
// stored request reflects the outcome: paid on success, denied on
// policy rejection, pending when manual approval is required.
//
// Verification failures (bad signature, replay, expiry, malformed
// envelope) are terminal: the request is never stored. Infrastructure
// failures during settlement leave the request approved and are safe to
// retry.
func (c *Core) HandlePaymentRequest(ctx context.Context, env *signing.Envelope) (*request.PaymentRequest, autopay.Decision, error) {
	var msg PaymentRequestMessage
	if err := c.engine.Verify(env, signing.DomainPaymentRequest, &msg); err != nil {
		c.plugins.EmitVerificationFailed(ctx, hex.EncodeToString(env.PublicKey), err)
		return nil, autopay.Denied("verification failed"), err
	}

	req, err := c.requestFromMessage(msg)
	if err != nil {
		return nil, autopay.Denied("malformed request"), err
	}
	if err := req.Validate(); err != nil {
		return nil, autopay.Denied("invalid request"), err
	}

	now := c.clock.Now()
	if req.IsExpired(now) {
		return nil, autopay.Denied("request expired"), request.ErrInvalidRequest
	}

	if err := c.store.CreateRequest(ctx, req); err != nil {
		return nil, autopay.Denied("storage unavailable"), err
	}

	cfg, err := c.autoPayConfig(ctx)
	if err != nil {
		return req, autopay.Denied("storage unavailable"), err
	}

	decision, err := c.evaluator.Evaluate(cfg, req.From, req.Amount, req.MethodID, now)
	c.plugins.EmitPaymentEvaluated(ctx, req, decision)
	if err != nil {
		return req, decision, err
	}

	switch decision.Outcome {
	case autopay.OutcomeDenied:
		if derr := req.Deny(decision.Reason, now); derr == nil {
			_ = c.store.UpdateRequest(ctx, req) //nolint:errcheck // denial outcome already decided
		}
		return req, decision, nil

	case autopay.OutcomeNeedsApproval:
		// Stays pending until RespondToRequest.
		return req, decision, nil
	}

	if err := req.Approve(now); err != nil {
		return req, decision, err
	}
	if err := c.store.UpdateRequest(ctx, req); err != nil {
		return req, decision, err
	}

	if err := c.settle(ctx, req); err != nil {
		return req, decision, err
	}
	return req, decision, nil
}

// RespondToRequest records a manual decision on a pending payment
// request. Approving a request addressed to this peer settles it
// immediately.
func (c *Core) RespondToRequest(ctx context.Context, reqID id.RequestID, approve bool, reason string) (*request.PaymentRequest, error) {
	req, err := c.store.GetRequest(ctx, reqID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	if !approve {
		if err := req.Deny(reason, now); err != nil {
			return nil, err
		}
		if err := c.store.UpdateRequest(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	if err := req.Approve(now); err != nil {
		return nil, err
	}
	if err := c.store.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}

	if req.To == c.self {
		if err := c.settle(ctx, req); err != nil {
			return req, err
		}
	}
	return req, nil
}

// GetRequest retrieves a payment request by ID.
func (c *Core) GetRequest(ctx context.Context, reqID id.RequestID) (*request.PaymentRequest, error) {
	return c.store.GetRequest(ctx, reqID)
}

// ListRequests lists payment requests, resolving the direction filter
// against this peer's identity.
func (c *Core) ListRequests(ctx context.Context, opts request.ListOpts) ([]*request.PaymentRequest, error) {
	return c.store.ListRequests(ctx, c.self, opts)
}

// GetReceipt retrieves a receipt by ID.
func (c *Core) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*request.Receipt, error) {
	return c.store.GetReceipt(ctx, receiptID)
}

// ListReceipts lists receipts matching the filter.
func (c *Core) ListReceipts(ctx context.Context, opts request.ReceiptListOpts) ([]*request.Receipt, error) {
	return c.store.ListReceipts(ctx, opts)
}

// AttestReceipt signs an attestation binding a stored receipt to its
// execution proof, for the payee to archive.
func (c *Core) AttestReceipt(ctx context.Context, receiptID id.ReceiptID) (*signing.Envelope, error) {
	rc, err := c.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	return c.engine.Sign(signing.DomainAttestation, PaymentAttestation{
		ReceiptID: rc.ID.String(),
		RequestID: rc.RequestID.String(),
		Payer:     rc.Payer,
		Payee:     rc.Payee,
		Amount:    rc.Amount,
		MethodID:  rc.MethodID,
		ProofRef:  rc.ProofRef,
		PaidAt:    rc.PaidAt.Unix(),
	}, c.envelopeTTL)
}

// settle reserves budget for an approved request, executes the payment
// and commits. Both the per-peer and the global budget are reserved; a
// peer without a configured limit reserves nothing on that scope. The
// reservations are rolled back when execution fails, so a failed
// attempt never consumes budget.
func (c *Core) settle(ctx context.Context, req *request.PaymentRequest) error {
	now := c.clock.Now()

	tokens, err := c.reserveBudget(req.From, req.Amount, now)
	if err != nil {
		if errors.Is(err, limits.ErrLimitExceeded) {
			c.plugins.EmitLimitExceeded(ctx, req.From, req.Amount)
		}
		c.plugins.EmitPaymentFailed(ctx, req, err)
		return err
	}

	exec, err := c.methods.Get(req.MethodID)
	if err != nil {
		c.rollback(tokens)
		c.plugins.EmitPaymentFailed(ctx, req, err)
		return err
	}

	proof, err := exec.Execute(ctx, req.From, req.Amount)
	if err != nil {
		c.rollback(tokens)
		c.plugins.EmitPaymentFailed(ctx, req, err)
		return fmt.Errorf("%w: %w", method.ErrExecutionFailed, err)
	}

	for _, token := range tokens {
		if err := c.ledger.Commit(token); err != nil {
			// Spend already counted; the payment went through, so
			// report the commit failure without reversing.
			c.logger.Error("reservation commit failed",
				"token", token,
				"error", err,
			)
		}
	}

	paidAt := c.clock.Now()
	if err := req.MarkPaid(proof.Reference, paidAt); err != nil {
		return err
	}
	if err := c.store.UpdateRequest(ctx, req); err != nil {
		return err
	}
	if err := c.store.CreateReceipt(ctx, request.NewReceipt(req, proof.Reference, paidAt)); err != nil {
		return err
	}

	c.plugins.EmitPaymentExecuted(ctx, req, proof.Reference)
	return nil
}

// reserveBudget reserves amount against the peer and global scopes.
// A scope with no configured limit is unlimited and reserves nothing.
// On failure every reservation already taken is reversed.
func (c *Core) reserveBudget(peer string, amount types.Amount, now time.Time) ([]id.ReservationID, error) {
	var tokens []id.ReservationID
	for _, scope := range []string{limits.GlobalScope, peer} {
		rsv, err := c.ledger.Reserve(scope, amount, now)
		if errors.Is(err, limits.ErrNoLimit) {
			continue
		}
		if err != nil {
			c.rollback(tokens)
			return nil, err
		}
		tokens = append(tokens, rsv.Token)
	}
	return tokens, nil
}

func (c *Core) rollback(tokens []id.ReservationID) {
	for _, token := range tokens {
		if err := c.ledger.Rollback(token); err != nil {
			c.logger.Error("reservation rollback failed",
				"token", token,
				"error", err,
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Auto-Pay Configuration
// ──────────────────────────────────────────────────

// SetAutoPayEnabled flips the global auto-pay switch.
func (c *Core) SetAutoPayEnabled(ctx context.Context, enabled bool) error {
	return c.store.SetAutoPayEnabled(ctx, enabled)
}

// AutoPayEnabled reports the global auto-pay switch.
func (c *Core) AutoPayEnabled(ctx context.Context) (bool, error) {
	return c.store.AutoPayEnabled(ctx)
}

// SaveRule creates or updates an auto-pay rule.
func (c *Core) SaveRule(ctx context.Context, r *autopay.Rule) error {
	if r.ID == (id.RuleID{}) {
		r.ID = id.NewRuleID()
		r.Entity = types.NewEntityAt(c.clock.Now())
	}
	return c.store.SaveRule(ctx, r)
}

// GetRule retrieves an auto-pay rule by ID.
func (c *Core) GetRule(ctx context.Context, ruleID id.RuleID) (*autopay.Rule, error) {
	return c.store.GetRule(ctx, ruleID)
}

// ListRules lists all auto-pay rules in priority order.
func (c *Core) ListRules(ctx context.Context) ([]*autopay.Rule, error) {
	return c.store.ListRules(ctx)
}

// DeleteRule deletes an auto-pay rule.
func (c *Core) DeleteRule(ctx context.Context, ruleID id.RuleID) error {
	return c.store.DeleteRule(ctx, ruleID)
}

func (c *Core) autoPayConfig(ctx context.Context) (autopay.Config, error) {
	enabled, err := c.store.AutoPayEnabled(ctx)
	if err != nil {
		return autopay.Config{}, err
	}
	rules, err := c.store.ListRules(ctx)
	if err != nil {
		return autopay.Config{}, err
	}

	cfg := autopay.Config{Enabled: enabled, Rules: make([]autopay.Rule, len(rules))}
	for i, r := range rules {
		cfg.Rules[i] = *r
	}
	return cfg, nil
}

// ──────────────────────────────────────────────────
// Spending Limits
// ──────────────────────────────────────────────────

// SetSpendingLimit sets the per-peer spending limit. Use
// limits.GlobalScope as the peer to cap aggregate spending.
func (c *Core) SetSpendingLimit(peer string, limit types.Amount, period limits.Period) error {
	return c.ledger.SetLimit(peer, limit, period, c.clock.Now())
}

// SpendingLimit returns the current limit state for a peer.
func (c *Core) SpendingLimit(peer string) (limits.PeerSpendingLimit, error) {
	return c.ledger.GetLimit(peer, c.clock.Now())
}

// RemoveSpendingLimit deletes a peer's spending limit.
func (c *Core) RemoveSpendingLimit(peer string) error {
	return c.ledger.RemoveLimit(peer)
}

// RemainingBudget returns how much the peer may still spend this
// period.
func (c *Core) RemainingBudget(peer string) (types.Amount, error) {
	return c.ledger.Remaining(peer, c.clock.Now())
}

// ──────────────────────────────────────────────────
// Background Reaper
// ──────────────────────────────────────────────────

func (c *Core) reapWorker(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reapOnce(ctx)
		}
	}
}

// reapOnce drops expired nonces, rolls back stale reservations and
// expires overdue pending requests.
func (c *Core) reapOnce(ctx context.Context) {
	now := c.clock.Now()

	if removed, err := c.nonces.CleanupExpired(now); err != nil {
		c.logger.Warn("nonce cleanup failed", "error", err)
	} else if removed > 0 {
		c.logger.Debug("expired nonces removed", "count", removed)
	}

	released, err := c.ledger.ReleaseStale(now, c.reservationTimeout)
	if err != nil {
		c.logger.Warn("stale reservation sweep failed", "error", err)
	} else if len(released) > 0 {
		c.logger.Info("stale reservations rolled back", "count", len(released))
		c.plugins.EmitStaleReservationsReleased(ctx, released)
	}

	pending, err := c.store.ListRequests(ctx, c.self, request.ListOpts{Status: request.StatusPending})
	if err != nil {
		c.logger.Warn("pending request sweep failed", "error", err)
		return
	}
	for _, req := range pending {
		if !req.IsExpired(now) {
			continue
		}
		if err := req.Expire(now); err != nil {
			continue
		}
		if err := c.store.UpdateRequest(ctx, req); err != nil {
			c.logger.Warn("request expiry update failed", "request_id", req.ID, "error", err)
		}
	}
}

func (c *Core) requestFromMessage(msg PaymentRequestMessage) (*request.PaymentRequest, error) {
	reqID, err := id.ParseRequestID(msg.RequestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", request.ErrInvalidRequest, err)
	}

	req := request.New(msg.From, msg.To, msg.Amount, msg.MethodID, c.clock.Now())
	req.ID = reqID
	req.Description = msg.Description
	if msg.ExpiresAt != 0 {
		t := time.Unix(msg.ExpiresAt, 0).UTC()
		req.ExpiresAt = &t
	}
	return req, nil
}
