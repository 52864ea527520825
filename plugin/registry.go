package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/peerpay/authcore/autopay"
	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

// Registry manages all registered plugins and provides efficient
// dispatch. Hook implementations are discovered once at registration
// and cached per interface.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                      []OnInit
	onShutdown                  []OnShutdown
	onSubscriptionSigned        []OnSubscriptionSigned
	onSubscriptionActivated     []OnSubscriptionActivated
	onSubscriptionModified      []OnSubscriptionModified
	onSubscriptionCancelled     []OnSubscriptionCancelled
	onSubscriptionExpired       []OnSubscriptionExpired
	onPaymentEvaluated          []OnPaymentEvaluated
	onPaymentExecuted           []OnPaymentExecuted
	onPaymentFailed             []OnPaymentFailed
	onLimitExceeded             []OnLimitExceeded
	onStaleReservationsReleased []OnStaleReservationsReleased
	onVerificationFailed        []OnVerificationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubscriptionSigned); ok {
		r.onSubscriptionSigned = append(r.onSubscriptionSigned, v)
	}
	if v, ok := p.(OnSubscriptionActivated); ok {
		r.onSubscriptionActivated = append(r.onSubscriptionActivated, v)
	}
	if v, ok := p.(OnSubscriptionModified); ok {
		r.onSubscriptionModified = append(r.onSubscriptionModified, v)
	}
	if v, ok := p.(OnSubscriptionCancelled); ok {
		r.onSubscriptionCancelled = append(r.onSubscriptionCancelled, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnPaymentEvaluated); ok {
		r.onPaymentEvaluated = append(r.onPaymentEvaluated, v)
	}
	if v, ok := p.(OnPaymentExecuted); ok {
		r.onPaymentExecuted = append(r.onPaymentExecuted, v)
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
	}
	if v, ok := p.(OnLimitExceeded); ok {
		r.onLimitExceeded = append(r.onLimitExceeded, v)
	}
	if v, ok := p.(OnStaleReservationsReleased); ok {
		r.onStaleReservationsReleased = append(r.onStaleReservationsReleased, v)
	}
	if v, ok := p.(OnVerificationFailed); ok {
		r.onVerificationFailed = append(r.onVerificationFailed, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, core interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, core)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitSubscriptionSigned emits a subscription signed event.
func (r *Registry) EmitSubscriptionSigned(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionSigned
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSubscriptionSigned", func() error {
			return p.OnSubscriptionSigned(ctx, sub)
		})
	}
}

// EmitSubscriptionActivated emits a subscription activated event.
func (r *Registry) EmitSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionActivated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSubscriptionActivated", func() error {
			return p.OnSubscriptionActivated(ctx, sub)
		})
	}
}

// EmitSubscriptionModified emits a subscription modified event.
func (r *Registry) EmitSubscriptionModified(ctx context.Context, sub *subscription.Subscription, mod *subscription.Modification) {
	r.mu.RLock()
	plugins := r.onSubscriptionModified
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSubscriptionModified", func() error {
			return p.OnSubscriptionModified(ctx, sub, mod)
		})
	}
}

// EmitSubscriptionCancelled emits a subscription cancelled event.
func (r *Registry) EmitSubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSubscriptionCancelled", func() error {
			return p.OnSubscriptionCancelled(ctx, sub)
		})
	}
}

// EmitSubscriptionExpired emits a subscription expired event.
func (r *Registry) EmitSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSubscriptionExpired", func() error {
			return p.OnSubscriptionExpired(ctx, sub)
		})
	}
}

// EmitPaymentEvaluated emits a payment evaluated event.
func (r *Registry) EmitPaymentEvaluated(ctx context.Context, req *request.PaymentRequest, decision autopay.Decision) {
	r.mu.RLock()
	plugins := r.onPaymentEvaluated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPaymentEvaluated", func() error {
			return p.OnPaymentEvaluated(ctx, req, decision)
		})
	}
}

// EmitPaymentExecuted emits a payment executed event.
func (r *Registry) EmitPaymentExecuted(ctx context.Context, req *request.PaymentRequest, proofRef string) {
	r.mu.RLock()
	plugins := r.onPaymentExecuted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPaymentExecuted", func() error {
			return p.OnPaymentExecuted(ctx, req, proofRef)
		})
	}
}

// EmitPaymentFailed emits a payment failed event.
func (r *Registry) EmitPaymentFailed(ctx context.Context, req *request.PaymentRequest, err error) {
	r.mu.RLock()
	plugins := r.onPaymentFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPaymentFailed", func() error {
			return p.OnPaymentFailed(ctx, req, err)
		})
	}
}

// EmitLimitExceeded emits a limit exceeded event.
func (r *Registry) EmitLimitExceeded(ctx context.Context, peer string, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onLimitExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnLimitExceeded", func() error {
			return p.OnLimitExceeded(ctx, peer, amount)
		})
	}
}

// EmitStaleReservationsReleased emits a stale reservations released event.
func (r *Registry) EmitStaleReservationsReleased(ctx context.Context, released []limits.Reservation) {
	r.mu.RLock()
	plugins := r.onStaleReservationsReleased
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnStaleReservationsReleased", func() error {
			return p.OnStaleReservationsReleased(ctx, released)
		})
	}
}

// EmitVerificationFailed emits a verification failed event.
func (r *Registry) EmitVerificationFailed(ctx context.Context, peer string, verr error) {
	r.mu.RLock()
	plugins := r.onVerificationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnVerificationFailed", func() error {
			return p.OnVerificationFailed(ctx, peer, verr)
		})
	}
}

// call runs a hook with a timeout and logs failures. Plugins observe;
// they never block or abort the authorization pipeline.
func (r *Registry) call(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin hook failed",
			"plugin", pluginName,
			"hook", hook,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
