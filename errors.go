package authcore

import (
	"errors"
	"fmt"

	"github.com/peerpay/authcore/limits"
	"github.com/peerpay/authcore/method"
	"github.com/peerpay/authcore/request"
	"github.com/peerpay/authcore/signing"
	"github.com/peerpay/authcore/subscription"
	"github.com/peerpay/authcore/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("authcore: not found")
	ErrAlreadyExists = errors.New("authcore: already exists")
	ErrInvalidInput  = errors.New("authcore: invalid input")
	ErrClosed        = errors.New("authcore: core is closed")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("authcore: subscription not found")
	ErrRequestNotFound      = errors.New("authcore: payment request not found")
	ErrRuleNotFound         = errors.New("authcore: auto-pay rule not found")

	// Store errors
	ErrStoreNotReady     = errors.New("authcore: store not ready")
	ErrStoreClosed       = errors.New("authcore: store is closed")
	ErrTransactionFailed = errors.New("authcore: transaction failed")
	ErrMigrationFailed   = errors.New("authcore: migration failed")
)

// Re-exported domain errors, so embedders can match failures without
// importing every subpackage.
var (
	ErrInvalidAmount = types.ErrInvalidAmount
	ErrOverflow      = types.ErrOverflow
	ErrUnderflow     = types.ErrUnderflow

	ErrInvalidSignature = signing.ErrInvalidSignature
	ErrExpired          = signing.ErrExpired
	ErrReplayDetected   = signing.ErrReplayDetected

	ErrLimitExceeded = limits.ErrLimitExceeded
	ErrNoLimit       = limits.ErrNoLimit

	ErrInvalidTerms      = subscription.ErrInvalidTerms
	ErrInvalidTransition = subscription.ErrInvalidTransition

	ErrInvalidRequest = request.ErrInvalidRequest
	ErrUnknownMethod  = method.ErrUnknownMethod
)

// Class groups failures by what the caller should tell the user: the
// payment was against policy, the message itself is invalid or stale,
// or the system cannot decide right now.
type Class string

// Failure classes.
const (
	ClassPolicy         Class = "against_policy"
	ClassInvalidMessage Class = "invalid_message"
	ClassUnavailable    Class = "unavailable"
)

// Classify maps an error to its failure class. Unknown errors classify
// as unavailable: when in doubt about system state, fail closed rather
// than treating the failure as a clean policy denial or a bad message.
func Classify(err error) Class {
	switch {
	case errors.Is(err, limits.ErrLimitExceeded):
		return ClassPolicy
	case errors.Is(err, signing.ErrInvalidSignature),
		errors.Is(err, signing.ErrExpired),
		errors.Is(err, signing.ErrReplayDetected),
		errors.Is(err, signing.ErrDomainMismatch),
		errors.Is(err, signing.ErrMalformedEnvelope),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, request.ErrInvalidRequest),
		errors.Is(err, subscription.ErrInvalidTerms):
		return ClassInvalidMessage
	default:
		return ClassUnavailable
	}
}

// ValidationError reports a validation failure with field detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("authcore: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound reports whether the error is any of the not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, limits.ErrNoLimit)
}

// IsRetryable reports whether the failure is infrastructural and the
// operation may be retried with backoff. Policy and message failures
// are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, limits.ErrStorage) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
