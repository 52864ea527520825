package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionSigned    = "subscription.signed"
	ActionSubscriptionActivated = "subscription.activated"
	ActionSubscriptionModified  = "subscription.modified"
	ActionSubscriptionCancelled = "subscription.cancelled"
	ActionSubscriptionExpired   = "subscription.expired"

	// Payment actions
	ActionPaymentEvaluated = "payment.evaluated"
	ActionPaymentExecuted  = "payment.executed"
	ActionPaymentFailed    = "payment.failed"

	// Ledger actions
	ActionLimitExceeded    = "limit.exceeded"
	ActionStaleReleased    = "reservation.stale_released"

	// Verification actions
	ActionVerificationFailed = "verification.failed"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceRequest      = "payment_request"
	ResourceLedger       = "spending_ledger"
	ResourceEnvelope     = "signed_envelope"
)

// Category constants for audit events.
const (
	CategorySubscription  = "subscription"
	CategoryPayment       = "payment"
	CategoryAuthorization = "authorization"
	CategorySecurity      = "security"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)
