// Package id defines TypeID-based identity types for all core entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all core entity types.
const (
	PrefixSubscription Prefix = "sub"  // Subscription agreement
	PrefixRequest      Prefix = "preq" // One-shot payment request
	PrefixRule         Prefix = "rule" // Auto-pay rule
	PrefixReservation  Prefix = "rsv"  // Spending-limit reservation
	PrefixModification Prefix = "mod"  // Subscription modification
	PrefixReceipt      Prefix = "rcpt" // Payment receipt
)

// ID is the primary identifier type for all core entities. It wraps a
// TypeID providing a prefix-qualified, globally unique, sortable,
// URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "sub_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases and typed constructors
// ──────────────────────────────────────────────────

// SubscriptionID is a type-safe identifier for subscriptions (prefix: "sub").
type SubscriptionID = ID

// RequestID is a type-safe identifier for payment requests (prefix: "preq").
type RequestID = ID

// RuleID is a type-safe identifier for auto-pay rules (prefix: "rule").
type RuleID = ID

// ReservationID is a type-safe identifier for reservations (prefix: "rsv").
type ReservationID = ID

// ModificationID is a type-safe identifier for modifications (prefix: "mod").
type ModificationID = ID

// ReceiptID is a type-safe identifier for receipts (prefix: "rcpt").
type ReceiptID = ID

// NewSubscriptionID generates a new subscription ID.
func NewSubscriptionID() ID { return New(PrefixSubscription) }

// NewRequestID generates a new payment request ID.
func NewRequestID() ID { return New(PrefixRequest) }

// NewRuleID generates a new auto-pay rule ID.
func NewRuleID() ID { return New(PrefixRule) }

// NewReservationID generates a new reservation ID.
func NewReservationID() ID { return New(PrefixReservation) }

// NewModificationID generates a new modification ID.
func NewModificationID() ID { return New(PrefixModification) }

// NewReceiptID generates a new receipt ID.
func NewReceiptID() ID { return New(PrefixReceipt) }

// ParseSubscriptionID parses a subscription ID.
func ParseSubscriptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubscription) }

// ParseRequestID parses a payment request ID.
func ParseRequestID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRequest) }

// ParseRuleID parses an auto-pay rule ID.
func ParseRuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRule) }

// ParseReservationID parses a reservation ID.
func ParseReservationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixReservation) }

// ParseModificationID parses a modification ID.
func ParseModificationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixModification) }

// ParseReceiptID parses a receipt ID.
func ParseReceiptID(s string) (ID, error) { return ParseWithPrefix(s, PrefixReceipt) }

// ──────────────────────────────────────────────────
// Methods
// ──────────────────────────────────────────────────

// String returns the canonical "prefix_suffix" form, or "" for the nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity-type prefix of the ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether the ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil
	}
	return i.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
