// Package types provides common types used across the authorization core.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// Amount arithmetic errors. Re-exported from the root package.
var (
	ErrInvalidAmount = errors.New("types: invalid amount")
	ErrOverflow      = errors.New("types: amount overflow")
	ErrUnderflow     = errors.New("types: amount underflow")
	ErrUnitMismatch  = errors.New("types: amount unit mismatch")
)

// maxMagnitude caps amounts at 2^63-1 whole units so that checked
// arithmetic has a real ceiling and sats always fit in an int64.
var maxMagnitude = decimal.NewFromInt(9223372036854775807)

// Amount is a non-negative monetary value with a currency/unit tag.
// The value is an exact decimal — binary floating point is never used
// at any stage. Amounts are immutable; every operation returns a new value.
//
// Examples:
//   - Sats(1000)            = 1000 sat
//   - MustParse("49.00", "usd") = $49.00
type Amount struct {
	value decimal.Decimal
	unit  string
}

// Constructors

// Sats creates an Amount in satoshis, the protocol's native unit.
// Negative input is clamped to zero; use Parse for validated input.
func Sats(sats int64) Amount {
	if sats < 0 {
		sats = 0
	}
	return Amount{value: decimal.NewFromInt(sats), unit: "sat"}
}

// Zero returns a zero Amount in the given unit.
func Zero(unit string) Amount {
	return Amount{value: decimal.Zero, unit: strings.ToLower(unit)}
}

// Parse constructs an Amount from an external decimal string.
// It rejects malformed input, negative values, values with more fractional
// digits than the unit supports, and values beyond the arithmetic ceiling.
func Parse(s, unit string) (Amount, error) {
	unit = strings.ToLower(unit)
	if unit == "" {
		return Amount{}, fmt.Errorf("%w: empty unit", ErrInvalidAmount)
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, s)
	}
	if v.GreaterThan(maxMagnitude) {
		return Amount{}, fmt.Errorf("%w: %q exceeds maximum", ErrInvalidAmount, s)
	}

	decimals := UnitDecimals(unit)
	if !v.Truncate(int32(decimals)).Equal(v) {
		return Amount{}, fmt.Errorf("%w: %q has more than %d fractional digits for %s",
			ErrInvalidAmount, s, decimals, unit)
	}

	return Amount{value: v, unit: unit}, nil
}

// FromDecimal builds an Amount from an already-computed decimal value.
// The value is held to the same rules as parsed input: non-negative,
// within the unit's fractional precision and below the ceiling.
func FromDecimal(v decimal.Decimal, unit string) (Amount, error) {
	return Parse(v.String(), unit)
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s, unit string) Amount {
	a, err := Parse(s, unit)
	if err != nil {
		panic(fmt.Sprintf("types: must parse amount %q %s: %v", s, unit, err))
	}
	return a
}

// Arithmetic operations

// CheckedAdd adds two Amounts. Fails with ErrUnitMismatch on differing
// units and ErrOverflow if the result would exceed the ceiling.
func (a Amount) CheckedAdd(other Amount) (Amount, error) {
	if err := a.sameUnit(other); err != nil {
		return Amount{}, err
	}
	sum := a.value.Add(other.value)
	if sum.GreaterThan(maxMagnitude) {
		return Amount{}, ErrOverflow
	}
	return Amount{value: sum, unit: a.unit}, nil
}

// CheckedSub subtracts another Amount. Fails with ErrUnderflow exactly
// when a < other — an Amount can never go negative.
func (a Amount) CheckedSub(other Amount) (Amount, error) {
	if err := a.sameUnit(other); err != nil {
		return Amount{}, err
	}
	diff := a.value.Sub(other.value)
	if diff.IsNegative() {
		return Amount{}, ErrUnderflow
	}
	return Amount{value: diff, unit: a.unit}, nil
}

// SaturatingAdd adds two Amounts, clamping to the ceiling on overflow.
// Panics on unit mismatch (programming error).
func (a Amount) SaturatingAdd(other Amount) Amount {
	if a.unit != other.unit {
		panic(fmt.Sprintf("types: amount unit mismatch: %s != %s", a.unit, other.unit))
	}
	sum := a.value.Add(other.value)
	if sum.GreaterThan(maxMagnitude) {
		sum = maxMagnitude
	}
	return Amount{value: sum, unit: a.unit}
}

// MulDiv computes a * num / den, rounded half-even at the unit's
// precision. The denominator must be positive. Used for prorating a
// period amount by a fraction of the period.
func (a Amount) MulDiv(num, den decimal.Decimal) (Amount, error) {
	if !den.IsPositive() {
		return Amount{}, fmt.Errorf("%w: non-positive divisor", ErrInvalidAmount)
	}
	places := int32(UnitDecimals(a.unit))
	v := a.value.Mul(num).Div(den).RoundBank(places)
	return FromDecimal(v, a.unit)
}

// Comparison methods

// IsZero returns true if the value is zero.
func (a Amount) IsZero() bool { return a.value.IsZero() }

// IsPositive returns true if the value is greater than zero.
func (a Amount) IsPositive() bool { return a.value.IsPositive() }

// Equal returns true if both value and unit match.
func (a Amount) Equal(other Amount) bool {
	return a.unit == other.unit && a.value.Equal(other.value)
}

// LessThan returns true if a < other. Returns false on unit mismatch.
func (a Amount) LessThan(other Amount) bool {
	return a.unit == other.unit && a.value.LessThan(other.value)
}

// IsWithinLimit returns true if a <= limit. A unit mismatch is never
// within limit — fail closed.
func (a Amount) IsWithinLimit(limit Amount) bool {
	return a.unit == limit.unit && a.value.LessThanOrEqual(limit.value)
}

// Cmp compares two same-unit Amounts: -1 if a < other, 0 if equal, +1 if greater.
func (a Amount) Cmp(other Amount) (int, error) {
	if err := a.sameUnit(other); err != nil {
		return 0, err
	}
	return a.value.Cmp(other.value), nil
}

// Accessors

// Unit returns the currency/unit tag ("sat", "usd", ...).
func (a Amount) Unit() string { return a.unit }

// Decimal returns the underlying exact decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// Sats returns the value as whole satoshis, truncating any fraction.
func (a Amount) Sats() int64 { return a.value.IntPart() }

// String returns the decimal value followed by its unit, e.g. "1000 sat".
func (a Amount) String() string {
	if a.unit == "" {
		return a.value.String()
	}
	return a.value.String() + " " + a.unit
}

// Serialization
//
// Amounts serialize as strings to preserve exact precision, and as a
// two-element CBOR array for the deterministic signing encoder. Round
// tripping through either form is byte-stable.

type amountJSON struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{Value: a.value.String(), Unit: a.unit})
}

// UnmarshalJSON implements json.Unmarshaler. Input is validated the same
// way as Parse — a stored negative or over-precise amount is rejected,
// never propagated.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw amountJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw.Value, raw.Unit)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalCBOR implements cbor.Marshaler with a fixed [value, unit] array
// so that canonical signing bytes are independent of map ordering.
func (a Amount) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([2]string{a.value.String(), a.unit})
}

// UnmarshalCBOR implements cbor.Unmarshaler with Parse-level validation.
func (a *Amount) UnmarshalCBOR(data []byte) error {
	var raw [2]string
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw[0], raw[1])
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Helpers

func (a Amount) sameUnit(other Amount) error {
	if a.unit != other.unit {
		return fmt.Errorf("%w: %s != %s", ErrUnitMismatch, a.unit, other.unit)
	}
	return nil
}

// UnitDecimals returns the number of fractional digits a unit supports.
func UnitDecimals(unit string) int {
	switch strings.ToLower(unit) {
	case "sat", "msat", "jpy", "krw":
		return 0
	case "btc":
		return 8
	default:
		// Most fiat currencies carry 2 decimal places.
		return 2
	}
}

// Sum adds multiple same-unit Amounts with checked arithmetic.
func Sum(values ...Amount) (Amount, error) {
	if len(values) == 0 {
		return Zero("sat"), nil
	}
	result := values[0]
	for _, v := range values[1:] {
		var err error
		result, err = result.CheckedAdd(v)
		if err != nil {
			return Amount{}, err
		}
	}
	return result, nil
}
