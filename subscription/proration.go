package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/peerpay/authcore/types"
)

// ErrInvalidProration rejects proration inputs that describe no valid
// billing period.
var ErrInvalidProration = errors.New("subscription: invalid proration period")

// Prorate splits the current billing period between old and new terms.
// The credit is the unused portion of the current amount, the charge is
// the same portion of the new amount:
//
//	portion = (period_end - change_date) / (period_end - period_start)
//
// All arithmetic is decimal with round-half-even at the unit's
// precision. Floating point is never involved.
func Prorate(currentAmount, newAmount types.Amount, periodStart, periodEnd, changeDate time.Time) (credit, charge types.Amount, err error) {
	if currentAmount.Unit() != newAmount.Unit() {
		return credit, charge, fmt.Errorf("%w: amounts in %s and %s",
			ErrInvalidProration, currentAmount.Unit(), newAmount.Unit())
	}
	if !periodEnd.After(periodStart) {
		return credit, charge, fmt.Errorf("%w: period end not after start", ErrInvalidProration)
	}
	if changeDate.Before(periodStart) || changeDate.After(periodEnd) {
		return credit, charge, fmt.Errorf("%w: change date outside period", ErrInvalidProration)
	}

	remaining := decimal.NewFromInt(int64(periodEnd.Sub(changeDate) / time.Second))
	total := decimal.NewFromInt(int64(periodEnd.Sub(periodStart) / time.Second))

	credit, err = prorateOne(currentAmount, remaining, total)
	if err != nil {
		return credit, charge, err
	}
	charge, err = prorateOne(newAmount, remaining, total)
	return credit, charge, err
}

func prorateOne(amount types.Amount, remaining, total decimal.Decimal) (types.Amount, error) {
	out, err := amount.MulDiv(remaining, total)
	if err != nil {
		return types.Amount{}, fmt.Errorf("subscription: prorate: %w", err)
	}
	return out, nil
}
