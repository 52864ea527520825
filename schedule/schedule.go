// Package schedule computes when recurring payments fall due.
//
// Everything here is pure: a frequency plus a last-paid instant yields
// the next due instant, with no clocks or stores involved. Monthly and
// yearly frequencies clamp to the last valid day of shorter months, so
// a payment anchored on the 31st falls due on the 30th of a 30-day
// month rather than sliding into the month after.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFrequency rejects malformed frequency definitions.
var ErrInvalidFrequency = errors.New("schedule: invalid frequency")

// FrequencyKind discriminates the frequency variants.
type FrequencyKind string

// Supported frequency kinds.
const (
	KindDaily   FrequencyKind = "daily"
	KindWeekly  FrequencyKind = "weekly"
	KindMonthly FrequencyKind = "monthly"
	KindYearly  FrequencyKind = "yearly"
	KindCustom  FrequencyKind = "custom"
)

// Frequency is a tagged recurrence definition. Only the fields of the
// active kind are meaningful.
type Frequency struct {
	Kind FrequencyKind `json:"kind"`

	// DayOfMonth anchors a monthly frequency (1-31).
	DayOfMonth int `json:"day_of_month,omitempty"`

	// Month and Day anchor a yearly frequency.
	Month time.Month `json:"month,omitempty"`
	Day   int        `json:"day,omitempty"`

	// IntervalSeconds is the period of a custom frequency.
	IntervalSeconds int64 `json:"interval_seconds,omitempty"`
}

// Daily recurs every calendar day.
func Daily() Frequency { return Frequency{Kind: KindDaily} }

// Weekly recurs every seven days.
func Weekly() Frequency { return Frequency{Kind: KindWeekly} }

// Monthly recurs on the given day of each month, clamped to shorter
// months.
func Monthly(dayOfMonth int) Frequency {
	return Frequency{Kind: KindMonthly, DayOfMonth: dayOfMonth}
}

// Yearly recurs once a year on the given month and day.
func Yearly(month time.Month, day int) Frequency {
	return Frequency{Kind: KindYearly, Month: month, Day: day}
}

// Every recurs at a fixed interval. Sub-second precision is dropped.
func Every(interval time.Duration) Frequency {
	return Frequency{Kind: KindCustom, IntervalSeconds: int64(interval / time.Second)}
}

// Validate checks the frequency definition.
func (f Frequency) Validate() error {
	switch f.Kind {
	case KindDaily, KindWeekly:
		return nil
	case KindMonthly:
		if f.DayOfMonth < 1 || f.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d", ErrInvalidFrequency, f.DayOfMonth)
		}
		return nil
	case KindYearly:
		if f.Month < time.January || f.Month > time.December {
			return fmt.Errorf("%w: month %d", ErrInvalidFrequency, f.Month)
		}
		if f.Day < 1 || f.Day > 31 {
			return fmt.Errorf("%w: day %d", ErrInvalidFrequency, f.Day)
		}
		return nil
	case KindCustom:
		if f.IntervalSeconds <= 0 {
			return fmt.Errorf("%w: interval %ds", ErrInvalidFrequency, f.IntervalSeconds)
		}
		return nil
	}
	return fmt.Errorf("%w: kind %q", ErrInvalidFrequency, f.Kind)
}

// String renders the frequency for logs and descriptions.
func (f Frequency) String() string {
	switch f.Kind {
	case KindMonthly:
		return fmt.Sprintf("monthly (day %d)", f.DayOfMonth)
	case KindYearly:
		return fmt.Sprintf("yearly (%s %d)", f.Month, f.Day)
	case KindCustom:
		return fmt.Sprintf("every %ds", f.IntervalSeconds)
	default:
		return string(f.Kind)
	}
}

// NextDue computes the first due instant strictly derived from
// lastPaidAt. The time of day carries over from lastPaidAt for the
// calendar-based kinds.
func (f Frequency) NextDue(lastPaidAt time.Time) (time.Time, error) {
	if err := f.Validate(); err != nil {
		return time.Time{}, err
	}
	switch f.Kind {
	case KindDaily:
		return lastPaidAt.AddDate(0, 0, 1), nil
	case KindWeekly:
		return lastPaidAt.AddDate(0, 0, 7), nil
	case KindMonthly:
		return nextMonthly(lastPaidAt, f.DayOfMonth), nil
	case KindYearly:
		return nextYearly(lastPaidAt, f.Month, f.Day), nil
	default:
		return lastPaidAt.Add(time.Duration(f.IntervalSeconds) * time.Second), nil
	}
}

// IsDue reports whether a payment last made at lastPaidAt is due at now.
func (f Frequency) IsDue(now, lastPaidAt time.Time) (bool, error) {
	next, err := f.NextDue(lastPaidAt)
	if err != nil {
		return false, err
	}
	return !now.Before(next), nil
}

// nextMonthly lands on the anchor day of the month after lastPaidAt,
// clamped to that month's length.
func nextMonthly(lastPaidAt time.Time, anchorDay int) time.Time {
	year, month, _ := lastPaidAt.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	day := clampDay(year, month, anchorDay)
	return time.Date(year, month, day,
		lastPaidAt.Hour(), lastPaidAt.Minute(), lastPaidAt.Second(),
		lastPaidAt.Nanosecond(), lastPaidAt.Location())
}

// nextYearly lands on the anchor month and day of the year after
// lastPaidAt, clamping Feb 29 to Feb 28 outside leap years.
func nextYearly(lastPaidAt time.Time, anchorMonth time.Month, anchorDay int) time.Time {
	year := lastPaidAt.Year() + 1
	day := clampDay(year, anchorMonth, anchorDay)
	return time.Date(year, anchorMonth, day,
		lastPaidAt.Hour(), lastPaidAt.Minute(), lastPaidAt.Second(),
		lastPaidAt.Nanosecond(), lastPaidAt.Location())
}

// clampDay bounds day to the number of days in the given month.
func clampDay(year int, month time.Month, day int) int {
	last := daysIn(year, month)
	if day > last {
		return last
	}
	return day
}

// daysIn returns the number of days in a month. Day 0 of the following
// month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
