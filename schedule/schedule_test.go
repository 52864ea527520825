package schedule

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNextDue(t *testing.T) {
	tests := []struct {
		name     string
		freq     Frequency
		lastPaid time.Time
		want     time.Time
	}{
		{"daily", Daily(), date(2026, time.March, 1), date(2026, time.March, 2)},
		{"weekly", Weekly(), date(2026, time.March, 1), date(2026, time.March, 8)},
		{"monthly mid month", Monthly(15), date(2026, time.March, 15), date(2026, time.April, 15)},
		{"monthly day 31 into 30-day month", Monthly(31), date(2026, time.March, 31), date(2026, time.April, 30)},
		{"monthly day 31 into february", Monthly(31), date(2026, time.January, 31), date(2026, time.February, 28)},
		{"monthly day 31 into leap february", Monthly(31), date(2028, time.January, 31), date(2028, time.February, 29)},
		{"monthly december wraps year", Monthly(5), date(2026, time.December, 5), date(2027, time.January, 5)},
		{"monthly recovers after clamp", Monthly(31), date(2026, time.April, 30), date(2026, time.May, 31)},
		{"yearly", Yearly(time.June, 15), date(2026, time.June, 15), date(2027, time.June, 15)},
		{"yearly feb 29 into common year", Yearly(time.February, 29), date(2028, time.February, 29), date(2029, time.February, 28)},
		{"custom interval", Every(90 * time.Minute), date(2026, time.March, 1), date(2026, time.March, 1).Add(90 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.freq.NextDue(tt.lastPaid)
			if err != nil {
				t.Fatalf("NextDue: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextDue = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextDueKeepsTimeOfDay(t *testing.T) {
	lastPaid := time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC)
	got, err := Monthly(31).NextDue(lastPaid)
	if err != nil {
		t.Fatalf("NextDue: %v", err)
	}
	want := time.Date(2026, time.April, 30, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextDue = %s, want %s", got, want)
	}
}

func TestIsDue(t *testing.T) {
	lastPaid := date(2026, time.March, 1)
	freq := Daily()

	due, err := freq.IsDue(lastPaid.Add(23*time.Hour), lastPaid)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Fatal("payment should not be due before the next day")
	}

	// due exactly at the boundary
	due, err = freq.IsDue(lastPaid.AddDate(0, 0, 1), lastPaid)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Fatal("payment should be due at the boundary instant")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		freq    Frequency
		wantErr bool
	}{
		{"daily", Daily(), false},
		{"monthly day 31", Monthly(31), false},
		{"monthly day 0", Monthly(0), true},
		{"monthly day 32", Monthly(32), true},
		{"yearly", Yearly(time.February, 29), false},
		{"yearly month 13", Frequency{Kind: KindYearly, Month: 13, Day: 1}, true},
		{"yearly day 0", Yearly(time.June, 0), true},
		{"custom", Every(time.Hour), false},
		{"custom zero interval", Every(0), true},
		{"unknown kind", Frequency{Kind: "fortnightly"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.freq.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidFrequency) {
				t.Fatalf("Validate = %v, want ErrInvalidFrequency", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}
