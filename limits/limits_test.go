package limits

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerpay/authcore/types"
)

var testStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newLedgers(t *testing.T) map[string]Ledger {
	t.Helper()
	file, err := NewFileLedger(t.TempDir())
	require.NoError(t, err)
	return map[string]Ledger{
		"memory": NewMemoryLedger(),
		"file":   file,
	}
}

func TestReserveCommitRollback(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, ledger.SetLimit("alice", types.Sats(10000), PeriodDaily, testStart))

			r, err := ledger.Reserve("alice", types.Sats(3000), testStart.Add(time.Hour))
			require.NoError(t, err)

			rem, err := ledger.Remaining("alice", testStart.Add(time.Hour))
			require.NoError(t, err)
			require.True(t, rem.Equal(types.Sats(7000)), "remaining = %s", rem)

			require.NoError(t, ledger.Commit(r.Token))
			require.ErrorIs(t, ledger.Commit(r.Token), ErrUnknownReservation)

			// committed increments stay
			rem, err = ledger.Remaining("alice", testStart.Add(time.Hour))
			require.NoError(t, err)
			require.True(t, rem.Equal(types.Sats(7000)))

			r2, err := ledger.Reserve("alice", types.Sats(4000), testStart.Add(time.Hour))
			require.NoError(t, err)
			require.NoError(t, ledger.Rollback(r2.Token))

			rem, err = ledger.Remaining("alice", testStart.Add(time.Hour))
			require.NoError(t, err)
			require.True(t, rem.Equal(types.Sats(7000)), "rollback must restore remaining, got %s", rem)
		})
	}
}

func TestReserveDeniesOverLimit(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, ledger.SetLimit("alice", types.Sats(10000), PeriodDaily, testStart))

			// seed 6000 spent at period start
			seed, err := ledger.Reserve("alice", types.Sats(6000), testStart)
			require.NoError(t, err)
			require.NoError(t, ledger.Commit(seed.Token))

			at := testStart.Add(time.Hour)
			r, err := ledger.Reserve("alice", types.Sats(3000), at)
			require.NoError(t, err)
			require.NoError(t, ledger.Commit(r.Token))

			rem, err := ledger.Remaining("alice", at)
			require.NoError(t, err)
			require.True(t, rem.Equal(types.Sats(1000)), "spent should be 9000, remaining %s", rem)

			_, err = ledger.Reserve("alice", types.Sats(2000), at)
			require.ErrorIs(t, err, ErrLimitExceeded)

			// the denied reserve had no side effect
			rem, err = ledger.Remaining("alice", at)
			require.NoError(t, err)
			require.True(t, rem.Equal(types.Sats(1000)))
		})
	}
}

func TestReserveExactLimitAllowed(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, ledger.SetLimit("alice", types.Sats(5000), PeriodDaily, testStart))
			_, err := ledger.Reserve("alice", types.Sats(5000), testStart)
			require.NoError(t, err)
			_, err = ledger.Reserve("alice", types.Sats(1), testStart)
			require.ErrorIs(t, err, ErrLimitExceeded)
		})
	}
}

func TestReserveWithoutLimit(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.Reserve("stranger", types.Sats(1), testStart)
			require.ErrorIs(t, err, ErrNoLimit)
			_, err = ledger.GetLimit("stranger", testStart)
			require.ErrorIs(t, err, ErrNoLimit)
		})
	}
}

func TestPeriodRollover(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		within time.Duration
		beyond time.Duration
	}{
		{"daily", PeriodDaily, 23 * time.Hour, 25 * time.Hour},
		{"weekly", PeriodWeekly, 6 * 24 * time.Hour, 8 * 24 * time.Hour},
		{"monthly", PeriodMonthly, 27 * 24 * time.Hour, 32 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewMemoryLedger()
			require.NoError(t, ledger.SetLimit("alice", types.Sats(1000), tt.period, testStart))

			r, err := ledger.Reserve("alice", types.Sats(1000), testStart)
			require.NoError(t, err)
			require.NoError(t, ledger.Commit(r.Token))

			// still inside the period: exhausted
			_, err = ledger.Reserve("alice", types.Sats(1), testStart.Add(tt.within))
			require.ErrorIs(t, err, ErrLimitExceeded)

			// past the boundary: counter reset
			_, err = ledger.Reserve("alice", types.Sats(1000), testStart.Add(tt.beyond))
			require.NoError(t, err)
		})
	}
}

func TestRolloverResetsPeriodStart(t *testing.T) {
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.SetLimit("alice", types.Sats(100), PeriodDaily, testStart))

	at := testStart.Add(26 * time.Hour)
	l, err := ledger.GetLimit("alice", at)
	require.NoError(t, err)
	require.True(t, l.PeriodStart.Equal(at))
	require.True(t, l.Spent.IsZero())
}

func TestConcurrentReservesExactlyWithinLimit(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 16
			require.NoError(t, ledger.SetLimit("alice", types.Sats(10000), PeriodDaily, testStart))

			// each worker asks for more than limit/workers, so not all can win
			chunk := types.Sats(10000/workers + 1)

			var wg sync.WaitGroup
			wins := make(chan *Reservation, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if r, err := ledger.Reserve("alice", chunk, testStart); err == nil {
						wins <- r
					}
				}()
			}
			wg.Wait()
			close(wins)

			total := types.Sats(0)
			for r := range wins {
				var err error
				total, err = total.CheckedAdd(r.Amount)
				require.NoError(t, err)
			}
			require.True(t, total.IsWithinLimit(types.Sats(10000)),
				"total reserved %s exceeds the limit", total)

			rem, err := ledger.Remaining("alice", testStart)
			require.NoError(t, err)
			expect, err := types.Sats(10000).CheckedSub(total)
			require.NoError(t, err)
			require.True(t, rem.Equal(expect))
		})
	}
}

func TestFileLedgerSharedDirectory(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileLedger(dir)
	require.NoError(t, err)
	second, err := NewFileLedger(dir)
	require.NoError(t, err)

	require.NoError(t, first.SetLimit("alice", types.Sats(1000), PeriodDaily, testStart))

	// a reserve through one handle is visible and resolvable through the other
	r, err := first.Reserve("alice", types.Sats(600), testStart)
	require.NoError(t, err)

	_, err = second.Reserve("alice", types.Sats(600), testStart)
	require.ErrorIs(t, err, ErrLimitExceeded)

	require.NoError(t, second.Rollback(r.Token))

	rem, err := second.Remaining("alice", testStart)
	require.NoError(t, err)
	require.True(t, rem.Equal(types.Sats(1000)))
}

func TestReleaseStale(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, ledger.SetLimit("alice", types.Sats(1000), PeriodDaily, testStart))

			stuck, err := ledger.Reserve("alice", types.Sats(400), testStart)
			require.NoError(t, err)
			fresh, err := ledger.Reserve("alice", types.Sats(300), testStart.Add(50*time.Minute))
			require.NoError(t, err)

			released, err := ledger.ReleaseStale(testStart.Add(time.Hour), 30*time.Minute)
			require.NoError(t, err)
			require.Len(t, released, 1)
			require.Equal(t, stuck.Token, released[0].Token)

			// the stuck amount came back, the fresh one is still held
			rem, err := ledger.Remaining("alice", testStart.Add(time.Hour))
			require.NoError(t, err)
			require.True(t, rem.Equal(types.Sats(700)), "remaining = %s", rem)

			require.ErrorIs(t, ledger.Rollback(stuck.Token), ErrUnknownReservation)
			require.NoError(t, ledger.Commit(fresh.Token))
		})
	}
}

func TestRemoveLimit(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, ledger.SetLimit("alice", types.Sats(1000), PeriodDaily, testStart))
			require.NoError(t, ledger.RemoveLimit("alice"))
			_, err := ledger.GetLimit("alice", testStart)
			require.ErrorIs(t, err, ErrNoLimit)
			require.NoError(t, ledger.RemoveLimit("alice"))
		})
	}
}

func TestSetLimitRejectsUnknownPeriod(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			err := ledger.SetLimit("alice", types.Sats(1000), Period("hourly"), testStart)
			require.Error(t, err)
			require.False(t, errors.Is(err, ErrStorage))
		})
	}
}
