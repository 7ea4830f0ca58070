package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriceFor(t *testing.T) {
	t.Parallel()

	monthly, err := PriceFor(IntervalMonthly)
	require.NoError(t, err)
	require.Equal(t, "2.10", monthly.Amount)

	annual, err := PriceFor(IntervalAnnual)
	require.NoError(t, err)
	require.Equal(t, "21.00", annual.Amount)
	require.Equal(t, "USD", annual.Currency)

	_, err = PriceFor("weekly")
	require.Error(t, err)
}

func TestPeriodEnd(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), PeriodEnd(IntervalMonthly, from))
	require.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), PeriodEnd(IntervalAnnual, from))
}

func TestStateMergeKeepsFirstStartAndClearsTier(t *testing.T) {
	t.Parallel()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.AddDate(0, 1, 0)
	tier := "full_subscriber"
	active := StatusActive
	cancel := true

	s := State{PlayerID: 9, Status: StatusInactive}
	s = s.Merge(Change{Tier: &tier, Status: &active, StartedAt: &first})
	require.Equal(t, &tier, s.Tier)
	require.Equal(t, StatusActive, s.Status)

	s = s.Merge(Change{StartedAt: &later, CancelAtPeriodEnd: &cancel})
	require.Equal(t, first, *s.StartedAt)
	require.True(t, s.CancelAtPeriodEnd)
	require.Equal(t, &tier, s.Tier)

	s = s.Merge(Change{ClearTier: true})
	require.Nil(t, s.Tier)
	require.Equal(t, StatusActive, s.Status)
}
