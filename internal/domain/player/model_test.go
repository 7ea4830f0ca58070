package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsApplyAccumulates(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)
	slow, fast := 95.0, 61.5

	stats := Stats{PlayerID: 1000}
	stats = stats.Apply(SessionDelta{Putts: 40, Makes: 30, Misses: 10, BestStreak: 12, Fastest21Makes: &slow, DurationSeconds: 600, RecordedAt: at})
	stats = stats.Apply(SessionDelta{Putts: 20, Makes: 11, Misses: 9, BestStreak: 5, Fastest21Makes: &fast, DurationSeconds: 300, RecordedAt: at.Add(time.Hour)})

	require.Equal(t, 2, stats.TotalSessions)
	require.Equal(t, 60, stats.TotalPutts)
	require.Equal(t, 41, stats.TotalMakes)
	require.Equal(t, 19, stats.TotalMisses)
	require.Equal(t, 12, stats.BestStreak)
	require.InDelta(t, 68.33, stats.MakePercentage, 0.0001)
	require.NotNil(t, stats.Fastest21Makes)
	require.Equal(t, fast, *stats.Fastest21Makes)
	require.Equal(t, at.Add(time.Hour), *stats.LastSessionAt)
}

func TestPercentageZeroPutts(t *testing.T) {
	t.Parallel()
	require.Zero(t, Percentage(0, 0))
	require.Equal(t, 100.0, Percentage(10, 10))
}

func TestMatchesIdentifier(t *testing.T) {
	t.Parallel()

	hidden := Player{IsHidden: true, InvitationIdentifier: "New@Example.com", IdentifierType: "email"}
	require.True(t, hidden.Unclaimed())
	require.True(t, hidden.MatchesIdentifier("new@example.com", ""))
	require.False(t, hidden.MatchesIdentifier("other@example.com", "new@example.com"))

	byName := Player{IsHidden: true, InvitationIdentifier: "puttmaster", IdentifierType: "username"}
	require.True(t, byName.MatchesIdentifier("x@example.com", "PuttMaster"))
	require.False(t, Player{}.MatchesIdentifier("a", "b"))
}
