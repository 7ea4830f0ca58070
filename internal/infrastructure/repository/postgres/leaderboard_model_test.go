package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardCacheRowsPerPlayer(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := leaderboard.Context{Type: leaderboard.ContextLeague, ID: 7}
	m, ok := leaderboard.LookupMetric("total_makes")
	require.True(t, ok)

	rows := newLeaderboardCacheTableModels(c, m, []leaderboard.Entry{
		{Rank: 1, PlayerID: 11, PlayerName: "Ann", Value: 40, SessionsCount: 3},
		{Rank: 2, PlayerID: 12, PlayerName: "Bo", Value: 31, SessionsCount: 2},
		{Rank: 3, PlayerID: 13, PlayerName: "Cy", Value: 9, SessionsCount: 1},
	}, at)
	require.Len(t, rows, 3)
	require.Equal(t, "league:7", rows[1].ContextKey)
	require.Equal(t, "total_makes", rows[1].Metric)
	require.Equal(t, int64(12), rows[1].PlayerID)
	require.Equal(t, 2, rows[1].Rank)
	require.True(t, rows[1].ContextID.Valid)

	batches, err := leaderboardCacheBatches(rows, 2)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t,
		"INSERT INTO leaderboard_cache (context_key, context_type, context_id, metric, player_id, value, sessions_count, rank, is_stale, calculated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10), ($11, $12, $13, $14, $15, $16, $17, $18, $19, $20)",
		batches[0].query)
	require.Len(t, batches[0].args, 20)
	require.Len(t, batches[1].args, 10)
	require.False(t, strings.Contains(batches[0].query, "player_name"))

	empty, err := leaderboardCacheBatches(nil, 2)
	require.NoError(t, err)
	require.Empty(t, empty)

	snap, ok := toSnapshot(rows)
	require.True(t, ok)
	require.Len(t, snap.Entries, 3)
	require.Equal(t, "Bo", snap.Entries[1].PlayerName)
	require.Equal(t, at, snap.CalculatedAt)

	rows[2].IsStale = true
	_, ok = toSnapshot(rows)
	require.False(t, ok)
	_, ok = toSnapshot(nil)
	require.False(t, ok)
}
