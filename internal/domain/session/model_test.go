package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAliases(t *testing.T) {
	t.Parallel()

	stats := Normalize(map[string]any{
		"putts":                    float64(50),
		"makes":                    float64(38),
		"max_streak":               float64(14),
		"fastest_21_makes_seconds": "72.5",
		"session_duration":         float64(900),
		"session_duration_seconds": float64(905),
		"date_recorded":            "2026-04-02T18:00:00Z",
	})

	require.Equal(t, 50, stats.TotalPutts)
	require.Equal(t, 38, stats.TotalMakes)
	require.Equal(t, 12, stats.TotalMisses)
	require.Equal(t, 76.0, stats.MakePercentage)
	require.Equal(t, 14, stats.BestStreak)
	require.NotNil(t, stats.Fastest21Makes)
	require.Equal(t, 72.5, *stats.Fastest21Makes)
	require.Equal(t, 905.0, stats.DurationSeconds)
	require.Equal(t, time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC), *stats.DateRecorded)
}

func TestNormalizeDerivesPuttsFromMakesAndMisses(t *testing.T) {
	t.Parallel()

	stats := Normalize(map[string]any{"total_makes": 9, "total_misses": 3, "make_percentage": 75.004})
	require.Equal(t, 12, stats.TotalPutts)
	require.Equal(t, 75.0, stats.MakePercentage)
	require.Nil(t, stats.Fastest21Makes)
	require.Nil(t, stats.DateRecorded)
}

func TestNormalizeEmptyPayload(t *testing.T) {
	t.Parallel()

	stats := Normalize(map[string]any{})
	require.Zero(t, stats.TotalPutts)
	require.Zero(t, stats.MakePercentage)
	require.Zero(t, stats.MakesPerMinute())
}

func TestMakesPerMinute(t *testing.T) {
	t.Parallel()
	require.Equal(t, 4.0, Stats{TotalMakes: 20, DurationSeconds: 300}.MakesPerMinute())
}
