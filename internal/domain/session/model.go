package session

import (
	"math"
	"strconv"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/player"
)

type Stats struct {
	TotalPutts      int
	TotalMakes      int
	TotalMisses     int
	MakePercentage  float64
	BestStreak      int
	Fastest21Makes  *float64
	DurationSeconds float64
	DateRecorded    *time.Time
}

type Session struct {
	ID            string
	PlayerID      int64
	Data          map[string]any
	Stats         Stats
	DuelID        *int64
	LeagueRoundID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Delta converts the session summary into a cumulative stats increment.
func (s Stats) Delta(at time.Time) player.SessionDelta {
	return player.SessionDelta{
		Putts:           s.TotalPutts,
		Makes:           s.TotalMakes,
		Misses:          s.TotalMisses,
		BestStreak:      s.BestStreak,
		Fastest21Makes:  s.Fastest21Makes,
		DurationSeconds: s.DurationSeconds,
		RecordedAt:      at,
	}
}

// Summary is the subset persisted next to the raw blob for fast aggregation.
func (s Stats) Summary() map[string]any {
	out := map[string]any{
		"total_putts":      s.TotalPutts,
		"total_makes":      s.TotalMakes,
		"total_misses":     s.TotalMisses,
		"make_percentage":  s.MakePercentage,
		"best_streak":      s.BestStreak,
		"session_duration": s.DurationSeconds,
	}
	if s.Fastest21Makes != nil {
		out["fastest_21_makes"] = *s.Fastest21Makes
	}
	if s.DateRecorded != nil {
		out["date_recorded"] = s.DateRecorded.UTC().Format(time.RFC3339)
	}
	return out
}

// Normalize reads the desktop tracker payload, accepting the field-name
// variants older clients send. The first present alias wins, except that
// session_duration_seconds overrides session_duration.
func Normalize(raw map[string]any) Stats {
	var s Stats
	s.TotalPutts = intField(raw, "total_putts", "putts", "totalPutts")
	s.TotalMakes = intField(raw, "total_makes", "makes", "totalMakes")
	if v, ok := number(raw, "total_misses", "misses", "totalMisses"); ok {
		s.TotalMisses = int(v)
	} else if s.TotalPutts >= s.TotalMakes {
		s.TotalMisses = s.TotalPutts - s.TotalMakes
	}
	if s.TotalPutts == 0 && s.TotalMakes+s.TotalMisses > 0 {
		s.TotalPutts = s.TotalMakes + s.TotalMisses
	}

	if v, ok := number(raw, "make_percentage", "makePercentage", "accuracy"); ok {
		s.MakePercentage = math.Round(v*100) / 100
	} else {
		s.MakePercentage = player.Percentage(s.TotalMakes, s.TotalPutts)
	}

	s.BestStreak = intField(raw, "best_streak", "max_streak", "bestStreak", "longest_streak")
	if v, ok := number(raw, "fastest_21_makes", "fastest_21_makes_seconds", "fastest21Makes"); ok && v > 0 {
		s.Fastest21Makes = &v
	}

	if v, ok := number(raw, "session_duration_seconds"); ok {
		s.DurationSeconds = v
	} else if v, ok := number(raw, "session_duration", "duration", "sessionDuration"); ok {
		s.DurationSeconds = v
	}

	for _, key := range []string{"date_recorded", "dateRecorded", "recorded_at"} {
		if rawTime, ok := raw[key].(string); ok {
			if ts, err := time.Parse(time.RFC3339, rawTime); err == nil {
				s.DateRecorded = &ts
				break
			}
		}
	}
	return s
}

// MakesPerMinute is zero when the duration is unknown.
func (s Stats) MakesPerMinute() float64 {
	if s.DurationSeconds <= 0 {
		return 0
	}
	return float64(s.TotalMakes) / (s.DurationSeconds / 60)
}

func intField(raw map[string]any, keys ...string) int {
	v, _ := number(raw, keys...)
	return int(v)
}

func number(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		case interface{ Float64() (float64, error) }:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
