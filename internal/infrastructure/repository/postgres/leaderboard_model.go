package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
)

type leaderboardTallyRow struct {
	PlayerID  int64           `db:"player_id"`
	Name      string          `db:"name"`
	Sessions  int             `db:"sessions"`
	Putts     int             `db:"putts"`
	Makes     int             `db:"makes"`
	Streak    int             `db:"streak"`
	Fastest21 sql.NullFloat64 `db:"fastest21"`
	Duration  float64         `db:"duration"`
}

func (m leaderboardTallyRow) toDomain() leaderboard.Tally {
	return leaderboard.Tally{
		PlayerID:  m.PlayerID,
		Name:      m.Name,
		Sessions:  m.Sessions,
		Putts:     m.Putts,
		Makes:     m.Makes,
		Streak:    m.Streak,
		Fastest21: float64Ptr(m.Fastest21),
		Duration:  m.Duration,
	}
}

type leaderboardCacheTableModel struct {
	ContextKey    string        `db:"context_key"`
	ContextType   string        `db:"context_type"`
	ContextID     sql.NullInt64 `db:"context_id"`
	Metric        string        `db:"metric"`
	PlayerID      int64         `db:"player_id"`
	PlayerName    string        `db:"player_name,omitinsert"`
	Value         float64       `db:"value"`
	SessionsCount int           `db:"sessions_count"`
	Rank          int           `db:"rank"`
	IsStale       bool          `db:"is_stale"`
	CalculatedAt  time.Time     `db:"calculated_at"`
}

func newLeaderboardCacheTableModels(c leaderboard.Context, m leaderboard.Metric, entries []leaderboard.Entry, at time.Time) []leaderboardCacheTableModel {
	var contextID sql.NullInt64
	if c.Type != leaderboard.ContextGlobal {
		contextID = sql.NullInt64{Int64: c.ID, Valid: true}
	}
	rows := make([]leaderboardCacheTableModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, leaderboardCacheTableModel{
			ContextKey:    c.Key(),
			ContextType:   string(c.Type),
			ContextID:     contextID,
			Metric:        m.Name,
			PlayerID:      e.PlayerID,
			PlayerName:    e.PlayerName,
			Value:         e.Value,
			SessionsCount: e.SessionsCount,
			Rank:          e.Rank,
			CalculatedAt:  at,
		})
	}
	return rows
}

// toSnapshot expects rows ordered by rank. A board with no rows or any stale
// row is a miss.
func toSnapshot(rows []leaderboardCacheTableModel) (leaderboard.Snapshot, bool) {
	if len(rows) == 0 {
		return leaderboard.Snapshot{}, false
	}
	snap := leaderboard.Snapshot{Entries: make([]leaderboard.Entry, 0, len(rows))}
	for _, row := range rows {
		if row.IsStale {
			return leaderboard.Snapshot{}, false
		}
		snap.Entries = append(snap.Entries, leaderboard.Entry{
			Rank:          row.Rank,
			PlayerID:      row.PlayerID,
			PlayerName:    row.PlayerName,
			Value:         row.Value,
			SessionsCount: row.SessionsCount,
		})
		if row.CalculatedAt.After(snap.CalculatedAt) {
			snap.CalculatedAt = row.CalculatedAt
		}
	}
	return snap, true
}

type leaderboardGroupTableModel struct {
	ID        int64     `db:"group_id,omitinsert"`
	Name      string    `db:"name"`
	CreatedBy int64     `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}
