package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/session"
)

type sessionTableModel struct {
	ID            string                `db:"session_id"`
	PlayerID      int64                 `db:"player_id"`
	Data          jsonb[map[string]any] `db:"data"`
	StatsSummary  jsonb[map[string]any] `db:"stats_summary"`
	DuelID        sql.NullInt64         `db:"duel_id"`
	LeagueRoundID sql.NullInt64         `db:"league_round_id"`
	CreatedAt     time.Time             `db:"created_at"`
	UpdatedAt     time.Time             `db:"updated_at"`
}

func newSessionTableModel(s session.Session) sessionTableModel {
	data := s.Data
	if data == nil {
		data = map[string]any{}
	}
	m := sessionTableModel{
		ID:           s.ID,
		PlayerID:     s.PlayerID,
		Data:         jsonOf(data),
		StatsSummary: jsonOf(s.Stats.Summary()),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.DuelID != nil {
		m.DuelID = sql.NullInt64{Int64: *s.DuelID, Valid: true}
	}
	if s.LeagueRoundID != nil {
		m.LeagueRoundID = sql.NullInt64{Int64: *s.LeagueRoundID, Valid: true}
	}
	return m
}

func (m sessionTableModel) toDomain() session.Session {
	return session.Session{
		ID:            m.ID,
		PlayerID:      m.PlayerID,
		Data:          m.Data.V,
		Stats:         session.Normalize(m.StatsSummary.V),
		DuelID:        int64Ptr(m.DuelID),
		LeagueRoundID: int64Ptr(m.LeagueRoundID),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
