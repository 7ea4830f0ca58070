package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/session"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type SessionRepository struct {
	db *sqlx.DB
}

var sessionSelectColumns = []string{
	"session_id",
	"player_id",
	"data",
	"stats_summary",
	"duel_id",
	"league_round_id",
	"created_at",
	"updated_at",
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert reports created=true only for the first write of a session id.
func (r *SessionRepository) Upsert(ctx context.Context, s session.Session) (bool, error) {
	query, args, err := qb.InsertModel("sessions", newSessionTableModel(s), `ON CONFLICT (session_id) DO UPDATE SET
		data = EXCLUDED.data,
		stats_summary = EXCLUDED.stats_summary,
		duel_id = EXCLUDED.duel_id,
		league_round_id = EXCLUDED.league_round_id,
		updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`)
	if err != nil {
		return false, fmt.Errorf("build upsert session query: %w", err)
	}

	var inserted bool
	if err := r.db.GetContext(ctx, &inserted, query, args...); err != nil {
		return false, fmt.Errorf("upsert session: %w", err)
	}
	return inserted, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (session.Session, bool, error) {
	query, args, err := qb.Select(sessionSelectColumns...).From("sessions").
		Where(qb.Eq("session_id", id)).
		ToSQL()
	if err != nil {
		return session.Session{}, false, fmt.Errorf("build select session query: %w", err)
	}

	var row sessionTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return session.Session{}, false, nil
		}
		return session.Session{}, false, fmt.Errorf("select session: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *SessionRepository) ListByPlayer(ctx context.Context, playerID int64, limit, offset int) ([]session.Session, error) {
	query, args, err := qb.Select(sessionSelectColumns...).From("sessions").
		Where(qb.Eq("player_id", playerID)).
		OrderBy("created_at DESC", "session_id DESC").
		Limit(limit).
		Offset(offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select sessions by player query: %w", err)
	}

	var rows []sessionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select sessions by player: %w", err)
	}
	out := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *SessionRepository) CountByPlayer(ctx context.Context, playerID int64) (int, error) {
	query, args, err := qb.Select("COUNT(*)").From("sessions").
		Where(qb.Eq("player_id", playerID)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count sessions query: %w", err)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *SessionRepository) SaveReport(ctx context.Context, sessionID string, playerID int64, csv string) error {
	query, args, err := qb.InsertInto("premium_reports").
		Columns("session_id", "player_id", "csv_data").
		Values(sessionID, playerID, csv).
		Suffix("ON CONFLICT (session_id) DO UPDATE SET csv_data = EXCLUDED.csv_data, created_at = NOW()").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert premium report query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert premium report: %w", err)
	}
	return nil
}
