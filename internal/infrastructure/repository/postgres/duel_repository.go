package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type DuelRepository struct {
	db *sqlx.DB
}

var duelSelectColumns = []string{
	"duel_id",
	"duel_creator_id",
	"duel_invited_player_id",
	"status",
	"rules",
	"duel_creator_session_id",
	"duel_invited_session_id",
	"duel_creator_score",
	"duel_invited_score",
	"winner_id",
	"invitation_message",
	"expires_at",
	"accepted_at",
	"completed_at",
	"created_at",
	"updated_at",
}

var openDuelStatuses = []string{
	string(duel.StatusPending),
	string(duel.StatusPendingNewPlayer),
	string(duel.StatusActive),
}

func NewDuelRepository(db *sqlx.DB) *DuelRepository {
	return &DuelRepository{db: db}
}

func (r *DuelRepository) Create(ctx context.Context, d duel.Duel) (duel.Duel, error) {
	if err := d.Validate(); err != nil {
		return duel.Duel{}, err
	}
	query, args, err := qb.InsertModel("duels", newDuelTableModel(d), "RETURNING "+strings.Join(duelSelectColumns, ", "))
	if err != nil {
		return duel.Duel{}, fmt.Errorf("build insert duel query: %w", err)
	}
	var row duelTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return duel.Duel{}, fmt.Errorf("insert duel: %w", err)
	}
	return row.toDomain(), nil
}

func (r *DuelRepository) GetByID(ctx context.Context, id int64) (duel.Duel, bool, error) {
	query, args, err := qb.Select(duelSelectColumns...).From("duels").
		Where(qb.Eq("duel_id", id)).
		ToSQL()
	if err != nil {
		return duel.Duel{}, false, fmt.Errorf("build select duel query: %w", err)
	}
	var row duelTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return duel.Duel{}, false, nil
		}
		return duel.Duel{}, false, fmt.Errorf("select duel: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *DuelRepository) ListByPlayer(ctx context.Context, playerID int64, status duel.Status) ([]duel.Duel, error) {
	conds := []qb.Condition{
		qb.Or(qb.Eq("duel_creator_id", playerID), qb.Eq("duel_invited_player_id", playerID)),
	}
	if status != "" {
		conds = append(conds, qb.Eq("status", string(status)))
	}
	query, args, err := qb.Select(duelSelectColumns...).From("duels").
		Where(conds...).
		OrderBy("created_at DESC", "duel_id DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select duels by player query: %w", err)
	}
	return r.selectDuels(ctx, "by player", query, args)
}

func (r *DuelRepository) selectDuels(ctx context.Context, label, query string, args []any) ([]duel.Duel, error) {
	var rows []duelTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select duels %s: %w", label, err)
	}
	out := make([]duel.Duel, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Transition is a compare-and-set on status; false means another writer won.
func (r *DuelRepository) Transition(ctx context.Context, id int64, t duel.Transition) (bool, error) {
	from := make([]string, 0, len(t.From))
	for _, s := range t.From {
		from = append(from, string(s))
	}
	b := qb.Update("duels").
		Set("status", string(t.To)).
		Set("updated_at", t.At)
	if t.To == duel.StatusActive {
		b = b.SetExpr("accepted_at", "COALESCE(accepted_at, ?)", t.At)
	}
	query, args, err := b.Where(qb.Eq("duel_id", id), qb.In("status", from)).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build transition duel query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition duel: %w", err)
	}
	n, err := rowsAffected(res, "transition duel")
	return n > 0, err
}

func (r *DuelRepository) AttachSession(ctx context.Context, id int64, side duel.Side, sessionID string, score float64, at time.Time) (duel.Duel, bool, error) {
	sessionCol, scoreCol := "duel_invited_session_id", "duel_invited_score"
	if side == duel.SideCreator {
		sessionCol, scoreCol = "duel_creator_session_id", "duel_creator_score"
	}
	query, args, err := qb.Update("duels").
		Set(sessionCol, sessionID).
		Set(scoreCol, score).
		Set("updated_at", at).
		Where(
			qb.Eq("duel_id", id),
			qb.IsNull(sessionCol),
			qb.In("status", openDuelStatuses),
		).
		Suffix("RETURNING " + strings.Join(duelSelectColumns, ", ")).
		ToSQL()
	if err != nil {
		return duel.Duel{}, false, fmt.Errorf("build attach duel session query: %w", err)
	}

	var row duelTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if !isNotFound(err) {
			return duel.Duel{}, false, fmt.Errorf("attach duel session: %w", err)
		}
		current, _, getErr := r.GetByID(ctx, id)
		return current, false, getErr
	}
	return row.toDomain(), true, nil
}

func (r *DuelRepository) Complete(ctx context.Context, id int64, res duel.Result) (bool, error) {
	b := qb.Update("duels").
		Set("status", string(duel.StatusCompleted)).
		Set("duel_creator_score", res.CreatorScore).
		Set("duel_invited_score", res.InvitedScore).
		Set("completed_at", res.At).
		Set("updated_at", res.At)
	if res.WinnerID != nil {
		b = b.Set("winner_id", *res.WinnerID)
	} else {
		b = b.SetExpr("winner_id", "NULL")
	}
	query, args, err := b.Where(
		qb.Eq("duel_id", id),
		qb.Eq("status", string(duel.StatusActive)),
		qb.NotNull("duel_creator_session_id"),
		qb.NotNull("duel_invited_session_id"),
	).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build complete duel query: %w", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("complete duel: %w", err)
	}
	n, err := rowsAffected(result, "complete duel")
	return n > 0, err
}

func (r *DuelRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]duel.Duel, error) {
	query, args, err := qb.Update("duels").
		Set("status", string(duel.StatusExpired)).
		Set("updated_at", now).
		Where(
			qb.In("status", openDuelStatuses),
			qb.Lte("expires_at", now),
		).
		Suffix("RETURNING " + strings.Join(duelSelectColumns, ", ")).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build expire duels query: %w", err)
	}
	out, err := r.selectDuels(ctx, "expired", query, args)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
