package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/player"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type PlayerRepository struct {
	db *sqlx.DB
}

var playerSelectColumns = []string{
	"player_id",
	"name",
	"email",
	"password_hash",
	"membership_tier",
	"subscription_status",
	"timezone",
	"is_hidden",
	"invitation_identifier",
	"identifier_type",
	"invited_by",
	"invited_at",
	"claimed_at",
	"created_at",
	"updated_at",
}

var playerStatsColumns = []string{
	"player_id",
	"total_sessions",
	"total_putts",
	"total_makes",
	"total_misses",
	"make_percentage",
	"best_streak",
	"fastest_21_makes",
	"total_duration_seconds",
	"last_session_at",
	"updated_at",
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) Create(ctx context.Context, p player.Player) (player.Player, error) {
	model := newPlayerTableModel(p)
	err := withTx(ctx, r.db, "create player", func(tx *sqlx.Tx) error {
		query, args, err := qb.InsertModel("players", model, "RETURNING player_id")
		if err != nil {
			return fmt.Errorf("build insert player query: %w", err)
		}
		if err := tx.GetContext(ctx, &model.ID, query, args...); err != nil {
			return fmt.Errorf("insert player: %w", err)
		}

		statsQuery, statsArgs, err := qb.InsertInto("player_stats").
			Columns("player_id", "updated_at").
			Values(model.ID, model.CreatedAt).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert player stats query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, statsQuery, statsArgs...); err != nil {
			return fmt.Errorf("insert player stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return player.Player{}, err
	}
	return model.toDomain(), nil
}

func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (player.Player, bool, error) {
	return r.getOne(ctx, "by id", qb.Eq("player_id", id))
}

func (r *PlayerRepository) GetByEmail(ctx context.Context, email string) (player.Player, bool, error) {
	return r.getOne(ctx, "by email", qb.Expr("LOWER(email) = LOWER(?)", strings.TrimSpace(email)))
}

func (r *PlayerRepository) GetByName(ctx context.Context, name string) (player.Player, bool, error) {
	return r.getOne(ctx, "by name",
		qb.Expr("LOWER(name) = LOWER(?)", strings.TrimSpace(name)),
		qb.Eq("is_hidden", false),
	)
}

func (r *PlayerRepository) FindUnclaimedByIdentifier(ctx context.Context, identifier string, identifierTypes ...string) (player.Player, bool, error) {
	conds := []qb.Condition{
		qb.Eq("is_hidden", true),
		qb.IsNull("claimed_at"),
		qb.Expr("LOWER(invitation_identifier) = LOWER(?)", strings.TrimSpace(identifier)),
	}
	if len(identifierTypes) > 0 {
		conds = append(conds, qb.In("identifier_type", identifierTypes))
	}
	return r.getOne(ctx, "unclaimed by identifier", conds...)
}

func (r *PlayerRepository) getOne(ctx context.Context, label string, conds ...qb.Condition) (player.Player, bool, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(conds...).
		OrderBy("player_id").
		Limit(1).
		ToSQL()
	if err != nil {
		return player.Player{}, false, fmt.Errorf("build select player %s query: %w", label, err)
	}

	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Player{}, false, nil
		}
		return player.Player{}, false, fmt.Errorf("select player %s: %w", label, err)
	}
	return row.toDomain(), true, nil
}

func (r *PlayerRepository) ListByIDs(ctx context.Context, ids []int64) ([]player.Player, error) {
	if len(ids) == 0 {
		return []player.Player{}, nil
	}
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.In("player_id", ids)).
		OrderBy("player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players by ids query: %w", err)
	}
	return r.selectPlayers(ctx, "by ids", query, args)
}

func (r *PlayerRepository) Search(ctx context.Context, q string, limit int) ([]player.Player, error) {
	pattern := escapeLike(strings.TrimSpace(q)) + "%"
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(
			qb.Eq("is_hidden", false),
			qb.Or(qb.ILike("name", pattern), qb.ILike("email", pattern)),
		).
		OrderBy("player_id").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search players query: %w", err)
	}
	return r.selectPlayers(ctx, "search", query, args)
}

func (r *PlayerRepository) selectPlayers(ctx context.Context, label, query string, args []any) ([]player.Player, error) {
	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select players %s: %w", label, err)
	}
	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PlayerRepository) CountHidden(ctx context.Context) (int, error) {
	query, args, err := qb.Select("COUNT(*)").From("players").
		Where(qb.Eq("is_hidden", true)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count hidden players query: %w", err)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count hidden players: %w", err)
	}
	return n, nil
}

func (r *PlayerRepository) ActivateHidden(ctx context.Context, id int64, reg player.Registration) (player.Player, error) {
	query, args, err := qb.Update("players").
		Set("name", reg.Name).
		Set("email", reg.Email).
		Set("password_hash", reg.PasswordHash).
		Set("is_hidden", false).
		Set("claimed_at", reg.At).
		Set("updated_at", reg.At).
		Where(
			qb.Eq("player_id", id),
			qb.Eq("is_hidden", true),
			qb.IsNull("claimed_at"),
		).
		Suffix("RETURNING " + strings.Join(playerSelectColumns, ", ")).
		ToSQL()
	if err != nil {
		return player.Player{}, fmt.Errorf("build activate hidden player query: %w", err)
	}

	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Player{}, fmt.Errorf("player %d is not an unclaimed placeholder", id)
		}
		return player.Player{}, fmt.Errorf("activate hidden player: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PlayerRepository) DeleteHiddenWithoutSessions(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.DeleteFrom("players").
		Where(
			qb.Eq("player_id", id),
			qb.Eq("is_hidden", true),
			qb.IsNull("claimed_at"),
			qb.Expr("NOT EXISTS (SELECT 1 FROM sessions s WHERE s.player_id = ?)", id),
			qb.Expr(`NOT EXISTS (SELECT 1 FROM duels d
				WHERE (d.duel_creator_id = ? OR d.duel_invited_player_id = ?)
				AND d.status IN ('pending', 'pending_new_player', 'active'))`, id, id),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete hidden player query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete hidden player: %w", err)
	}
	n, err := rowsAffected(res, "delete hidden player")
	return n > 0, err
}

func (r *PlayerRepository) GetStats(ctx context.Context, playerID int64) (player.Stats, bool, error) {
	query, args, err := qb.Select(playerStatsColumns...).From("player_stats").
		Where(qb.Eq("player_id", playerID)).
		ToSQL()
	if err != nil {
		return player.Stats{}, false, fmt.Errorf("build select player stats query: %w", err)
	}

	var row playerStatsTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Stats{}, false, nil
		}
		return player.Stats{}, false, fmt.Errorf("select player stats: %w", err)
	}
	return row.toDomain(), true, nil
}

// ApplySession locks the stats row so concurrent uploads accumulate serially.
func (r *PlayerRepository) ApplySession(ctx context.Context, playerID int64, delta player.SessionDelta) (player.Stats, error) {
	var out player.Stats
	err := withTx(ctx, r.db, "apply session", func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM players WHERE player_id = $1)", playerID); err != nil {
			return fmt.Errorf("select player exists: %w", err)
		}
		if !exists {
			return fmt.Errorf("player %d not found", playerID)
		}

		query, args, err := qb.Select(playerStatsColumns...).From("player_stats").
			Where(qb.Eq("player_id", playerID)).
			ForUpdate().
			ToSQL()
		if err != nil {
			return fmt.Errorf("build lock player stats query: %w", err)
		}
		current := player.Stats{PlayerID: playerID}
		var row playerStatsTableModel
		switch err := tx.GetContext(ctx, &row, query, args...); {
		case err == nil:
			current = row.toDomain()
		case !isNotFound(err):
			return fmt.Errorf("lock player stats: %w", err)
		}

		out = current.Apply(delta)
		upsert, upsertArgs, err := qb.InsertModel("player_stats", newPlayerStatsTableModel(out), `ON CONFLICT (player_id) DO UPDATE SET
			total_sessions = EXCLUDED.total_sessions,
			total_putts = EXCLUDED.total_putts,
			total_makes = EXCLUDED.total_makes,
			total_misses = EXCLUDED.total_misses,
			make_percentage = EXCLUDED.make_percentage,
			best_streak = EXCLUDED.best_streak,
			fastest_21_makes = EXCLUDED.fastest_21_makes,
			total_duration_seconds = EXCLUDED.total_duration_seconds,
			last_session_at = EXCLUDED.last_session_at,
			updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return fmt.Errorf("build upsert player stats query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsert, upsertArgs...); err != nil {
			return fmt.Errorf("upsert player stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return player.Stats{}, err
	}
	return out, nil
}

func (r *PlayerRepository) AddFriendship(ctx context.Context, playerID, friendID int64, at time.Time) error {
	query, args, err := qb.InsertInto("player_friends").
		Columns("player_id", "friend_id", "created_at").
		Values(playerID, friendID, at).
		Values(friendID, playerID, at).
		Suffix("ON CONFLICT (player_id, friend_id) DO NOTHING").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert friendship query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (r *PlayerRepository) ListFriends(ctx context.Context, playerID int64) ([]player.Player, error) {
	query, args, err := qb.Select(qualify("p", playerSelectColumns)...).From("player_friends f").
		Join("players p ON p.player_id = f.friend_id").
		Where(qb.Eq("f.player_id", playerID)).
		OrderBy("p.name", "p.player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select friends query: %w", err)
	}
	return r.selectPlayers(ctx, "friends", query, args)
}

func (r *PlayerRepository) AreFriends(ctx context.Context, playerID, friendID int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		"SELECT EXISTS (SELECT 1 FROM player_friends WHERE player_id = $1 AND friend_id = $2)",
		playerID, friendID)
	if err != nil {
		return false, fmt.Errorf("select friendship: %w", err)
	}
	return ok, nil
}

func qualify(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
