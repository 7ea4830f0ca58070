package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/domain/league"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type LeaderboardRepository struct {
	db *sqlx.DB
}

var statsTallyColumns = []string{
	"p.player_id",
	"p.name",
	"ps.total_sessions AS sessions",
	"ps.total_putts AS putts",
	"ps.total_makes AS makes",
	"ps.best_streak AS streak",
	"ps.fastest_21_makes AS fastest21",
	"ps.total_duration_seconds AS duration",
}

// League boards only count sessions submitted to the league's rounds.
var leagueTallyColumns = []string{
	"rs.player_id",
	"p.name",
	"COUNT(*) AS sessions",
	"COALESCE(SUM((s.stats_summary->>'total_putts')::numeric), 0)::int AS putts",
	"COALESCE(SUM((s.stats_summary->>'total_makes')::numeric), 0)::int AS makes",
	"COALESCE(MAX((s.stats_summary->>'best_streak')::numeric), 0)::int AS streak",
	"MIN(NULLIF((s.stats_summary->>'fastest_21_makes')::float8, 0)) AS fastest21",
	"COALESCE(SUM((s.stats_summary->>'session_duration')::float8), 0) AS duration",
}

var leaderboardCacheColumns = []string{
	"c.context_key",
	"c.context_type",
	"c.context_id",
	"c.metric",
	"c.player_id",
	"p.name AS player_name",
	"c.value",
	"c.sessions_count",
	"c.rank",
	"c.is_stale",
	"c.calculated_at",
}

func NewLeaderboardRepository(db *sqlx.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

func (r *LeaderboardRepository) Aggregate(ctx context.Context, c leaderboard.Context, m leaderboard.Metric) ([]leaderboard.Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var b *qb.SelectBuilder
	switch c.Type {
	case leaderboard.ContextLeague:
		b = qb.Select(leagueTallyColumns...).From("league_round_sessions rs").
			Join("league_memberships m ON m.league_id = rs.league_id AND m.player_id = rs.player_id AND m.is_active").
			Join("sessions s ON s.session_id = rs.session_id").
			Join("players p ON p.player_id = rs.player_id").
			Where(qb.Eq("rs.league_id", c.ID)).
			GroupBy("rs.player_id", "p.name")
	default:
		conds := []qb.Condition{qb.Eq("p.is_hidden", false), qb.Gt("ps.total_putts", 0)}
		switch c.Type {
		case leaderboard.ContextFriends:
			conds = append(conds, qb.Or(
				qb.Eq("p.player_id", c.ID),
				qb.Expr("p.player_id IN (SELECT friend_id FROM player_friends WHERE player_id = ?)", c.ID),
			))
		case leaderboard.ContextCustom:
			if _, found, err := r.GetGroup(ctx, c.ID); err != nil {
				return nil, err
			} else if !found {
				return nil, fmt.Errorf("leaderboard group %d not found", c.ID)
			}
			conds = append(conds, qb.Expr("p.player_id IN (SELECT player_id FROM leaderboard_group_members WHERE group_id = ?)", c.ID))
		}
		b = qb.Select(statsTallyColumns...).From("players p").
			Join("player_stats ps ON ps.player_id = p.player_id").
			Where(conds...)
	}

	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leaderboard tallies query: %w", err)
	}
	var rows []leaderboardTallyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select leaderboard tallies: %w", err)
	}

	tallies := make([]leaderboard.Tally, 0, len(rows))
	for _, row := range rows {
		tallies = append(tallies, row.toDomain())
	}
	return leaderboard.Entries(tallies, m), nil
}

func (r *LeaderboardRepository) ReadCache(ctx context.Context, c leaderboard.Context, m leaderboard.Metric) (leaderboard.Snapshot, bool, error) {
	query, args, err := qb.Select(leaderboardCacheColumns...).From("leaderboard_cache c").
		Join("players p ON p.player_id = c.player_id").
		Where(
			qb.Eq("c.context_key", c.Key()),
			qb.Eq("c.metric", m.Name),
		).
		OrderBy("c.rank", "c.player_id").
		ToSQL()
	if err != nil {
		return leaderboard.Snapshot{}, false, fmt.Errorf("build select leaderboard cache query: %w", err)
	}
	var rows []leaderboardCacheTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return leaderboard.Snapshot{}, false, fmt.Errorf("select leaderboard cache: %w", err)
	}
	snap, ok := toSnapshot(rows)
	return snap, ok, nil
}

// Ten bound columns per row keeps a batch well under the driver's
// parameter limit.
const leaderboardCacheBatchSize = 500

type cacheBatch struct {
	query string
	args  []any
}

// WriteCache replaces every row of one board in a single transaction.
func (r *LeaderboardRepository) WriteCache(ctx context.Context, c leaderboard.Context, m leaderboard.Metric, entries []leaderboard.Entry, at time.Time) error {
	deleteQuery, deleteArgs, err := qb.DeleteFrom("leaderboard_cache").
		Where(qb.Eq("context_key", c.Key()), qb.Eq("metric", m.Name)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete leaderboard cache query: %w", err)
	}
	batches, err := leaderboardCacheBatches(newLeaderboardCacheTableModels(c, m, entries, at), leaderboardCacheBatchSize)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, "write leaderboard cache", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("delete leaderboard cache: %w", err)
		}
		for _, b := range batches {
			if _, err := tx.ExecContext(ctx, b.query, b.args...); err != nil {
				return fmt.Errorf("insert leaderboard cache: %w", err)
			}
		}
		return nil
	})
}

func leaderboardCacheBatches(rows []leaderboardCacheTableModel, size int) ([]cacheBatch, error) {
	out := make([]cacheBatch, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		var insert *qb.InsertBuilder
		for _, row := range rows[start:end] {
			cols, vals, err := qb.ModelColumns(row)
			if err != nil {
				return nil, fmt.Errorf("leaderboard cache columns: %w", err)
			}
			if insert == nil {
				insert = qb.InsertInto("leaderboard_cache").Columns(cols...)
			}
			insert = insert.Values(vals...)
		}
		query, args, err := insert.ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build insert leaderboard cache query: %w", err)
		}
		out = append(out, cacheBatch{query: query, args: args})
	}
	return out, nil
}

func (r *LeaderboardRepository) MarkStale(ctx context.Context, contexts []leaderboard.Context) error {
	if len(contexts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(contexts))
	for _, c := range contexts {
		keys = append(keys, c.Key())
	}
	query, args, err := qb.Update("leaderboard_cache").
		Set("is_stale", true).
		Where(qb.In("context_key", keys)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark leaderboard stale query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark leaderboard stale: %w", err)
	}
	return nil
}

func (r *LeaderboardRepository) RefreshableContexts(ctx context.Context) ([]leaderboard.Context, error) {
	var leagueIDs []int64
	if err := r.db.SelectContext(ctx, &leagueIDs,
		"SELECT league_id FROM leagues WHERE status = $1 ORDER BY league_id", string(league.StatusActive)); err != nil {
		return nil, fmt.Errorf("select active leagues: %w", err)
	}
	var groupIDs []int64
	if err := r.db.SelectContext(ctx, &groupIDs, "SELECT group_id FROM leaderboard_groups ORDER BY group_id"); err != nil {
		return nil, fmt.Errorf("select leaderboard groups: %w", err)
	}

	out := make([]leaderboard.Context, 0, 1+len(leagueIDs)+len(groupIDs))
	out = append(out, leaderboard.Global())
	for _, id := range leagueIDs {
		out = append(out, leaderboard.Context{Type: leaderboard.ContextLeague, ID: id})
	}
	for _, id := range groupIDs {
		out = append(out, leaderboard.Context{Type: leaderboard.ContextCustom, ID: id})
	}
	return out, nil
}

func (r *LeaderboardRepository) CreateGroup(ctx context.Context, g leaderboard.Group) (leaderboard.Group, error) {
	model := leaderboardGroupTableModel{Name: g.Name, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt}
	err := withTx(ctx, r.db, "create leaderboard group", func(tx *sqlx.Tx) error {
		query, args, err := qb.InsertModel("leaderboard_groups", model, "RETURNING group_id")
		if err != nil {
			return fmt.Errorf("build insert leaderboard group query: %w", err)
		}
		if err := tx.GetContext(ctx, &model.ID, query, args...); err != nil {
			return fmt.Errorf("insert leaderboard group: %w", err)
		}
		if len(g.MemberIDs) == 0 {
			return nil
		}

		insert := qb.InsertInto("leaderboard_group_members").Columns("group_id", "player_id", "position")
		for i, id := range g.MemberIDs {
			insert = insert.Values(model.ID, id, i)
		}
		membersQuery, membersArgs, err := insert.Suffix("ON CONFLICT (group_id, player_id) DO NOTHING").ToSQL()
		if err != nil {
			return fmt.Errorf("build insert leaderboard group members query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, membersQuery, membersArgs...); err != nil {
			return fmt.Errorf("insert leaderboard group members: %w", err)
		}
		return nil
	})
	if err != nil {
		return leaderboard.Group{}, err
	}
	g.ID = model.ID
	g.MemberIDs = append([]int64(nil), g.MemberIDs...)
	return g, nil
}

func (r *LeaderboardRepository) GetGroup(ctx context.Context, id int64) (leaderboard.Group, bool, error) {
	query, args, err := qb.Select("group_id", "name", "created_by", "created_at").From("leaderboard_groups").
		Where(qb.Eq("group_id", id)).
		ToSQL()
	if err != nil {
		return leaderboard.Group{}, false, fmt.Errorf("build select leaderboard group query: %w", err)
	}
	var row leaderboardGroupTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return leaderboard.Group{}, false, nil
		}
		return leaderboard.Group{}, false, fmt.Errorf("select leaderboard group: %w", err)
	}

	var members []int64
	if err := r.db.SelectContext(ctx, &members,
		"SELECT player_id FROM leaderboard_group_members WHERE group_id = $1 ORDER BY position, player_id", id); err != nil {
		return leaderboard.Group{}, false, fmt.Errorf("select leaderboard group members: %w", err)
	}
	return leaderboard.Group{
		ID:        row.ID,
		Name:      row.Name,
		CreatedBy: row.CreatedBy,
		MemberIDs: members,
		CreatedAt: row.CreatedAt,
	}, true, nil
}

func (r *LeaderboardRepository) ListGroupIDsByMember(ctx context.Context, playerID int64) ([]int64, error) {
	out := make([]int64, 0)
	if err := r.db.SelectContext(ctx, &out,
		"SELECT group_id FROM leaderboard_group_members WHERE player_id = $1 ORDER BY group_id", playerID); err != nil {
		return nil, fmt.Errorf("select leaderboard groups by member: %w", err)
	}
	return out, nil
}
