package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/league"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

var leagueSelectColumns = []string{
	"l.league_id",
	"l.name",
	"l.slug",
	"l.description",
	"l.created_by",
	"l.status",
	"l.rules",
	"l.max_members",
	"l.started_at",
	"l.completed_at",
	"l.created_at",
	"l.updated_at",
	"(SELECT COUNT(*) FROM league_memberships lm WHERE lm.league_id = l.league_id AND lm.is_active) AS member_count",
	"(SELECT lr.round_number FROM league_rounds lr WHERE lr.league_id = l.league_id AND lr.status = 'active' ORDER BY lr.round_number LIMIT 1) AS active_round",
}

var membershipSelectColumns = []string{
	"m.league_id",
	"m.player_id",
	"p.name AS player_name",
	"m.member_role",
	"m.is_active",
	"m.sessions_this_round",
	"m.joined_at",
}

var roundSelectColumns = []string{
	"round_id",
	"league_id",
	"round_number",
	"start_time",
	"end_time",
	"status",
}

var leagueInvitationSelectColumns = []string{
	"invitation_id",
	"league_id",
	"league_inviter_id",
	"league_invited_player_id",
	"invitation_status",
	"invitation_message",
	"invited_at",
	"expires_at",
	"responded_at",
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) CreateWithOwner(ctx context.Context, l league.League) (league.League, error) {
	model := newLeagueTableModel(l)
	err := withTx(ctx, r.db, "create league", func(tx *sqlx.Tx) error {
		query, args, err := qb.InsertModel("leagues", model, "RETURNING league_id")
		if err != nil {
			return fmt.Errorf("build insert league query: %w", err)
		}
		if err := tx.GetContext(ctx, &model.ID, query, args...); err != nil {
			return fmt.Errorf("insert league: %w", err)
		}

		owner := leagueMembershipTableModel{
			LeagueID: model.ID,
			PlayerID: l.CreatedBy,
			Role:     string(league.RoleOwner),
			IsActive: true,
			JoinedAt: l.CreatedAt,
		}
		memberQuery, memberArgs, err := qb.InsertModel("league_memberships", owner, "")
		if err != nil {
			return fmt.Errorf("build insert league owner query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, memberQuery, memberArgs...); err != nil {
			return fmt.Errorf("insert league owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return league.League{}, err
	}
	model.MemberCount = 1
	return model.toDomain(), nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, id int64) (league.League, bool, error) {
	query, args, err := qb.Select(leagueSelectColumns...).From("leagues l").
		Where(qb.Eq("l.league_id", id)).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build select league query: %w", err)
	}
	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("select league: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *LeagueRepository) ListByMember(ctx context.Context, playerID int64) ([]league.League, error) {
	query, args, err := qb.Select(leagueSelectColumns...).From("leagues l").
		Join("league_memberships mine ON mine.league_id = l.league_id AND mine.player_id = ? AND mine.is_active", playerID).
		OrderBy("l.created_at DESC", "l.league_id DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leagues by member query: %w", err)
	}
	return r.selectLeagues(ctx, "by member", query, args)
}

// ListPublic mirrors League.Joinable: open statuses, late joiners only when allowed.
func (r *LeagueRepository) ListPublic(ctx context.Context, excludePlayerID int64, limit int) ([]league.League, error) {
	query, args, err := qb.Select(leagueSelectColumns...).From("leagues l").
		Where(
			qb.Eq("l.rules->>'privacy'", string(league.PrivacyPublic)),
			qb.In("l.status", []string{string(league.StatusSetup), string(league.StatusRegistering), string(league.StatusActive)}),
			qb.Expr("(l.status <> 'active' OR COALESCE((l.rules->>'allow_late_joiners')::boolean, FALSE))"),
			qb.Expr("NOT EXISTS (SELECT 1 FROM league_memberships x WHERE x.league_id = l.league_id AND x.player_id = ? AND x.is_active)", excludePlayerID),
		).
		OrderBy("l.created_at DESC", "l.league_id DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select public leagues query: %w", err)
	}
	return r.selectLeagues(ctx, "public", query, args)
}

func (r *LeagueRepository) selectLeagues(ctx context.Context, label, query string, args []any) ([]league.League, error) {
	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select leagues %s: %w", label, err)
	}
	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *LeagueRepository) ListMembers(ctx context.Context, leagueID int64) ([]league.Membership, error) {
	query, args, err := qb.Select(membershipSelectColumns...).From("league_memberships m").
		Join("players p ON p.player_id = m.player_id").
		Where(qb.Eq("m.league_id", leagueID), qb.Eq("m.is_active", true)).
		OrderBy("m.joined_at", "m.player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league members query: %w", err)
	}
	var rows []leagueMembershipTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league members: %w", err)
	}
	out := make([]league.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *LeagueRepository) GetMembership(ctx context.Context, leagueID, playerID int64) (league.Membership, bool, error) {
	query, args, err := qb.Select(membershipSelectColumns...).From("league_memberships m").
		Join("players p ON p.player_id = m.player_id").
		Where(qb.Eq("m.league_id", leagueID), qb.Eq("m.player_id", playerID)).
		ToSQL()
	if err != nil {
		return league.Membership{}, false, fmt.Errorf("build select league membership query: %w", err)
	}
	var row leagueMembershipTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.Membership{}, false, nil
		}
		return league.Membership{}, false, fmt.Errorf("select league membership: %w", err)
	}
	return row.toDomain(), true, nil
}

// AddMember locks the league row so the capacity check and insert are atomic.
func (r *LeagueRepository) AddMember(ctx context.Context, m league.Membership) error {
	return withTx(ctx, r.db, "add league member", func(tx *sqlx.Tx) error {
		var maxMembers struct {
			Value *int `db:"max_members"`
		}
		lockQuery, lockArgs, err := qb.Select("max_members").From("leagues").
			Where(qb.Eq("league_id", m.LeagueID)).
			ForUpdate().
			ToSQL()
		if err != nil {
			return fmt.Errorf("build lock league query: %w", err)
		}
		if err := tx.GetContext(ctx, &maxMembers, lockQuery, lockArgs...); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("league %d not found", m.LeagueID)
			}
			return fmt.Errorf("lock league: %w", err)
		}

		var counts struct {
			Active int  `db:"active"`
			Member bool `db:"member"`
		}
		err = tx.GetContext(ctx, &counts, `SELECT
			COUNT(*) FILTER (WHERE is_active) AS active,
			COALESCE(BOOL_OR(player_id = $2 AND is_active), FALSE) AS member
			FROM league_memberships WHERE league_id = $1`, m.LeagueID, m.PlayerID)
		if err != nil {
			return fmt.Errorf("count league members: %w", err)
		}
		if counts.Member {
			return league.ErrAlreadyMember
		}
		if l := (league.League{MaxMembers: maxMembers.Value}); l.Full(counts.Active) {
			return league.ErrLeagueFull
		}

		if m.Role == "" {
			m.Role = league.RoleMember
		}
		row := leagueMembershipTableModel{
			LeagueID: m.LeagueID,
			PlayerID: m.PlayerID,
			Role:     string(m.Role),
			IsActive: true,
			JoinedAt: m.JoinedAt,
		}
		query, args, err := qb.InsertModel("league_memberships", row, `ON CONFLICT (league_id, player_id) DO UPDATE SET
			member_role = EXCLUDED.member_role,
			is_active = TRUE,
			sessions_this_round = 0,
			joined_at = EXCLUDED.joined_at`)
		if err != nil {
			return fmt.Errorf("build insert league member query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert league member: %w", err)
		}
		return nil
	})
}

func (r *LeagueRepository) Start(ctx context.Context, leagueID int64, at time.Time, rounds []league.Round) (bool, error) {
	started := false
	err := withTx(ctx, r.db, "start league", func(tx *sqlx.Tx) error {
		query, args, err := qb.Update("leagues").
			Set("status", string(league.StatusActive)).
			Set("started_at", at).
			Set("updated_at", at).
			Where(
				qb.Eq("league_id", leagueID),
				qb.In("status", []string{string(league.StatusSetup), string(league.StatusRegistering)}),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build start league query: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("start league: %w", err)
		}
		n, err := rowsAffected(res, "start league")
		if err != nil || n == 0 {
			return err
		}
		started = true

		if len(rounds) == 0 {
			return nil
		}
		insert := qb.InsertInto("league_rounds").
			Columns("league_id", "round_number", "start_time", "end_time", "status")
		for _, round := range rounds {
			insert = insert.Values(leagueID, round.Number, round.StartTime, round.EndTime, string(round.Status))
		}
		roundsQuery, roundsArgs, err := insert.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert league rounds query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, roundsQuery, roundsArgs...); err != nil {
			return fmt.Errorf("insert league rounds: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return started, nil
}

func (r *LeagueRepository) ListRounds(ctx context.Context, leagueID int64) ([]league.Round, error) {
	query, args, err := qb.Select(roundSelectColumns...).From("league_rounds").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("round_number").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league rounds query: %w", err)
	}
	var rows []leagueRoundTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league rounds: %w", err)
	}
	out := make([]league.Round, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *LeagueRepository) GetRound(ctx context.Context, roundID int64) (league.Round, bool, error) {
	query, args, err := qb.Select(roundSelectColumns...).From("league_rounds").
		Where(qb.Eq("round_id", roundID)).
		ToSQL()
	if err != nil {
		return league.Round{}, false, fmt.Errorf("build select league round query: %w", err)
	}
	var row leagueRoundTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.Round{}, false, nil
		}
		return league.Round{}, false, fmt.Errorf("select league round: %w", err)
	}
	return row.toDomain(), true, nil
}

// SubmitRoundSession keeps one scored session per player per round.
func (r *LeagueRepository) SubmitRoundSession(ctx context.Context, rs league.RoundSession) (bool, error) {
	var replaced bool
	err := withTx(ctx, r.db, "submit round session", func(tx *sqlx.Tx) error {
		query, args, err := qb.InsertInto("league_round_sessions").
			Columns("round_id", "league_id", "player_id", "session_id", "total_score", "submitted_at").
			Values(rs.RoundID, rs.LeagueID, rs.PlayerID, rs.SessionID, rs.Score, rs.SubmittedAt).
			Suffix(`ON CONFLICT (round_id, player_id) DO UPDATE SET
				session_id = EXCLUDED.session_id,
				total_score = EXCLUDED.total_score,
				submitted_at = EXCLUDED.submitted_at
				RETURNING (xmax <> 0) AS replaced`).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert round session query: %w", err)
		}
		if err := tx.GetContext(ctx, &replaced, query, args...); err != nil {
			return fmt.Errorf("upsert round session: %w", err)
		}
		if replaced {
			return nil
		}

		bump, bumpArgs, err := qb.Update("league_memberships").
			SetExpr("sessions_this_round", "sessions_this_round + 1").
			Where(qb.Eq("league_id", rs.LeagueID), qb.Eq("player_id", rs.PlayerID)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build bump sessions this round query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, bump, bumpArgs...); err != nil {
			return fmt.Errorf("bump sessions this round: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return replaced, nil
}

func (r *LeagueRepository) Standings(ctx context.Context, leagueID int64) ([]league.Standing, error) {
	query, args, err := qb.Select(
		"m.player_id",
		"p.name AS player_name",
		"COALESCE(SUM(rs.total_score), 0) AS total_score",
		"COUNT(rs.round_id) AS rounds_played",
	).From("league_memberships m").
		Join("players p ON p.player_id = m.player_id").
		LeftJoin("league_round_sessions rs ON rs.league_id = m.league_id AND rs.player_id = m.player_id").
		Where(qb.Eq("m.league_id", leagueID), qb.Eq("m.is_active", true)).
		GroupBy("m.player_id", "p.name").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league standings query: %w", err)
	}
	var rows []leagueStandingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league standings: %w", err)
	}
	out := make([]league.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, league.Standing{
			PlayerID:     row.PlayerID,
			PlayerName:   row.PlayerName,
			TotalScore:   row.TotalScore,
			RoundsPlayed: row.RoundsPlayed,
		})
	}
	return out, nil
}

// AdvanceRounds closes at most one elapsed round per active league.
func (r *LeagueRepository) AdvanceRounds(ctx context.Context, now time.Time) ([]league.RoundAdvance, error) {
	out := make([]league.RoundAdvance, 0)
	err := withTx(ctx, r.db, "advance league rounds", func(tx *sqlx.Tx) error {
		var due []leagueRoundTableModel
		err := tx.SelectContext(ctx, &due, `SELECT
			lr.round_id, lr.league_id, lr.round_number, lr.start_time, lr.end_time, lr.status
			FROM league_rounds lr
			JOIN leagues l ON l.league_id = lr.league_id AND l.status = 'active'
			WHERE lr.status = 'active' AND lr.end_time <= $1
			ORDER BY lr.league_id, lr.round_number
			FOR UPDATE OF lr`, now)
		if err != nil {
			return fmt.Errorf("select due league rounds: %w", err)
		}

		seen := make(map[int64]struct{}, len(due))
		for _, round := range due {
			if _, ok := seen[round.LeagueID]; ok {
				continue
			}
			seen[round.LeagueID] = struct{}{}
			adv, err := advanceRound(ctx, tx, round, now)
			if err != nil {
				return err
			}
			out = append(out, adv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func advanceRound(ctx context.Context, tx *sqlx.Tx, round leagueRoundTableModel, now time.Time) (league.RoundAdvance, error) {
	adv := league.RoundAdvance{LeagueID: round.LeagueID, CompletedRound: round.Number}

	if _, err := tx.ExecContext(ctx, "UPDATE league_rounds SET status = $1 WHERE round_id = $2",
		string(league.RoundCompleted), round.ID); err != nil {
		return adv, fmt.Errorf("complete league round: %w", err)
	}

	var next int
	err := tx.GetContext(ctx, &next, `UPDATE league_rounds SET status = $1
		WHERE league_id = $2 AND round_number = $3 AND status = $4
		RETURNING round_number`,
		string(league.RoundActive), round.LeagueID, round.Number+1, string(league.RoundScheduled))
	switch {
	case err == nil:
		adv.ActivatedRound = &next
	case isNotFound(err):
		query, args, buildErr := qb.Update("leagues").
			Set("status", string(league.StatusCompleted)).
			Set("completed_at", now).
			Set("updated_at", now).
			Where(qb.Eq("league_id", round.LeagueID)).
			ToSQL()
		if buildErr != nil {
			return adv, fmt.Errorf("build complete league query: %w", buildErr)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return adv, fmt.Errorf("complete league: %w", err)
		}
		adv.LeagueFinished = true
	default:
		return adv, fmt.Errorf("activate next league round: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE league_memberships SET sessions_this_round = 0 WHERE league_id = $1", round.LeagueID); err != nil {
		return adv, fmt.Errorf("reset sessions this round: %w", err)
	}
	return adv, nil
}

func (r *LeagueRepository) CreateInvitation(ctx context.Context, inv league.Invitation) (league.Invitation, error) {
	if inv.Status == "" {
		inv.Status = league.InvitationPending
	}
	expireQuery, expireArgs, err := qb.Update("league_invitations").
		Set("invitation_status", string(league.InvitationExpired)).
		Where(
			qb.Eq("league_id", inv.LeagueID),
			qb.Eq("league_invited_player_id", inv.InviteeID),
			qb.Eq("invitation_status", string(league.InvitationPending)),
			qb.Lte("expires_at", inv.InvitedAt),
		).
		ToSQL()
	if err != nil {
		return league.Invitation{}, fmt.Errorf("build expire lapsed league invitations query: %w", err)
	}
	query, args, err := qb.InsertModel("league_invitations", newLeagueInvitationTableModel(inv),
		"RETURNING "+strings.Join(leagueInvitationSelectColumns, ", "))
	if err != nil {
		return league.Invitation{}, fmt.Errorf("build insert league invitation query: %w", err)
	}

	var row leagueInvitationTableModel
	err = withTx(ctx, r.db, "create league invitation", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, expireQuery, expireArgs...); err != nil {
			return fmt.Errorf("expire lapsed league invitations: %w", err)
		}
		if err := tx.GetContext(ctx, &row, query, args...); err != nil {
			return fmt.Errorf("insert league invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return league.Invitation{}, err
	}
	return row.toDomain(), nil
}

func (r *LeagueRepository) GetInvitation(ctx context.Context, id int64) (league.Invitation, bool, error) {
	query, args, err := qb.Select(leagueInvitationSelectColumns...).From("league_invitations").
		Where(qb.Eq("invitation_id", id)).
		ToSQL()
	if err != nil {
		return league.Invitation{}, false, fmt.Errorf("build select league invitation query: %w", err)
	}
	var row leagueInvitationTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.Invitation{}, false, nil
		}
		return league.Invitation{}, false, fmt.Errorf("select league invitation: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *LeagueRepository) HasPendingInvitation(ctx context.Context, leagueID, playerID int64, now time.Time) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM league_invitations
		WHERE league_id = $1 AND league_invited_player_id = $2 AND invitation_status = 'pending'
		AND expires_at > $3)`,
		leagueID, playerID, now)
	if err != nil {
		return false, fmt.Errorf("select pending league invitation: %w", err)
	}
	return ok, nil
}

func (r *LeagueRepository) SetInvitationStatus(ctx context.Context, id int64, from, to league.InvitationStatus, at time.Time) (bool, error) {
	query, args, err := qb.Update("league_invitations").
		Set("invitation_status", string(to)).
		Set("responded_at", at).
		Where(qb.Eq("invitation_id", id), qb.Eq("invitation_status", string(from))).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update league invitation status query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update league invitation status: %w", err)
	}
	n, err := rowsAffected(res, "update league invitation status")
	return n > 0, err
}

func (r *LeagueRepository) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	query, args, err := qb.Update("league_invitations").
		Set("invitation_status", string(league.InvitationExpired)).
		Where(
			qb.Eq("invitation_status", string(league.InvitationPending)),
			qb.Lte("expires_at", now),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build expire league invitations query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire league invitations: %w", err)
	}
	return rowsAffected(res, "expire league invitations")
}
