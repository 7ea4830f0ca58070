package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type InvitationRepository struct {
	db *sqlx.DB
}

var invitationSelectColumns = []string{
	"i.invitation_id",
	"i.inviter_id",
	"i.target_player_id",
	"i.invitation_type",
	"i.invitation_data",
	"i.identifier",
	"i.identifier_type",
	"i.message",
	"i.status",
	"i.expires_at",
	"i.responded_at",
	"i.created_at",
	"i.updated_at",
	"COALESCE(p.name, '') AS inviter_name",
}

func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create first expires lapsed pending rows for the same inviter, identifier,
// type and data so they stop holding the active-invitation index.
func (r *InvitationRepository) Create(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	model := newInvitationTableModel(inv)
	expireQuery, expireArgs, err := qb.Update("player_invitations").
		Set("status", string(invitation.StatusExpired)).
		Set("updated_at", model.CreatedAt).
		Where(
			qb.Eq("inviter_id", model.InviterID),
			qb.Eq("identifier", model.Identifier),
			qb.Eq("invitation_type", model.Type),
			qb.Expr("invitation_data = ?::jsonb", model.Data),
			qb.Eq("status", string(invitation.StatusPending)),
			qb.Lte("expires_at", model.CreatedAt),
		).
		ToSQL()
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("build expire lapsed invitations query: %w", err)
	}
	query, args, err := qb.InsertModel("player_invitations", model, "RETURNING invitation_id")
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("build insert invitation query: %w", err)
	}
	err = withTx(ctx, r.db, "create invitation", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, expireQuery, expireArgs...); err != nil {
			return fmt.Errorf("expire lapsed invitations: %w", err)
		}
		if err := tx.GetContext(ctx, &model.ID, query, args...); err != nil {
			return fmt.Errorf("insert invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return invitation.Invitation{}, err
	}

	created, found, err := r.GetByID(ctx, model.ID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if !found {
		return model.toDomain(), nil
	}
	return created, nil
}

func (r *InvitationRepository) GetByID(ctx context.Context, id int64) (invitation.Invitation, bool, error) {
	query, args, err := r.selectBuilder().Where(qb.Eq("i.invitation_id", id)).ToSQL()
	if err != nil {
		return invitation.Invitation{}, false, fmt.Errorf("build select invitation query: %w", err)
	}
	var row invitationTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return invitation.Invitation{}, false, nil
		}
		return invitation.Invitation{}, false, fmt.Errorf("select invitation: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *InvitationRepository) ListSent(ctx context.Context, inviterID int64) ([]invitation.Invitation, error) {
	return r.list(ctx, "sent", qb.Eq("i.inviter_id", inviterID))
}

func (r *InvitationRepository) ListReceived(ctx context.Context, playerID int64) ([]invitation.Invitation, error) {
	return r.list(ctx, "received", qb.Eq("i.target_player_id", playerID))
}

func (r *InvitationRepository) selectBuilder() *qb.SelectBuilder {
	return qb.Select(invitationSelectColumns...).From("player_invitations i").
		LeftJoin("players p ON p.player_id = i.inviter_id")
}

func (r *InvitationRepository) list(ctx context.Context, label string, cond qb.Condition) ([]invitation.Invitation, error) {
	query, args, err := r.selectBuilder().
		Where(cond).
		OrderBy("i.created_at DESC", "i.invitation_id DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select %s invitations query: %w", label, err)
	}
	var rows []invitationTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s invitations: %w", label, err)
	}
	out := make([]invitation.Invitation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *InvitationRepository) SetStatus(ctx context.Context, id int64, from, to invitation.Status, at time.Time) (bool, error) {
	b := qb.Update("player_invitations").
		Set("status", string(to)).
		Set("updated_at", at)
	if to != invitation.StatusExpired {
		b = b.Set("responded_at", at)
	}
	query, args, err := b.Where(qb.Eq("invitation_id", id), qb.Eq("status", string(from))).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update invitation status query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update invitation status: %w", err)
	}
	n, err := rowsAffected(res, "update invitation status")
	return n > 0, err
}

// AcceptClaim flips the invitation to accepted, repoints everything
// addressed to the placeholder at the real account, then marks the
// placeholder claimed.
func (r *InvitationRepository) AcceptClaim(ctx context.Context, invitationID, hiddenID, ownerID int64, at time.Time) (bool, error) {
	accepted := false
	err := withTx(ctx, r.db, "accept claim", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE player_invitations
			SET status = $1, responded_at = $2, updated_at = $2
			WHERE invitation_id = $3 AND status = $4`,
			string(invitation.StatusAccepted), at, invitationID, string(invitation.StatusPending))
		if err != nil {
			return fmt.Errorf("accept invitation: %w", err)
		}
		n, err := rowsAffected(res, "accept invitation")
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		var hidden bool
		err := tx.GetContext(ctx, &hidden, `SELECT is_hidden AND claimed_at IS NULL
			FROM players WHERE player_id = $1 FOR UPDATE`, hiddenID)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("lock hidden player: %w", err)
		}
		if !hidden {
			return fmt.Errorf("player %d is not an unclaimed placeholder", hiddenID)
		}

		var ownerExists bool
		if err := tx.GetContext(ctx, &ownerExists, "SELECT EXISTS (SELECT 1 FROM players WHERE player_id = $1)", ownerID); err != nil {
			return fmt.Errorf("select claiming player: %w", err)
		}
		if !ownerExists {
			return fmt.Errorf("player %d not found", ownerID)
		}

		steps := []struct {
			name string
			sql  string
			args []any
		}{
			{"repoint invitations", "UPDATE player_invitations SET target_player_id = $1, updated_at = $2 WHERE target_player_id = $3", []any{ownerID, at, hiddenID}},
			{"repoint invited duels", "UPDATE duels SET duel_invited_player_id = $1, updated_at = $2 WHERE duel_invited_player_id = $3", []any{ownerID, at, hiddenID}},
			{"repoint created duels", "UPDATE duels SET duel_creator_id = $1, updated_at = $2 WHERE duel_creator_id = $3", []any{ownerID, at, hiddenID}},
			{"repoint league invitations", "UPDATE league_invitations SET league_invited_player_id = $1 WHERE league_invited_player_id = $2", []any{ownerID, hiddenID}},
			{"mark placeholder claimed", "UPDATE players SET claimed_at = $1, updated_at = $1 WHERE player_id = $2", []any{at, hiddenID}},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.sql, step.args...); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

func (r *InvitationRepository) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	query, args, err := qb.Update("player_invitations").
		Set("status", string(invitation.StatusExpired)).
		Set("updated_at", now).
		Where(
			qb.Eq("status", string(invitation.StatusPending)),
			qb.Lte("expires_at", now),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build expire invitations query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	return rowsAffected(res, "expire invitations")
}
