package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/duel"
)

type duelTableModel struct {
	ID                int64             `db:"duel_id,omitinsert"`
	CreatorID         int64             `db:"duel_creator_id"`
	InvitedPlayerID   int64             `db:"duel_invited_player_id"`
	Status            string            `db:"status"`
	Rules             jsonb[duel.Rules] `db:"rules"`
	CreatorSessionID  sql.NullString    `db:"duel_creator_session_id"`
	InvitedSessionID  sql.NullString    `db:"duel_invited_session_id"`
	CreatorScore      sql.NullFloat64   `db:"duel_creator_score"`
	InvitedScore      sql.NullFloat64   `db:"duel_invited_score"`
	WinnerID          sql.NullInt64     `db:"winner_id"`
	InvitationMessage string            `db:"invitation_message"`
	ExpiresAt         time.Time         `db:"expires_at"`
	AcceptedAt        *time.Time        `db:"accepted_at"`
	CompletedAt       *time.Time        `db:"completed_at"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

func newDuelTableModel(d duel.Duel) duelTableModel {
	return duelTableModel{
		CreatorID:         d.CreatorID,
		InvitedPlayerID:   d.InvitedPlayerID,
		Status:            string(d.Status),
		Rules:             jsonOf(d.Rules),
		InvitationMessage: d.InvitationMessage,
		ExpiresAt:         d.Deadline(),
		AcceptedAt:        d.AcceptedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (m duelTableModel) toDomain() duel.Duel {
	return duel.Duel{
		ID:                m.ID,
		CreatorID:         m.CreatorID,
		InvitedPlayerID:   m.InvitedPlayerID,
		Status:            duel.Status(m.Status),
		Rules:             m.Rules.V,
		CreatorSessionID:  stringPtr(m.CreatorSessionID),
		InvitedSessionID:  stringPtr(m.InvitedSessionID),
		CreatorScore:      float64Ptr(m.CreatorScore),
		InvitedScore:      float64Ptr(m.InvitedScore),
		WinnerID:          int64Ptr(m.WinnerID),
		InvitationMessage: m.InvitationMessage,
		ExpiresAt:         m.ExpiresAt,
		AcceptedAt:        m.AcceptedAt,
		CompletedAt:       m.CompletedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
