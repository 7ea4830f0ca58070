package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/invitation"
)

type invitationTableModel struct {
	ID             int64                  `db:"invitation_id,omitinsert"`
	InviterID      int64                  `db:"inviter_id"`
	TargetPlayerID sql.NullInt64          `db:"target_player_id"`
	Type           string                 `db:"invitation_type"`
	Data           jsonb[invitation.Data] `db:"invitation_data"`
	Identifier     string                 `db:"identifier"`
	IdentifierType string                 `db:"identifier_type"`
	Message        string                 `db:"message"`
	Status         string                 `db:"status"`
	ExpiresAt      time.Time              `db:"expires_at"`
	RespondedAt    *time.Time             `db:"responded_at"`
	CreatedAt      time.Time              `db:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at"`
	InviterName    string                 `db:"inviter_name,omitinsert"`
}

func newInvitationTableModel(inv invitation.Invitation) invitationTableModel {
	m := invitationTableModel{
		InviterID:      inv.InviterID,
		Type:           string(inv.Type),
		Data:           jsonOf(inv.Data),
		Identifier:     inv.Identifier,
		IdentifierType: string(inv.IdentifierType),
		Message:        inv.Message,
		Status:         string(inv.Status),
		ExpiresAt:      inv.ExpiresAt,
		RespondedAt:    inv.RespondedAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
	if inv.TargetPlayerID > 0 {
		m.TargetPlayerID = sql.NullInt64{Int64: inv.TargetPlayerID, Valid: true}
	}
	if m.Status == "" {
		m.Status = string(invitation.StatusPending)
	}
	return m
}

func (m invitationTableModel) toDomain() invitation.Invitation {
	return invitation.Invitation{
		ID:             m.ID,
		InviterID:      m.InviterID,
		TargetPlayerID: m.TargetPlayerID.Int64,
		Type:           invitation.Type(m.Type),
		Data:           m.Data.V,
		Identifier:     m.Identifier,
		IdentifierType: invitation.IdentifierType(m.IdentifierType),
		Message:        m.Message,
		Status:         invitation.Status(m.Status),
		ExpiresAt:      m.ExpiresAt,
		RespondedAt:    m.RespondedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		InviterName:    m.InviterName,
	}
}
