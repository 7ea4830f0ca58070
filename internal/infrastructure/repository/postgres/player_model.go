package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/player"
)

type playerTableModel struct {
	ID                   int64          `db:"player_id,omitinsert"`
	Name                 string         `db:"name"`
	Email                string         `db:"email"`
	PasswordHash         string         `db:"password_hash"`
	MembershipTier       string         `db:"membership_tier"`
	SubscriptionStatus   string         `db:"subscription_status"`
	Timezone             string         `db:"timezone"`
	IsHidden             bool           `db:"is_hidden"`
	InvitationIdentifier sql.NullString `db:"invitation_identifier"`
	IdentifierType       sql.NullString `db:"identifier_type"`
	InvitedBy            sql.NullInt64  `db:"invited_by"`
	InvitedAt            *time.Time     `db:"invited_at"`
	ClaimedAt            *time.Time     `db:"claimed_at"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func newPlayerTableModel(p player.Player) playerTableModel {
	m := playerTableModel{
		Name:                 p.Name,
		Email:                p.Email,
		PasswordHash:         p.PasswordHash,
		MembershipTier:       p.MembershipTier,
		SubscriptionStatus:   p.SubscriptionStatus,
		Timezone:             p.Timezone,
		IsHidden:             p.IsHidden,
		InvitationIdentifier: toNullString(p.InvitationIdentifier),
		IdentifierType:       toNullString(p.IdentifierType),
		InvitedAt:            p.InvitedAt,
		ClaimedAt:            p.ClaimedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if p.InvitedBy != nil {
		m.InvitedBy = sql.NullInt64{Int64: *p.InvitedBy, Valid: true}
	}
	if m.MembershipTier == "" {
		m.MembershipTier = player.TierBasic
	}
	if m.SubscriptionStatus == "" {
		m.SubscriptionStatus = "inactive"
	}
	if m.Timezone == "" {
		m.Timezone = "America/New_York"
	}
	return m
}

func (m playerTableModel) toDomain() player.Player {
	return player.Player{
		ID:                   m.ID,
		Name:                 m.Name,
		Email:                m.Email,
		PasswordHash:         m.PasswordHash,
		MembershipTier:       m.MembershipTier,
		SubscriptionStatus:   m.SubscriptionStatus,
		Timezone:             m.Timezone,
		IsHidden:             m.IsHidden,
		InvitationIdentifier: nullString(m.InvitationIdentifier),
		IdentifierType:       nullString(m.IdentifierType),
		InvitedBy:            int64Ptr(m.InvitedBy),
		InvitedAt:            m.InvitedAt,
		ClaimedAt:            m.ClaimedAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

type playerStatsTableModel struct {
	PlayerID             int64           `db:"player_id"`
	TotalSessions        int             `db:"total_sessions"`
	TotalPutts           int             `db:"total_putts"`
	TotalMakes           int             `db:"total_makes"`
	TotalMisses          int             `db:"total_misses"`
	MakePercentage       float64         `db:"make_percentage"`
	BestStreak           int             `db:"best_streak"`
	Fastest21Makes       sql.NullFloat64 `db:"fastest_21_makes"`
	TotalDurationSeconds float64         `db:"total_duration_seconds"`
	LastSessionAt        *time.Time      `db:"last_session_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

func newPlayerStatsTableModel(st player.Stats) playerStatsTableModel {
	m := playerStatsTableModel{
		PlayerID:             st.PlayerID,
		TotalSessions:        st.TotalSessions,
		TotalPutts:           st.TotalPutts,
		TotalMakes:           st.TotalMakes,
		TotalMisses:          st.TotalMisses,
		MakePercentage:       st.MakePercentage,
		BestStreak:           st.BestStreak,
		TotalDurationSeconds: st.TotalDurationSeconds,
		LastSessionAt:        st.LastSessionAt,
		UpdatedAt:            st.UpdatedAt,
	}
	if st.Fastest21Makes != nil {
		m.Fastest21Makes = sql.NullFloat64{Float64: *st.Fastest21Makes, Valid: true}
	}
	return m
}

func (m playerStatsTableModel) toDomain() player.Stats {
	return player.Stats{
		PlayerID:             m.PlayerID,
		TotalSessions:        m.TotalSessions,
		TotalPutts:           m.TotalPutts,
		TotalMakes:           m.TotalMakes,
		TotalMisses:          m.TotalMisses,
		MakePercentage:       m.MakePercentage,
		BestStreak:           m.BestStreak,
		Fastest21Makes:       float64Ptr(m.Fastest21Makes),
		TotalDurationSeconds: m.TotalDurationSeconds,
		LastSessionAt:        m.LastSessionAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
