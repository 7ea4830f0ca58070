package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/league"
)

type leagueTableModel struct {
	ID          int64                  `db:"league_id,omitinsert"`
	Name        string                 `db:"name"`
	Slug        string                 `db:"slug"`
	Description string                 `db:"description"`
	CreatedBy   int64                  `db:"created_by"`
	Status      string                 `db:"status"`
	Rules       jsonb[league.Settings] `db:"rules"`
	MaxMembers  sql.NullInt64          `db:"max_members"`
	StartedAt   *time.Time             `db:"started_at"`
	CompletedAt *time.Time             `db:"completed_at"`
	CreatedAt   time.Time              `db:"created_at"`
	UpdatedAt   time.Time              `db:"updated_at"`
	MemberCount int                    `db:"member_count,omitinsert"`
	ActiveRound sql.NullInt64          `db:"active_round,omitinsert"`
}

func newLeagueTableModel(l league.League) leagueTableModel {
	m := leagueTableModel{
		Name:        l.Name,
		Slug:        l.Slug,
		Description: l.Description,
		CreatedBy:   l.CreatedBy,
		Status:      string(l.Status),
		Rules:       jsonOf(l.Settings),
		StartedAt:   l.StartedAt,
		CompletedAt: l.CompletedAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.MaxMembers != nil {
		m.MaxMembers = sql.NullInt64{Int64: int64(*l.MaxMembers), Valid: true}
	}
	return m
}

func (m leagueTableModel) toDomain() league.League {
	l := league.League{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		CreatedBy:   m.CreatedBy,
		Status:      league.Status(m.Status),
		Settings:    m.Rules.V,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		MemberCount: m.MemberCount,
	}
	if m.MaxMembers.Valid {
		n := int(m.MaxMembers.Int64)
		l.MaxMembers = &n
	}
	if m.ActiveRound.Valid {
		n := int(m.ActiveRound.Int64)
		l.ActiveRound = &n
	}
	return l
}

type leagueMembershipTableModel struct {
	LeagueID          int64     `db:"league_id"`
	PlayerID          int64     `db:"player_id"`
	PlayerName        string    `db:"player_name,omitinsert"`
	Role              string    `db:"member_role"`
	IsActive          bool      `db:"is_active"`
	SessionsThisRound int       `db:"sessions_this_round"`
	JoinedAt          time.Time `db:"joined_at"`
}

func (m leagueMembershipTableModel) toDomain() league.Membership {
	return league.Membership{
		LeagueID:          m.LeagueID,
		PlayerID:          m.PlayerID,
		PlayerName:        m.PlayerName,
		Role:              league.Role(m.Role),
		IsActive:          m.IsActive,
		SessionsThisRound: m.SessionsThisRound,
		JoinedAt:          m.JoinedAt,
	}
}

type leagueRoundTableModel struct {
	ID        int64     `db:"round_id,omitinsert"`
	LeagueID  int64     `db:"league_id"`
	Number    int       `db:"round_number"`
	StartTime time.Time `db:"start_time"`
	EndTime   time.Time `db:"end_time"`
	Status    string    `db:"status"`
}

func (m leagueRoundTableModel) toDomain() league.Round {
	return league.Round{
		ID:        m.ID,
		LeagueID:  m.LeagueID,
		Number:    m.Number,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Status:    league.RoundStatus(m.Status),
	}
}

type leagueStandingRow struct {
	PlayerID     int64   `db:"player_id"`
	PlayerName   string  `db:"player_name"`
	TotalScore   float64 `db:"total_score"`
	RoundsPlayed int     `db:"rounds_played"`
}

type leagueInvitationTableModel struct {
	ID          int64      `db:"invitation_id,omitinsert"`
	LeagueID    int64      `db:"league_id"`
	InviterID   int64      `db:"league_inviter_id"`
	InviteeID   int64      `db:"league_invited_player_id"`
	Status      string     `db:"invitation_status"`
	Message     string     `db:"invitation_message"`
	InvitedAt   time.Time  `db:"invited_at"`
	ExpiresAt   time.Time  `db:"expires_at"`
	RespondedAt *time.Time `db:"responded_at"`
}

func newLeagueInvitationTableModel(inv league.Invitation) leagueInvitationTableModel {
	return leagueInvitationTableModel{
		LeagueID:    inv.LeagueID,
		InviterID:   inv.InviterID,
		InviteeID:   inv.InviteeID,
		Status:      string(inv.Status),
		Message:     inv.Message,
		InvitedAt:   inv.InvitedAt,
		ExpiresAt:   inv.ExpiresAt,
		RespondedAt: inv.RespondedAt,
	}
}

func (m leagueInvitationTableModel) toDomain() league.Invitation {
	return league.Invitation{
		ID:          m.ID,
		LeagueID:    m.LeagueID,
		InviterID:   m.InviterID,
		InviteeID:   m.InviteeID,
		Status:      league.InvitationStatus(m.Status),
		Message:     m.Message,
		InvitedAt:   m.InvitedAt,
		ExpiresAt:   m.ExpiresAt,
		RespondedAt: m.RespondedAt,
	}
}
