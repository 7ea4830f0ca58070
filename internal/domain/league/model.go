package league

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type Status string

const (
	StatusSetup       Status = "setup"
	StatusRegistering Status = "registering"
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// AcceptsMembers is true while new members may still be added.
func (s Status) AcceptsMembers() bool {
	return s == StatusSetup || s == StatusRegistering || s == StatusActive
}

func (s Status) Startable() bool {
	return s == StatusSetup || s == StatusRegistering
}

type Privacy string

const (
	PrivacyPublic         Privacy = "public"
	PrivacyPrivate        Privacy = "private"
	PrivacyInvitationOnly Privacy = "invitation_only"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var (
	ErrLeagueFull    = errors.New("league is full")
	ErrAlreadyMember = errors.New("player is already a member")
)

type Settings struct {
	Privacy            Privacy `json:"privacy"`
	NumRounds          int     `json:"num_rounds"`
	RoundDurationHours int     `json:"round_duration_hours"`
	TimeLimitMinutes   int     `json:"time_limit_minutes"`
	ScoringType        string  `json:"scoring_type"`
	AllowLateJoiners   bool    `json:"allow_late_joiners"`
	AllowPlayerInvites bool    `json:"allow_player_invites"`
	IsIRL              bool    `json:"is_irl"`
}

func DefaultSettings() Settings {
	return Settings{
		Privacy:            PrivacyPublic,
		NumRounds:          4,
		RoundDurationHours: 168,
		TimeLimitMinutes:   30,
		ScoringType:        "total_makes",
		AllowLateJoiners:   true,
		AllowPlayerInvites: true,
	}
}

type SettingsOverrides struct {
	Privacy            *Privacy `json:"privacy,omitempty"`
	NumRounds          *int     `json:"num_rounds,omitempty"`
	RoundDurationHours *int     `json:"round_duration_hours,omitempty"`
	TimeLimitMinutes   *int     `json:"time_limit_minutes,omitempty"`
	ScoringType        *string  `json:"scoring_type,omitempty"`
	AllowLateJoiners   *bool    `json:"allow_late_joiners,omitempty"`
	AllowPlayerInvites *bool    `json:"allow_player_invites,omitempty"`
	IsIRL              *bool    `json:"is_irl,omitempty"`
}

func (s Settings) Merge(o SettingsOverrides) (Settings, error) {
	if o.Privacy != nil {
		switch *o.Privacy {
		case PrivacyPublic, PrivacyPrivate, PrivacyInvitationOnly:
			s.Privacy = *o.Privacy
		default:
			return s, fmt.Errorf("unsupported privacy %q", *o.Privacy)
		}
	}
	if o.NumRounds != nil {
		if *o.NumRounds < 1 || *o.NumRounds > 52 {
			return s, fmt.Errorf("num_rounds must be between 1 and 52")
		}
		s.NumRounds = *o.NumRounds
	}
	if o.RoundDurationHours != nil {
		if *o.RoundDurationHours < 1 {
			return s, fmt.Errorf("round_duration_hours must be positive")
		}
		s.RoundDurationHours = *o.RoundDurationHours
	}
	if o.TimeLimitMinutes != nil {
		if *o.TimeLimitMinutes < 1 {
			return s, fmt.Errorf("time_limit_minutes must be positive")
		}
		s.TimeLimitMinutes = *o.TimeLimitMinutes
	}
	if o.ScoringType != nil && *o.ScoringType != "" {
		s.ScoringType = *o.ScoringType
	}
	if o.AllowLateJoiners != nil {
		s.AllowLateJoiners = *o.AllowLateJoiners
	}
	if o.AllowPlayerInvites != nil {
		s.AllowPlayerInvites = *o.AllowPlayerInvites
	}
	if o.IsIRL != nil {
		s.IsIRL = *o.IsIRL
	}
	return s, nil
}

type League struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	CreatedBy   int64
	Status      Status
	Settings    Settings
	MaxMembers  *int
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	MemberCount int
	ActiveRound *int
}

func (l League) Full(activeMembers int) bool {
	return l.MaxMembers != nil && *l.MaxMembers > 0 && activeMembers >= *l.MaxMembers
}

// Joinable reports whether a player may join without an invitation.
func (l League) Joinable() bool {
	if !l.Status.AcceptsMembers() {
		return false
	}
	if l.Status == StatusActive && !l.Settings.AllowLateJoiners {
		return false
	}
	return true
}

type Membership struct {
	LeagueID          int64
	PlayerID          int64
	PlayerName        string
	Role              Role
	IsActive          bool
	SessionsThisRound int
	JoinedAt          time.Time
}

// CanInvite applies the invite permission rule for this member.
func (m Membership) CanInvite(l League) bool {
	if !m.IsActive {
		return false
	}
	if l.CreatedBy == m.PlayerID || m.Role == RoleOwner || m.Role == RoleAdmin {
		return true
	}
	return l.Settings.AllowPlayerInvites
}

type RoundStatus string

const (
	RoundScheduled RoundStatus = "scheduled"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

type Round struct {
	ID        int64
	LeagueID  int64
	Number    int
	StartTime time.Time
	EndTime   time.Time
	Status    RoundStatus
}

// PlanRounds lays out back-to-back rounds starting at start; the first is active.
func PlanRounds(leagueID int64, s Settings, start time.Time) []Round {
	duration := time.Duration(s.RoundDurationHours) * time.Hour
	rounds := make([]Round, 0, s.NumRounds)
	for i := 1; i <= s.NumRounds; i++ {
		begin := start.Add(time.Duration(i-1) * duration)
		status := RoundScheduled
		if i == 1 {
			status = RoundActive
		}
		rounds = append(rounds, Round{
			LeagueID:  leagueID,
			Number:    i,
			StartTime: begin,
			EndTime:   begin.Add(duration),
			Status:    status,
		})
	}
	return rounds
}

type RoundSession struct {
	RoundID     int64
	LeagueID    int64
	PlayerID    int64
	SessionID   string
	Score       float64
	SubmittedAt time.Time
}

type Standing struct {
	PlayerID     int64
	PlayerName   string
	TotalScore   float64
	RoundsPlayed int
	Rank         int
}

// RankStandings orders by total score and assigns dense ranks.
func RankStandings(items []Standing) []Standing {
	out := append([]Standing(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore == out[j].TotalScore {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].TotalScore > out[j].TotalScore
	})

	rank := 0
	var prev float64
	for i := range out {
		if i == 0 || out[i].TotalScore != prev {
			rank++
			prev = out[i].TotalScore
		}
		out[i].Rank = rank
	}
	return out
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

const InvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID          int64
	LeagueID    int64
	InviterID   int64
	InviteeID   int64
	Status      InvitationStatus
	Message     string
	InvitedAt   time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time
}

// RoundAdvance describes what the round sweep changed for one league.
type RoundAdvance struct {
	LeagueID       int64
	CompletedRound int
	ActivatedRound *int
	LeagueFinished bool
}
