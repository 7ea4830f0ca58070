package httpapi

import (
	"time"

	"github.com/proofofputt/putt-api/internal/domain/analytics"
	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
	"github.com/proofofputt/putt-api/internal/usecase"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type addFriendRequest struct {
	FriendID int64 `json:"friend_id" validate:"required,gt=0"`
}

type uploadSessionRequest struct {
	SessionID     string         `json:"session_id"`
	SessionData   map[string]any `json:"session_data" validate:"required"`
	CSVData       string         `json:"csv_data"`
	DuelID        *int64         `json:"duel_id" validate:"omitempty,gt=0"`
	LeagueRoundID *int64         `json:"league_round_id" validate:"omitempty,gt=0"`
}

type createDuelRequest struct {
	InvitedPlayerID int64              `json:"invited_player_id" validate:"required_without=Identifier,omitempty,gt=0"`
	Identifier      string             `json:"identifier" validate:"required_without=InvitedPlayerID"`
	IdentifierType  string             `json:"identifier_type" validate:"omitempty,oneof=email phone telegram username other"`
	Settings        duel.RuleOverrides `json:"settings"`
	Message         string             `json:"message" validate:"max=500"`
}

type respondRequest struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}

type createLeagueRequest struct {
	Name        string                   `json:"name" validate:"required"`
	Description string                   `json:"description" validate:"max=1000"`
	Settings    league.SettingsOverrides `json:"settings"`
	MaxMembers  *int                     `json:"max_members" validate:"omitempty,gt=1"`
}

type leagueInviteRequest struct {
	PlayerID int64  `json:"player_id" validate:"required,gt=0"`
	Message  string `json:"message" validate:"max=500"`
}

type refreshLeaderboardRequest struct {
	Context   string `json:"context" validate:"omitempty,oneof=global league custom"`
	ContextID int64  `json:"context_id" validate:"gte=0"`
}

type createGroupRequest struct {
	Name      string  `json:"name" validate:"required"`
	MemberIDs []int64 `json:"member_ids" validate:"max=100"`
}

type createInvitationRequest struct {
	Identifier     string          `json:"identifier" validate:"required"`
	IdentifierType string          `json:"identifier_type" validate:"required,oneof=email phone telegram username other"`
	InvitationType string          `json:"invitation_type" validate:"required,oneof=duel league friend"`
	InvitationData invitation.Data `json:"invitation_data"`
	Message        string          `json:"message" validate:"max=500"`
}

type trackEventRequest struct {
	EventType  string         `json:"eventType" validate:"required"`
	EventName  string         `json:"eventName" validate:"required"`
	SessionID  string         `json:"sessionId" validate:"required"`
	VisitorID  string         `json:"visitorId"`
	PageURL    string         `json:"pageUrl" validate:"required"`
	Referrer   string         `json:"referrer"`
	Properties map[string]any `json:"properties"`
}

type checkoutRequest struct {
	Interval string `json:"interval" validate:"required,oneof=monthly annual"`
}

type playerDTO struct {
	ID                 int64      `json:"player_id"`
	Name               string     `json:"name"`
	Email              string     `json:"email,omitempty"`
	MembershipTier     string     `json:"membership_tier"`
	SubscriptionStatus string     `json:"subscription_status"`
	Timezone           string     `json:"timezone,omitempty"`
	IsHidden           bool       `json:"is_hidden,omitempty"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type playerStatsDTO struct {
	TotalSessions        int        `json:"total_sessions"`
	TotalPutts           int        `json:"total_putts"`
	TotalMakes           int        `json:"total_makes"`
	TotalMisses          int        `json:"total_misses"`
	MakePercentage       float64    `json:"make_percentage"`
	BestStreak           int        `json:"best_streak"`
	Fastest21Makes       *float64   `json:"fastest_21_makes,omitempty"`
	TotalDurationSeconds float64    `json:"total_duration_seconds"`
	LastSessionAt        *time.Time `json:"last_session_at,omitempty"`
}

type profileDTO struct {
	playerDTO
	Stats playerStatsDTO `json:"stats"`
}

type authDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Player    playerDTO `json:"player"`
	Claimed   bool      `json:"claimed,omitempty"`
}

type sessionStatsDTO struct {
	TotalPutts      int        `json:"total_putts"`
	TotalMakes      int        `json:"total_makes"`
	TotalMisses     int        `json:"total_misses"`
	MakePercentage  float64    `json:"make_percentage"`
	BestStreak      int        `json:"best_streak"`
	Fastest21Makes  *float64   `json:"fastest_21_makes,omitempty"`
	SessionDuration float64    `json:"session_duration"`
	DateRecorded    *time.Time `json:"date_recorded,omitempty"`
}

type sessionDTO struct {
	SessionID     string          `json:"session_id"`
	PlayerID      int64           `json:"player_id"`
	Stats         sessionStatsDTO `json:"stats"`
	DuelID        *int64          `json:"duel_id,omitempty"`
	LeagueRoundID *int64          `json:"league_round_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type sessionPageDTO struct {
	Sessions []sessionDTO `json:"sessions"`
	Total    int          `json:"total"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}

type achievementDTO struct {
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Rarity string  `json:"rarity"`
}

type uploadSessionDTO struct {
	Session      sessionDTO       `json:"session"`
	Created      bool             `json:"created"`
	Duel         *duelDTO         `json:"duel,omitempty"`
	RoundScore   *float64         `json:"round_score,omitempty"`
	RoundReplace bool             `json:"round_replaced,omitempty"`
	PlayerStats  *playerStatsDTO  `json:"player_stats,omitempty"`
	Achievements []achievementDTO `json:"achievements,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

type duelDTO struct {
	ID                int64       `json:"duel_id"`
	CreatorID         int64       `json:"duel_creator_id"`
	InvitedPlayerID   int64       `json:"duel_invited_player_id"`
	Status            duel.Status `json:"status"`
	Settings          duel.Rules  `json:"settings"`
	CreatorSessionID  *string     `json:"duel_creator_session_id,omitempty"`
	InvitedSessionID  *string     `json:"duel_invited_player_session_id,omitempty"`
	CreatorScore      *float64    `json:"duel_creator_score,omitempty"`
	InvitedScore      *float64    `json:"duel_invited_player_score,omitempty"`
	WinnerID          *int64      `json:"winner_id,omitempty"`
	InvitationMessage string      `json:"invitation_message,omitempty"`
	ExpiresAt         time.Time   `json:"expires_at"`
	AcceptedAt        *time.Time  `json:"accepted_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

type duelStatusDTO struct {
	duelDTO
	CreatorName      string           `json:"creator_name"`
	InvitedName      string           `json:"invited_player_name"`
	MinutesRemaining int              `json:"time_remaining_minutes"`
	IsExpired        bool             `json:"is_expired"`
	CreatorSubmitted bool             `json:"creator_submitted"`
	InvitedSubmitted bool             `json:"invited_submitted"`
	CreatorSession   *sessionStatsDTO `json:"creator_session,omitempty"`
	InvitedSession   *sessionStatsDTO `json:"invited_session,omitempty"`
}

type leagueDTO struct {
	ID          int64           `json:"league_id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	Status      league.Status   `json:"status"`
	Settings    league.Settings `json:"settings"`
	MaxMembers  *int            `json:"max_members,omitempty"`
	MemberCount int             `json:"member_count"`
	ActiveRound *int            `json:"active_round,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type membershipDTO struct {
	LeagueID          int64       `json:"league_id"`
	PlayerID          int64       `json:"player_id"`
	PlayerName        string      `json:"player_name,omitempty"`
	Role              league.Role `json:"member_role"`
	IsActive          bool        `json:"is_active"`
	SessionsThisRound int         `json:"sessions_this_round"`
	JoinedAt          time.Time   `json:"joined_at"`
}

type roundDTO struct {
	ID        int64              `json:"round_id"`
	Number    int                `json:"round_number"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Status    league.RoundStatus `json:"status"`
}

type standingDTO struct {
	Rank         int     `json:"rank"`
	PlayerID     int64   `json:"player_id"`
	PlayerName   string  `json:"player_name"`
	TotalScore   float64 `json:"total_score"`
	RoundsPlayed int     `json:"rounds_played"`
}

type leagueDetailDTO struct {
	League     leagueDTO       `json:"league"`
	Members    []membershipDTO `json:"members"`
	Rounds     []roundDTO      `json:"rounds"`
	Standings  []standingDTO   `json:"standings"`
	Membership *membershipDTO  `json:"membership,omitempty"`
}

type leagueListingDTO struct {
	MyLeagues     []leagueDTO `json:"my_leagues"`
	PublicLeagues []leagueDTO `json:"public_leagues"`
}

type leagueInvitationDTO struct {
	ID          int64                   `json:"invitation_id"`
	LeagueID    int64                   `json:"league_id"`
	InviterID   int64                   `json:"league_inviter_id"`
	InviteeID   int64                   `json:"league_invited_player_id"`
	Status      league.InvitationStatus `json:"invitation_status"`
	Message     string                  `json:"invitation_message,omitempty"`
	InvitedAt   time.Time               `json:"invited_at"`
	ExpiresAt   time.Time               `json:"expires_at"`
	RespondedAt *time.Time              `json:"responded_at,omitempty"`
}

type leaderboardEntryDTO struct {
	Rank          int     `json:"rank"`
	PlayerID      int64   `json:"player_id"`
	PlayerName    string  `json:"player_name"`
	Value         float64 `json:"value"`
	SessionsCount int     `json:"sessions_count"`
}

type leaderboardDTO struct {
	Context      string                `json:"context"`
	ContextID    int64                 `json:"context_id,omitempty"`
	Metric       leaderboard.Metric    `json:"metric"`
	Entries      []leaderboardEntryDTO `json:"leaderboard"`
	PlayerRank   *leaderboardEntryDTO  `json:"player_rank,omitempty"`
	FromCache    bool                  `json:"from_cache"`
	CalculatedAt time.Time             `json:"calculated_at"`
}

type refreshResultDTO struct {
	Contexts   int   `json:"contexts"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"duration_ms"`
}

type groupDTO struct {
	ID        int64     `json:"group_id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	MemberIDs []int64   `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
}

type invitationDTO struct {
	ID             int64                     `json:"invitation_id"`
	InviterID      int64                     `json:"inviter_id"`
	InviterName    string                    `json:"inviter_name,omitempty"`
	TargetPlayerID int64                     `json:"target_player_id"`
	Type           invitation.Type           `json:"invitation_type"`
	Data           invitation.Data           `json:"invitation_data"`
	Identifier     string                    `json:"identifier,omitempty"`
	IdentifierType invitation.IdentifierType `json:"identifier_type,omitempty"`
	Message        string                    `json:"message,omitempty"`
	Status         invitation.Status         `json:"status"`
	ExpiresAt      time.Time                 `json:"expires_at"`
	RespondedAt    *time.Time                `json:"responded_at,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}

type createdInvitationDTO struct {
	Invitation    invitationDTO `json:"invitation"`
	Target        playerDTO     `json:"target"`
	HiddenCreated bool          `json:"hidden_player_created"`
}

type invitationResponseDTO struct {
	Invitation invitationDTO `json:"invitation"`
	Claimed    bool          `json:"claimed,omitempty"`
	Warning    string        `json:"warning,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

type notificationStatsDTO struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
	Today  int `json:"today"`
}

type countDTO struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type dashboardDTO struct {
	Metric      analytics.DashboardMetric `json:"metric"`
	StartDate   time.Time                 `json:"start_date"`
	EndDate     time.Time                 `json:"end_date"`
	GroupBy     analytics.GroupBy         `json:"group_by"`
	Totals      *analyticsTotalsDTO       `json:"totals,omitempty"`
	Series      []analyticsPointDTO       `json:"series,omitempty"`
	Referrers   []countDTO                `json:"referrers,omitempty"`
	Pages       []countDTO                `json:"top_pages,omitempty"`
	Devices     []countDTO                `json:"devices,omitempty"`
	Browsers    []countDTO                `json:"browsers,omitempty"`
	UTMSources  []countDTO                `json:"utm_sources,omitempty"`
	Events      []countDTO                `json:"events,omitempty"`
	Conversions []conversionSummaryDTO    `json:"conversions,omitempty"`
	Sessions    *analyticsSessionsDTO     `json:"sessions,omitempty"`
	Funnel      []funnelStepDTO           `json:"funnel,omitempty"`
}

type analyticsTotalsDTO struct {
	Events         int `json:"total_events"`
	PageViews      int `json:"page_views"`
	UniqueSessions int `json:"unique_sessions"`
	UniqueVisitors int `json:"unique_visitors"`
	Conversions    int `json:"conversions"`
}

type analyticsPointDTO struct {
	Bucket    time.Time `json:"period"`
	PageViews int       `json:"page_views"`
	Sessions  int       `json:"sessions"`
	Events    int       `json:"events"`
}

type conversionSummaryDTO struct {
	Type  string  `json:"conversion_type"`
	Count int     `json:"count"`
	Value float64 `json:"total_value"`
}

type analyticsSessionsDTO struct {
	Sessions         int     `json:"total_sessions"`
	AvgEventsPerSess float64 `json:"avg_events_per_session"`
	BouncedSessions  int     `json:"bounced_sessions"`
}

type funnelStepDTO struct {
	Step       string  `json:"step"`
	Sessions   int     `json:"sessions"`
	Conversion float64 `json:"conversion_rate"`
}

type checkoutDTO struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
	Interval    string `json:"interval"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type subscriptionStatusDTO struct {
	Tier              string     `json:"membership_tier"`
	Status            string     `json:"subscription_status"`
	BillingCycle      *string    `json:"billing_cycle,omitempty"`
	StartedAt         *time.Time `json:"subscription_started_at,omitempty"`
	PeriodEnd         *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	IsPremium         bool       `json:"is_premium"`
}

type webhookAckDTO struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type certificateDTO struct {
	ID               int64          `json:"certificate_id"`
	AchievementType  string         `json:"achievement_type"`
	AchievementValue float64        `json:"achievement_value"`
	Rarity           string         `json:"rarity_tier"`
	SessionID        *string        `json:"session_id,omitempty"`
	AchievedAt       time.Time      `json:"achieved_at"`
	Data             map[string]any `json:"achievement_data"`
	DataHash         string         `json:"data_hash"`
	MerkleRoot       string         `json:"merkle_root"`
	LeafIndex        int            `json:"leaf_index"`
	BatchID          string         `json:"batch_id"`
	IssuedAt         time.Time      `json:"issued_at"`
	IsVerified       bool           `json:"is_verified"`
}

type verificationDTO struct {
	Certificate    certificateDTO          `json:"certificate"`
	ComputedHash   string                  `json:"computed_hash"`
	HashMatches    bool                    `json:"hash_matches"`
	InMerkleTree   bool                    `json:"in_merkle_tree"`
	Proof          []certificate.ProofStep `json:"merkle_proof"`
	Timestamped    bool                    `json:"timestamped"`
	BatchConfirmed bool                    `json:"batch_confirmed"`
}

type batchSummaryDTO struct {
	Empty            bool           `json:"empty"`
	BatchID          string         `json:"batch_id,omitempty"`
	BatchName        string         `json:"batch_name,omitempty"`
	CertificateCount int            `json:"certificate_count"`
	MerkleRoot       string         `json:"merkle_root,omitempty"`
	ByType           map[string]int `json:"by_type,omitempty"`
	ByRarity         map[string]int `json:"by_rarity,omitempty"`
	UniquePlayers    int            `json:"unique_players"`
	Timestamped      bool           `json:"blockchain_submitted"`
}

func playerToDTO(p player.Player, includeEmail bool) playerDTO {
	out := playerDTO{
		ID:                 p.ID,
		Name:               p.Name,
		MembershipTier:     p.MembershipTier,
		SubscriptionStatus: p.SubscriptionStatus,
		Timezone:           p.Timezone,
		IsHidden:           p.IsHidden,
		ClaimedAt:          p.ClaimedAt,
		CreatedAt:          p.CreatedAt,
	}
	if includeEmail {
		out.Email = p.Email
	}
	return out
}

func playersToDTO(items []player.Player) []playerDTO {
	out := make([]playerDTO, 0, len(items))
	for _, p := range items {
		out = append(out, playerToDTO(p, false))
	}
	return out
}

func playerStatsToDTO(s player.Stats) playerStatsDTO {
	return playerStatsDTO{
		TotalSessions:        s.TotalSessions,
		TotalPutts:           s.TotalPutts,
		TotalMakes:           s.TotalMakes,
		TotalMisses:          s.TotalMisses,
		MakePercentage:       s.MakePercentage,
		BestStreak:           s.BestStreak,
		Fastest21Makes:       s.Fastest21Makes,
		TotalDurationSeconds: s.TotalDurationSeconds,
		LastSessionAt:        s.LastSessionAt,
	}
}

func profileToDTO(p player.Profile, includeEmail bool) profileDTO {
	return profileDTO{playerDTO: playerToDTO(p.Player, includeEmail), Stats: playerStatsToDTO(p.Stats)}
}

func authToDTO(res usecase.AuthResult) authDTO {
	return authDTO{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Player:    playerToDTO(res.Player, true),
		Claimed:   res.Claimed,
	}
}

func sessionStatsToDTO(s session.Stats) sessionStatsDTO {
	return sessionStatsDTO{
		TotalPutts:      s.TotalPutts,
		TotalMakes:      s.TotalMakes,
		TotalMisses:     s.TotalMisses,
		MakePercentage:  s.MakePercentage,
		BestStreak:      s.BestStreak,
		Fastest21Makes:  s.Fastest21Makes,
		SessionDuration: s.DurationSeconds,
		DateRecorded:    s.DateRecorded,
	}
}

func sessionToDTO(s session.Session) sessionDTO {
	return sessionDTO{
		SessionID:     s.ID,
		PlayerID:      s.PlayerID,
		Stats:         sessionStatsToDTO(s.Stats),
		DuelID:        s.DuelID,
		LeagueRoundID: s.LeagueRoundID,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func uploadToDTO(res usecase.UploadSessionResult) uploadSessionDTO {
	out := uploadSessionDTO{
		Session:      sessionToDTO(res.Session),
		Created:      res.Created,
		RoundScore:   res.RoundScore,
		RoundReplace: res.RoundReplace,
		Warnings:     res.Warnings,
	}
	if res.Duel != nil {
		d := duelToDTO(*res.Duel)
		out.Duel = &d
	}
	if res.PlayerStats != nil {
		s := playerStatsToDTO(*res.PlayerStats)
		out.PlayerStats = &s
	}
	for _, a := range res.Achievements {
		out.Achievements = append(out.Achievements, achievementDTO{Type: a.Type, Value: a.Value, Rarity: a.Rarity})
	}
	return out
}

func duelToDTO(d duel.Duel) duelDTO {
	return duelDTO{
		ID:                d.ID,
		CreatorID:         d.CreatorID,
		InvitedPlayerID:   d.InvitedPlayerID,
		Status:            d.Status,
		Settings:          d.Rules,
		CreatorSessionID:  d.CreatorSessionID,
		InvitedSessionID:  d.InvitedSessionID,
		CreatorScore:      d.CreatorScore,
		InvitedScore:      d.InvitedScore,
		WinnerID:          d.WinnerID,
		InvitationMessage: d.InvitationMessage,
		ExpiresAt:         d.ExpiresAt,
		AcceptedAt:        d.AcceptedAt,
		CompletedAt:       d.CompletedAt,
		CreatedAt:         d.CreatedAt,
	}
}

func duelsToDTO(items []duel.Duel) []duelDTO {
	out := make([]duelDTO, 0, len(items))
	for _, d := range items {
		out = append(out, duelToDTO(d))
	}
	return out
}

func duelViewToDTO(v usecase.DuelView) duelStatusDTO {
	out := duelStatusDTO{
		duelDTO:          duelToDTO(v.Duel),
		CreatorName:      v.CreatorName,
		InvitedName:      v.InvitedName,
		MinutesRemaining: v.MinutesRemaining,
		IsExpired:        v.IsExpired,
		CreatorSubmitted: v.CreatorSubmitted,
		InvitedSubmitted: v.InvitedSubmitted,
	}
	if v.CreatorSession != nil {
		s := sessionStatsToDTO(*v.CreatorSession)
		out.CreatorSession = &s
	}
	if v.InvitedSession != nil {
		s := sessionStatsToDTO(*v.InvitedSession)
		out.InvitedSession = &s
	}
	return out
}

func leagueToDTO(l league.League) leagueDTO {
	return leagueDTO{
		ID:          l.ID,
		Name:        l.Name,
		Slug:        l.Slug,
		Description: l.Description,
		CreatedBy:   l.CreatedBy,
		Status:      l.Status,
		Settings:    l.Settings,
		MaxMembers:  l.MaxMembers,
		MemberCount: l.MemberCount,
		ActiveRound: l.ActiveRound,
		StartedAt:   l.StartedAt,
		CompletedAt: l.CompletedAt,
		CreatedAt:   l.CreatedAt,
	}
}

func leaguesToDTO(items []league.League) []leagueDTO {
	out := make([]leagueDTO, 0, len(items))
	for _, l := range items {
		out = append(out, leagueToDTO(l))
	}
	return out
}

func membershipToDTO(m league.Membership) membershipDTO {
	return membershipDTO{
		LeagueID:          m.LeagueID,
		PlayerID:          m.PlayerID,
		PlayerName:        m.PlayerName,
		Role:              m.Role,
		IsActive:          m.IsActive,
		SessionsThisRound: m.SessionsThisRound,
		JoinedAt:          m.JoinedAt,
	}
}

func leagueDetailToDTO(d usecase.LeagueDetail) leagueDetailDTO {
	out := leagueDetailDTO{
		League:    leagueToDTO(d.League),
		Members:   make([]membershipDTO, 0, len(d.Members)),
		Rounds:    make([]roundDTO, 0, len(d.Rounds)),
		Standings: make([]standingDTO, 0, len(d.Standings)),
	}
	for _, m := range d.Members {
		out.Members = append(out.Members, membershipToDTO(m))
	}
	for _, r := range d.Rounds {
		out.Rounds = append(out.Rounds, roundDTO{ID: r.ID, Number: r.Number, StartTime: r.StartTime, EndTime: r.EndTime, Status: r.Status})
	}
	for _, s := range d.Standings {
		out.Standings = append(out.Standings, standingDTO{
			Rank:         s.Rank,
			PlayerID:     s.PlayerID,
			PlayerName:   s.PlayerName,
			TotalScore:   s.TotalScore,
			RoundsPlayed: s.RoundsPlayed,
		})
	}
	if d.Membership != nil {
		m := membershipToDTO(*d.Membership)
		out.Membership = &m
	}
	return out
}

func leagueInvitationToDTO(i league.Invitation) leagueInvitationDTO {
	return leagueInvitationDTO{
		ID:          i.ID,
		LeagueID:    i.LeagueID,
		InviterID:   i.InviterID,
		InviteeID:   i.InviteeID,
		Status:      i.Status,
		Message:     i.Message,
		InvitedAt:   i.InvitedAt,
		ExpiresAt:   i.ExpiresAt,
		RespondedAt: i.RespondedAt,
	}
}

func leaderboardEntryToDTO(e leaderboard.Entry) leaderboardEntryDTO {
	return leaderboardEntryDTO{
		Rank:          e.Rank,
		PlayerID:      e.PlayerID,
		PlayerName:    e.PlayerName,
		Value:         e.Value,
		SessionsCount: e.SessionsCount,
	}
}

func boardToDTO(b leaderboard.Board) leaderboardDTO {
	out := leaderboardDTO{
		Context:      string(b.Context.Type),
		ContextID:    b.Context.ID,
		Metric:       b.Metric,
		Entries:      make([]leaderboardEntryDTO, 0, len(b.Entries)),
		FromCache:    b.FromCache,
		CalculatedAt: b.CalculatedAt,
	}
	for _, e := range b.Entries {
		out.Entries = append(out.Entries, leaderboardEntryToDTO(e))
	}
	if b.PlayerRank != nil {
		e := leaderboardEntryToDTO(*b.PlayerRank)
		out.PlayerRank = &e
	}
	return out
}

func invitationToDTO(i invitation.Invitation) invitationDTO {
	return invitationDTO{
		ID:             i.ID,
		InviterID:      i.InviterID,
		InviterName:    i.InviterName,
		TargetPlayerID: i.TargetPlayerID,
		Type:           i.Type,
		Data:           i.Data,
		Identifier:     i.Identifier,
		IdentifierType: i.IdentifierType,
		Message:        i.Message,
		Status:         i.Status,
		ExpiresAt:      i.ExpiresAt,
		RespondedAt:    i.RespondedAt,
		CreatedAt:      i.CreatedAt,
	}
}

func invitationsToDTO(items []invitation.Invitation) []invitationDTO {
	out := make([]invitationDTO, 0, len(items))
	for _, i := range items {
		out = append(out, invitationToDTO(i))
	}
	return out
}

func countsToDTO(items []analytics.Count) []countDTO {
	if len(items) == 0 {
		return nil
	}
	out := make([]countDTO, 0, len(items))
	for _, c := range items {
		out = append(out, countDTO{Key: c.Key, Count: c.Count})
	}
	return out
}

func dashboardToDTO(d usecase.Dashboard) dashboardDTO {
	out := dashboardDTO{
		Metric:     d.Metric,
		StartDate:  d.Range.Start,
		EndDate:    d.Range.End,
		GroupBy:    d.GroupBy,
		Referrers:  countsToDTO(d.Referrers),
		Pages:      countsToDTO(d.Pages),
		Devices:    countsToDTO(d.Devices),
		Browsers:   countsToDTO(d.Browsers),
		UTMSources: countsToDTO(d.UTMSources),
		Events:     countsToDTO(d.Events),
	}
	if d.Totals != nil {
		out.Totals = &analyticsTotalsDTO{
			Events:         d.Totals.Events,
			PageViews:      d.Totals.PageViews,
			UniqueSessions: d.Totals.UniqueSessions,
			UniqueVisitors: d.Totals.UniqueVisitors,
			Conversions:    d.Totals.Conversions,
		}
	}
	for _, p := range d.Series {
		out.Series = append(out.Series, analyticsPointDTO{Bucket: p.Bucket, PageViews: p.PageViews, Sessions: p.Sessions, Events: p.Events})
	}
	for _, c := range d.Conversions {
		out.Conversions = append(out.Conversions, conversionSummaryDTO{Type: c.ConversionType, Count: c.Count, Value: c.Value})
	}
	if d.Sessions != nil {
		out.Sessions = &analyticsSessionsDTO{
			Sessions:         d.Sessions.Sessions,
			AvgEventsPerSess: d.Sessions.AvgEventsPerSess,
			BouncedSessions:  d.Sessions.BouncedSessions,
		}
	}
	for _, f := range d.Funnel {
		out.Funnel = append(out.Funnel, funnelStepDTO{Step: f.Step, Sessions: f.Sessions, Conversion: f.Conversion})
	}
	return out
}

func subscriptionStatusToDTO(s subscription.State) subscriptionStatusDTO {
	tier := player.TierBasic
	if s.Tier != nil && *s.Tier != "" {
		tier = *s.Tier
	}
	return subscriptionStatusDTO{
		Tier:              tier,
		Status:            s.Status,
		BillingCycle:      s.BillingCycle,
		StartedAt:         s.StartedAt,
		PeriodEnd:         s.PeriodEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		IsPremium:         tier == player.TierPremium,
	}
}

func certificateToDTO(c certificate.Certificate) certificateDTO {
	return certificateDTO{
		ID:               c.ID,
		AchievementType:  c.AchievementType,
		AchievementValue: c.AchievementValue,
		Rarity:           c.Rarity,
		SessionID:        c.SessionID,
		AchievedAt:       c.AchievedAt,
		Data:             c.Data,
		DataHash:         c.DataHash,
		MerkleRoot:       c.MerkleRoot,
		LeafIndex:        c.LeafIndex,
		BatchID:          c.BatchID,
		IssuedAt:         c.IssuedAt,
		IsVerified:       c.IsVerified,
	}
}

func batchToDTO(res usecase.BatchResult) batchSummaryDTO {
	if res.Empty {
		return batchSummaryDTO{Empty: true}
	}
	s := res.Summary
	return batchSummaryDTO{
		BatchID:          s.BatchID,
		BatchName:        s.BatchName,
		CertificateCount: s.CertificateCount,
		MerkleRoot:       s.MerkleRoot,
		ByType:           s.ByType,
		ByRarity:         s.ByRarity,
		UniquePlayers:    s.UniquePlayers,
		Timestamped:      s.Timestamped,
	}
}
