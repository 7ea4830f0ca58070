package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
	"github.com/proofofputt/putt-api/internal/platform/id"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type duelSubmitter interface {
	CheckSubmission(ctx context.Context, playerID, duelID int64) error
	SubmitSession(ctx context.Context, playerID, duelID int64, sessionID string, stats session.Stats) (duel.Duel, error)
}

type achievementQueue interface {
	QueueAchievements(ctx context.Context, playerID int64, sessionID string, at time.Time, found []certificate.Achievement) ([]certificate.Achievement, error)
}

type staleMarker interface {
	MarkPlayerContextsStale(ctx context.Context, playerID int64, leagueID *int64) error
}

type SessionService struct {
	sessions     session.Repository
	players      player.Repository
	leagues      league.Repository
	duels        duelSubmitter
	achievements achievementQueue
	leaderboards staleMarker
	ids          id.Generator
	logger       *logging.Logger
	now          func() time.Time
}

type SessionServiceDeps struct {
	Sessions     session.Repository
	Players      player.Repository
	Leagues      league.Repository
	Duels        duelSubmitter
	Achievements achievementQueue
	Leaderboards staleMarker
	IDs          id.Generator
}

func NewSessionService(deps SessionServiceDeps, logger *logging.Logger) *SessionService {
	if deps.IDs == nil {
		deps.IDs = id.NewUUIDGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionService{
		sessions:     deps.Sessions,
		players:      deps.Players,
		leagues:      deps.Leagues,
		duels:        deps.Duels,
		achievements: deps.Achievements,
		leaderboards: deps.Leaderboards,
		ids:          deps.IDs,
		logger:       logger,
		now:          time.Now,
	}
}

type UploadSessionInput struct {
	PlayerID      int64
	SessionID     string
	Data          map[string]any
	CSV           string
	DuelID        *int64
	LeagueRoundID *int64
}

type UploadSessionResult struct {
	Session      session.Session
	Created      bool
	Duel         *duel.Duel
	RoundScore   *float64
	RoundReplace bool
	PlayerStats  *player.Stats
	Achievements []certificate.Achievement
	Warnings     []string
}

// Upload stores a tracker session and fans it out to the duel, league round,
// cumulative stats, achievement queue and leaderboard cache.
func (s *SessionService) Upload(ctx context.Context, input UploadSessionInput) (_ UploadSessionResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SessionService.Upload", attribute.Int64("player_id", input.PlayerID))
	defer func() {
		failSpan(span, err)
		span.End()
	}()

	if len(input.Data) == 0 {
		return UploadSessionResult{}, fmt.Errorf("%w: session_data is required", ErrInvalidInput)
	}
	stats := session.Normalize(input.Data)
	if stats.TotalPutts < 0 || stats.TotalMakes < 0 || stats.TotalMakes > stats.TotalPutts {
		return UploadSessionResult{}, fmt.Errorf("%w: session totals are inconsistent", ErrInvalidInput)
	}

	sessionID, err := s.resolveSessionID(ctx, input)
	if err != nil {
		return UploadSessionResult{}, err
	}

	var (
		round  league.Round
		target league.League
	)
	if input.LeagueRoundID != nil {
		round, target, err = s.checkRound(ctx, input.PlayerID, *input.LeagueRoundID)
		if err != nil {
			return UploadSessionResult{}, err
		}
	}
	if input.DuelID != nil {
		if s.duels == nil {
			return UploadSessionResult{}, fmt.Errorf("%w: duels are not available", ErrDependencyUnavailable)
		}
		if err := s.duels.CheckSubmission(ctx, input.PlayerID, *input.DuelID); err != nil {
			return UploadSessionResult{}, err
		}
	}

	now := s.now().UTC()
	sess := session.Session{
		ID:            sessionID,
		PlayerID:      input.PlayerID,
		Data:          input.Data,
		Stats:         stats,
		DuelID:        input.DuelID,
		LeagueRoundID: input.LeagueRoundID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.sessions.Upsert(ctx, sess)
	if err != nil {
		return UploadSessionResult{}, fmt.Errorf("store session: %w", err)
	}
	result := UploadSessionResult{Session: sess, Created: created}

	if strings.TrimSpace(input.CSV) != "" {
		if err := s.sessions.SaveReport(ctx, sessionID, input.PlayerID, input.CSV); err != nil {
			s.logger.WarnContext(ctx, "save session report failed", "session_id", sessionID, "error", err)
			result.Warnings = append(result.Warnings, "session report could not be stored")
		}
	}

	if input.DuelID != nil {
		d, err := s.duels.SubmitSession(ctx, input.PlayerID, *input.DuelID, sessionID, stats)
		if err != nil {
			return result, err
		}
		result.Duel = &d
	}

	if input.LeagueRoundID != nil {
		score := float64(stats.TotalMakes)
		replaced, err := s.leagues.SubmitRoundSession(ctx, league.RoundSession{
			RoundID:     round.ID,
			LeagueID:    round.LeagueID,
			PlayerID:    input.PlayerID,
			SessionID:   sessionID,
			Score:       score,
			SubmittedAt: now,
		})
		if err != nil {
			return result, fmt.Errorf("submit round session: %w", err)
		}
		result.RoundScore = &score
		result.RoundReplace = replaced
	}

	// Re-uploads must not double count and in-person leagues keep their
	// sessions out of practice stats.
	if created && !target.Settings.IsIRL {
		s.accumulate(ctx, input.PlayerID, sessionID, stats, now, &result)
	}

	if s.leaderboards != nil {
		var leagueID *int64
		if input.LeagueRoundID != nil {
			leagueID = &round.LeagueID
		}
		if err := s.leaderboards.MarkPlayerContextsStale(ctx, input.PlayerID, leagueID); err != nil {
			s.logger.WarnContext(ctx, "mark leaderboards stale failed", "player_id", input.PlayerID, "error", err)
		}
	}
	return result, nil
}

func (s *SessionService) resolveSessionID(ctx context.Context, input UploadSessionInput) (string, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		generated, err := s.ids.NewID()
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		return generated, nil
	}
	existing, found, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	if found && existing.PlayerID != input.PlayerID {
		return "", fmt.Errorf("%w: session belongs to another player", ErrForbidden)
	}
	return sessionID, nil
}

func (s *SessionService) checkRound(ctx context.Context, playerID, roundID int64) (league.Round, league.League, error) {
	if s.leagues == nil {
		return league.Round{}, league.League{}, fmt.Errorf("%w: leagues are not available", ErrDependencyUnavailable)
	}
	round, found, err := s.leagues.GetRound(ctx, roundID)
	if err != nil {
		return league.Round{}, league.League{}, fmt.Errorf("get league round: %w", err)
	}
	if !found {
		return league.Round{}, league.League{}, fmt.Errorf("%w: round=%d", ErrNotFound, roundID)
	}
	if round.Status != league.RoundActive {
		return league.Round{}, league.League{}, fmt.Errorf("%w: round %d is %s", ErrConflict, round.Number, round.Status)
	}
	m, isMember, err := s.leagues.GetMembership(ctx, round.LeagueID, playerID)
	if err != nil {
		return league.Round{}, league.League{}, fmt.Errorf("get membership: %w", err)
	}
	if !isMember || !m.IsActive {
		return league.Round{}, league.League{}, fmt.Errorf("%w: not an active member of this league", ErrForbidden)
	}
	l, found, err := s.leagues.GetByID(ctx, round.LeagueID)
	if err != nil {
		return league.Round{}, league.League{}, fmt.Errorf("get league: %w", err)
	}
	if !found {
		return league.Round{}, league.League{}, fmt.Errorf("%w: league=%d", ErrNotFound, round.LeagueID)
	}
	return round, l, nil
}

// accumulate updates cumulative stats and queues achievements. Failures here
// are reported as warnings; the session itself is already stored.
func (s *SessionService) accumulate(ctx context.Context, playerID int64, sessionID string, stats session.Stats, now time.Time, result *UploadSessionResult) {
	before, _, err := s.players.GetStats(ctx, playerID)
	if err != nil {
		s.logger.WarnContext(ctx, "read player stats failed", "player_id", playerID, "error", err)
		result.Warnings = append(result.Warnings, "player stats could not be updated")
		return
	}
	after, err := s.players.ApplySession(ctx, playerID, stats.Delta(now))
	if err != nil {
		s.logger.WarnContext(ctx, "apply session to stats failed", "player_id", playerID, "error", err)
		result.Warnings = append(result.Warnings, "player stats could not be updated")
		return
	}
	result.PlayerStats = &after

	if s.achievements == nil {
		return
	}
	found := certificate.Detect(before, stats)
	if len(found) == 0 {
		return
	}
	queued, err := s.achievements.QueueAchievements(ctx, playerID, sessionID, now, found)
	if err != nil {
		s.logger.WarnContext(ctx, "queue achievements failed", "player_id", playerID, "error", err)
	}
	result.Achievements = queued
}

func (s *SessionService) List(ctx context.Context, playerID int64, limit, offset int) ([]session.Session, int, error) {
	if offset < 0 {
		offset = 0
	}
	items, err := s.sessions.ListByPlayer(ctx, playerID, clampLimit(limit, 20, 100), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	total, err := s.sessions.CountByPlayer(ctx, playerID)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return items, total, nil
}
