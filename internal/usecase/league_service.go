package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const publicLeagueListLimit = 20

type LeagueService struct {
	leagues  league.Repository
	players  player.Repository
	notifier notifier
	logger   *logging.Logger
	now      func() time.Time
}

func NewLeagueService(leagues league.Repository, players player.Repository, n notifier, logger *logging.Logger) *LeagueService {
	if n == nil {
		n = nopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeagueService{
		leagues:  leagues,
		players:  players,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateLeagueInput struct {
	OwnerID     int64
	Name        string
	Description string
	Settings    league.SettingsOverrides
	MaxMembers  *int
}

func (s *LeagueService) Create(ctx context.Context, input CreateLeagueInput) (league.League, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueService.Create")
	defer span.End()

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if n := utf8.RuneCountInString(input.Name); n < 3 || n > 100 {
		return league.League{}, fmt.Errorf("%w: name must be between 3 and 100 characters", ErrInvalidInput)
	}
	if input.MaxMembers != nil && *input.MaxMembers < 2 {
		return league.League{}, fmt.Errorf("%w: max_members must be at least 2", ErrInvalidInput)
	}
	settings, err := league.DefaultSettings().Merge(input.Settings)
	if err != nil {
		return league.League{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	now := s.now().UTC()
	created, err := s.leagues.CreateWithOwner(ctx, league.League{
		Name:        input.Name,
		Slug:        slug.Make(input.Name),
		Description: input.Description,
		CreatedBy:   input.OwnerID,
		Status:      league.StatusSetup,
		Settings:    settings,
		MaxMembers:  input.MaxMembers,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return league.League{}, fmt.Errorf("create league: %w", err)
	}
	s.logger.InfoContext(ctx, "league created", "league_id", created.ID, "owner_id", input.OwnerID)
	return created, nil
}

type LeagueListing struct {
	Mine   []league.League
	Public []league.League
}

func (s *LeagueService) List(ctx context.Context, playerID int64) (LeagueListing, error) {
	mine, err := s.leagues.ListByMember(ctx, playerID)
	if err != nil {
		return LeagueListing{}, fmt.Errorf("list member leagues: %w", err)
	}
	public, err := s.leagues.ListPublic(ctx, playerID, publicLeagueListLimit)
	if err != nil {
		return LeagueListing{}, fmt.Errorf("list public leagues: %w", err)
	}
	return LeagueListing{Mine: mine, Public: public}, nil
}

type LeagueDetail struct {
	League     league.League
	Members    []league.Membership
	Rounds     []league.Round
	Standings  []league.Standing
	Membership *league.Membership
}

func (s *LeagueService) Detail(ctx context.Context, playerID, leagueID int64) (LeagueDetail, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueService.Detail", attribute.Int64("league_id", leagueID))
	defer span.End()

	l, err := s.get(ctx, leagueID)
	if err != nil {
		return LeagueDetail{}, err
	}
	membership, isMember, err := s.leagues.GetMembership(ctx, leagueID, playerID)
	if err != nil {
		return LeagueDetail{}, fmt.Errorf("get membership: %w", err)
	}
	isMember = isMember && membership.IsActive
	if l.Settings.Privacy != league.PrivacyPublic && !isMember {
		return LeagueDetail{}, fmt.Errorf("%w: league is private", ErrForbidden)
	}

	members, err := s.leagues.ListMembers(ctx, leagueID)
	if err != nil {
		return LeagueDetail{}, fmt.Errorf("list members: %w", err)
	}
	rounds, err := s.leagues.ListRounds(ctx, leagueID)
	if err != nil {
		return LeagueDetail{}, fmt.Errorf("list rounds: %w", err)
	}
	standings, err := s.leagues.Standings(ctx, leagueID)
	if err != nil {
		return LeagueDetail{}, fmt.Errorf("league standings: %w", err)
	}

	detail := LeagueDetail{
		League:    l,
		Members:   members,
		Rounds:    rounds,
		Standings: league.RankStandings(standings),
	}
	if isMember {
		detail.Membership = &membership
	}
	return detail, nil
}

// Join adds the caller to a public league that is still accepting members.
func (s *LeagueService) Join(ctx context.Context, playerID, leagueID int64) (league.Membership, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueService.Join", attribute.Int64("league_id", leagueID))
	defer span.End()

	l, err := s.get(ctx, leagueID)
	if err != nil {
		return league.Membership{}, err
	}
	if l.Settings.Privacy != league.PrivacyPublic {
		return league.Membership{}, fmt.Errorf("%w: league requires an invitation", ErrForbidden)
	}
	if !l.Joinable() {
		return league.Membership{}, fmt.Errorf("%w: league is not accepting members", ErrConflict)
	}
	return s.addMember(ctx, l, playerID)
}

func (s *LeagueService) addMember(ctx context.Context, l league.League, playerID int64) (league.Membership, error) {
	m := league.Membership{
		LeagueID: l.ID,
		PlayerID: playerID,
		Role:     league.RoleMember,
		IsActive: true,
		JoinedAt: s.now().UTC(),
	}
	if err := s.leagues.AddMember(ctx, m); err != nil {
		switch {
		case errors.Is(err, league.ErrLeagueFull):
			return league.Membership{}, fmt.Errorf("%w: league is full", ErrConflict)
		case errors.Is(err, league.ErrAlreadyMember):
			return league.Membership{}, fmt.Errorf("%w: already a member of this league", ErrConflict)
		}
		return league.Membership{}, fmt.Errorf("add league member: %w", err)
	}
	return m, nil
}

// AddMemberFromInvitation is the league side of accepting a generic invitation.
func (s *LeagueService) AddMemberFromInvitation(ctx context.Context, leagueID, playerID int64) error {
	l, err := s.get(ctx, leagueID)
	if err != nil {
		return err
	}
	if !l.Status.AcceptsMembers() {
		return fmt.Errorf("%w: league is not accepting members", ErrConflict)
	}
	_, err = s.addMember(ctx, l, playerID)
	return err
}

// Start activates the league and lays out its rounds. Owner only.
func (s *LeagueService) Start(ctx context.Context, playerID, leagueID int64) (LeagueDetail, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueService.Start", attribute.Int64("league_id", leagueID))
	defer span.End()

	l, err := s.get(ctx, leagueID)
	if err != nil {
		return LeagueDetail{}, err
	}
	membership, _, err := s.leagues.GetMembership(ctx, leagueID, playerID)
	if err != nil {
		return LeagueDetail{}, fmt.Errorf("get membership: %w", err)
	}
	if l.CreatedBy != playerID && membership.Role != league.RoleOwner {
		return LeagueDetail{}, fmt.Errorf("%w: only the owner can start the league", ErrForbidden)
	}
	if !l.Status.Startable() {
		return LeagueDetail{}, fmt.Errorf("%w: league is %s", ErrConflict, l.Status)
	}

	now := s.now().UTC()
	rounds := league.PlanRounds(l.ID, l.Settings, now)
	ok, err := s.leagues.Start(ctx, l.ID, now, rounds)
	if err != nil {
		return LeagueDetail{}, fmt.Errorf("start league: %w", err)
	}
	if !ok {
		return LeagueDetail{}, fmt.Errorf("%w: league was already started", ErrConflict)
	}
	l.Status = league.StatusActive
	l.StartedAt = &now
	s.notifyMembers(ctx, l, fmt.Sprintf("%s has started. Round 1 is open.", l.Name))

	return s.Detail(ctx, playerID, leagueID)
}

type InviteToLeagueInput struct {
	InviterID int64
	LeagueID  int64
	InviteeID int64
	Message   string
}

func (s *LeagueService) Invite(ctx context.Context, input InviteToLeagueInput) (league.Invitation, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueService.Invite", attribute.Int64("league_id", input.LeagueID))
	defer span.End()

	if input.InviteeID <= 0 {
		return league.Invitation{}, fmt.Errorf("%w: player_id is required", ErrInvalidInput)
	}
	if input.InviteeID == input.InviterID {
		return league.Invitation{}, fmt.Errorf("%w: cannot invite yourself", ErrInvalidInput)
	}
	l, err := s.get(ctx, input.LeagueID)
	if err != nil {
		return league.Invitation{}, err
	}
	inviter, isMember, err := s.leagues.GetMembership(ctx, l.ID, input.InviterID)
	if err != nil {
		return league.Invitation{}, fmt.Errorf("get inviter membership: %w", err)
	}
	if !isMember || !inviter.CanInvite(l) {
		return league.Invitation{}, fmt.Errorf("%w: you cannot invite players to this league", ErrForbidden)
	}
	if !l.Status.AcceptsMembers() {
		return league.Invitation{}, fmt.Errorf("%w: league is not accepting members", ErrConflict)
	}

	invitee, found, err := s.players.GetByID(ctx, input.InviteeID)
	if err != nil {
		return league.Invitation{}, fmt.Errorf("get invitee: %w", err)
	}
	if !found {
		return league.Invitation{}, fmt.Errorf("%w: player=%d", ErrNotFound, input.InviteeID)
	}
	existing, isMember, err := s.leagues.GetMembership(ctx, l.ID, invitee.ID)
	if err != nil {
		return league.Invitation{}, fmt.Errorf("get invitee membership: %w", err)
	}
	if isMember && existing.IsActive {
		return league.Invitation{}, fmt.Errorf("%w: player is already a member", ErrConflict)
	}
	now := s.now().UTC()
	pending, err := s.leagues.HasPendingInvitation(ctx, l.ID, invitee.ID, now)
	if err != nil {
		return league.Invitation{}, fmt.Errorf("check pending invitation: %w", err)
	}
	if pending {
		return league.Invitation{}, fmt.Errorf("%w: player already has a pending invitation", ErrConflict)
	}

	inv, err := s.leagues.CreateInvitation(ctx, league.Invitation{
		LeagueID:  l.ID,
		InviterID: input.InviterID,
		InviteeID: invitee.ID,
		Status:    league.InvitationPending,
		Message:   strings.TrimSpace(input.Message),
		InvitedAt: now,
		ExpiresAt: now.Add(league.InvitationTTL),
	})
	if err != nil {
		if isDuplicateConstraintError(err) {
			return league.Invitation{}, fmt.Errorf("%w: player already has a pending invitation", ErrConflict)
		}
		return league.Invitation{}, fmt.Errorf("create league invitation: %w", err)
	}

	if !invitee.IsHidden {
		n := leagueInvitationNotification(inv, l, displayName(ctx, s.players, input.InviterID))
		if _, err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "league invitation notification failed", "invitation_id", inv.ID, "error", err)
		}
	}
	return inv, nil
}

// RespondInvitation accepts or declines a league-scoped invitation addressed to the caller.
func (s *LeagueService) RespondInvitation(ctx context.Context, playerID, invitationID int64, accept bool) (league.Invitation, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueService.RespondInvitation")
	defer span.End()

	inv, found, err := s.leagues.GetInvitation(ctx, invitationID)
	if err != nil {
		return league.Invitation{}, fmt.Errorf("get league invitation: %w", err)
	}
	if !found {
		return league.Invitation{}, fmt.Errorf("%w: invitation=%d", ErrNotFound, invitationID)
	}
	if inv.InviteeID != playerID {
		return league.Invitation{}, fmt.Errorf("%w: invitation is addressed to someone else", ErrForbidden)
	}
	if inv.Status != league.InvitationPending {
		return league.Invitation{}, fmt.Errorf("%w: invitation already %s", ErrConflict, inv.Status)
	}
	now := s.now().UTC()
	if !now.Before(inv.ExpiresAt) {
		if _, err := s.leagues.SetInvitationStatus(ctx, inv.ID, league.InvitationPending, league.InvitationExpired, now); err != nil {
			return league.Invitation{}, fmt.Errorf("expire league invitation: %w", err)
		}
		return league.Invitation{}, fmt.Errorf("%w: invitation has expired", ErrExpired)
	}

	next := league.InvitationDeclined
	if accept {
		next = league.InvitationAccepted
		l, err := s.get(ctx, inv.LeagueID)
		if err != nil {
			return league.Invitation{}, err
		}
		if !l.Status.AcceptsMembers() {
			return league.Invitation{}, fmt.Errorf("%w: league is not accepting members", ErrConflict)
		}
		if _, err := s.addMember(ctx, l, playerID); err != nil {
			return league.Invitation{}, err
		}
		msg := fmt.Sprintf("%s joined %s", displayName(ctx, s.players, playerID), l.Name)
		if _, err := s.notifier.Notify(ctx, leagueUpdateNotification(inv.InviterID, l, msg)); err != nil {
			s.logger.WarnContext(ctx, "league join notification failed", "league_id", l.ID, "error", err)
		}
	}

	ok, err := s.leagues.SetInvitationStatus(ctx, inv.ID, league.InvitationPending, next, now)
	if err != nil {
		return league.Invitation{}, fmt.Errorf("update league invitation: %w", err)
	}
	if !ok {
		return league.Invitation{}, fmt.Errorf("%w: invitation is no longer pending", ErrConflict)
	}
	inv.Status = next
	inv.RespondedAt = &now
	return inv, nil
}

// AdvanceRounds closes rounds whose window ended, opens the next one and
// completes leagues that ran out of rounds.
func (s *LeagueService) AdvanceRounds(ctx context.Context) ([]league.RoundAdvance, error) {
	advances, err := s.leagues.AdvanceRounds(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("advance league rounds: %w", err)
	}
	for _, adv := range advances {
		l, found, err := s.leagues.GetByID(ctx, adv.LeagueID)
		if err != nil || !found {
			continue
		}
		msg := fmt.Sprintf("Round %d has ended.", adv.CompletedRound)
		switch {
		case adv.LeagueFinished:
			msg = fmt.Sprintf("%s has finished. Final standings are in.", l.Name)
		case adv.ActivatedRound != nil:
			msg = fmt.Sprintf("Round %d has ended. Round %d is now open.", adv.CompletedRound, *adv.ActivatedRound)
		}
		s.notifyMembers(ctx, l, msg)
	}
	return advances, nil
}

func (s *LeagueService) ExpireInvitations(ctx context.Context) (int, error) {
	n, err := s.leagues.ExpireInvitations(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire league invitations: %w", err)
	}
	return n, nil
}

func (s *LeagueService) notifyMembers(ctx context.Context, l league.League, message string) {
	members, err := s.leagues.ListMembers(ctx, l.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "list members for notification failed", "league_id", l.ID, "error", err)
		return
	}
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if _, err := s.notifier.Notify(ctx, leagueUpdateNotification(m.PlayerID, l, message)); err != nil {
			s.logger.WarnContext(ctx, "league update notification failed", "league_id", l.ID, "player_id", m.PlayerID, "error", err)
		}
	}
}

func (s *LeagueService) get(ctx context.Context, leagueID int64) (league.League, error) {
	l, found, err := s.leagues.GetByID(ctx, leagueID)
	if err != nil {
		return league.League{}, fmt.Errorf("get league: %w", err)
	}
	if !found {
		return league.League{}, fmt.Errorf("%w: league=%d", ErrNotFound, leagueID)
	}
	return l, nil
}
