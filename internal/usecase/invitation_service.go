package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/ratelimit"
)

// duelResponder applies the duel side of an invitation response.
type duelResponder interface {
	ActivateFromInvitation(ctx context.Context, duelID, playerID int64) error
	DeclineFromInvitation(ctx context.Context, duelID, playerID int64) error
}

// leagueJoiner applies the league side of an accepted invitation.
type leagueJoiner interface {
	AddMemberFromInvitation(ctx context.Context, leagueID, playerID int64) error
}

type InvitationService struct {
	repo     invitation.Repository
	players  player.Repository
	notifier notifier
	limiter  *ratelimit.Keyed
	duels    duelResponder
	leagues  leagueJoiner
	logger   *logging.Logger
	now      func() time.Time
}

func NewInvitationService(repo invitation.Repository, players player.Repository, n notifier, limiter *ratelimit.Keyed, logger *logging.Logger) *InvitationService {
	if n == nil {
		n = nopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &InvitationService{
		repo:     repo,
		players:  players,
		notifier: n,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

// WithResponders registers the duel and league side effects run on accept/decline.
func (s *InvitationService) WithResponders(duels duelResponder, leagues leagueJoiner) *InvitationService {
	s.duels = duels
	s.leagues = leagues
	return s
}

type CreateInvitationInput struct {
	InviterID      int64
	Identifier     string
	IdentifierType invitation.IdentifierType
	Type           invitation.Type
	Data           invitation.Data
	Message        string
}

type CreatedInvitation struct {
	Invitation    invitation.Invitation
	Target        player.Player
	HiddenCreated bool
}

func (s *InvitationService) Create(ctx context.Context, input CreateInvitationInput) (CreatedInvitation, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.InvitationService.Create")
	defer span.End()

	input.Message = strings.TrimSpace(input.Message)
	if !input.Type.Valid() {
		return CreatedInvitation{}, fmt.Errorf("%w: unsupported invitation type %q", ErrInvalidInput, input.Type)
	}
	if !s.limiter.Allow(strconv.FormatInt(input.InviterID, 10)) {
		return CreatedInvitation{}, fmt.Errorf("%w: too many invitations, try again later", ErrRateLimited)
	}

	target, created, err := s.ResolveInvitee(ctx, input.InviterID, input.Identifier, input.IdentifierType)
	if err != nil {
		return CreatedInvitation{}, err
	}
	inv, err := s.create(ctx, input.InviterID, target, input.Type, input.Data, input.Identifier, input.IdentifierType, input.Message)
	if err != nil {
		return CreatedInvitation{}, err
	}
	return CreatedInvitation{Invitation: inv, Target: target, HiddenCreated: created}, nil
}

// ResolveInvitee finds the player an identifier points at, creating a hidden
// placeholder when nobody matches. created reports whether a placeholder was made.
func (s *InvitationService) ResolveInvitee(ctx context.Context, inviterID int64, identifier string, identifierType invitation.IdentifierType) (player.Player, bool, error) {
	if identifierType == "" {
		identifierType = invitation.IdentifierEmail
	}
	if !identifierType.Valid() {
		return player.Player{}, false, fmt.Errorf("%w: unsupported identifier type %q", ErrInvalidInput, identifierType)
	}
	identifier = invitation.NormalizeIdentifier(identifierType, identifier)
	if identifier == "" {
		return player.Player{}, false, fmt.Errorf("%w: identifier is required", ErrInvalidInput)
	}

	existing, found, err := s.lookupExisting(ctx, identifier, identifierType)
	if err != nil {
		return player.Player{}, false, err
	}
	if found {
		if existing.ID == inviterID {
			return player.Player{}, false, fmt.Errorf("%w: cannot invite yourself", ErrInvalidInput)
		}
		return existing, false, nil
	}

	hidden, err := s.createHidden(ctx, inviterID, identifier, identifierType)
	if err != nil {
		return player.Player{}, false, err
	}
	return hidden, true, nil
}

func (s *InvitationService) lookupExisting(ctx context.Context, identifier string, identifierType invitation.IdentifierType) (player.Player, bool, error) {
	if identifierType == invitation.IdentifierEmail || invitation.IsEmail(identifier) {
		p, found, err := s.players.GetByEmail(ctx, identifier)
		if err != nil {
			return player.Player{}, false, fmt.Errorf("get player by email: %w", err)
		}
		if found {
			return p, true, nil
		}
	}
	if identifierType == invitation.IdentifierUsername {
		p, found, err := s.players.GetByName(ctx, identifier)
		if err != nil {
			return player.Player{}, false, fmt.Errorf("get player by name: %w", err)
		}
		if found {
			return p, true, nil
		}
	}
	p, found, err := s.players.FindUnclaimedByIdentifier(ctx, identifier, string(identifierType))
	if err != nil {
		return player.Player{}, false, fmt.Errorf("find hidden player: %w", err)
	}
	return p, found, nil
}

func (s *InvitationService) createHidden(ctx context.Context, inviterID int64, identifier string, identifierType invitation.IdentifierType) (player.Player, error) {
	count, err := s.players.CountHidden(ctx)
	if err != nil {
		return player.Player{}, fmt.Errorf("count hidden players: %w", err)
	}
	now := s.now().UTC()
	inviter := inviterID
	hidden, err := s.players.Create(ctx, player.Player{
		Name:                 fmt.Sprintf("Invited User %d", count+1),
		Email:                invitation.PlaceholderEmail(identifier),
		MembershipTier:       player.TierBasic,
		SubscriptionStatus:   "inactive",
		Timezone:             "America/New_York",
		IsHidden:             true,
		InvitationIdentifier: identifier,
		IdentifierType:       string(identifierType),
		InvitedBy:            &inviter,
		InvitedAt:            &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		if isDuplicateConstraintError(err) {
			// Placeholder email collided with another identifier that sanitized the same way.
			return player.Player{}, fmt.Errorf("%w: identifier is already reserved by another invitation", ErrConflict)
		}
		return player.Player{}, fmt.Errorf("create hidden player: %w", err)
	}
	s.logger.InfoContext(ctx, "hidden player created", "player_id", hidden.ID, "identifier_type", string(identifierType), "invited_by", inviterID)
	return hidden, nil
}

// Link records the invitation that accompanies a duel or league action for an
// already resolved target. The caller decides whether failure is fatal.
func (s *InvitationService) Link(ctx context.Context, inviterID int64, target player.Player, kind invitation.Type, data invitation.Data, message string) (invitation.Invitation, error) {
	identifier, identifierType := target.InvitationIdentifier, invitation.IdentifierType(target.IdentifierType)
	if identifier == "" || !identifierType.Valid() {
		identifier, identifierType = target.Email, invitation.IdentifierEmail
	}
	return s.insert(ctx, inviterID, target, kind, data, identifier, identifierType, message)
}

func (s *InvitationService) create(ctx context.Context, inviterID int64, target player.Player, kind invitation.Type, data invitation.Data, identifier string, identifierType invitation.IdentifierType, message string) (invitation.Invitation, error) {
	if identifierType == "" {
		identifierType = invitation.IdentifierEmail
	}
	inv, err := s.insert(ctx, inviterID, target, kind, data, invitation.NormalizeIdentifier(identifierType, identifier), identifierType, message)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if !target.IsHidden {
		inviterName := displayName(ctx, s.players, inviterID)
		n := invitationReceivedNotification(inv, inviterName)
		if kind == invitation.TypeFriend {
			n = friendRequestNotification(inv, inviterName)
		}
		if _, err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "invitation notification failed", "invitation_id", inv.ID, "error", err)
		}
	}
	return inv, nil
}

func (s *InvitationService) insert(ctx context.Context, inviterID int64, target player.Player, kind invitation.Type, data invitation.Data, identifier string, identifierType invitation.IdentifierType, message string) (invitation.Invitation, error) {
	if target.ID == inviterID {
		return invitation.Invitation{}, fmt.Errorf("%w: cannot invite yourself", ErrInvalidInput)
	}
	now := s.now().UTC()
	inv, err := s.repo.Create(ctx, invitation.Invitation{
		InviterID:      inviterID,
		TargetPlayerID: target.ID,
		Type:           kind,
		Data:           data,
		Identifier:     identifier,
		IdentifierType: identifierType,
		Message:        message,
		Status:         invitation.StatusPending,
		ExpiresAt:      now.Add(invitation.TTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if isDuplicateConstraintError(err) {
			return invitation.Invitation{}, fmt.Errorf("%w: an active invitation already exists for this contact", ErrConflict)
		}
		return invitation.Invitation{}, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

func (s *InvitationService) InviteFriend(ctx context.Context, playerID, friendID int64) (invitation.Invitation, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.InvitationService.InviteFriend")
	defer span.End()

	if playerID == friendID {
		return invitation.Invitation{}, fmt.Errorf("%w: cannot befriend yourself", ErrInvalidInput)
	}
	friend, found, err := s.players.GetByID(ctx, friendID)
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("get player: %w", err)
	}
	if !found || friend.IsHidden {
		return invitation.Invitation{}, fmt.Errorf("%w: player=%d", ErrNotFound, friendID)
	}
	already, err := s.players.AreFriends(ctx, playerID, friendID)
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("check friendship: %w", err)
	}
	if already {
		return invitation.Invitation{}, fmt.Errorf("%w: already friends", ErrConflict)
	}
	if !s.limiter.Allow(strconv.FormatInt(playerID, 10)) {
		return invitation.Invitation{}, fmt.Errorf("%w: too many invitations, try again later", ErrRateLimited)
	}
	return s.create(ctx, playerID, friend, invitation.TypeFriend, invitation.Data{}, friend.Email, invitation.IdentifierEmail, "")
}

type InvitationDirection string

const (
	DirectionSent     InvitationDirection = "sent"
	DirectionReceived InvitationDirection = "received"
)

func (s *InvitationService) List(ctx context.Context, playerID int64, direction InvitationDirection) ([]invitation.Invitation, error) {
	var (
		items []invitation.Invitation
		err   error
	)
	switch direction {
	case DirectionSent:
		items, err = s.repo.ListSent(ctx, playerID)
	case DirectionReceived, "":
		items, err = s.repo.ListReceived(ctx, playerID)
	default:
		return nil, fmt.Errorf("%w: direction must be sent or received", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return items, nil
}

type RespondInvitationInput struct {
	PlayerID     int64
	InvitationID int64
	Action       invitation.Action
}

type InvitationResponse struct {
	Invitation invitation.Invitation
	Claimed    bool
	Warnings   []string
}

// Respond accepts or declines an invitation for its target, or for a caller
// whose email or username matches a hidden target's identifier.
func (s *InvitationService) Respond(ctx context.Context, input RespondInvitationInput) (InvitationResponse, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.InvitationService.Respond")
	defer span.End()

	if input.Action != invitation.ActionAccept && input.Action != invitation.ActionDecline {
		return InvitationResponse{}, fmt.Errorf("%w: action must be accept or decline", ErrInvalidInput)
	}
	inv, found, err := s.repo.GetByID(ctx, input.InvitationID)
	if err != nil {
		return InvitationResponse{}, fmt.Errorf("get invitation: %w", err)
	}
	if !found {
		return InvitationResponse{}, fmt.Errorf("%w: invitation=%d", ErrNotFound, input.InvitationID)
	}

	responder, found, err := s.players.GetByID(ctx, input.PlayerID)
	if err != nil {
		return InvitationResponse{}, fmt.Errorf("get responder: %w", err)
	}
	if !found {
		return InvitationResponse{}, fmt.Errorf("%w: player=%d", ErrNotFound, input.PlayerID)
	}
	claiming, err := s.authorizeResponder(ctx, inv, responder)
	if err != nil {
		return InvitationResponse{}, err
	}

	if inv.Status != invitation.StatusPending {
		return InvitationResponse{}, fmt.Errorf("%w: invitation already %s", ErrConflict, inv.Status)
	}
	now := s.now().UTC()
	if inv.Expired(now) {
		if _, err := s.repo.SetStatus(ctx, inv.ID, invitation.StatusPending, invitation.StatusExpired, now); err != nil {
			return InvitationResponse{}, fmt.Errorf("expire invitation: %w", err)
		}
		return InvitationResponse{}, fmt.Errorf("%w: invitation has expired", ErrExpired)
	}

	if input.Action == invitation.ActionDecline {
		return s.decline(ctx, inv, responder, now)
	}
	return s.accept(ctx, inv, responder, claiming, now)
}

// authorizeResponder returns claiming=true when the caller acts through an
// identifier match on a hidden target instead of being the literal target.
func (s *InvitationService) authorizeResponder(ctx context.Context, inv invitation.Invitation, responder player.Player) (bool, error) {
	if inv.TargetPlayerID == responder.ID {
		return false, nil
	}
	target, found, err := s.players.GetByID(ctx, inv.TargetPlayerID)
	if err != nil {
		return false, fmt.Errorf("get invitation target: %w", err)
	}
	if found && target.Unclaimed() && identifierMatches(inv, responder) {
		return true, nil
	}
	return false, fmt.Errorf("%w: invitation is addressed to someone else", ErrForbidden)
}

func identifierMatches(inv invitation.Invitation, responder player.Player) bool {
	ident := invitation.NormalizeIdentifier(inv.IdentifierType, inv.Identifier)
	if ident == "" {
		return false
	}
	switch inv.IdentifierType {
	case invitation.IdentifierEmail:
		return ident == strings.ToLower(responder.Email)
	case invitation.IdentifierUsername:
		return ident == strings.ToLower(responder.Name)
	default:
		return ident == strings.ToLower(responder.Email) || ident == strings.ToLower(responder.Name)
	}
}

func (s *InvitationService) decline(ctx context.Context, inv invitation.Invitation, responder player.Player, now time.Time) (InvitationResponse, error) {
	ok, err := s.repo.SetStatus(ctx, inv.ID, invitation.StatusPending, invitation.StatusDeclined, now)
	if err != nil {
		return InvitationResponse{}, fmt.Errorf("decline invitation: %w", err)
	}
	if !ok {
		return InvitationResponse{}, fmt.Errorf("%w: invitation is no longer pending", ErrConflict)
	}
	inv.Status = invitation.StatusDeclined
	inv.RespondedAt = &now

	var resp InvitationResponse
	if inv.Type == invitation.TypeDuel && inv.Data.DuelID != nil && s.duels != nil {
		if err := s.duels.DeclineFromInvitation(ctx, *inv.Data.DuelID, responder.ID); err != nil {
			resp.Warnings = append(resp.Warnings, "duel could not be declined: "+err.Error())
		}
	}
	resp.Invitation = inv
	return resp, nil
}

func (s *InvitationService) accept(ctx context.Context, inv invitation.Invitation, responder player.Player, claiming bool, now time.Time) (InvitationResponse, error) {
	var (
		ok  bool
		err error
	)
	if claiming {
		ok, err = s.repo.AcceptClaim(ctx, inv.ID, inv.TargetPlayerID, responder.ID, now)
		if err != nil {
			return InvitationResponse{}, fmt.Errorf("claim hidden profile: %w", err)
		}
	} else {
		ok, err = s.repo.SetStatus(ctx, inv.ID, invitation.StatusPending, invitation.StatusAccepted, now)
		if err != nil {
			return InvitationResponse{}, fmt.Errorf("accept invitation: %w", err)
		}
	}
	if !ok {
		return InvitationResponse{}, fmt.Errorf("%w: invitation is no longer pending", ErrConflict)
	}
	if claiming {
		s.logger.InfoContext(ctx, "hidden profile claimed", "hidden_player_id", inv.TargetPlayerID, "player_id", responder.ID)
		inv.TargetPlayerID = responder.ID
	}
	inv.Status = invitation.StatusAccepted
	inv.RespondedAt = &now

	resp := InvitationResponse{Invitation: inv, Claimed: claiming}
	if err := s.applyAccepted(ctx, inv, responder.ID, now); err != nil {
		s.logger.WarnContext(ctx, "invitation side effect failed", "invitation_id", inv.ID, "type", string(inv.Type), "error", err)
		resp.Warnings = append(resp.Warnings, err.Error())
	}

	if _, err := s.notifier.Notify(ctx, invitationAcceptedNotification(inv, responder.Name)); err != nil {
		s.logger.WarnContext(ctx, "invitation accepted notification failed", "invitation_id", inv.ID, "error", err)
	}
	return resp, nil
}

func (s *InvitationService) applyAccepted(ctx context.Context, inv invitation.Invitation, playerID int64, now time.Time) error {
	switch inv.Type {
	case invitation.TypeFriend:
		if err := s.players.AddFriendship(ctx, inv.InviterID, playerID, now); err != nil {
			return fmt.Errorf("friendship could not be created: %w", err)
		}
	case invitation.TypeDuel:
		if inv.Data.DuelID == nil || s.duels == nil {
			return nil
		}
		if err := s.duels.ActivateFromInvitation(ctx, *inv.Data.DuelID, playerID); err != nil {
			return fmt.Errorf("duel could not be activated: %w", err)
		}
	case invitation.TypeLeague:
		if inv.Data.LeagueID == nil || s.leagues == nil {
			return nil
		}
		if err := s.leagues.AddMemberFromInvitation(ctx, *inv.Data.LeagueID, playerID); err != nil {
			return fmt.Errorf("league membership could not be created: %w", err)
		}
	}
	return nil
}

func (s *InvitationService) ExpireOverdue(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	return n, nil
}
