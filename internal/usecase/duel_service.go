package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// inviteeResolver turns a free-form contact into a player and records the
// invitation that goes with a duel.
type inviteeResolver interface {
	ResolveInvitee(ctx context.Context, inviterID int64, identifier string, identifierType invitation.IdentifierType) (player.Player, bool, error)
	Link(ctx context.Context, inviterID int64, target player.Player, kind invitation.Type, data invitation.Data, message string) (invitation.Invitation, error)
}

type DuelService struct {
	duels    duel.Repository
	players  player.Repository
	sessions session.Repository
	invitees inviteeResolver
	notifier notifier
	logger   *logging.Logger
	now      func() time.Time
}

func NewDuelService(duels duel.Repository, players player.Repository, sessions session.Repository, invitees inviteeResolver, n notifier, logger *logging.Logger) *DuelService {
	if n == nil {
		n = nopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DuelService{
		duels:    duels,
		players:  players,
		sessions: sessions,
		invitees: invitees,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateDuelInput struct {
	CreatorID       int64
	InvitedPlayerID int64
	Identifier      string
	IdentifierType  invitation.IdentifierType
	Rules           duel.RuleOverrides
	Message         string
}

func (s *DuelService) Create(ctx context.Context, input CreateDuelInput) (duel.Duel, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DuelService.Create", attribute.Int64("creator_id", input.CreatorID))
	defer span.End()

	rules, err := duel.DefaultRules().Merge(input.Rules)
	if err != nil {
		return duel.Duel{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	invitee, err := s.resolveInvitee(ctx, input)
	if err != nil {
		return duel.Duel{}, err
	}

	now := s.now().UTC()
	d := duel.Duel{
		CreatorID:         input.CreatorID,
		InvitedPlayerID:   invitee.ID,
		Status:            duel.StatusPending,
		Rules:             rules,
		InvitationMessage: strings.TrimSpace(input.Message),
		ExpiresAt:         now.Add(time.Duration(rules.TimeLimitHours) * time.Hour),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := d.Validate(); err != nil {
		return duel.Duel{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if invitee.Unclaimed() {
		d.Status = duel.StatusPendingNewPlayer
	}

	created, err := s.duels.Create(ctx, d)
	if err != nil {
		return duel.Duel{}, fmt.Errorf("create duel: %w", err)
	}

	if s.invitees != nil {
		if _, err := s.invitees.Link(ctx, input.CreatorID, invitee, invitation.TypeDuel, invitation.Data{DuelID: int64Ptr(created.ID)}, d.InvitationMessage); err != nil {
			s.logger.WarnContext(ctx, "linked duel invitation failed", "duel_id", created.ID, "error", err)
		}
	}

	if invitee.IsHidden {
		return created, nil
	}
	if rules.AutoAccept {
		if ok, err := s.duels.Transition(ctx, created.ID, duel.Transition{From: []duel.Status{duel.StatusPending}, To: duel.StatusActive, At: now}); err != nil {
			s.logger.WarnContext(ctx, "auto accept duel failed", "duel_id", created.ID, "error", err)
		} else if ok {
			created.Status = duel.StatusActive
			created.AcceptedAt = &now
		}
	}
	creatorName := displayName(ctx, s.players, input.CreatorID)
	if _, err := s.notifier.Notify(ctx, duelChallengeNotification(created, creatorName)); err != nil {
		s.logger.WarnContext(ctx, "duel challenge notification failed", "duel_id", created.ID, "error", err)
	}
	return created, nil
}

func (s *DuelService) resolveInvitee(ctx context.Context, input CreateDuelInput) (player.Player, error) {
	if input.InvitedPlayerID > 0 {
		if input.InvitedPlayerID == input.CreatorID {
			return player.Player{}, fmt.Errorf("%w: %s", ErrInvalidInput, duel.ErrSameParticipant.Error())
		}
		p, found, err := s.players.GetByID(ctx, input.InvitedPlayerID)
		if err != nil {
			return player.Player{}, fmt.Errorf("get invited player: %w", err)
		}
		if !found {
			return player.Player{}, fmt.Errorf("%w: player=%d", ErrNotFound, input.InvitedPlayerID)
		}
		return p, nil
	}
	if strings.TrimSpace(input.Identifier) == "" {
		return player.Player{}, fmt.Errorf("%w: invited_player_id or identifier is required", ErrInvalidInput)
	}
	if s.invitees == nil {
		return player.Player{}, fmt.Errorf("%w: inviting by contact is not available", ErrDependencyUnavailable)
	}
	p, _, err := s.invitees.ResolveInvitee(ctx, input.CreatorID, input.Identifier, input.IdentifierType)
	return p, err
}

func (s *DuelService) List(ctx context.Context, playerID int64, status string) ([]duel.Duel, error) {
	st := duel.Status(strings.TrimSpace(status))
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	items, err := s.duels.ListByPlayer(ctx, playerID, st)
	if err != nil {
		return nil, fmt.Errorf("list duels: %w", err)
	}
	return items, nil
}

// Respond lets the invited player accept or decline a pending challenge.
func (s *DuelService) Respond(ctx context.Context, playerID, duelID int64, accept bool) (duel.Duel, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DuelService.Respond", attribute.Int64("duel_id", duelID))
	defer span.End()

	d, err := s.get(ctx, duelID)
	if err != nil {
		return duel.Duel{}, err
	}
	if d.InvitedPlayerID != playerID {
		return duel.Duel{}, fmt.Errorf("%w: only the invited player can respond", ErrForbidden)
	}
	if !d.Status.Pending() {
		return duel.Duel{}, fmt.Errorf("%w: duel is %s", ErrConflict, d.Status)
	}
	now := s.now().UTC()
	if d.IsExpired(now) {
		s.expire(ctx, d, now)
		return duel.Duel{}, fmt.Errorf("%w: duel response window has passed", ErrExpired)
	}

	next := duel.StatusDeclined
	if accept {
		next = duel.StatusActive
	}
	ok, err := s.duels.Transition(ctx, d.ID, duel.Transition{From: []duel.Status{duel.StatusPending, duel.StatusPendingNewPlayer}, To: next, At: now})
	if err != nil {
		return duel.Duel{}, fmt.Errorf("respond to duel: %w", err)
	}
	if !ok {
		return duel.Duel{}, fmt.Errorf("%w: duel is no longer pending", ErrConflict)
	}
	d.Status = next
	d.UpdatedAt = now
	if accept {
		d.AcceptedAt = &now
	}
	if _, err := s.notifier.Notify(ctx, duelResponseNotification(d, accept)); err != nil {
		s.logger.WarnContext(ctx, "duel response notification failed", "duel_id", d.ID, "error", err)
	}
	return d, nil
}

// ActivateFromInvitation is the duel side of accepting a linked invitation.
func (s *DuelService) ActivateFromInvitation(ctx context.Context, duelID, playerID int64) error {
	d, err := s.get(ctx, duelID)
	if err != nil {
		return err
	}
	if d.InvitedPlayerID != playerID {
		return fmt.Errorf("%w: player is not the invited side", ErrForbidden)
	}
	if d.Status == duel.StatusActive {
		return nil
	}
	ok, err := s.duels.Transition(ctx, duelID, duel.Transition{
		From: []duel.Status{duel.StatusPending, duel.StatusPendingNewPlayer},
		To:   duel.StatusActive,
		At:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("activate duel: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: duel is %s", ErrConflict, d.Status)
	}
	return nil
}

// DeclineFromInvitation is the duel side of declining a linked invitation.
func (s *DuelService) DeclineFromInvitation(ctx context.Context, duelID, _ int64) error {
	ok, err := s.duels.Transition(ctx, duelID, duel.Transition{
		From: []duel.Status{duel.StatusPending, duel.StatusPendingNewPlayer},
		To:   duel.StatusDeclined,
		At:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("decline duel: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: duel is no longer pending", ErrConflict)
	}
	return nil
}

// Cancel is creator-only and only while the duel is pending. A hidden invitee
// created for this duel is removed when it never recorded a session.
func (s *DuelService) Cancel(ctx context.Context, playerID, duelID int64) (duel.Duel, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DuelService.Cancel", attribute.Int64("duel_id", duelID))
	defer span.End()

	d, err := s.get(ctx, duelID)
	if err != nil {
		return duel.Duel{}, err
	}
	if d.CreatorID != playerID {
		return duel.Duel{}, fmt.Errorf("%w: only the creator can cancel a duel", ErrForbidden)
	}
	if !d.Status.Pending() {
		return duel.Duel{}, fmt.Errorf("%w: cannot cancel a duel that is %s", ErrInvalidInput, d.Status)
	}
	now := s.now().UTC()
	ok, err := s.duels.Transition(ctx, d.ID, duel.Transition{From: []duel.Status{duel.StatusPending, duel.StatusPendingNewPlayer}, To: duel.StatusCancelled, At: now})
	if err != nil {
		return duel.Duel{}, fmt.Errorf("cancel duel: %w", err)
	}
	if !ok {
		return duel.Duel{}, fmt.Errorf("%w: duel is no longer pending", ErrInvalidInput)
	}
	d.Status = duel.StatusCancelled
	d.UpdatedAt = now

	s.cleanupHiddenInvitee(ctx, d)
	return d, nil
}

func (s *DuelService) cleanupHiddenInvitee(ctx context.Context, d duel.Duel) {
	invitee, found, err := s.players.GetByID(ctx, d.InvitedPlayerID)
	if err != nil || !found || !invitee.Unclaimed() {
		return
	}
	others, err := s.duels.ListByPlayer(ctx, invitee.ID, "")
	if err != nil {
		s.logger.WarnContext(ctx, "list hidden invitee duels failed", "player_id", invitee.ID, "error", err)
		return
	}
	for _, other := range others {
		if other.ID != d.ID && !other.Status.Terminal() {
			return
		}
	}
	deleted, err := s.players.DeleteHiddenWithoutSessions(ctx, invitee.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "delete hidden invitee failed", "player_id", invitee.ID, "error", err)
		return
	}
	if deleted {
		s.logger.InfoContext(ctx, "hidden invitee removed after cancel", "player_id", invitee.ID, "duel_id", d.ID)
	}
}

// SubmitSession records the caller's session on their side of the duel and
// scores it once both sides are in. An invited player's submission while the
// duel is still pending counts as accepting it.
func (s *DuelService) SubmitSession(ctx context.Context, playerID, duelID int64, sessionID string, stats session.Stats) (_ duel.Duel, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DuelService.SubmitSession", attribute.Int64("duel_id", duelID))
	defer func() {
		failSpan(span, err)
		span.End()
	}()

	d, err := s.get(ctx, duelID)
	if err != nil {
		return duel.Duel{}, err
	}
	now := s.now().UTC()
	side, err := s.submittable(ctx, d, playerID, now)
	if err != nil {
		return duel.Duel{}, err
	}

	if d.Status.Pending() && side == duel.SideInvited {
		if _, err := s.duels.Transition(ctx, d.ID, duel.Transition{From: []duel.Status{duel.StatusPending, duel.StatusPendingNewPlayer}, To: duel.StatusActive, At: now}); err != nil {
			return duel.Duel{}, fmt.Errorf("activate duel: %w", err)
		}
	}

	score := duel.ScoreOf(d.Rules.ScoringMethod, stats)
	updated, attached, err := s.duels.AttachSession(ctx, d.ID, side, sessionID, score, now)
	if err != nil {
		return duel.Duel{}, fmt.Errorf("attach duel session: %w", err)
	}
	if !attached {
		return duel.Duel{}, fmt.Errorf("%w: session already submitted for this duel", ErrConflict)
	}
	if !updated.BothSubmitted() || updated.Status != duel.StatusActive {
		return updated, nil
	}
	return s.complete(ctx, updated, now)
}

// CheckSubmission reports whether the player can still submit a session to
// the duel, without recording anything.
func (s *DuelService) CheckSubmission(ctx context.Context, playerID, duelID int64) error {
	d, err := s.get(ctx, duelID)
	if err != nil {
		return err
	}
	_, err = s.submittable(ctx, d, playerID, s.now().UTC())
	return err
}

func (s *DuelService) submittable(ctx context.Context, d duel.Duel, playerID int64, now time.Time) (duel.Side, error) {
	side, ok := d.SideOf(playerID)
	if !ok {
		return "", fmt.Errorf("%w: not a participant of this duel", ErrForbidden)
	}
	if d.Status.Terminal() {
		return "", fmt.Errorf("%w: duel is %s", ErrConflict, d.Status)
	}
	if d.IsExpired(now) {
		s.expire(ctx, d, now)
		return "", fmt.Errorf("%w: duel time limit has passed", ErrExpired)
	}
	if d.Submitted(side) {
		return "", fmt.Errorf("%w: session already submitted for this duel", ErrConflict)
	}
	return side, nil
}

func (s *DuelService) complete(ctx context.Context, d duel.Duel, now time.Time) (duel.Duel, error) {
	if d.CreatorScore == nil || d.InvitedScore == nil {
		return d, errors.New("duel scores missing after both submissions")
	}
	outcome := duel.Decide(d.Rules.ScoringMethod, *d.CreatorScore, *d.InvitedScore)
	result := duel.Result{
		CreatorScore: *d.CreatorScore,
		InvitedScore: *d.InvitedScore,
		WinnerID:     d.Winner(outcome),
		At:           now,
	}
	ok, err := s.duels.Complete(ctx, d.ID, result)
	if err != nil {
		return duel.Duel{}, fmt.Errorf("complete duel: %w", err)
	}
	if !ok {
		// Another request completed it first.
		latest, err := s.get(ctx, d.ID)
		if err != nil {
			return d, nil
		}
		return latest, nil
	}
	d.Status = duel.StatusCompleted
	d.WinnerID = result.WinnerID
	d.CompletedAt = &now
	d.UpdatedAt = now

	for _, recipient := range []int64{d.CreatorID, d.InvitedPlayerID} {
		if _, err := s.notifier.Notify(ctx, duelResultNotification(d, recipient)); err != nil {
			s.logger.WarnContext(ctx, "duel result notification failed", "duel_id", d.ID, "player_id", recipient, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "duel completed", "duel_id", d.ID, "winner_id", result.WinnerID)
	return d, nil
}

type DuelView struct {
	Duel             duel.Duel
	CreatorName      string
	InvitedName      string
	MinutesRemaining int
	IsExpired        bool
	CreatorSubmitted bool
	InvitedSubmitted bool
	CreatorSession   *session.Stats
	InvitedSession   *session.Stats
}

func (s *DuelService) Status(ctx context.Context, playerID, duelID int64) (DuelView, error) {
	d, err := s.get(ctx, duelID)
	if err != nil {
		return DuelView{}, err
	}
	if _, ok := d.SideOf(playerID); !ok {
		return DuelView{}, fmt.Errorf("%w: not a participant of this duel", ErrForbidden)
	}
	now := s.now().UTC()
	view := DuelView{
		Duel:             d,
		CreatorName:      displayName(ctx, s.players, d.CreatorID),
		InvitedName:      displayName(ctx, s.players, d.InvitedPlayerID),
		MinutesRemaining: d.MinutesRemaining(now),
		IsExpired:        d.IsExpired(now),
		CreatorSubmitted: d.Submitted(duel.SideCreator),
		InvitedSubmitted: d.Submitted(duel.SideInvited),
	}
	view.CreatorSession = s.sessionStats(ctx, d.CreatorSessionID)
	view.InvitedSession = s.sessionStats(ctx, d.InvitedSessionID)
	return view, nil
}

func (s *DuelService) sessionStats(ctx context.Context, id *string) *session.Stats {
	if id == nil || s.sessions == nil {
		return nil
	}
	sess, found, err := s.sessions.GetByID(ctx, *id)
	if err != nil || !found {
		return nil
	}
	return &sess.Stats
}

// ExpireOverdue moves every lapsed open duel to expired and tells both sides.
func (s *DuelService) ExpireOverdue(ctx context.Context) (int, error) {
	expired, err := s.duels.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire duels: %w", err)
	}
	for _, d := range expired {
		s.notifyExpired(ctx, d)
	}
	return len(expired), nil
}

func (s *DuelService) expire(ctx context.Context, d duel.Duel, now time.Time) {
	ok, err := s.duels.Transition(ctx, d.ID, duel.Transition{From: duel.PredecessorsOf(duel.StatusExpired), To: duel.StatusExpired, At: now})
	if err != nil {
		s.logger.WarnContext(ctx, "expire duel failed", "duel_id", d.ID, "error", err)
		return
	}
	if ok {
		s.notifyExpired(ctx, d)
	}
}

func (s *DuelService) notifyExpired(ctx context.Context, d duel.Duel) {
	for _, recipient := range []int64{d.CreatorID, d.InvitedPlayerID} {
		if _, err := s.notifier.Notify(ctx, duelExpiredNotification(d, recipient)); err != nil {
			s.logger.WarnContext(ctx, "duel expired notification failed", "duel_id", d.ID, "player_id", recipient, "error", err)
		}
	}
}

func (s *DuelService) get(ctx context.Context, duelID int64) (duel.Duel, error) {
	d, found, err := s.duels.GetByID(ctx, duelID)
	if err != nil {
		return duel.Duel{}, fmt.Errorf("get duel: %w", err)
	}
	if !found {
		return duel.Duel{}, fmt.Errorf("%w: duel=%d", ErrNotFound, duelID)
	}
	return d, nil
}
