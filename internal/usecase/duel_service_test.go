package usecase

import (
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuelService_CreatorWinsOnMakes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:       creator.ID,
		InvitedPlayerID: invited.ID,
		Rules:           duel.RuleOverrides{TimeLimitHours: intPtr(1)},
	})
	require.NoError(t, err)
	require.Equal(t, duel.StatusPending, d.Status)
	require.Equal(t, testNow.Add(time.Hour), d.ExpiresAt)

	env.advance(10 * time.Minute)
	d, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "sess-creator", session.Stats{TotalPutts: 25, TotalMakes: 18})
	require.NoError(t, err)
	require.NotNil(t, d.CreatorSessionID)
	require.Equal(t, "sess-creator", *d.CreatorSessionID)
	require.Equal(t, duel.StatusPending, d.Status)

	env.advance(10 * time.Minute)
	d, err = env.duels.SubmitSession(ctx, invited.ID, d.ID, "sess-invited", session.Stats{TotalPutts: 25, TotalMakes: 15})
	require.NoError(t, err)
	require.Equal(t, duel.StatusCompleted, d.Status)
	require.NotNil(t, d.WinnerID)
	require.Equal(t, creator.ID, *d.WinnerID)

	stored, found, err := env.duelRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, duel.StatusCompleted, stored.Status)
	require.InDelta(t, 18, *stored.CreatorScore, 0.001)
	require.InDelta(t, 15, *stored.InvitedScore, 0.001)

	results := 0
	for _, n := range env.notes.For(invited.ID) {
		if n.Type == notification.TypeMatchResult {
			results++
		}
	}
	assert.Equal(t, 1, results)
}

func TestDuelService_TieLeavesWinnerUnset(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID})
	require.NoError(t, err)
	_, err = env.duels.Respond(ctx, invited.ID, d.ID, true)
	require.NoError(t, err)

	_, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "a", session.Stats{TotalMakes: 20})
	require.NoError(t, err)
	d, err = env.duels.SubmitSession(ctx, invited.ID, d.ID, "b", session.Stats{TotalMakes: 20})
	require.NoError(t, err)
	require.Equal(t, duel.StatusCompleted, d.Status)
	require.Nil(t, d.WinnerID)
}

func TestDuelService_CreateRejectsSelfChallenge(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")

	_, err := env.duels.Create(t.Context(), CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: creator.ID})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.duels.Create(t.Context(), CreateDuelInput{CreatorID: creator.ID, Identifier: "creator@example.com"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDuelService_CreateByIdentifierMakesHiddenInvitee(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:      creator.ID,
		Identifier:     "NewUser@Example.com",
		IdentifierType: invitation.IdentifierEmail,
	})
	require.NoError(t, err)
	require.Equal(t, duel.StatusPendingNewPlayer, d.Status)

	hidden, found, err := env.players.GetByID(ctx, d.InvitedPlayerID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, hidden.IsHidden)
	require.Equal(t, "newuser@example.com", hidden.InvitationIdentifier)
	require.Equal(t, "newuser@example.com", hidden.Email)
	require.Equal(t, "Invited User 1", hidden.Name)

	received, err := env.invitations.List(ctx, hidden.ID, DirectionReceived)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, invitation.TypeDuel, received[0].Type)
	require.Equal(t, "newuser@example.com", received[0].Identifier)
	require.Equal(t, d.ID, *received[0].Data.DuelID)

	require.Empty(t, env.notes.For(hidden.ID))
}

func TestDuelService_RespondRules(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID})
	require.NoError(t, err)

	_, err = env.duels.Respond(ctx, creator.ID, d.ID, true)
	require.ErrorIs(t, err, ErrForbidden)

	accepted, err := env.duels.Respond(ctx, invited.ID, d.ID, true)
	require.NoError(t, err)
	require.Equal(t, duel.StatusActive, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	_, err = env.duels.Respond(ctx, invited.ID, d.ID, false)
	require.ErrorIs(t, err, ErrConflict)
}

func TestDuelService_CancelRules(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	other := env.addPlayer(t, "Other", "other@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, Identifier: "ghost@example.com"})
	require.NoError(t, err)

	_, err = env.duels.Cancel(ctx, other.ID, d.ID)
	require.ErrorIs(t, err, ErrForbidden)

	cancelled, err := env.duels.Cancel(ctx, creator.ID, d.ID)
	require.NoError(t, err)
	require.Equal(t, duel.StatusCancelled, cancelled.Status)

	_, found, err := env.players.GetByID(ctx, d.InvitedPlayerID)
	require.NoError(t, err)
	require.False(t, found, "hidden invitee without sessions is removed")

	_, err = env.duels.Cancel(ctx, creator.ID, d.ID)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDuelService_CancelKeepsHiddenInviteeWithOtherDuels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	ctx := t.Context()

	first, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, Identifier: "ghost@example.com"})
	require.NoError(t, err)
	second, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, Identifier: "ghost@example.com", Rules: duel.RuleOverrides{TargetPutts: intPtr(30)}})
	require.NoError(t, err)
	require.Equal(t, first.InvitedPlayerID, second.InvitedPlayerID)

	_, err = env.duels.Cancel(ctx, creator.ID, first.ID)
	require.NoError(t, err)

	_, found, err := env.players.GetByID(ctx, first.InvitedPlayerID)
	require.NoError(t, err)
	require.True(t, found)
}

func TestDuelService_SubmitAfterDeadlineExpires(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:       creator.ID,
		InvitedPlayerID: invited.ID,
		Rules:           duel.RuleOverrides{TimeLimitHours: intPtr(1)},
	})
	require.NoError(t, err)

	env.advance(2 * time.Hour)
	_, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "late", session.Stats{TotalMakes: 10})
	require.ErrorIs(t, err, ErrExpired)

	stored, _, err := env.duelRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, duel.StatusExpired, stored.Status)

	_, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "later", session.Stats{TotalMakes: 10})
	require.ErrorIs(t, err, ErrConflict)
}

func TestDuelService_SubmitRules(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	outsider := env.addPlayer(t, "Outsider", "outsider@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID})
	require.NoError(t, err)

	_, err = env.duels.SubmitSession(ctx, outsider.ID, d.ID, "x", session.Stats{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "first", session.Stats{TotalMakes: 5})
	require.NoError(t, err)
	_, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "second", session.Stats{TotalMakes: 9})
	require.ErrorIs(t, err, ErrConflict)
}

func TestDuelService_StatusView(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	outsider := env.addPlayer(t, "Outsider", "outsider@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:       creator.ID,
		InvitedPlayerID: invited.ID,
		Rules:           duel.RuleOverrides{TimeLimitHours: intPtr(2)},
	})
	require.NoError(t, err)

	_, err = env.sessions.Upsert(ctx, session.Session{ID: "s1", PlayerID: creator.ID, Stats: session.Stats{TotalMakes: 12}, CreatedAt: env.now})
	require.NoError(t, err)
	_, err = env.duels.SubmitSession(ctx, creator.ID, d.ID, "s1", session.Stats{TotalMakes: 12})
	require.NoError(t, err)

	env.advance(30 * time.Minute)
	view, err := env.duels.Status(ctx, invited.ID, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Creator", view.CreatorName)
	require.Equal(t, "Invited", view.InvitedName)
	require.Equal(t, 90, view.MinutesRemaining)
	require.False(t, view.IsExpired)
	require.True(t, view.CreatorSubmitted)
	require.False(t, view.InvitedSubmitted)
	require.NotNil(t, view.CreatorSession)
	require.Equal(t, 12, view.CreatorSession.TotalMakes)

	_, err = env.duels.Status(ctx, outsider.ID, d.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestDuelService_ExpireOverdue(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	ctx := t.Context()

	_, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID, Rules: duel.RuleOverrides{TimeLimitHours: intPtr(1)}})
	require.NoError(t, err)
	_, err = env.duels.Create(ctx, CreateDuelInput{CreatorID: invited.ID, InvitedPlayerID: creator.ID, Rules: duel.RuleOverrides{TimeLimitHours: intPtr(5)}})
	require.NoError(t, err)

	env.advance(2 * time.Hour)
	n, err := env.duels.ExpireOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	open, err := env.duels.List(ctx, creator.ID, string(duel.StatusPending))
	require.NoError(t, err)
	require.Len(t, open, 1)

	_, err = env.duels.List(ctx, creator.ID, "bogus")
	require.ErrorIs(t, err, ErrInvalidInput)
}
