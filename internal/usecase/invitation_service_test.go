package usecase

import (
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/platform/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestInvitationService_CreateForUnknownIdentifier(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	inviter := env.addPlayer(t, "Inviter", "inviter@example.com")
	ctx := t.Context()

	created, err := env.invitations.Create(ctx, CreateInvitationInput{
		InviterID:      inviter.ID,
		Identifier:     "+1 (555) 010-2000",
		IdentifierType: invitation.IdentifierPhone,
		Type:           invitation.TypeFriend,
	})
	require.NoError(t, err)
	require.True(t, created.HiddenCreated)
	require.True(t, created.Target.IsHidden)
	require.Equal(t, "+15550102000", created.Target.InvitationIdentifier)
	require.Equal(t, "+15550102000@temp.proofofputt.com", created.Target.Email)
	require.Equal(t, invitation.StatusPending, created.Invitation.Status)
	require.Equal(t, testNow.Add(invitation.TTL), created.Invitation.ExpiresAt)

	_, err = env.invitations.Create(ctx, CreateInvitationInput{
		InviterID:      inviter.ID,
		Identifier:     "+15550102000",
		IdentifierType: invitation.IdentifierPhone,
		Type:           invitation.TypeFriend,
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestInvitationService_CreateRejectsSelfAndBadType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	inviter := env.addPlayer(t, "Inviter", "inviter@example.com")

	_, err := env.invitations.Create(t.Context(), CreateInvitationInput{
		InviterID:  inviter.ID,
		Identifier: "INVITER@example.com",
		Type:       invitation.TypeFriend,
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.invitations.Create(t.Context(), CreateInvitationInput{
		InviterID:  inviter.ID,
		Identifier: "x@example.com",
		Type:       "party",
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvitationService_CreateIsRateLimited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	inviter := env.addPlayer(t, "Inviter", "inviter@example.com")
	env.invitations.limiter = ratelimit.PerHour(1)

	_, err := env.invitations.Create(t.Context(), CreateInvitationInput{InviterID: inviter.ID, Identifier: "a@example.com", Type: invitation.TypeFriend})
	require.NoError(t, err)
	_, err = env.invitations.Create(t.Context(), CreateInvitationInput{InviterID: inviter.ID, Identifier: "b@example.com", Type: invitation.TypeFriend})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestInvitationService_FriendAccept(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	alice := env.addPlayer(t, "Alice", "alice@example.com")
	bob := env.addPlayer(t, "Bob", "bob@example.com")
	ctx := t.Context()

	inv, err := env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, env.notes.For(bob.ID), 1)

	_, err = env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: alice.ID, InvitationID: inv.ID, Action: invitation.ActionAccept})
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: bob.ID, InvitationID: inv.ID, Action: invitation.ActionAccept})
	require.NoError(t, err)
	require.Empty(t, resp.Warnings)
	require.False(t, resp.Claimed)
	require.Equal(t, invitation.StatusAccepted, resp.Invitation.Status)

	friends, err := env.players.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, friends)

	_, err = env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, ErrConflict)
}

func TestInvitationService_LapsedInvitationAllowsReinvite(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	alice := env.addPlayer(t, "Alice", "alice@example.com")
	bob := env.addPlayer(t, "Bob", "bob@example.com")
	ctx := t.Context()

	first, err := env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, ErrConflict)

	env.advance(invitation.TTL + time.Minute)
	second, err := env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	stored, found, err := env.invitationRep.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, invitation.StatusExpired, stored.Status)
}

func TestInvitationService_ExpiredStaysExpired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	alice := env.addPlayer(t, "Alice", "alice@example.com")
	bob := env.addPlayer(t, "Bob", "bob@example.com")
	ctx := t.Context()

	inv, err := env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	env.advance(invitation.TTL + time.Minute)
	_, err = env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: bob.ID, InvitationID: inv.ID, Action: invitation.ActionAccept})
	require.ErrorIs(t, err, ErrExpired)

	stored, found, err := env.invitationRep.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, invitation.StatusExpired, stored.Status)

	_, err = env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: bob.ID, InvitationID: inv.ID, Action: invitation.ActionAccept})
	require.ErrorIs(t, err, ErrConflict)

	friends, err := env.players.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, friends)
}

func TestInvitationService_ClaimHiddenProfileByUsername(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:      creator.ID,
		Identifier:     "PuttMaster",
		IdentifierType: invitation.IdentifierUsername,
	})
	require.NoError(t, err)
	require.Equal(t, duel.StatusPendingNewPlayer, d.Status)
	hiddenID := d.InvitedPlayerID

	received, err := env.invitations.List(ctx, hiddenID, DirectionReceived)
	require.NoError(t, err)
	require.Len(t, received, 1)

	claimer := env.addPlayer(t, "PuttMaster", "pm@example.com")
	stranger := env.addPlayer(t, "Stranger", "stranger@example.com")

	_, err = env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: stranger.ID, InvitationID: received[0].ID, Action: invitation.ActionAccept})
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: claimer.ID, InvitationID: received[0].ID, Action: invitation.ActionAccept})
	require.NoError(t, err)
	require.True(t, resp.Claimed)
	require.Empty(t, resp.Warnings)
	require.Equal(t, claimer.ID, resp.Invitation.TargetPlayerID)

	claimed, err := env.duelRepo.ListByPlayer(ctx, claimer.ID, "")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, duel.StatusActive, claimed[0].Status)
	require.Equal(t, claimer.ID, claimed[0].InvitedPlayerID)

	hidden, found, err := env.players.GetByID(ctx, hiddenID)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, hidden.Unclaimed())
}

func TestInvitationService_ClaimLosesToConcurrentDecline(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:      creator.ID,
		Identifier:     "LateClaimer",
		IdentifierType: invitation.IdentifierUsername,
	})
	require.NoError(t, err)
	hiddenID := d.InvitedPlayerID
	received, err := env.invitations.List(ctx, hiddenID, DirectionReceived)
	require.NoError(t, err)
	require.Len(t, received, 1)
	inv := received[0]

	claimer := env.addPlayer(t, "LateClaimer", "late@example.com")
	ok, err := env.invitationRep.SetStatus(ctx, inv.ID, invitation.StatusPending, invitation.StatusDeclined, env.clock())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.invitations.accept(ctx, inv, claimer, true, env.clock())
	require.ErrorIs(t, err, ErrConflict)

	hidden, found, err := env.players.GetByID(ctx, hiddenID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, hidden.Unclaimed())

	stored, found, err := env.duelRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, hiddenID, stored.InvitedPlayerID)
}

func TestInvitationService_DeclineDuelInvitation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID})
	require.NoError(t, err)
	received, err := env.invitations.List(ctx, invited.ID, DirectionReceived)
	require.NoError(t, err)
	require.Len(t, received, 1)

	resp, err := env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: invited.ID, InvitationID: received[0].ID, Action: invitation.ActionDecline})
	require.NoError(t, err)
	require.Equal(t, invitation.StatusDeclined, resp.Invitation.Status)
	require.Empty(t, resp.Warnings)

	stored, _, err := env.duelRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, duel.StatusDeclined, stored.Status)
}

func TestInvitationService_LeagueAcceptWarnsWhenFull(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := env.addPlayer(t, "Owner", "owner@example.com")
	first := env.addPlayer(t, "First", "first@example.com")
	second := env.addPlayer(t, "Second", "second@example.com")
	ctx := t.Context()

	l, err := env.leagues.Create(ctx, CreateLeagueInput{OwnerID: owner.ID, Name: "Tiny League", MaxMembers: intPtr(2)})
	require.NoError(t, err)

	invite := func(target string) invitation.Invitation {
		created, err := env.invitations.Create(ctx, CreateInvitationInput{
			InviterID:  owner.ID,
			Identifier: target,
			Type:       invitation.TypeLeague,
			Data:       invitation.Data{LeagueID: int64Ptr(l.ID)},
		})
		require.NoError(t, err)
		return created.Invitation
	}
	firstInv := invite(first.Email)
	secondInv := invite(second.Email)

	resp, err := env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: first.ID, InvitationID: firstInv.ID, Action: invitation.ActionAccept})
	require.NoError(t, err)
	require.Empty(t, resp.Warnings)

	resp, err = env.invitations.Respond(ctx, RespondInvitationInput{PlayerID: second.ID, InvitationID: secondInv.ID, Action: invitation.ActionAccept})
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	require.Contains(t, resp.Warnings[0], "league is full")

	_, isMember, err := env.leagueRepo.GetMembership(ctx, l.ID, second.ID)
	require.NoError(t, err)
	require.False(t, isMember)
}

func TestInvitationService_ListDirection(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	alice := env.addPlayer(t, "Alice", "alice@example.com")
	bob := env.addPlayer(t, "Bob", "bob@example.com")
	ctx := t.Context()

	_, err := env.invitations.InviteFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	sent, err := env.invitations.List(ctx, alice.ID, DirectionSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, "Alice", sent[0].InviterName)

	received, err := env.invitations.List(ctx, alice.ID, DirectionReceived)
	require.NoError(t, err)
	require.Empty(t, received)

	_, err = env.invitations.List(ctx, alice.ID, "sideways")
	require.ErrorIs(t, err, ErrInvalidInput)
}
