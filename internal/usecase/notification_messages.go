package usecase

import (
	"fmt"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/notification"
)

func duelChallengeNotification(d duel.Duel, creatorName string) notification.Notification {
	return notification.Notification{
		PlayerID: d.InvitedPlayerID,
		Type:     notification.TypeDuelChallenge,
		Title:    "New duel challenge",
		Message:  fmt.Sprintf("%s challenged you to a %s duel", creatorName, d.Rules.ScoringMethod),
		LinkPath: fmt.Sprintf("/duels/%d", d.ID),
		Data:     map[string]any{"duel_id": d.ID, "creator_id": d.CreatorID},
	}
}

func duelResponseNotification(d duel.Duel, accepted bool) notification.Notification {
	verb := "declined"
	if accepted {
		verb = "accepted"
	}
	return notification.Notification{
		PlayerID: d.CreatorID,
		Type:     notification.TypeMatchResult,
		Title:    "Duel " + verb,
		Message:  fmt.Sprintf("Your duel challenge was %s", verb),
		LinkPath: fmt.Sprintf("/duels/%d", d.ID),
		Data:     map[string]any{"duel_id": d.ID, "status": string(d.Status)},
	}
}

func duelResultNotification(d duel.Duel, recipient int64) notification.Notification {
	message := "Your duel ended in a tie"
	switch {
	case d.WinnerID != nil && *d.WinnerID == recipient:
		message = "You won your duel"
	case d.WinnerID != nil:
		message = "You lost your duel"
	}
	return notification.Notification{
		PlayerID: recipient,
		Type:     notification.TypeMatchResult,
		Title:    "Duel complete",
		Message:  message,
		LinkPath: fmt.Sprintf("/duels/%d", d.ID),
		Data:     map[string]any{"duel_id": d.ID, "winner_id": d.WinnerID},
	}
}

func duelExpiredNotification(d duel.Duel, recipient int64) notification.Notification {
	return notification.Notification{
		PlayerID: recipient,
		Type:     notification.TypeMatchResult,
		Title:    "Duel expired",
		Message:  "The duel time limit passed before both sessions were submitted",
		LinkPath: fmt.Sprintf("/duels/%d", d.ID),
		Data:     map[string]any{"duel_id": d.ID},
	}
}

func leagueInvitationNotification(inv league.Invitation, l league.League, inviterName string) notification.Notification {
	return notification.Notification{
		PlayerID: inv.InviteeID,
		Type:     notification.TypeLeagueInvitation,
		Title:    "League invitation",
		Message:  fmt.Sprintf("%s invited you to join %s", inviterName, l.Name),
		LinkPath: fmt.Sprintf("/leagues/%d", l.ID),
		Data:     map[string]any{"league_id": l.ID, "invitation_id": inv.ID},
	}
}

func leagueUpdateNotification(playerID int64, l league.League, message string) notification.Notification {
	return notification.Notification{
		PlayerID: playerID,
		Type:     notification.TypeLeagueUpdate,
		Title:    l.Name,
		Message:  message,
		LinkPath: fmt.Sprintf("/leagues/%d", l.ID),
		Data:     map[string]any{"league_id": l.ID},
	}
}

func friendRequestNotification(inv invitation.Invitation, inviterName string) notification.Notification {
	return notification.Notification{
		PlayerID: inv.TargetPlayerID,
		Type:     notification.TypeFriendRequest,
		Title:    "Friend request",
		Message:  fmt.Sprintf("%s wants to be your friend", inviterName),
		LinkPath: "/friends",
		Data:     map[string]any{"invitation_id": inv.ID, "inviter_id": inv.InviterID},
	}
}

func invitationAcceptedNotification(inv invitation.Invitation, responderName string) notification.Notification {
	return notification.Notification{
		PlayerID: inv.InviterID,
		Type:     notification.TypeSystem,
		Title:    "Invitation accepted",
		Message:  fmt.Sprintf("%s accepted your %s invitation", responderName, inv.Type),
		Data:     map[string]any{"invitation_id": inv.ID},
	}
}

func achievementNotification(playerID int64, a certificate.Achievement) notification.Notification {
	return notification.Notification{
		PlayerID: playerID,
		Type:     notification.TypeAchievement,
		Title:    "Achievement unlocked",
		Message:  fmt.Sprintf("%s %g (%s). A certificate will be issued in the next weekly batch.", a.Type, a.Value, a.Rarity),
		LinkPath: "/certificates",
		Data:     map[string]any{"achievement_type": a.Type, "achievement_value": a.Value, "rarity_tier": a.Rarity},
	}
}

func subscriptionNotification(playerID int64, title, message string) notification.Notification {
	return notification.Notification{
		PlayerID: playerID,
		Type:     notification.TypeSystem,
		Title:    title,
		Message:  message,
		LinkPath: "/settings/subscription",
	}
}

func invitationReceivedNotification(inv invitation.Invitation, inviterName string) notification.Notification {
	return notification.Notification{
		PlayerID: inv.TargetPlayerID,
		Type:     notification.TypeSystem,
		Title:    "New invitation",
		Message:  fmt.Sprintf("%s sent you a %s invitation", inviterName, inv.Type),
		LinkPath: "/invitations",
		Data:     map[string]any{"invitation_id": inv.ID, "invitation_type": string(inv.Type)},
	}
}
