package league

import (
	"context"
	"time"
)

type Repository interface {
	// CreateWithOwner inserts the league and its owner membership in one transaction.
	CreateWithOwner(ctx context.Context, l League) (League, error)
	GetByID(ctx context.Context, id int64) (League, bool, error)
	ListByMember(ctx context.Context, playerID int64) ([]League, error)
	ListPublic(ctx context.Context, excludePlayerID int64, limit int) ([]League, error)

	ListMembers(ctx context.Context, leagueID int64) ([]Membership, error)
	GetMembership(ctx context.Context, leagueID, playerID int64) (Membership, bool, error)
	// AddMember inserts or reactivates a membership under a row lock on the league.
	// It returns ErrLeagueFull or ErrAlreadyMember when the invariant would break.
	AddMember(ctx context.Context, m Membership) error

	// Start moves a startable league to active and creates its rounds atomically.
	Start(ctx context.Context, leagueID int64, at time.Time, rounds []Round) (bool, error)
	ListRounds(ctx context.Context, leagueID int64) ([]Round, error)
	GetRound(ctx context.Context, roundID int64) (Round, bool, error)
	// SubmitRoundSession replaces any earlier submission for the round; the
	// member's round counter is only incremented for the first one.
	SubmitRoundSession(ctx context.Context, rs RoundSession) (replaced bool, err error)
	Standings(ctx context.Context, leagueID int64) ([]Standing, error)
	AdvanceRounds(ctx context.Context, now time.Time) ([]RoundAdvance, error)

	// CreateInvitation marks lapsed pending invitations for the same league
	// and invitee expired before inserting.
	CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
	GetInvitation(ctx context.Context, id int64) (Invitation, bool, error)
	// HasPendingInvitation ignores pending invitations that lapsed by now.
	HasPendingInvitation(ctx context.Context, leagueID, playerID int64, now time.Time) (bool, error)
	SetInvitationStatus(ctx context.Context, id int64, from, to InvitationStatus, at time.Time) (bool, error)
	ExpireInvitations(ctx context.Context, now time.Time) (int, error)
}
