package invitation

import (
	"context"
	"time"
)

type Repository interface {
	// Create fails with a unique violation when an unexpired pending
	// invitation for the same inviter, identifier, type and data already
	// exists. Lapsed pending ones are marked expired first.
	Create(ctx context.Context, inv Invitation) (Invitation, error)
	GetByID(ctx context.Context, id int64) (Invitation, bool, error)
	ListSent(ctx context.Context, inviterID int64) ([]Invitation, error)
	ListReceived(ctx context.Context, playerID int64) ([]Invitation, error)
	SetStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
	// AcceptClaim accepts a pending invitation, marks the placeholder claimed
	// and re-points every invitation, duel and league invitation that
	// referenced it to ownerID, all in one transaction. accepted is false and
	// nothing changes when the invitation is no longer pending.
	AcceptClaim(ctx context.Context, invitationID, hiddenID, ownerID int64, at time.Time) (accepted bool, err error)
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}
