package duel

import (
	"context"
	"time"
)

type Transition struct {
	From []Status
	To   Status
	At   time.Time
}

type Result struct {
	CreatorScore float64
	InvitedScore float64
	WinnerID     *int64
	At           time.Time
}

type Repository interface {
	Create(ctx context.Context, d Duel) (Duel, error)
	GetByID(ctx context.Context, id int64) (Duel, bool, error)
	ListByPlayer(ctx context.Context, playerID int64, status Status) ([]Duel, error)
	// Transition applies the change only while the duel is in one of t.From.
	Transition(ctx context.Context, id int64, t Transition) (bool, error)
	// AttachSession fills the side column if it is still empty and returns the updated duel.
	AttachSession(ctx context.Context, id int64, side Side, sessionID string, score float64, at time.Time) (Duel, bool, error)
	// Complete records the result for an active duel whose sides are both present.
	Complete(ctx context.Context, id int64, r Result) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time) ([]Duel, error)
}
