package duel

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusPendingNewPlayer Status = "pending_new_player"
	StatusActive           Status = "active"
	StatusCompleted        Status = "completed"
	StatusExpired          Status = "expired"
	StatusDeclined         Status = "declined"
	StatusCancelled        Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:          {StatusActive, StatusCancelled, StatusDeclined, StatusExpired},
	StatusPendingNewPlayer: {StatusPending, StatusActive, StatusCancelled, StatusDeclined, StatusExpired},
	StatusActive:           {StatusCompleted, StatusExpired},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPendingNewPlayer, StatusActive, StatusCompleted, StatusExpired, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

func (s Status) Pending() bool {
	return s == StatusPending || s == StatusPendingNewPlayer
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PredecessorsOf lists statuses from which next is reachable in one step.
func PredecessorsOf(next Status) []Status {
	var out []Status
	for from, targets := range transitions {
		for _, to := range targets {
			if to == next {
				out = append(out, from)
			}
		}
	}
	return out
}

type Side string

const (
	SideCreator Side = "creator"
	SideInvited Side = "invited"
)

type Duel struct {
	ID                int64
	CreatorID         int64
	InvitedPlayerID   int64
	Status            Status
	Rules             Rules
	CreatorSessionID  *string
	InvitedSessionID  *string
	CreatorScore      *float64
	InvitedScore      *float64
	WinnerID          *int64
	InvitationMessage string
	ExpiresAt         time.Time
	AcceptedAt        *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var ErrSameParticipant = errors.New("creator and invited player must differ")

func (d Duel) Validate() error {
	if d.CreatorID == d.InvitedPlayerID {
		return ErrSameParticipant
	}
	return nil
}

// SideOf reports which column a participant's session belongs to.
func (d Duel) SideOf(playerID int64) (Side, bool) {
	switch playerID {
	case d.CreatorID:
		return SideCreator, true
	case d.InvitedPlayerID:
		return SideInvited, true
	}
	return "", false
}

func (d Duel) Submitted(side Side) bool {
	if side == SideCreator {
		return d.CreatorSessionID != nil
	}
	return d.InvitedSessionID != nil
}

func (d Duel) BothSubmitted() bool {
	return d.CreatorSessionID != nil && d.InvitedSessionID != nil
}

func (d Duel) Opponent(playerID int64) int64 {
	if playerID == d.CreatorID {
		return d.InvitedPlayerID
	}
	return d.CreatorID
}

// Deadline is creation time plus the configured limit.
func (d Duel) Deadline() time.Time {
	if !d.ExpiresAt.IsZero() {
		return d.ExpiresAt
	}
	return d.CreatedAt.Add(time.Duration(d.Rules.TimeLimitHours) * time.Hour)
}

func (d Duel) IsExpired(now time.Time) bool {
	return !now.Before(d.Deadline())
}

// MinutesRemaining is clamped at zero.
func (d Duel) MinutesRemaining(now time.Time) int {
	left := d.Deadline().Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Minute)
}
