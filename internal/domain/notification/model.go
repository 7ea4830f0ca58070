package notification

import (
	"context"
	"time"
)

type Type string

const (
	TypeDuelChallenge    Type = "duel_challenge"
	TypeLeagueInvitation Type = "league_invitation"
	TypeFriendRequest    Type = "friend_request"
	TypeSessionReminder  Type = "session_reminder"
	TypeAchievement      Type = "achievement"
	TypeMatchResult      Type = "match_result"
	TypeLeagueUpdate     Type = "league_update"
	TypeSystem           Type = "system"
)

type Notification struct {
	ID         int64          `json:"id"`
	PlayerID   int64          `json:"player_id"`
	Type       Type           `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	LinkPath   string         `json:"link_path,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	ReadStatus bool           `json:"read_status"`
	CreatedAt  time.Time      `json:"created_at"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
}

type Stats struct {
	Total  int
	Unread int
	Today  int
}

type ListFilter struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

type Repository interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	List(ctx context.Context, playerID int64, f ListFilter) ([]Notification, error)
	MarkRead(ctx context.Context, playerID, id int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, playerID int64, at time.Time) (int, error)
	Delete(ctx context.Context, playerID, id int64) (bool, error)
	Stats(ctx context.Context, playerID int64, since time.Time) (Stats, error)
	// TrimToLatest deletes everything but the newest keep notifications.
	TrimToLatest(ctx context.Context, playerID int64, keep int) (int, error)
}

// Bus delivers freshly stored notifications to live stream subscribers.
type Bus interface {
	Publish(ctx context.Context, n Notification) error
	// Subscribe returns a channel of notifications for playerID and a cancel func
	// that must be called when the subscriber goes away.
	Subscribe(playerID int64) (<-chan Notification, func())
}
