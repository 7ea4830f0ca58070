package player

import (
	"context"
	"time"
)

type Repository interface {
	// Create inserts the player together with an empty stats row.
	Create(ctx context.Context, p Player) (Player, error)
	GetByID(ctx context.Context, id int64) (Player, bool, error)
	GetByEmail(ctx context.Context, email string) (Player, bool, error)
	GetByName(ctx context.Context, name string) (Player, bool, error)
	FindUnclaimedByIdentifier(ctx context.Context, identifier string, identifierTypes ...string) (Player, bool, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Player, error)
	Search(ctx context.Context, query string, limit int) ([]Player, error)
	CountHidden(ctx context.Context) (int, error)
	// ActivateHidden turns a placeholder into a registered account in place.
	ActivateHidden(ctx context.Context, id int64, reg Registration) (Player, error)
	// DeleteHiddenWithoutSessions removes a placeholder only if it never recorded a session.
	DeleteHiddenWithoutSessions(ctx context.Context, id int64) (bool, error)

	GetStats(ctx context.Context, playerID int64) (Stats, bool, error)
	ApplySession(ctx context.Context, playerID int64, delta SessionDelta) (Stats, error)

	AddFriendship(ctx context.Context, playerID, friendID int64, at time.Time) error
	ListFriends(ctx context.Context, playerID int64) ([]Player, error)
	AreFriends(ctx context.Context, playerID, friendID int64) (bool, error)
}
