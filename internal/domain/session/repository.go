package session

import "context"

type Repository interface {
	// Upsert inserts or replaces a session; created is false on replace.
	Upsert(ctx context.Context, s Session) (created bool, err error)
	GetByID(ctx context.Context, id string) (Session, bool, error)
	ListByPlayer(ctx context.Context, playerID int64, limit, offset int) ([]Session, error)
	CountByPlayer(ctx context.Context, playerID int64) (int, error)
	SaveReport(ctx context.Context, sessionID string, playerID int64, csv string) error
}
