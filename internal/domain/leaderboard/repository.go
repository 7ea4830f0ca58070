package leaderboard

import (
	"context"
	"time"
)

type Snapshot struct {
	Entries      []Entry
	CalculatedAt time.Time
}

type Repository interface {
	// Aggregate computes the full ranked list for the context directly from source tables.
	Aggregate(ctx context.Context, c Context, m Metric) ([]Entry, error)
	// ReadCache returns ok=false when no rows exist or any row is stale.
	ReadCache(ctx context.Context, c Context, m Metric) (Snapshot, bool, error)
	WriteCache(ctx context.Context, c Context, m Metric, entries []Entry, at time.Time) error
	MarkStale(ctx context.Context, contexts []Context) error
	// RefreshableContexts lists contexts that are kept in the cache table.
	RefreshableContexts(ctx context.Context) ([]Context, error)

	CreateGroup(ctx context.Context, g Group) (Group, error)
	GetGroup(ctx context.Context, id int64) (Group, bool, error)
	ListGroupIDsByMember(ctx context.Context, playerID int64) ([]int64, error)
}
