package certificate

import (
	"context"
	"time"
)

type Repository interface {
	// Enqueue stores the entry unless one already exists for (player, type, value).
	Enqueue(ctx context.Context, e QueueEntry) (QueueEntry, bool, error)
	ListUnprocessed(ctx context.Context, limit int) ([]QueueEntry, error)
	CreateBatch(ctx context.Context, b Batch) error
	// CompleteBatch issues certificates, marks queue entries processed and stores
	// the proof, all in one transaction.
	CompleteBatch(ctx context.Context, b Batch, certs []Certificate, queueIDs []int64, at time.Time) error
	GetBatch(ctx context.Context, id string) (Batch, bool, error)
	ListBatchLeaves(ctx context.Context, batchID string) ([]string, error)
	ListByPlayer(ctx context.Context, playerID int64) ([]Certificate, error)
	GetCertificate(ctx context.Context, id int64) (Certificate, bool, error)
}
