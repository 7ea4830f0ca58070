package subscription

import (
	"context"
	"time"
)

type Repository interface {
	RecordOrder(ctx context.Context, o Order) error
	// InsertEvent returns created=false when the provider event id was already stored.
	InsertEvent(ctx context.Context, e WebhookEvent) (WebhookEvent, bool, error)
	MarkProcessed(ctx context.Context, id int64, playerID *int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]WebhookEvent, error)

	GetState(ctx context.Context, playerID int64) (State, bool, error)
	Apply(ctx context.Context, playerID int64, c Change) error
	FindPlayerByCustomerID(ctx context.Context, customerID string) (int64, bool, error)
}
