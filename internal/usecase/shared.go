package usecase

import (
	"context"
	"strings"

	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/domain/player"
)

// notifier stores and pushes a notification. Callers treat failures as non-fatal.
type notifier interface {
	Notify(ctx context.Context, n notification.Notification) (notification.Notification, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(_ context.Context, n notification.Notification) (notification.Notification, error) {
	return n, nil
}

func isDuplicateConstraintError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "duplicate key value violates unique constraint")
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}

func int64Ptr(v int64) *int64 { return &v }

// displayName falls back to a generic label when the player cannot be read.
func displayName(ctx context.Context, players player.Repository, playerID int64) string {
	p, found, err := players.GetByID(ctx, playerID)
	if err != nil || !found {
		return "A player"
	}
	return p.Name
}
