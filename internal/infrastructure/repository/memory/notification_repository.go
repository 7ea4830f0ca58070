package memory

import (
	"context"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/notification"
)

type NotificationRepository struct {
	s *Store
}

func NewNotificationRepository(s *Store) *NotificationRepository {
	return &NotificationRepository{s: s}
}

func (r *NotificationRepository) Create(_ context.Context, n notification.Notification) (notification.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n.ID = r.s.nextID("notifications")
	r.s.notifications[n.ID] = n
	return n, nil
}

func (r *NotificationRepository) List(_ context.Context, playerID int64, f notification.ListFilter) ([]notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := r.s.playerNotifications(playerID)
	if f.UnreadOnly {
		unread := items[:0]
		for _, n := range items {
			if !n.ReadStatus {
				unread = append(unread, n)
			}
		}
		items = unread
	}
	return page(items, f.Limit, f.Offset), nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, playerID, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.PlayerID != playerID {
		return false, nil
	}
	if !n.ReadStatus {
		n.ReadStatus = true
		n.ReadAt = &at
		r.s.notifications[id] = n
	}
	return true, nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, playerID int64, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for id, n := range r.s.notifications {
		if n.PlayerID != playerID || n.ReadStatus {
			continue
		}
		n.ReadStatus = true
		n.ReadAt = &at
		r.s.notifications[id] = n
		count++
	}
	return count, nil
}

func (r *NotificationRepository) Delete(_ context.Context, playerID, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.PlayerID != playerID {
		return false, nil
	}
	delete(r.s.notifications, id)
	return true, nil
}

func (r *NotificationRepository) Stats(_ context.Context, playerID int64, since time.Time) (notification.Stats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var st notification.Stats
	for _, n := range r.s.notifications {
		if n.PlayerID != playerID {
			continue
		}
		st.Total++
		if !n.ReadStatus {
			st.Unread++
		}
		if !n.CreatedAt.Before(since) {
			st.Today++
		}
	}
	return st, nil
}

func (r *NotificationRepository) TrimToLatest(_ context.Context, playerID int64, keep int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := r.s.playerNotifications(playerID)
	if len(items) <= keep {
		return 0, nil
	}
	for _, n := range items[keep:] {
		delete(r.s.notifications, n.ID)
	}
	return len(items) - keep, nil
}

// playerNotifications returns newest first; callers hold the lock.
func (s *Store) playerNotifications(playerID int64) []notification.Notification {
	out := make([]notification.Notification, 0)
	for _, n := range s.notifications {
		if n.PlayerID == playerID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
