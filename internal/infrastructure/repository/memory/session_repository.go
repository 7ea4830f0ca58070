package memory

import (
	"context"
	"sort"

	"github.com/proofofputt/putt-api/internal/domain/session"
)

type SessionRepository struct {
	s *Store
}

func NewSessionRepository(s *Store) *SessionRepository {
	return &SessionRepository{s: s}
}

func (r *SessionRepository) Upsert(_ context.Context, sess session.Session) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, found := r.s.sessions[sess.ID]
	if found {
		sess.CreatedAt = existing.CreatedAt
	}
	r.s.sessions[sess.ID] = sess
	return !found, nil
}

func (r *SessionRepository) GetByID(_ context.Context, id string) (session.Session, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, ok := r.s.sessions[id]
	return sess, ok, nil
}

func (r *SessionRepository) ListByPlayer(_ context.Context, playerID int64, limit, offset int) ([]session.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]session.Session, 0)
	for _, sess := range r.s.sessions {
		if sess.PlayerID == playerID {
			items = append(items, sess)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return page(items, limit, offset), nil
}

func (r *SessionRepository) CountByPlayer(_ context.Context, playerID int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, sess := range r.s.sessions {
		if sess.PlayerID == playerID {
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) SaveReport(_ context.Context, sessionID string, _ int64, csv string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.reports[sessionID] = csv
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
