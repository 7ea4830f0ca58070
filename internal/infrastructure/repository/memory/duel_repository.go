package memory

import (
	"context"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/duel"
)

type DuelRepository struct {
	s *Store
}

func NewDuelRepository(s *Store) *DuelRepository {
	return &DuelRepository{s: s}
}

func (r *DuelRepository) Create(_ context.Context, d duel.Duel) (duel.Duel, error) {
	if err := d.Validate(); err != nil {
		return duel.Duel{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d.ID = r.s.nextID("duels")
	r.s.duels[d.ID] = d
	return d, nil
}

func (r *DuelRepository) GetByID(_ context.Context, id int64) (duel.Duel, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.duels[id]
	return d, ok, nil
}

func (r *DuelRepository) ListByPlayer(_ context.Context, playerID int64, status duel.Status) ([]duel.Duel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]duel.Duel, 0)
	for _, d := range r.s.duels {
		if d.CreatorID != playerID && d.InvitedPlayerID != playerID {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *DuelRepository) Transition(_ context.Context, id int64, t duel.Transition) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.duels[id]
	if !ok || !statusIn(d.Status, t.From) {
		return false, nil
	}
	d.Status = t.To
	d.UpdatedAt = t.At
	if t.To == duel.StatusActive && d.AcceptedAt == nil {
		at := t.At
		d.AcceptedAt = &at
	}
	r.s.duels[id] = d
	return true, nil
}

func (r *DuelRepository) AttachSession(_ context.Context, id int64, side duel.Side, sessionID string, score float64, at time.Time) (duel.Duel, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.duels[id]
	if !ok || d.Status.Terminal() || d.Submitted(side) {
		return d, false, nil
	}
	sid, sc := sessionID, score
	if side == duel.SideCreator {
		d.CreatorSessionID, d.CreatorScore = &sid, &sc
	} else {
		d.InvitedSessionID, d.InvitedScore = &sid, &sc
	}
	d.UpdatedAt = at
	r.s.duels[id] = d
	return d, true, nil
}

func (r *DuelRepository) Complete(_ context.Context, id int64, res duel.Result) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.duels[id]
	if !ok || d.Status != duel.StatusActive || !d.BothSubmitted() {
		return false, nil
	}
	cs, is := res.CreatorScore, res.InvitedScore
	at := res.At
	d.Status = duel.StatusCompleted
	d.CreatorScore, d.InvitedScore = &cs, &is
	d.WinnerID = res.WinnerID
	d.CompletedAt = &at
	d.UpdatedAt = at
	r.s.duels[id] = d
	return true, nil
}

func (r *DuelRepository) ExpireOverdue(_ context.Context, now time.Time) ([]duel.Duel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]duel.Duel, 0)
	for id, d := range r.s.duels {
		if !d.Status.CanTransitionTo(duel.StatusExpired) || !d.IsExpired(now) {
			continue
		}
		d.Status = duel.StatusExpired
		d.UpdatedAt = now
		r.s.duels[id] = d
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func statusIn(s duel.Status, set []duel.Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
