package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
)

type SubscriptionRepository struct {
	s *Store
}

func NewSubscriptionRepository(s *Store) *SubscriptionRepository {
	return &SubscriptionRepository{s: s}
}

func (r *SubscriptionRepository) RecordOrder(_ context.Context, o subscription.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.orders = append(r.s.orders, o)
	return nil
}

func (r *SubscriptionRepository) InsertEvent(_ context.Context, e subscription.WebhookEvent) (subscription.WebhookEvent, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.webhooks {
		if existing.ProviderEventID == e.ProviderEventID {
			return existing, false, nil
		}
	}
	e.ID = r.s.nextID("zaprite_events")
	r.s.webhooks[e.ID] = e
	return e, true, nil
}

func (r *SubscriptionRepository) MarkProcessed(_ context.Context, id int64, playerID *int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.webhooks[id]
	if !ok {
		return fmt.Errorf("webhook event %d not found", id)
	}
	e.Processed = true
	e.ProcessedAt = &at
	e.ProcessingError = ""
	if playerID != nil {
		e.PlayerID = playerID
	}
	r.s.webhooks[id] = e
	return nil
}

func (r *SubscriptionRepository) MarkFailed(_ context.Context, id int64, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.webhooks[id]
	if !ok {
		return fmt.Errorf("webhook event %d not found", id)
	}
	e.ProcessingError = reason
	e.RetryCount++
	r.s.webhooks[id] = e
	return nil
}

func (r *SubscriptionRepository) ListRetryable(_ context.Context, maxRetries, limit int) ([]subscription.WebhookEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]subscription.WebhookEvent, 0)
	for _, e := range r.s.webhooks {
		if !e.Processed && e.RetryCount < maxRetries {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0), nil
}

func (r *SubscriptionRepository) GetState(_ context.Context, playerID int64) (subscription.State, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.players[playerID]
	if !ok {
		return subscription.State{}, false, nil
	}
	state, ok := r.s.subs[playerID]
	if !ok {
		state = subscription.State{PlayerID: playerID, Status: p.SubscriptionStatus}
		if p.MembershipTier != "" {
			tier := p.MembershipTier
			state.Tier = &tier
		}
	}
	return state, true, nil
}

func (r *SubscriptionRepository) Apply(_ context.Context, playerID int64, c subscription.Change) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.players[playerID]
	if !ok {
		return fmt.Errorf("player %d not found", playerID)
	}
	state, ok := r.s.subs[playerID]
	if !ok {
		state = subscription.State{PlayerID: playerID, Status: p.SubscriptionStatus}
	}

	state = state.Merge(c)
	switch {
	case c.ClearTier:
		p.MembershipTier = player.TierBasic
	case c.Tier != nil:
		p.MembershipTier = *c.Tier
	}
	p.SubscriptionStatus = state.Status
	p.UpdatedAt = c.UpdatedAt

	r.s.subs[playerID] = state
	r.s.players[playerID] = p
	return nil
}

func (r *SubscriptionRepository) FindPlayerByCustomerID(_ context.Context, customerID string) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for playerID, state := range r.s.subs {
		if state.ZapriteCustomerID != nil && *state.ZapriteCustomerID == customerID {
			return playerID, true, nil
		}
	}
	return 0, false, nil
}
