package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/invitation"
)

type InvitationRepository struct {
	s *Store
}

func NewInvitationRepository(s *Store) *InvitationRepository {
	return &InvitationRepository{s: s}
}

func (r *InvitationRepository) Create(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.invitations {
		if existing.Status != invitation.StatusPending ||
			existing.InviterID != inv.InviterID ||
			existing.Identifier != inv.Identifier ||
			existing.Type != inv.Type ||
			!sameData(existing.Data, inv.Data) {
			continue
		}
		if !existing.ExpiresAt.After(inv.CreatedAt) {
			existing.Status = invitation.StatusExpired
			existing.UpdatedAt = inv.CreatedAt
			r.s.invitations[id] = existing
			continue
		}
		return invitation.Invitation{}, duplicateError("player_invitations_active_key")
	}
	inv.ID = r.s.nextID("invitations")
	r.s.invitations[inv.ID] = inv
	return r.s.withInviterName(inv), nil
}

func (r *InvitationRepository) GetByID(_ context.Context, id int64) (invitation.Invitation, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	inv, ok := r.s.invitations[id]
	if !ok {
		return invitation.Invitation{}, false, nil
	}
	return r.s.withInviterName(inv), true, nil
}

func (r *InvitationRepository) ListSent(_ context.Context, inviterID int64) ([]invitation.Invitation, error) {
	return r.list(func(inv invitation.Invitation) bool { return inv.InviterID == inviterID }), nil
}

func (r *InvitationRepository) ListReceived(_ context.Context, playerID int64) ([]invitation.Invitation, error) {
	return r.list(func(inv invitation.Invitation) bool { return inv.TargetPlayerID == playerID }), nil
}

func (r *InvitationRepository) list(keep func(invitation.Invitation) bool) []invitation.Invitation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]invitation.Invitation, 0)
	for _, inv := range r.s.invitations {
		if keep(inv) {
			out = append(out, r.s.withInviterName(inv))
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

func (r *InvitationRepository) SetStatus(_ context.Context, id int64, from, to invitation.Status, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invitations[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	inv.UpdatedAt = at
	if to != invitation.StatusExpired {
		inv.RespondedAt = &at
	}
	r.s.invitations[id] = inv
	return true, nil
}

func (r *InvitationRepository) AcceptClaim(_ context.Context, invitationID, hiddenID, ownerID int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	accepted, ok := r.s.invitations[invitationID]
	if !ok || accepted.Status != invitation.StatusPending {
		return false, nil
	}
	hidden, ok := r.s.players[hiddenID]
	if !ok || !hidden.Unclaimed() {
		return false, fmt.Errorf("player %d is not an unclaimed placeholder", hiddenID)
	}
	if _, ok := r.s.players[ownerID]; !ok {
		return false, fmt.Errorf("player %d not found", ownerID)
	}

	accepted.Status = invitation.StatusAccepted
	accepted.RespondedAt = &at
	accepted.UpdatedAt = at
	r.s.invitations[invitationID] = accepted

	for id, inv := range r.s.invitations {
		if inv.TargetPlayerID == hiddenID {
			inv.TargetPlayerID = ownerID
			inv.UpdatedAt = at
			r.s.invitations[id] = inv
		}
	}
	for id, d := range r.s.duels {
		changed := false
		if d.InvitedPlayerID == hiddenID {
			d.InvitedPlayerID = ownerID
			changed = true
		}
		if d.CreatorID == hiddenID {
			d.CreatorID = ownerID
			changed = true
		}
		if changed {
			d.UpdatedAt = at
			r.s.duels[id] = d
		}
	}
	for id, inv := range r.s.leagueInvites {
		if inv.InviteeID == hiddenID {
			inv.InviteeID = ownerID
			r.s.leagueInvites[id] = inv
		}
	}

	hidden.ClaimedAt = &at
	hidden.UpdatedAt = at
	r.s.players[hiddenID] = hidden
	return true, nil
}

func (r *InvitationRepository) ExpireOverdue(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, inv := range r.s.invitations {
		if inv.Status == invitation.StatusPending && inv.Expired(now) {
			inv.Status = invitation.StatusExpired
			inv.UpdatedAt = now
			r.s.invitations[id] = inv
			n++
		}
	}
	return n, nil
}

func (s *Store) withInviterName(inv invitation.Invitation) invitation.Invitation {
	inv.InviterName = s.players[inv.InviterID].Name
	return inv
}

func sameData(a, b invitation.Data) bool {
	return sameID(a.DuelID, b.DuelID) && sameID(a.LeagueID, b.LeagueID)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
