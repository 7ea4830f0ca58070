package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/player"
)

type PlayerRepository struct {
	s *Store
}

func NewPlayerRepository(s *Store) *PlayerRepository {
	return &PlayerRepository{s: s}
}

func (r *PlayerRepository) Create(_ context.Context, p player.Player) (player.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := strings.ToLower(p.Email)
	for _, existing := range r.s.players {
		if strings.ToLower(existing.Email) == email {
			return player.Player{}, duplicateError("players_email_key")
		}
	}
	p.ID = r.s.nextID("players")
	r.s.players[p.ID] = p
	r.s.stats[p.ID] = player.Stats{PlayerID: p.ID, UpdatedAt: p.CreatedAt}
	return p, nil
}

func (r *PlayerRepository) GetByID(_ context.Context, id int64) (player.Player, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.players[id]
	return p, ok, nil
}

func (r *PlayerRepository) GetByEmail(_ context.Context, email string) (player.Player, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.s.players {
		if strings.ToLower(p.Email) == email {
			return p, true, nil
		}
	}
	return player.Player{}, false, nil
}

func (r *PlayerRepository) GetByName(_ context.Context, name string) (player.Player, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	name = strings.ToLower(strings.TrimSpace(name))
	for _, id := range r.s.sortedPlayerIDs() {
		p := r.s.players[id]
		if !p.IsHidden && strings.ToLower(p.Name) == name {
			return p, true, nil
		}
	}
	return player.Player{}, false, nil
}

func (r *PlayerRepository) FindUnclaimedByIdentifier(_ context.Context, identifier string, identifierTypes ...string) (player.Player, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, id := range r.s.sortedPlayerIDs() {
		p := r.s.players[id]
		if !p.Unclaimed() || strings.ToLower(p.InvitationIdentifier) != identifier {
			continue
		}
		if len(identifierTypes) == 0 || contains(identifierTypes, p.IdentifierType) {
			return p, true, nil
		}
	}
	return player.Player{}, false, nil
}

func (r *PlayerRepository) ListByIDs(_ context.Context, ids []int64) ([]player.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]player.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PlayerRepository) Search(_ context.Context, query string, limit int) ([]player.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]player.Player, 0)
	for _, id := range r.s.sortedPlayerIDs() {
		p := r.s.players[id]
		if p.IsHidden {
			continue
		}
		if strings.HasPrefix(strings.ToLower(p.Name), query) || strings.HasPrefix(strings.ToLower(p.Email), query) {
			out = append(out, p)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *PlayerRepository) CountHidden(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, p := range r.s.players {
		if p.IsHidden {
			n++
		}
	}
	return n, nil
}

func (r *PlayerRepository) ActivateHidden(_ context.Context, id int64, reg player.Registration) (player.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.players[id]
	if !ok || !p.Unclaimed() {
		return player.Player{}, fmt.Errorf("player %d is not an unclaimed placeholder", id)
	}
	email := strings.ToLower(reg.Email)
	for otherID, other := range r.s.players {
		if otherID != id && strings.ToLower(other.Email) == email {
			return player.Player{}, duplicateError("players_email_key")
		}
	}
	at := reg.At
	p.Name = reg.Name
	p.Email = reg.Email
	p.PasswordHash = reg.PasswordHash
	p.IsHidden = false
	p.ClaimedAt = &at
	p.UpdatedAt = at
	r.s.players[id] = p
	return p, nil
}

func (r *PlayerRepository) DeleteHiddenWithoutSessions(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.players[id]
	if !ok || !p.Unclaimed() {
		return false, nil
	}
	for _, sess := range r.s.sessions {
		if sess.PlayerID == id {
			return false, nil
		}
	}
	for _, d := range r.s.duels {
		if (d.CreatorID == id || d.InvitedPlayerID == id) && !d.Status.Terminal() {
			return false, nil
		}
	}
	delete(r.s.players, id)
	delete(r.s.stats, id)
	return true, nil
}

func (r *PlayerRepository) GetStats(_ context.Context, playerID int64) (player.Stats, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.stats[playerID]
	return st, ok, nil
}

func (r *PlayerRepository) ApplySession(_ context.Context, playerID int64, delta player.SessionDelta) (player.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.players[playerID]; !ok {
		return player.Stats{}, fmt.Errorf("player %d not found", playerID)
	}
	st := r.s.stats[playerID]
	st.PlayerID = playerID
	st = st.Apply(delta)
	r.s.stats[playerID] = st
	return st, nil
}

func (r *PlayerRepository) AddFriendship(_ context.Context, playerID, friendID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, pair := range [][2]int64{{playerID, friendID}, {friendID, playerID}} {
		if r.s.friends[pair[0]] == nil {
			r.s.friends[pair[0]] = map[int64]time.Time{}
		}
		if _, exists := r.s.friends[pair[0]][pair[1]]; !exists {
			r.s.friends[pair[0]][pair[1]] = at
		}
	}
	return nil
}

func (r *PlayerRepository) ListFriends(_ context.Context, playerID int64) ([]player.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]player.Player, 0, len(r.s.friends[playerID]))
	for friendID := range r.s.friends[playerID] {
		if p, ok := r.s.players[friendID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *PlayerRepository) AreFriends(_ context.Context, playerID, friendID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.friends[playerID][friendID]
	return ok, nil
}

// sortedPlayerIDs gives lookups a stable order; callers hold the lock.
func (s *Store) sortedPlayerIDs() []int64 {
	ids := make([]int64, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
