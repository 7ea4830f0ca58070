package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/domain/league"
)

type LeaderboardRepository struct {
	s *Store
}

func NewLeaderboardRepository(s *Store) *LeaderboardRepository {
	return &LeaderboardRepository{s: s}
}

func (r *LeaderboardRepository) Aggregate(_ context.Context, c leaderboard.Context, m leaderboard.Metric) ([]leaderboard.Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tallies, err := r.s.tallies(c)
	if err != nil {
		return nil, err
	}
	return leaderboard.Entries(tallies, m), nil
}

// tallies resolves the population of a context; callers hold the lock.
func (s *Store) tallies(c leaderboard.Context) ([]leaderboard.Tally, error) {
	byPlayer := map[int64]leaderboard.Tally{}
	fromStats := func(ids ...int64) {
		for _, id := range ids {
			p, ok := s.players[id]
			if !ok || p.IsHidden {
				continue
			}
			st := s.stats[id]
			byPlayer[id] = leaderboard.Tally{
				PlayerID:  id,
				Name:      p.Name,
				Sessions:  st.TotalSessions,
				Putts:     st.TotalPutts,
				Makes:     st.TotalMakes,
				Streak:    st.BestStreak,
				Fastest21: st.Fastest21Makes,
				Duration:  st.TotalDurationSeconds,
			}
		}
	}

	switch c.Type {
	case leaderboard.ContextGlobal:
		for id := range s.players {
			fromStats(id)
		}
	case leaderboard.ContextFriends:
		fromStats(c.ID)
		for friendID := range s.friends[c.ID] {
			fromStats(friendID)
		}
	case leaderboard.ContextCustom:
		g, ok := s.groups[c.ID]
		if !ok {
			return nil, fmt.Errorf("leaderboard group %d not found", c.ID)
		}
		fromStats(g.MemberIDs...)
	case leaderboard.ContextLeague:
		for _, rs := range s.roundSessions {
			if rs.LeagueID != c.ID {
				continue
			}
			if m, ok := s.members[c.ID][rs.PlayerID]; !ok || !m.IsActive {
				continue
			}
			sess, ok := s.sessions[rs.SessionID]
			if !ok {
				continue
			}
			t := byPlayer[rs.PlayerID]
			t.PlayerID = rs.PlayerID
			t.Name = s.players[rs.PlayerID].Name
			t.Sessions++
			t.Putts += sess.Stats.TotalPutts
			t.Makes += sess.Stats.TotalMakes
			t.Duration += sess.Stats.DurationSeconds
			if sess.Stats.BestStreak > t.Streak {
				t.Streak = sess.Stats.BestStreak
			}
			if f := sess.Stats.Fastest21Makes; f != nil && (t.Fastest21 == nil || *f < *t.Fastest21) {
				v := *f
				t.Fastest21 = &v
			}
			byPlayer[rs.PlayerID] = t
		}
	}

	out := make([]leaderboard.Tally, 0, len(byPlayer))
	for _, t := range byPlayer {
		out = append(out, t)
	}
	return out, nil
}

func boardKey(c leaderboard.Context, m leaderboard.Metric) string {
	return c.Key() + "|" + m.Name
}

func (r *LeaderboardRepository) ReadCache(_ context.Context, c leaderboard.Context, m leaderboard.Metric) (leaderboard.Snapshot, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.boards[boardKey(c, m)]
	if !ok || b.stale || len(b.entries) == 0 {
		return leaderboard.Snapshot{}, false, nil
	}
	return leaderboard.Snapshot{
		Entries:      append([]leaderboard.Entry(nil), b.entries...),
		CalculatedAt: b.calculatedAt,
	}, true, nil
}

func (r *LeaderboardRepository) WriteCache(_ context.Context, c leaderboard.Context, m leaderboard.Metric, entries []leaderboard.Entry, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.boards[boardKey(c, m)] = cachedBoard{
		context:      c,
		entries:      append([]leaderboard.Entry(nil), entries...),
		calculatedAt: at,
	}
	return nil
}

func (r *LeaderboardRepository) MarkStale(_ context.Context, contexts []leaderboard.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	keys := make(map[string]struct{}, len(contexts))
	for _, c := range contexts {
		keys[c.Key()] = struct{}{}
	}
	for k, b := range r.s.boards {
		if _, ok := keys[b.context.Key()]; ok {
			b.stale = true
			r.s.boards[k] = b
		}
	}
	return nil
}

func (r *LeaderboardRepository) RefreshableContexts(_ context.Context) ([]leaderboard.Context, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []leaderboard.Context{leaderboard.Global()}
	leagueIDs := make([]int64, 0)
	for id, l := range r.s.leagues {
		if l.Status == league.StatusActive {
			leagueIDs = append(leagueIDs, id)
		}
	}
	sort.Slice(leagueIDs, func(i, j int) bool { return leagueIDs[i] < leagueIDs[j] })
	for _, id := range leagueIDs {
		out = append(out, leaderboard.Context{Type: leaderboard.ContextLeague, ID: id})
	}

	groupIDs := make([]int64, 0, len(r.s.groups))
	for id := range r.s.groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })
	for _, id := range groupIDs {
		out = append(out, leaderboard.Context{Type: leaderboard.ContextCustom, ID: id})
	}
	return out, nil
}

func (r *LeaderboardRepository) CreateGroup(_ context.Context, g leaderboard.Group) (leaderboard.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g.ID = r.s.nextID("leaderboard_groups")
	g.MemberIDs = append([]int64(nil), g.MemberIDs...)
	r.s.groups[g.ID] = g
	return g, nil
}

func (r *LeaderboardRepository) GetGroup(_ context.Context, id int64) (leaderboard.Group, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.groups[id]
	if ok {
		g.MemberIDs = append([]int64(nil), g.MemberIDs...)
	}
	return g, ok, nil
}

func (r *LeaderboardRepository) ListGroupIDsByMember(_ context.Context, playerID int64) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]int64, 0)
	for id, g := range r.s.groups {
		for _, member := range g.MemberIDs {
			if member == playerID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
