package memory

import (
	"time"

	"github.com/proofofputt/putt-api/internal/domain/player"
)

// DemoPlayers are created by SeedDemo so a memory-backed dev server has
// someone to log in as, befriend and challenge.
var DemoPlayers = []struct {
	Name  string
	Email string
	Stats player.SessionDelta
}{
	{Name: "Pop Demo", Email: "pop@proofofputt.com", Stats: player.SessionDelta{Putts: 120, Makes: 84, Misses: 36, BestStreak: 17, DurationSeconds: 1500}},
	{Name: "Lag Putter", Email: "lag@proofofputt.com", Stats: player.SessionDelta{Putts: 90, Makes: 51, Misses: 39, BestStreak: 9, DurationSeconds: 1320}},
	{Name: "Short Game", Email: "short@proofofputt.com", Stats: player.SessionDelta{Putts: 60, Makes: 47, Misses: 13, BestStreak: 21, DurationSeconds: 780}},
}

// SeedDemo inserts the demo players, one session worth of stats each, and
// makes the first player friends with the rest. All share passwordHash.
func SeedDemo(s *Store, passwordHash string, at time.Time) []player.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]player.Player, 0, len(DemoPlayers))
	for _, demo := range DemoPlayers {
		p := player.Player{
			ID:                 s.nextID("players"),
			Name:               demo.Name,
			Email:              demo.Email,
			PasswordHash:       passwordHash,
			MembershipTier:     player.TierBasic,
			SubscriptionStatus: "inactive",
			Timezone:           "America/New_York",
			CreatedAt:          at,
			UpdatedAt:          at,
		}
		s.players[p.ID] = p

		delta := demo.Stats
		delta.RecordedAt = at
		s.stats[p.ID] = player.Stats{PlayerID: p.ID}.Apply(delta)
		out = append(out, p)
	}

	first := out[0].ID
	for _, p := range out[1:] {
		for _, pair := range [][2]int64{{first, p.ID}, {p.ID, first}} {
			if s.friends[pair[0]] == nil {
				s.friends[pair[0]] = map[int64]time.Time{}
			}
			s.friends[pair[0]][pair[1]] = at
		}
	}
	return out
}
