package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 6, 15, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notification) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = int64(len(r.sent) + 1)
	r.sent = append(r.sent, n)
	return n, nil
}

func (r *recordingNotifier) For(playerID int64) []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.sent {
		if n.PlayerID == playerID {
			out = append(out, n)
		}
	}
	return out
}

// testEnv wires every service over one memory store with a shared clock.
type testEnv struct {
	store         *memory.Store
	players       *memory.PlayerRepository
	sessions      *memory.SessionRepository
	duelRepo      *memory.DuelRepository
	leagueRepo    *memory.LeagueRepository
	invitationRep *memory.InvitationRepository
	notes         *recordingNotifier

	invitations *InvitationService
	duels       *DuelService
	leagues     *LeagueService

	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	env := &testEnv{
		store:         store,
		players:       memory.NewPlayerRepository(store),
		sessions:      memory.NewSessionRepository(store),
		duelRepo:      memory.NewDuelRepository(store),
		leagueRepo:    memory.NewLeagueRepository(store),
		invitationRep: memory.NewInvitationRepository(store),
		notes:         &recordingNotifier{},
		now:           testNow,
	}
	logger := logging.NewNop()

	env.invitations = NewInvitationService(env.invitationRep, env.players, env.notes, nil, logger)
	env.invitations.now = env.clock
	env.duels = NewDuelService(env.duelRepo, env.players, env.sessions, env.invitations, env.notes, logger)
	env.duels.now = env.clock
	env.leagues = NewLeagueService(env.leagueRepo, env.players, env.notes, logger)
	env.leagues.now = env.clock
	env.invitations.WithResponders(env.duels, env.leagues)
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *testEnv) addPlayer(t *testing.T, name, email string) player.Player {
	t.Helper()
	p, err := e.players.Create(t.Context(), player.Player{
		Name:               name,
		Email:              email,
		PasswordHash:       "hash",
		MembershipTier:     player.TierBasic,
		SubscriptionStatus: "inactive",
		CreatedAt:          e.now,
		UpdatedAt:          e.now,
	})
	require.NoError(t, err)
	return p
}

func intPtr(v int) *int { return &v }
