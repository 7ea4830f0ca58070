package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/cache"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/require"
)

type refreshCounter struct {
	mu     sync.Mutex
	calls  int
	failed int
}

func (r *refreshCounter) LeaderboardRefreshed(_ string, _ time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if failed {
		r.failed++
	}
}

func newLeaderboardService(env *testEnv) *LeaderboardService {
	svc := NewLeaderboardService(memory.NewLeaderboardRepository(env.store), cache.NewStore(time.Minute), 2, logging.NewNop())
	svc.now = env.clock
	return svc
}

func (e *testEnv) addPlayerWithMakes(t *testing.T, name string, makes int) player.Player {
	t.Helper()
	p := e.addPlayer(t, name, name+"@example.com")
	_, err := e.players.ApplySession(t.Context(), p.ID, player.SessionDelta{Putts: makes + 10, Makes: makes, Misses: 10, RecordedAt: e.now})
	require.NoError(t, err)
	return p
}

func TestLeaderboardService_RanksTotalMakes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	a := env.addPlayerWithMakes(t, "alpha", 50)
	b := env.addPlayerWithMakes(t, "bravo", 30)
	c := env.addPlayerWithMakes(t, "charlie", 80)
	env.addPlayer(t, "idle", "idle@example.com")
	svc := newLeaderboardService(env)

	board, err := svc.Get(t.Context(), GetLeaderboardInput{PlayerID: a.ID, Metric: "total_makes", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, leaderboard.Global(), board.Context)
	require.Equal(t, "Total Makes", board.Metric.DisplayName)
	require.Len(t, board.Entries, 3)

	values := []float64{board.Entries[0].Value, board.Entries[1].Value, board.Entries[2].Value}
	require.Equal(t, []float64{80, 50, 30}, values)
	require.Equal(t, []int64{c.ID, a.ID, b.ID}, []int64{board.Entries[0].PlayerID, board.Entries[1].PlayerID, board.Entries[2].PlayerID})
	require.Equal(t, []int{1, 2, 3}, []int{board.Entries[0].Rank, board.Entries[1].Rank, board.Entries[2].Rank})
	require.NotNil(t, board.PlayerRank)
	require.Equal(t, 2, board.PlayerRank.Rank)

	top, err := svc.Get(t.Context(), GetLeaderboardInput{PlayerID: b.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, top.Entries, 1)
	require.Equal(t, c.ID, top.Entries[0].PlayerID)
	require.NotNil(t, top.PlayerRank)
	require.Equal(t, 3, top.PlayerRank.Rank)
}

func TestLeaderboardService_InputValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newLeaderboardService(env)

	_, err := svc.Get(t.Context(), GetLeaderboardInput{Metric: "longest_drive"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Get(t.Context(), GetLeaderboardInput{Limit: 101})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Get(t.Context(), GetLeaderboardInput{ContextType: "league"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Get(t.Context(), GetLeaderboardInput{ContextType: "custom", ContextID: 99})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboardService_Fastest21ExcludesMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	slow, fast := 95.5, 61.0
	ctx := t.Context()

	p1 := env.addPlayer(t, "slow", "slow@example.com")
	p2 := env.addPlayer(t, "fast", "fast@example.com")
	p3 := env.addPlayer(t, "none", "none@example.com")
	_, err := env.players.ApplySession(ctx, p1.ID, player.SessionDelta{Putts: 40, Makes: 25, Fastest21Makes: &slow, RecordedAt: env.now})
	require.NoError(t, err)
	_, err = env.players.ApplySession(ctx, p2.ID, player.SessionDelta{Putts: 40, Makes: 30, Fastest21Makes: &fast, RecordedAt: env.now})
	require.NoError(t, err)
	_, err = env.players.ApplySession(ctx, p3.ID, player.SessionDelta{Putts: 40, Makes: 10, RecordedAt: env.now})
	require.NoError(t, err)

	board, err := newLeaderboardService(env).Get(ctx, GetLeaderboardInput{Metric: "fastest_21"})
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	require.Equal(t, p2.ID, board.Entries[0].PlayerID)
	require.Equal(t, p1.ID, board.Entries[1].PlayerID)
}

func TestLeaderboardService_FriendsAndCustomContexts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	me := env.addPlayerWithMakes(t, "me", 20)
	friend := env.addPlayerWithMakes(t, "friend", 40)
	stranger := env.addPlayerWithMakes(t, "stranger", 90)
	ctx := t.Context()
	require.NoError(t, env.players.AddFriendship(ctx, me.ID, friend.ID, env.now))
	svc := newLeaderboardService(env)

	friends, err := svc.Get(ctx, GetLeaderboardInput{PlayerID: me.ID, ContextType: "friends"})
	require.NoError(t, err)
	require.Equal(t, me.ID, friends.Context.ID)
	require.Len(t, friends.Entries, 2)
	require.Equal(t, friend.ID, friends.Entries[0].PlayerID)

	group, err := svc.CreateGroup(ctx, CreateGroupInput{OwnerID: me.ID, Name: "Office", MemberIDs: []int64{stranger.ID, stranger.ID}})
	require.NoError(t, err)
	require.Equal(t, []int64{me.ID, stranger.ID}, group.MemberIDs)

	custom, err := svc.Get(ctx, GetLeaderboardInput{PlayerID: me.ID, ContextType: "custom", ContextID: group.ID})
	require.NoError(t, err)
	require.Len(t, custom.Entries, 2)
	require.Equal(t, stranger.ID, custom.Entries[0].PlayerID)
}

func TestLeaderboardService_RefreshServesCacheUntilStale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	a := env.addPlayerWithMakes(t, "alpha", 10)
	env.addPlayerWithMakes(t, "bravo", 20)
	ctx := t.Context()
	svc := newLeaderboardService(env)
	recorder := &refreshCounter{}
	svc.WithRecorder(recorder)

	_, err := svc.CreateGroup(ctx, CreateGroupInput{OwnerID: a.ID, Name: "Pair"})
	require.NoError(t, err)

	res, err := svc.Refresh(ctx, RefreshLeaderboardInput{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Contexts)
	require.Zero(t, res.Failed)
	require.Equal(t, 2, recorder.calls)

	board, err := svc.Get(ctx, GetLeaderboardInput{PlayerID: a.ID})
	require.NoError(t, err)
	require.True(t, board.FromCache)
	require.Equal(t, float64(20), board.Entries[0].Value)

	_, err = env.players.ApplySession(ctx, a.ID, player.SessionDelta{Putts: 30, Makes: 25, RecordedAt: env.now})
	require.NoError(t, err)
	require.NoError(t, svc.MarkPlayerContextsStale(ctx, a.ID, nil))

	board, err = svc.Get(ctx, GetLeaderboardInput{PlayerID: a.ID})
	require.NoError(t, err)
	require.False(t, board.FromCache)
	require.Equal(t, a.ID, board.Entries[0].PlayerID)
	require.Equal(t, float64(35), board.Entries[0].Value)

	_, err = svc.Refresh(ctx, RefreshLeaderboardInput{ContextType: "friends", ContextID: a.ID})
	require.ErrorIs(t, err, ErrInvalidInput)
}
