package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	basecache "github.com/proofofputt/putt-api/internal/platform/cache"
)

type countingLeaderboardRepo struct {
	leaderboard.Repository
	groups      map[int64]leaderboard.Group
	getCalls    int
	memberCalls int
}

func (r *countingLeaderboardRepo) GetGroup(_ context.Context, id int64) (leaderboard.Group, bool, error) {
	r.getCalls++
	g, ok := r.groups[id]
	return g, ok, nil
}

func (r *countingLeaderboardRepo) CreateGroup(_ context.Context, g leaderboard.Group) (leaderboard.Group, error) {
	g.ID = int64(len(r.groups) + 1)
	r.groups[g.ID] = g
	return g, nil
}

func (r *countingLeaderboardRepo) ListGroupIDsByMember(_ context.Context, playerID int64) ([]int64, error) {
	r.memberCalls++
	out := make([]int64, 0)
	for id, g := range r.groups {
		for _, m := range g.MemberIDs {
			if m == playerID {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func TestLeaderboardRepositoryCachesGroupLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := &countingLeaderboardRepo{groups: map[int64]leaderboard.Group{}}
	repo := NewLeaderboardRepository(next, basecache.NewStore(time.Minute))

	created, err := repo.CreateGroup(ctx, leaderboard.Group{Name: "crew", CreatedBy: 1, MemberIDs: []int64{1, 2}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		g, ok, err := repo.GetGroup(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []int64{1, 2}, g.MemberIDs)
	}
	require.Equal(t, 1, next.getCalls)

	_, ok, err := repo.GetGroup(ctx, 99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLeaderboardRepositoryCreateGroupInvalidatesMembership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := &countingLeaderboardRepo{groups: map[int64]leaderboard.Group{}}
	repo := NewLeaderboardRepository(next, basecache.NewStore(time.Minute))

	ids, err := repo.ListGroupIDsByMember(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, ids)

	_, err = repo.CreateGroup(ctx, leaderboard.Group{Name: "crew", CreatedBy: 1, MemberIDs: []int64{1, 2}})
	require.NoError(t, err)

	ids, err = repo.ListGroupIDsByMember(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids)
	require.Equal(t, 2, next.memberCalls)
}
