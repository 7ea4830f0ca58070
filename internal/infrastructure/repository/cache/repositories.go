package cache

import (
	"context"
	"strconv"

	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	basecache "github.com/proofofputt/putt-api/internal/platform/cache"
)

// LeaderboardRepository caches group lookups in front of the persistent repository.
// Groups never change after creation, so only membership lists need invalidating.
type LeaderboardRepository struct {
	leaderboard.Repository
	cache *basecache.Store
}

func NewLeaderboardRepository(next leaderboard.Repository, cache *basecache.Store) *LeaderboardRepository {
	return &LeaderboardRepository{Repository: next, cache: cache}
}

func (r *LeaderboardRepository) CreateGroup(ctx context.Context, g leaderboard.Group) (leaderboard.Group, error) {
	created, err := r.Repository.CreateGroup(ctx, g)
	if err != nil {
		return leaderboard.Group{}, err
	}
	for _, id := range created.MemberIDs {
		r.cache.Delete(ctx, groupsByMemberKey(id))
	}
	r.cache.Delete(ctx, refreshableKey)
	return created, nil
}

func (r *LeaderboardRepository) GetGroup(ctx context.Context, id int64) (leaderboard.Group, bool, error) {
	v, err := basecache.Load(ctx, r.cache, "leaderboard-group:id:"+strconv.FormatInt(id, 10), func(ctx context.Context) (cachedGroupByID, error) {
		g, exists, err := r.Repository.GetGroup(ctx, id)
		if err != nil {
			return cachedGroupByID{}, err
		}
		return cachedGroupByID{value: cloneGroup(g), exists: exists}, nil
	})
	if err != nil {
		return leaderboard.Group{}, false, err
	}
	return cloneGroup(v.value), v.exists, nil
}

func (r *LeaderboardRepository) ListGroupIDsByMember(ctx context.Context, playerID int64) ([]int64, error) {
	ids, err := basecache.Load(ctx, r.cache, groupsByMemberKey(playerID), func(ctx context.Context) ([]int64, error) {
		return r.Repository.ListGroupIDsByMember(ctx, playerID)
	})
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), ids...), nil
}

func (r *LeaderboardRepository) RefreshableContexts(ctx context.Context) ([]leaderboard.Context, error) {
	items, err := basecache.Load(ctx, r.cache, refreshableKey, func(ctx context.Context) ([]leaderboard.Context, error) {
		return r.Repository.RefreshableContexts(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]leaderboard.Context(nil), items...), nil
}

// InvalidateContexts drops the cached context list, e.g. after a league starts.
func (r *LeaderboardRepository) InvalidateContexts(ctx context.Context) {
	r.cache.Delete(ctx, refreshableKey)
}

type cachedGroupByID struct {
	value  leaderboard.Group
	exists bool
}

func cloneGroup(g leaderboard.Group) leaderboard.Group {
	out := g
	out.MemberIDs = append([]int64(nil), g.MemberIDs...)
	return out
}

const refreshableKey = "leaderboard:refreshable-contexts"

func groupsByMemberKey(playerID int64) string {
	return "leaderboard-group:member:" + strconv.FormatInt(playerID, 10)
}
