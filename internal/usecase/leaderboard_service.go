package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/platform/cache"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultLeaderboardLimit   = 10
	maxLeaderboardLimit       = 100
	defaultRefreshWorkerCount = 4
	leaderboardCachePrefix    = "leaderboard:"
)

type refreshRecorder interface {
	LeaderboardRefreshed(contextType string, took time.Duration, failed bool)
}

type LeaderboardService struct {
	repo     leaderboard.Repository
	cache    *cache.Store
	workers  int
	recorder refreshRecorder
	logger   *logging.Logger
	now      func() time.Time
}

func NewLeaderboardService(repo leaderboard.Repository, store *cache.Store, workers int, logger *logging.Logger) *LeaderboardService {
	if store == nil {
		store = cache.NewStore(30 * time.Second)
	}
	if workers <= 0 {
		workers = defaultRefreshWorkerCount
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeaderboardService{
		repo:    repo,
		cache:   store,
		workers: workers,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *LeaderboardService) WithRecorder(r refreshRecorder) *LeaderboardService {
	s.recorder = r
	return s
}

type GetLeaderboardInput struct {
	PlayerID    int64
	ContextType string
	ContextID   int64
	Metric      string
	Limit       int
}

// ranked is what the read cache holds for one (context, metric).
type ranked struct {
	entries      []leaderboard.Entry
	fromCache    bool
	calculatedAt time.Time
}

func (s *LeaderboardService) Get(ctx context.Context, input GetLeaderboardInput) (leaderboard.Board, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.Get",
		attribute.String("context", input.ContextType),
		attribute.String("metric", input.Metric),
	)
	defer span.End()

	metric, err := resolveMetric(input.Metric)
	if err != nil {
		return leaderboard.Board{}, err
	}
	c, err := s.resolveContext(ctx, input.PlayerID, input.ContextType, input.ContextID)
	if err != nil {
		return leaderboard.Board{}, err
	}
	if input.Limit < 0 || input.Limit > maxLeaderboardLimit {
		return leaderboard.Board{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxLeaderboardLimit)
	}
	limit := clampLimit(input.Limit, defaultLeaderboardLimit, maxLeaderboardLimit)

	board, err := cache.Load(ctx, s.cache, cacheKey(c, metric), func(ctx context.Context) (ranked, error) {
		return s.load(ctx, c, metric)
	})
	if err != nil {
		return leaderboard.Board{}, err
	}

	page, mine := leaderboard.Window(board.entries, limit, input.PlayerID)
	return leaderboard.Board{
		Context:      c,
		Metric:       metric,
		Entries:      page,
		PlayerRank:   mine,
		FromCache:    board.fromCache,
		CalculatedAt: board.calculatedAt,
	}, nil
}

// load prefers fresh cache rows and falls back to live aggregation. Friends
// contexts are personal and always aggregated live.
func (s *LeaderboardService) load(ctx context.Context, c leaderboard.Context, m leaderboard.Metric) (ranked, error) {
	if c.Type != leaderboard.ContextFriends {
		snap, ok, err := s.repo.ReadCache(ctx, c, m)
		if err != nil {
			s.logger.WarnContext(ctx, "read leaderboard cache failed", "context", c.Key(), "metric", m.Name, "error", err)
		} else if ok {
			return ranked{entries: snap.Entries, fromCache: true, calculatedAt: snap.CalculatedAt}, nil
		}
	}
	entries, err := s.repo.Aggregate(ctx, c, m)
	if err != nil {
		return ranked{}, fmt.Errorf("aggregate leaderboard: %w", err)
	}
	return ranked{entries: leaderboard.Rank(entries, m), calculatedAt: s.now().UTC()}, nil
}

func resolveMetric(name string) (leaderboard.Metric, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "total_makes"
	}
	m, ok := leaderboard.LookupMetric(name)
	if !ok {
		return leaderboard.Metric{}, fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, name)
	}
	return m, nil
}

func (s *LeaderboardService) resolveContext(ctx context.Context, playerID int64, kind string, contextID int64) (leaderboard.Context, error) {
	c := leaderboard.Context{Type: leaderboard.ContextType(strings.TrimSpace(kind)), ID: contextID}
	switch c.Type {
	case "", leaderboard.ContextGlobal:
		return leaderboard.Global(), nil
	case leaderboard.ContextFriends:
		if c.ID == 0 {
			c.ID = playerID
		}
	case leaderboard.ContextCustom:
		if c.ID > 0 {
			if _, found, err := s.repo.GetGroup(ctx, c.ID); err != nil {
				return leaderboard.Context{}, fmt.Errorf("get leaderboard group: %w", err)
			} else if !found {
				return leaderboard.Context{}, fmt.Errorf("%w: group=%d", ErrNotFound, c.ID)
			}
		}
	}
	if err := c.Validate(); err != nil {
		return leaderboard.Context{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	return c, nil
}

type RefreshLeaderboardInput struct {
	ContextType string
	ContextID   int64
}

type RefreshLeaderboardResult struct {
	Contexts int
	Failed   int
	Duration time.Duration
}

// Refresh rewrites cache rows for one context, or for every cached context
// when none is given, fanning out across a bounded worker pool.
func (s *LeaderboardService) Refresh(ctx context.Context, input RefreshLeaderboardInput) (_ RefreshLeaderboardResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.Refresh")
	defer func() {
		failSpan(span, err)
		span.End()
	}()

	started := time.Now()
	if strings.TrimSpace(input.ContextType) != "" {
		c := leaderboard.Context{Type: leaderboard.ContextType(strings.TrimSpace(input.ContextType)), ID: input.ContextID}
		if err := c.Validate(); err != nil {
			return RefreshLeaderboardResult{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
		}
		if c.Type == leaderboard.ContextFriends {
			return RefreshLeaderboardResult{}, fmt.Errorf("%w: friends leaderboards are always live", ErrInvalidInput)
		}
		if err := s.refreshContext(ctx, c); err != nil {
			return RefreshLeaderboardResult{Contexts: 1, Failed: 1, Duration: time.Since(started)}, err
		}
		return RefreshLeaderboardResult{Contexts: 1, Duration: time.Since(started)}, nil
	}

	contexts, err := s.repo.RefreshableContexts(ctx)
	if err != nil {
		return RefreshLeaderboardResult{}, fmt.Errorf("list leaderboard contexts: %w", err)
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return RefreshLeaderboardResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var failed atomic.Int32
	var workers sync.WaitGroup
	for _, c := range contexts {
		c := c
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if err := s.refreshContext(ctx, c); err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "refresh leaderboard context failed", "context", c.Key(), "error", err)
			}
		}); err != nil {
			workers.Done()
			workers.Wait()
			return RefreshLeaderboardResult{}, fmt.Errorf("submit refresh to worker pool: %w", err)
		}
	}
	workers.Wait()

	result := RefreshLeaderboardResult{
		Contexts: len(contexts),
		Failed:   int(failed.Load()),
		Duration: time.Since(started),
	}
	s.logger.InfoContext(ctx, "leaderboards refreshed", "contexts", result.Contexts, "failed", result.Failed, "duration_ms", result.Duration.Milliseconds())
	return result, nil
}

func (s *LeaderboardService) refreshContext(ctx context.Context, c leaderboard.Context) (err error) {
	started := time.Now()
	defer func() {
		if s.recorder != nil {
			s.recorder.LeaderboardRefreshed(string(c.Type), time.Since(started), err != nil)
		}
	}()

	at := s.now().UTC()
	for _, m := range leaderboard.Metrics() {
		entries, err := s.repo.Aggregate(ctx, c, m)
		if err != nil {
			return fmt.Errorf("aggregate %s/%s: %w", c.Key(), m.Name, err)
		}
		if err := s.repo.WriteCache(ctx, c, m, leaderboard.Rank(entries, m), at); err != nil {
			return fmt.Errorf("write cache %s/%s: %w", c.Key(), m.Name, err)
		}
	}
	s.cache.DeletePrefix(ctx, leaderboardCachePrefix+c.Key()+"|")
	return nil
}

// MarkPlayerContextsStale flags every cached context the player appears in.
func (s *LeaderboardService) MarkPlayerContextsStale(ctx context.Context, playerID int64, leagueID *int64) error {
	contexts := []leaderboard.Context{leaderboard.Global()}
	if leagueID != nil {
		contexts = append(contexts, leaderboard.Context{Type: leaderboard.ContextLeague, ID: *leagueID})
	}
	groups, err := s.repo.ListGroupIDsByMember(ctx, playerID)
	if err != nil {
		return fmt.Errorf("list player groups: %w", err)
	}
	for _, id := range groups {
		contexts = append(contexts, leaderboard.Context{Type: leaderboard.ContextCustom, ID: id})
	}
	if err := s.repo.MarkStale(ctx, contexts); err != nil {
		return fmt.Errorf("mark leaderboards stale: %w", err)
	}
	s.cache.DeletePrefix(ctx, leaderboardCachePrefix)
	return nil
}

type CreateGroupInput struct {
	OwnerID   int64
	Name      string
	MemberIDs []int64
}

func (s *LeaderboardService) CreateGroup(ctx context.Context, input CreateGroupInput) (leaderboard.Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(input.Name); n < 2 || n > 100 {
		return leaderboard.Group{}, fmt.Errorf("%w: name must be between 2 and 100 characters", ErrInvalidInput)
	}
	seen := map[int64]struct{}{input.OwnerID: {}}
	members := []int64{input.OwnerID}
	for _, id := range input.MemberIDs {
		if id <= 0 {
			return leaderboard.Group{}, fmt.Errorf("%w: member ids must be positive", ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	g, err := s.repo.CreateGroup(ctx, leaderboard.Group{
		Name:      input.Name,
		CreatedBy: input.OwnerID,
		MemberIDs: members,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return leaderboard.Group{}, fmt.Errorf("create leaderboard group: %w", err)
	}
	return g, nil
}

func cacheKey(c leaderboard.Context, m leaderboard.Metric) string {
	return leaderboardCachePrefix + c.Key() + "|" + m.Name
}
