package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"github.com/proofofputt/putt-api/external/opentimestamps"
	"github.com/proofofputt/putt-api/external/zaprite"
	"github.com/proofofputt/putt-api/internal/config"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/infrastructure/account/password"
	"github.com/proofofputt/putt-api/internal/infrastructure/account/token"
	"github.com/proofofputt/putt-api/internal/infrastructure/notifybus"
	"github.com/proofofputt/putt-api/internal/infrastructure/scheduler"
	"github.com/proofofputt/putt-api/internal/interfaces/httpapi"
	"github.com/proofofputt/putt-api/internal/observability"
	"github.com/proofofputt/putt-api/internal/platform/cache"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/ratelimit"
	"github.com/proofofputt/putt-api/internal/usecase"
)

const (
	notificationBuffer = 32
	webhookWorkers     = 8
	poolReleaseTimeout = 5 * time.Second
)

// App owns every long-lived resource of the API process.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	db        *sqlx.DB
	rdb       *redis.Client
	relay     *notifybus.RedisBus
	tasks     *ants.Pool
	scheduler *scheduler.Scheduler
	metrics   *observability.Metrics
	handler   *httpapi.Handler
	server    *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (_ *App, err error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	hasher := password.NewBcrypt(cfg.BcryptCost)
	boards := cache.NewStore(cfg.LeaderboardCacheTTL)
	a.metrics.ObserveCache("leaderboard", boards)

	repos, db, err := openStorage(ctx, cfg, boards, hasher, logger.Named("storage"))
	if err != nil {
		return nil, err
	}
	a.db = db

	tokens, err := token.NewJWT(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	bus, err := a.notificationBus(ctx)
	if err != nil {
		return nil, err
	}

	a.tasks, err = ants.NewPool(webhookWorkers, ants.WithPanicHandler(func(p any) {
		logger.Error("background task panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("task pool: %w", err)
	}

	svc := a.services(repos, boards, hasher, tokens, bus)

	a.scheduler, err = scheduler.New(logger.Named("scheduler"), cfg.JobTimeout)
	if err != nil {
		return nil, err
	}
	if err := a.scheduler.Register(jobs(cfg, svc)); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	a.handler = httpapi.NewHandler(svc, httpapi.HandlerOptions{
		Heartbeat:      cfg.NotificationHeartbeat,
		ExposeErrors:   cfg.ExposeErrors(),
		DB:             pinger(db),
		StreamRecorder: a.metrics,
	}, logger.Named("http"))

	routerCfg := httpapi.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CronSecret:         cfg.CronSecret,
	}
	if cfg.UptraceCaptureRequestBody {
		routerCfg.TraceBodyMaxBytes = cfg.UptraceRequestBodyMaxBytes
	}
	if cfg.MetricsEnabled {
		routerCfg.Metrics = a.metrics.Handler()
	}
	router := httpapi.NewRouter(a.handler, tokens, logger, routerCfg)
	if cfg.MetricsEnabled {
		router = a.metrics.Instrument(router)
	}

	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	a.server.RegisterOnShutdown(a.handler.CloseStreams)

	logger.Info("app ready",
		"env", cfg.AppEnv,
		"storage", cfg.StorageDriver,
		"redis_relay", a.relay != nil,
		"metrics", cfg.MetricsEnabled,
	)
	return a, nil
}

// notificationBus returns the in-process hub, fronted by the Redis relay
// when REDIS_URL is configured so every replica sees every notification.
func (a *App) notificationBus(ctx context.Context) (notification.Bus, error) {
	hub := notifybus.NewHub(notificationBuffer, a.logger.Named("notifybus"))
	if a.cfg.RedisURL == "" {
		return hub, nil
	}

	rdb, err := notifybus.Connect(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.rdb = rdb
	a.relay = notifybus.NewRedisBus(rdb, a.cfg.RedisChannel, hub, a.logger.Named("notifybus"))
	return a.relay, nil
}

func (a *App) services(repos repositories, boards *cache.Store, hasher *password.Bcrypt, tokens *token.JWT, bus notification.Bus) httpapi.Services {
	cfg, logger := a.cfg, a.logger

	notifications := usecase.NewNotificationService(repos.notifications, bus, cfg.NotificationKeepLatest, logger).
		WithRecorder(a.metrics)
	invitations := usecase.NewInvitationService(repos.invitations, repos.players, notifications, ratelimit.PerHour(cfg.InvitationRatePerHour), logger)
	duels := usecase.NewDuelService(repos.duels, repos.players, repos.sessions, invitations, notifications, logger)
	leagues := usecase.NewLeagueService(repos.leagues, repos.players, notifications, logger)
	invitations.WithResponders(duels, leagues)

	leaderboards := usecase.NewLeaderboardService(repos.leaderboards, boards, cfg.LeaderboardRefreshWorkers, logger).
		WithRecorder(a.metrics)

	stamper := opentimestamps.NewClient(opentimestamps.ClientConfig{
		Calendars:      cfg.OTSCalendarURLs,
		Timeout:        cfg.OTSTimeout,
		Logger:         logger.Named("opentimestamps"),
		CircuitBreaker: cfg.OTSCircuit,
	})
	certificates := usecase.NewCertificateService(repos.certificates, stamper, notifications, logger)

	payments := zaprite.NewClient(zaprite.ClientConfig{
		BaseURL:        cfg.ZapriteAPIURL,
		APIKey:         cfg.ZapriteAPIKey,
		Timeout:        cfg.ZapriteTimeout,
		MaxRetries:     cfg.ZapriteMaxRetries,
		Logger:         logger.Named("zaprite"),
		CircuitBreaker: cfg.ZapriteCircuit,
	})
	subscriptions := usecase.NewSubscriptionService(repos.subscriptions, repos.players, payments, a.tasks, notifications, usecase.SubscriptionConfig{
		WebhookSecret: cfg.ZapriteWebhookSecret,
		FrontendURL:   cfg.FrontendURL,
		MaxRetries:    cfg.ZapriteMaxRetries,
	}, logger).WithRecorder(a.metrics)

	sessions := usecase.NewSessionService(usecase.SessionServiceDeps{
		Sessions:     repos.sessions,
		Players:      repos.players,
		Leagues:      repos.leagues,
		Duels:        duels,
		Achievements: certificates,
		Leaderboards: leaderboards,
	}, logger)

	return httpapi.Services{
		Auth:          usecase.NewAuthService(repos.players, repos.duels, hasher, tokens, logger),
		Players:       usecase.NewPlayerService(repos.players),
		Sessions:      sessions,
		Duels:         duels,
		Leagues:       leagues,
		Leaderboards:  leaderboards,
		Invitations:   invitations,
		Notifications: notifications,
		Analytics:     usecase.NewAnalyticsService(repos.analytics, ratelimit.PerMinute(cfg.AnalyticsRatePerMinute), cfg.AnalyticsOwnHost, logger),
		Subscriptions: subscriptions,
		Certificates:  certificates,
	}
}

func jobs(cfg config.Config, svc httpapi.Services) scheduler.Jobs {
	return scheduler.Jobs{
		CertificateCron: cfg.CertificateBatchCron,
		SweepInterval:   cfg.DuelExpirySweepInterval,
		RefreshInterval: cfg.LeaderboardRefreshInterval,

		CertificateBatch: func(ctx context.Context) error {
			_, err := svc.Certificates.RunBatch(ctx)
			return err
		},
		ExpireDuels:       scheduler.Counted(svc.Duels.ExpireOverdue),
		ExpireInvitations: scheduler.Counted(svc.Invitations.ExpireOverdue),
		ExpireLeagueInvs:  scheduler.Counted(svc.Leagues.ExpireInvitations),
		AdvanceRounds: func(ctx context.Context) error {
			_, err := svc.Leagues.AdvanceRounds(ctx)
			return err
		},
		RefreshBoards: func(ctx context.Context) error {
			_, err := svc.Leaderboards.Refresh(ctx, usecase.RefreshLeaderboardInput{})
			return err
		},
		RetryWebhooks: scheduler.Counted(svc.Subscriptions.RetryFailed),
	}
}

// pinger keeps a nil *sqlx.DB from becoming a non-nil interface.
func pinger(db *sqlx.DB) httpapi.Pinger {
	if db == nil {
		return nil
	}
	return db
}

// Handler exposes the fully wrapped router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP, runs the scheduler and the Redis relay until ctx is done
// or one of them fails, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start()

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	if a.relay != nil {
		p.Go(func(ctx context.Context) error {
			if err := a.relay.Run(ctx); err != nil {
				return fmt.Errorf("notification relay: %w", err)
			}
			return nil
		})
	}
	p.Go(func(context.Context) error {
		a.logger.Info("http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	})

	return p.Wait()
}

// Close releases background workers and connections. Safe on a partially
// built App.
func (a *App) Close(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			a.logger.WarnContext(ctx, "scheduler shutdown", "error", err)
		}
	}
	if a.tasks != nil {
		if err := a.tasks.ReleaseTimeout(poolReleaseTimeout); err != nil {
			a.logger.WarnContext(ctx, "task pool release", "error", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.WarnContext(ctx, "redis close", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WarnContext(ctx, "database close", "error", err)
		}
	}
}
