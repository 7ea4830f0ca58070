package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/config"
	"github.com/proofofputt/putt-api/internal/domain/analytics"
	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
	"github.com/proofofputt/putt-api/internal/infrastructure/account/password"
	cacherepo "github.com/proofofputt/putt-api/internal/infrastructure/repository/cache"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/postgres"
	"github.com/proofofputt/putt-api/internal/platform/cache"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

// DemoPassword is shared by the players SeedDemo creates.
const DemoPassword = "putt-demo-2024"

type repositories struct {
	players       player.Repository
	sessions      session.Repository
	duels         duel.Repository
	leagues       league.Repository
	leaderboards  leaderboard.Repository
	invitations   invitation.Repository
	notifications notification.Repository
	analytics     analytics.Repository
	subscriptions subscription.Repository
	certificates  certificate.Repository
}

// openStorage builds the repository set for cfg.StorageDriver. db is nil
// for the memory driver.
func openStorage(ctx context.Context, cfg config.Config, boards *cache.Store, hasher *password.Bcrypt, logger *logging.Logger) (repositories, *sqlx.DB, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memoryRepositories(cfg, boards, hasher, logger)
	case config.StoragePostgres:
	default:
		return repositories{}, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return repositories{}, nil, err
	}
	if cfg.MigrateOnStart {
		dir, err := ResolveMigrationsDir(cfg.MigrationsDir)
		if err != nil {
			_ = db.Close()
			return repositories{}, nil, err
		}
		if err := migrateUp(db, dir, logger); err != nil {
			_ = db.Close()
			return repositories{}, nil, err
		}
	}

	logger.Info("postgres storage ready",
		"db_name", dbNameFromURL(cfg.DatabaseURL),
		"max_open_conns", cfg.DBMaxOpenConns,
	)
	return repositories{
		players:       postgres.NewPlayerRepository(db),
		sessions:      postgres.NewSessionRepository(db),
		duels:         postgres.NewDuelRepository(db),
		leagues:       postgres.NewLeagueRepository(db),
		leaderboards:  cacherepo.NewLeaderboardRepository(postgres.NewLeaderboardRepository(db), boards),
		invitations:   postgres.NewInvitationRepository(db),
		notifications: postgres.NewNotificationRepository(db),
		analytics:     postgres.NewAnalyticsRepository(db),
		subscriptions: postgres.NewSubscriptionRepository(db),
		certificates:  postgres.NewCertificateRepository(db),
	}, db, nil
}

func memoryRepositories(cfg config.Config, boards *cache.Store, hasher *password.Bcrypt, logger *logging.Logger) (repositories, *sqlx.DB, error) {
	store := memory.NewStore()

	if cfg.SeedDemoData {
		hash, err := hasher.Hash(DemoPassword)
		if err != nil {
			return repositories{}, nil, fmt.Errorf("hash demo password: %w", err)
		}
		seeded := memory.SeedDemo(store, hash, time.Now().UTC())
		emails := make([]string, 0, len(seeded))
		for _, p := range seeded {
			emails = append(emails, p.Email)
		}
		logger.Info("demo players seeded", "emails", emails, "password", DemoPassword)
	}

	logger.Warn("memory storage in use, data is lost on restart")
	return repositories{
		players:       memory.NewPlayerRepository(store),
		sessions:      memory.NewSessionRepository(store),
		duels:         memory.NewDuelRepository(store),
		leagues:       memory.NewLeagueRepository(store),
		leaderboards:  cacherepo.NewLeaderboardRepository(memory.NewLeaderboardRepository(store), boards),
		invitations:   memory.NewInvitationRepository(store),
		notifications: memory.NewNotificationRepository(store),
		analytics:     memory.NewAnalyticsRepository(store),
		subscriptions: memory.NewSubscriptionRepository(store),
		certificates:  memory.NewCertificateRepository(store),
	}, nil, nil
}
