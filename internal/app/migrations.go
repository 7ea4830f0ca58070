package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

// ResolveMigrationsDir returns the first existing directory among preferred,
// MIGRATIONS_DIR, ./db/migrations and /app/db/migrations.
func ResolveMigrationsDir(preferred string) (string, error) {
	candidates := []string{
		strings.TrimSpace(preferred),
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		"./db/migrations",
		"/app/db/migrations",
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		return abs, nil
	}

	return "", fmt.Errorf("migration directory not found (checked %q, MIGRATIONS_DIR, ./db/migrations, /app/db/migrations)", preferred)
}

// SourceURL turns a migrations directory into a golang-migrate file source.
func SourceURL(dir string) string {
	return "file://" + filepath.ToSlash(dir)
}

// migrateUp applies every pending migration over the already-open pool.
func migrateUp(db *sqlx.DB, dir string, logger *logging.Logger) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(SourceURL(dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("database schema up to date", "source", dir)
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		version, dirty, _ := m.Version()
		logger.Info("migrations applied", "source", dir, "version", version, "dirty", dirty)
	}

	// Only the migrator's dedicated connection is released here; db stays open.
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		logger.Warn("close migrator", "source_error", srcErr, "db_error", dbErr)
	}
	return nil
}
