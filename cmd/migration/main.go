package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gosimple/slug"
	"github.com/joho/godotenv"

	"github.com/proofofputt/putt-api/internal/app"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

var logger = logging.New(logging.Options{Service: "putt-migrate", Console: true})

func main() {
	defer func() { _ = logger.Sync() }()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fatal("load .env", err)
	}

	migrationsDir, err := app.ResolveMigrationsDir(os.Getenv("MIGRATIONS_DIR"))
	if err != nil {
		fatal("resolve migrations dir", err)
	}

	cmd := strings.ToLower(strings.TrimSpace(os.Args[1]))
	if cmd == "create" {
		if len(os.Args) < 3 {
			fatal("create requires a name", nil)
		}
		up, down, err := createMigration(migrationsDir, strings.Join(os.Args[2:], " "))
		if err != nil {
			fatal("create migration", err)
		}
		logger.Info("migration created", "up", up, "down", down)
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fatal("DATABASE_URL is required", nil)
	}
	dbURL = app.NormalizeDBURL(dbURL, "putt-migrate")

	sourceURL := app.SourceURL(migrationsDir)
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		fatal("create migrator", err)
	}
	defer closeMigrator(m)

	switch cmd {
	case "up":
		handleMigrationErr(m.Up())
		logger.Info("migrations applied", "source", sourceURL)
	case "down":
		steps, parseErr := parseSteps(os.Args[2:])
		if parseErr != nil {
			fatal("parse steps", parseErr)
		}
		handleMigrationErr(m.Steps(-steps))
		logger.Info("migrations rolled back", "steps", steps)
	case "version":
		version, dirty, versionErr := m.Version()
		if errors.Is(versionErr, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			fmt.Println("dirty: false")
			return
		}
		if versionErr != nil {
			fatal("read version", versionErr)
		}
		fmt.Printf("version: %d\n", version)
		fmt.Printf("dirty: %t\n", dirty)
	case "force":
		if len(os.Args) < 3 {
			fatal("force requires a version argument", nil)
		}
		version, parseErr := parseVersion(os.Args[2])
		if parseErr != nil {
			fatal("parse version", parseErr)
		}
		if err := m.Force(version); err != nil {
			fatal("force version", err)
		}
		logger.Info("version forced", "version", version)
	case "goto", "migrate":
		if len(os.Args) < 3 {
			fatal("goto requires a target version argument", nil)
		}
		target, parseErr := parseTarget(os.Args[2])
		if parseErr != nil {
			fatal("parse target", parseErr)
		}
		handleMigrationErr(m.Migrate(target))
		logger.Info("migrated", "version", target)
	default:
		printUsage()
		os.Exit(2)
	}
}

var migrationFile = regexp.MustCompile(`^(\d+)_.+\.(up|down)\.sql$`)

// createMigration writes an empty up/down pair numbered after the highest
// existing sequence in dir.
func createMigration(dir, name string) (string, string, error) {
	base := strings.ReplaceAll(slug.Make(name), "-", "_")
	if base == "" {
		return "", "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", err
	}
	next := uint64(1)
	width := 6
	for _, e := range entries {
		match := migrationFile.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		seq, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		if seq >= next {
			next = seq + 1
			width = len(match[1])
		}
	}

	prefix := fmt.Sprintf("%0*d_%s", width, next, base)
	up := filepath.Join(dir, prefix+".up.sql")
	down := filepath.Join(dir, prefix+".down.sql")
	for _, path := range []string{up, down} {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return "", "", err
		}
	}
	return up, down, nil
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}

	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0")
	}

	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("version must be >= 0")
	}
	if value > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("version is too large for this platform")
	}

	return int(value), nil
}

func parseTarget(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(value), nil
}

func handleMigrationErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migration changes")
		return
	}
	fatal("migration failed", err)
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("close migration source", "error", srcErr)
	}
	if dbErr != nil {
		logger.Warn("close migration db", "error", dbErr)
	}
}

func fatal(msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	_ = logger.Sync()
	os.Exit(1)
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <up|down|version|force|goto|create> [args]\n", name)
	fmt.Fprintln(os.Stderr, "examples:")
	fmt.Fprintf(os.Stderr, "  %s up\n", name)
	fmt.Fprintf(os.Stderr, "  %s down 1\n", name)
	fmt.Fprintf(os.Stderr, "  %s version\n", name)
	fmt.Fprintf(os.Stderr, "  %s force 10\n", name)
	fmt.Fprintf(os.Stderr, "  %s goto 8\n", name)
	fmt.Fprintf(os.Stderr, "  %s create add session tags\n", name)
}
