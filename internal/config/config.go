package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/resilience"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv          string
	ServiceName     string
	ServiceVersion  string
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        logging.Level

	StorageDriver     string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	MigrateOnStart    bool
	MigrationsDir     string
	SeedDemoData      bool

	JWTSecret          string
	JWTIssuer          string
	JWTTTL             time.Duration
	BcryptCost         int
	CORSAllowedOrigins []string
	CronSecret         string

	RedisURL               string
	RedisChannel           string
	NotificationHeartbeat  time.Duration
	NotificationKeepLatest int

	ZapriteAPIURL        string
	ZapriteAPIKey        string
	ZapriteWebhookSecret string
	ZapriteTimeout       time.Duration
	ZapriteMaxRetries    int
	ZapriteCircuit       resilience.CircuitBreakerConfig
	FrontendURL          string

	OTSCalendarURLs []string
	OTSTimeout      time.Duration
	OTSCircuit      resilience.CircuitBreakerConfig

	CertificateBatchCron       string
	DuelExpirySweepInterval    time.Duration
	LeaderboardRefreshInterval time.Duration
	LeaderboardCacheTTL        time.Duration
	LeaderboardRefreshWorkers  int
	JobTimeout                 time.Duration
	InvitationRatePerHour      int
	AnalyticsRatePerMinute     int
	AnalyticsOwnHost           string

	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	UptraceCaptureRequestBody  bool
	UptraceRequestBodyMaxBytes int
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	PprofEnabled               bool
	PprofAddr                  string
	MetricsEnabled             bool
}

// ExposeErrors reports whether internal error details may reach clients.
func (c Config) ExposeErrors() bool {
	return c.AppEnv == EnvDev
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	p := &parser{}
	cfg := Config{
		AppEnv:          appEnv,
		ServiceName:     getEnv("APP_SERVICE_NAME", "putt-api"),
		ServiceVersion:  getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:        getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:     p.positiveDuration("APP_READ_TIMEOUT", "10s"),
		WriteTimeout:    p.positiveDuration("APP_WRITE_TIMEOUT", "30s"),
		ShutdownTimeout: p.positiveDuration("APP_SHUTDOWN_TIMEOUT", "15s"),
		LogLevel:        logging.ParseLevel(getEnv("LOG_LEVEL", "info")),

		StorageDriver:     strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", StoragePostgres))),
		DatabaseURL:       strings.TrimSpace(getEnv("DATABASE_URL", "")),
		DBMaxOpenConns:    p.minInt("DB_MAX_OPEN_CONNS", 20, 1),
		DBMaxIdleConns:    p.minInt("DB_MAX_IDLE_CONNS", 5, 0),
		DBConnMaxLifetime: p.positiveDuration("DB_CONN_MAX_LIFETIME", "30m"),
		MigrateOnStart:    p.boolean("MIGRATE_ON_START", "true"),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "db/migrations"),

		JWTSecret:          strings.TrimSpace(getEnv("JWT_SECRET", "")),
		JWTIssuer:          getEnv("JWT_ISSUER", "proofofputt"),
		JWTTTL:             p.positiveDuration("JWT_TTL", "24h"),
		BcryptCost:         p.minInt("BCRYPT_COST", 10, 4),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		CronSecret:         strings.TrimSpace(getEnv("CRON_SECRET", "")),

		RedisURL:               strings.TrimSpace(getEnv("REDIS_URL", "")),
		RedisChannel:           getEnv("REDIS_NOTIFICATION_CHANNEL", "putt-api:notifications"),
		NotificationHeartbeat:  p.positiveDuration("NOTIFICATION_HEARTBEAT_INTERVAL", "30s"),
		NotificationKeepLatest: p.minInt("NOTIFICATION_KEEP_LATEST", 100, 1),

		ZapriteAPIURL:        strings.TrimSpace(getEnv("ZAPRITE_API_URL", "https://api.zaprite.com")),
		ZapriteAPIKey:        strings.TrimSpace(getEnv("ZAPRITE_API_KEY", "")),
		ZapriteWebhookSecret: strings.TrimSpace(getEnv("ZAPRITE_WEBHOOK_SECRET", "")),
		ZapriteTimeout:       p.positiveDuration("ZAPRITE_TIMEOUT", "10s"),
		ZapriteMaxRetries:    p.minInt("ZAPRITE_MAX_RETRIES", 3, 0),
		ZapriteCircuit:       p.circuit("ZAPRITE"),
		FrontendURL:          strings.TrimRight(strings.TrimSpace(getEnv("FRONTEND_URL", "https://app.proofofputt.com")), "/"),

		OTSCalendarURLs: splitCSV(getEnv("OTS_CALENDAR_URLS", "")),
		OTSTimeout:      p.positiveDuration("OTS_TIMEOUT", "15s"),
		OTSCircuit:      p.circuit("OTS"),

		CertificateBatchCron:       strings.TrimSpace(getEnv("CERTIFICATE_BATCH_CRON", "0 21 * * 0")),
		DuelExpirySweepInterval:    p.positiveDuration("DUEL_EXPIRY_SWEEP_INTERVAL", "5m"),
		LeaderboardRefreshInterval: p.positiveDuration("LEADERBOARD_REFRESH_INTERVAL", "15m"),
		LeaderboardCacheTTL:        p.positiveDuration("LEADERBOARD_CACHE_TTL", "30s"),
		LeaderboardRefreshWorkers:  p.minInt("LEADERBOARD_REFRESH_WORKERS", 4, 1),
		JobTimeout:                 p.positiveDuration("JOB_TIMEOUT", "2m"),
		InvitationRatePerHour:      p.minInt("INVITATION_RATE_PER_HOUR", 20, 0),
		AnalyticsRatePerMinute:     p.minInt("ANALYTICS_RATE_PER_MINUTE", 120, 0),
		AnalyticsOwnHost:           strings.TrimSpace(getEnv("ANALYTICS_OWN_HOST", "proofofputt.com")),

		UptraceEnabled:             p.boolean("UPTRACE_ENABLED", "false"),
		UptraceLogsEnabled:         p.boolean("UPTRACE_LOGS_ENABLED", "true"),
		UptraceCaptureRequestBody:  p.boolean("UPTRACE_CAPTURE_REQUEST_BODY", "false"),
		UptraceRequestBodyMaxBytes: p.minInt("UPTRACE_REQUEST_BODY_MAX_BYTES", 8192, 1),
		PyroscopeEnabled:           p.boolean("PYROSCOPE_ENABLED", "false"),
		PyroscopeServerAddress:     strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", "")),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        p.positiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"),
		PprofEnabled:               p.boolean("PPROF_ENABLED", "false"),
		PprofAddr:                  strings.TrimSpace(getEnv("PPROF_ADDR", ":6060")),
		MetricsEnabled:             p.boolean("METRICS_ENABLED", "true"),
	}
	cfg.SeedDemoData = p.boolean("SEED_DEMO_DATA", strconv.FormatBool(cfg.StorageDriver == StorageMemory))
	if p.err != nil {
		return Config{}, p.err
	}

	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: valid values are %s, %s", c.StorageDriver, StoragePostgres, StorageMemory)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AppEnv == EnvProd && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in %s", EnvProd)
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be <= DB_MAX_OPEN_CONNS")
	}
	if _, err := cron.ParseStandard(c.CertificateBatchCron); err != nil {
		return fmt.Errorf("CERTIFICATE_BATCH_CRON %q: %w", c.CertificateBatchCron, err)
	}
	if c.UptraceEnabled && c.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if c.PyroscopeEnabled && c.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if c.PyroscopeEnabled && c.PyroscopeAppName == "" {
		return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if c.PprofEnabled && c.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}
	return nil
}

// parser keeps the first parse error so Load can read every key in one pass.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
}

func (p *parser) boolean(key, fallback string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(key, err)
	}
	return v
}

func (p *parser) positiveDuration(key, fallback string) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if v <= 0 {
		p.fail(key, fmt.Errorf("must be > 0"))
	}
	return v
}

func (p *parser) minInt(key string, fallback, minimum int) int {
	v, err := getEnvAsInt(key, fallback)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if v < minimum {
		p.fail(key, fmt.Errorf("must be >= %d", minimum))
	}
	return v
}

// circuit reads <PREFIX>_CIRCUIT_{ENABLED,FAILURE_COUNT,OPEN_TIMEOUT,HALF_OPEN_MAX_REQ}.
func (p *parser) circuit(prefix string) resilience.CircuitBreakerConfig {
	defaults := resilience.DefaultCircuitBreakerConfig()
	return resilience.CircuitBreakerConfig{
		Enabled:          p.boolean(prefix+"_CIRCUIT_ENABLED", strconv.FormatBool(defaults.Enabled)),
		FailureThreshold: p.minInt(prefix+"_CIRCUIT_FAILURE_COUNT", defaults.FailureThreshold, 1),
		OpenTimeout:      p.positiveDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", defaults.OpenTimeout.String()),
		HalfOpenMaxReq:   p.minInt(prefix+"_CIRCUIT_HALF_OPEN_MAX_REQ", defaults.HalfOpenMaxReq, 1),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		}
	}

	return ""
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
