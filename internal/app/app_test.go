package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/config"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

func memoryConfig() config.Config {
	return config.Config{
		AppEnv:          config.EnvDev,
		ServiceName:     "putt-api",
		HTTPAddr:        "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,

		StorageDriver: config.StorageMemory,
		SeedDemoData:  true,

		JWTSecret:          "app-test-secret",
		JWTIssuer:          "proofofputt",
		JWTTTL:             time.Hour,
		BcryptCost:         4,
		CORSAllowedOrigins: []string{"*"},
		CronSecret:         "cron",

		NotificationHeartbeat:  time.Minute,
		NotificationKeepLatest: 100,

		CertificateBatchCron:       "0 21 * * 0",
		DuelExpirySweepInterval:    time.Minute,
		LeaderboardRefreshInterval: time.Minute,
		LeaderboardCacheTTL:        time.Second,
		LeaderboardRefreshWorkers:  2,
		JobTimeout:                 time.Minute,
		InvitationRatePerHour:      20,
		AnalyticsRatePerMinute:     60,

		MetricsEnabled: true,
	}
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()

	a, err := New(t.Context(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func serve(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestNew_MemoryStorageServesDemoLogin(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, memoryConfig())
	h := a.Handler()

	rec, _ := serve(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// No database to ping in memory mode.
	rec, _ = serve(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	login := `{"email":"` + memory.DemoPlayers[0].Email + `","password":"` + DemoPassword + `"}`
	rec, body := serve(t, h, http.MethodPost, "/v1/auth/login", login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, data["token"])
}

func TestNew_MetricsEndpointFollowsConfig(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, memoryConfig())
	_, _ = serve(t, a.Handler(), http.MethodGet, "/healthz", "")
	rec, _ := serve(t, a.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "putt_api_http_requests_total")

	cfg := memoryConfig()
	cfg.MetricsEnabled = false
	rec, _ = serve(t, newTestApp(t, cfg).Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.HTTPAddr = ""
	_, err := New(t.Context(), cfg, logging.NewNop())
	require.Error(t, err)

	cfg = memoryConfig()
	cfg.StorageDriver = "sqlite"
	_, err = New(t.Context(), cfg, logging.NewNop())
	require.ErrorContains(t, err, "sqlite")

	cfg = memoryConfig()
	cfg.JWTSecret = ""
	_, err = New(t.Context(), cfg, logging.NewNop())
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, memoryConfig())
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestResolveMigrationsDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got, err := ResolveMigrationsDir(dir)
	require.NoError(t, err)
	require.Equal(t, dir, got)
	require.Equal(t, "file://"+dir, SourceURL(dir))
}
