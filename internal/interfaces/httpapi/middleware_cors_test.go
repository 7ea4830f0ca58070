package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const frontendOrigin = "https://app.proofofputt.com"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/v1/duels", nil)
	req.Header.Set("Origin", frontendOrigin)
	rec := httptest.NewRecorder()
	CORS([]string{frontendOrigin}, okHandler()).ServeHTTP(rec, req)

	require.Equal(t, frontendOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Last-Event-ID")
	require.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORS_OptionsPreflight(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/v1/duels", nil)
	req.Header.Set("Origin", frontendOrigin)
	rec := httptest.NewRecorder()
	CORS([]string{"*"}, okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowsUnconfiguredOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/v1/duels", nil)
	req.Header.Set("Origin", "https://not-allowed.example.com")
	rec := httptest.NewRecorder()
	CORS([]string{"https://allowed.example.com"}, okHandler()).ServeHTTP(rec, req)

	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, http.StatusOK, rec.Code)
}
