package zaprite

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/resilience"
	"github.com/proofofputt/putt-api/internal/usecase"
)

func TestCreateOrderSendsPayloadAndReadsFallbackURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/order", r.URL.Path)
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, sonic.Unmarshal(body, &got))
		require.Equal(t, "2.10", got["amount"])
		require.Equal(t, "USD", got["currency"])
		require.Equal(t, "1001", got["metadata"].(map[string]any)["player_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ord_1","hostedUrl":"https://pay.example/ord_1"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "key-123", Logger: logging.NewNop()})
	res, err := client.CreateOrder(context.Background(), usecase.PaymentOrder{
		Amount:   "2.10",
		Currency: "USD",
		Label:    "monthly",
		Metadata: map[string]any{"player_id": "1001"},
	})
	require.NoError(t, err)
	require.Equal(t, "ord_1", res.OrderID)
	require.Equal(t, "https://pay.example/ord_1", res.CheckoutURL)
}

func TestCreateOrderRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ord_2","checkoutUrl":"https://pay.example/ord_2"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		BaseURL:     srv.URL,
		APIKey:      "k",
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		Logger:      logging.NewNop(),
	})
	res, err := client.CreateOrder(context.Background(), usecase.PaymentOrder{Amount: "21.00", Currency: "USD"})
	require.NoError(t, err)
	require.Equal(t, "ord_2", res.OrderID)
	require.Equal(t, int32(3), calls.Load())
}

func TestCreateOrderDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad amount"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", MaxRetries: 3, BaseBackoff: time.Millisecond, Logger: logging.NewNop()})
	_, err := client.CreateOrder(context.Background(), usecase.PaymentOrder{Amount: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=400")
	require.Equal(t, int32(1), calls.Load())
}

func TestCreateOrderOpensCircuitAfterFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		APIKey:  "k",
		Logger:  logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.CreateOrder(ctx, usecase.PaymentOrder{Amount: "2.10"})
		require.Error(t, err)
	}
	_, err := client.CreateOrder(ctx, usecase.PaymentOrder{Amount: "2.10"})
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestCreateOrderRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(ClientConfig{}).CreateOrder(context.Background(), usecase.PaymentOrder{})
	require.Error(t, err)
}
