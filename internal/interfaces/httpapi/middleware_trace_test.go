package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestShouldTraceRequest(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/healthz", "/health", "/livez", "/readyz", "/metrics", " /healthz "} {
		require.False(t, shouldTraceRequest(path), path)
	}
	for _, path := range []string{"/v1/duels", "/v1/leaderboards", "/", "/v1/notifications/stream"} {
		require.True(t, shouldTraceRequest(path), path)
	}
}

func TestCaptureRequestBody(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(raw)
		w.WriteHeader(http.StatusNoContent)
	})
	handler := CaptureRequestBody(8, next)

	send := func(path, body string) map[attribute.Key]attribute.Value {
		ctx, span := tracer.Start(t.Context(), "request")
		req := httptest.NewRequestWithContext(ctx, http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		span.End()

		ended := recorder.Ended()
		attrs := map[attribute.Key]attribute.Value{}
		for _, kv := range ended[len(ended)-1].Attributes() {
			attrs[kv.Key] = kv.Value
		}
		return attrs
	}

	attrs := send("/v1/sessions", `{"total_putts":42}`)
	require.Equal(t, `{"total_putts":42}`, seen)
	require.Equal(t, `{"total_`, attrs["http.request.body"].AsString())
	require.True(t, attrs["http.request.body.truncated"].AsBool())

	attrs = send("/v1/duels", `{"a":1}`)
	require.Equal(t, `{"a":1}`, attrs["http.request.body"].AsString())
	require.False(t, attrs["http.request.body.truncated"].AsBool())

	attrs = send("/v1/auth/login", `{"password":"hunter22"}`)
	require.Equal(t, `{"password":"hunter22"}`, seen)
	require.NotContains(t, attrs, attribute.Key("http.request.body"))
}
