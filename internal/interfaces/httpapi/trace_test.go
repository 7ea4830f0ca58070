package httpapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/proofofputt/putt-api/internal/domain/user"
)

func TestIsHandlerSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "handler span", in: "httpapi.Handler.UploadSession", want: true},
		{name: "bare prefix", in: "httpapi.Handler.", want: false},
		{name: "middleware span", in: "httpapi.RequireAuth", want: false},
		{name: "helper span", in: "httpapi.writeError", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, isHandlerSpan(tt.in))
		})
	}
}

func TestStartSpan(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, orphan := startSpan(context.Background(), "httpapi.Handler.Me")
	require.False(t, orphan.SpanContext().IsValid(), "no parent span means no child span")

	ctx, parent := provider.Tracer("test").Start(context.Background(), "GET /v1/me")
	ctx = withPrincipal(ctx, user.Principal{PlayerID: 42})

	_, helper := startSpan(ctx, "httpapi.RequireAuth")
	require.False(t, helper.SpanContext().IsValid())

	_, span := startSpan(ctx, "httpapi.Handler.Me")
	require.True(t, span.SpanContext().IsValid())
	require.Equal(t, parent.SpanContext().TraceID(), span.SpanContext().TraceID())

	ro, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	require.Contains(t, ro.Attributes(), attribute.Int64("player.id", 42))
	span.End()
	parent.End()
}
