package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "github.com/proofofputt/putt-api/internal/interfaces/httpapi"
	handlerSpanPrefix = "httpapi.Handler."
)

var noopSpan = trace.SpanFromContext(context.Background())

// startSpan opens a child span for handler entry points only, using the
// provider of the server span. Requests without one (health probes, metrics
// scrapes) get a no-op.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !isHandlerSpan(name) || !parent.SpanContext().IsValid() {
		return ctx, noopSpan
	}
	ctx, span := parent.TracerProvider().Tracer(tracerName).Start(ctx, name)
	if p, ok := principalFromContext(ctx); ok {
		span.SetAttributes(attribute.Int64("player.id", p.PlayerID))
	}
	return ctx, span
}

func isHandlerSpan(name string) bool {
	return strings.HasPrefix(name, handlerSpanPrefix) && len(name) > len(handlerSpanPrefix)
}
