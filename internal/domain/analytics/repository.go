package analytics

import "context"

type Repository interface {
	InsertEvent(ctx context.Context, e Event) error
	InsertConversion(ctx context.Context, c Conversion) error

	Totals(ctx context.Context, r Range) (Totals, error)
	Series(ctx context.Context, r Range, g GroupBy) ([]Point, error)
	Breakdown(ctx context.Context, r Range, d Dimension, limit int) ([]Count, error)
	Conversions(ctx context.Context, r Range) ([]ConversionSummary, error)
	Sessions(ctx context.Context, r Range) (SessionSummary, error)
	// FunnelCounts returns distinct sessions that reached each event name.
	FunnelCounts(ctx context.Context, r Range, steps []string) (map[string]int, error)
}
