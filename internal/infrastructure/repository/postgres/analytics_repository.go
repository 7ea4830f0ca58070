package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/proofofputt/putt-api/internal/domain/analytics"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type AnalyticsRepository struct {
	db *sqlx.DB
}

func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) InsertEvent(ctx context.Context, e analytics.Event) error {
	query, args, err := qb.InsertModel("analytics_events", newAnalyticsEventTableModel(e), "")
	if err != nil {
		return fmt.Errorf("build insert analytics event query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) InsertConversion(ctx context.Context, c analytics.Conversion) error {
	query, args, err := qb.InsertModel("analytics_conversions", analyticsConversionTableModel{
		ConversionType: c.ConversionType,
		SessionID:      c.SessionID,
		VisitorID:      c.VisitorID,
		PlayerID:       nullInt64(c.PlayerID),
		Value:          c.Value,
		Source:         c.Source,
		CreatedAt:      c.CreatedAt,
	}, "")
	if err != nil {
		return fmt.Errorf("build insert analytics conversion query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert analytics conversion: %w", err)
	}
	return nil
}

func inRange(column string, rng analytics.Range) []qb.Condition {
	return []qb.Condition{qb.Gte(column, rng.Start), qb.Lte(column, rng.End)}
}

func (r *AnalyticsRepository) Totals(ctx context.Context, rng analytics.Range) (analytics.Totals, error) {
	query, args, err := qb.Select(
		"COUNT(*) AS events",
		"COUNT(*) FILTER (WHERE event_type = 'page_view') AS page_views",
		"COUNT(DISTINCT session_id) AS unique_sessions",
		"COUNT(DISTINCT NULLIF(visitor_id, '')) AS unique_visitors",
	).From("analytics_events").
		Where(inRange("created_at", rng)...).
		ToSQL()
	if err != nil {
		return analytics.Totals{}, fmt.Errorf("build select analytics totals query: %w", err)
	}
	var row struct {
		Events         int `db:"events"`
		PageViews      int `db:"page_views"`
		UniqueSessions int `db:"unique_sessions"`
		UniqueVisitors int `db:"unique_visitors"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return analytics.Totals{}, fmt.Errorf("select analytics totals: %w", err)
	}

	convQuery, convArgs, err := qb.Select("COUNT(*)").From("analytics_conversions").
		Where(inRange("created_at", rng)...).
		ToSQL()
	if err != nil {
		return analytics.Totals{}, fmt.Errorf("build count conversions query: %w", err)
	}
	var conversions int
	if err := r.db.GetContext(ctx, &conversions, convQuery, convArgs...); err != nil {
		return analytics.Totals{}, fmt.Errorf("count conversions: %w", err)
	}

	return analytics.Totals{
		Events:         row.Events,
		PageViews:      row.PageViews,
		UniqueSessions: row.UniqueSessions,
		UniqueVisitors: row.UniqueVisitors,
		Conversions:    conversions,
	}, nil
}

func (r *AnalyticsRepository) Series(ctx context.Context, rng analytics.Range, g analytics.GroupBy) ([]analytics.Point, error) {
	if _, err := analytics.ParseGroupBy(string(g)); err != nil {
		return nil, err
	}
	bucket := fmt.Sprintf("date_trunc('%s', created_at AT TIME ZONE 'UTC')", g)
	query, args, err := qb.Select(
		bucket+" AS bucket",
		"COUNT(*) FILTER (WHERE event_type = 'page_view') AS page_views",
		"COUNT(DISTINCT session_id) AS sessions",
		"COUNT(*) AS events",
	).From("analytics_events").
		Where(inRange("created_at", rng)...).
		GroupBy("bucket").
		OrderBy("bucket").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select analytics series query: %w", err)
	}
	var rows []struct {
		Bucket    time.Time `db:"bucket"`
		PageViews int       `db:"page_views"`
		Sessions  int       `db:"sessions"`
		Events    int       `db:"events"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select analytics series: %w", err)
	}
	out := make([]analytics.Point, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.Point{
			Bucket:    row.Bucket.UTC(),
			PageViews: row.PageViews,
			Sessions:  row.Sessions,
			Events:    row.Events,
		})
	}
	return out, nil
}

var dimensionColumns = map[analytics.Dimension]string{
	analytics.DimensionReferrerSource: "referrer_source",
	analytics.DimensionDevice:         "device_type",
	analytics.DimensionBrowser:        "browser",
	analytics.DimensionPagePath:       "page_path",
	analytics.DimensionEventName:      "event_name",
	analytics.DimensionUTMSource:      "utm_source",
}

func (r *AnalyticsRepository) Breakdown(ctx context.Context, rng analytics.Range, d analytics.Dimension, limit int) ([]analytics.Count, error) {
	col, ok := dimensionColumns[d]
	if !ok {
		return nil, fmt.Errorf("unsupported dimension %q", d)
	}
	query, args, err := qb.Select(col+" AS key", "COUNT(*) AS count").From("analytics_events").
		Where(append(inRange("created_at", rng), qb.NotEq(col, ""))...).
		GroupBy(col).
		OrderBy("count DESC", "key").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select analytics breakdown query: %w", err)
	}
	var rows []struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select analytics breakdown: %w", err)
	}
	out := make([]analytics.Count, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.Count{Key: row.Key, Count: row.Count})
	}
	return out, nil
}

func (r *AnalyticsRepository) Conversions(ctx context.Context, rng analytics.Range) ([]analytics.ConversionSummary, error) {
	query, args, err := qb.Select(
		"conversion_type",
		"COUNT(*) AS count",
		"COALESCE(SUM(conversion_value), 0)::float8 AS value",
	).From("analytics_conversions").
		Where(inRange("created_at", rng)...).
		GroupBy("conversion_type").
		OrderBy("count DESC", "conversion_type").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select conversions query: %w", err)
	}
	var rows []struct {
		ConversionType string  `db:"conversion_type"`
		Count          int     `db:"count"`
		Value          float64 `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select conversions: %w", err)
	}
	out := make([]analytics.ConversionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.ConversionSummary{ConversionType: row.ConversionType, Count: row.Count, Value: row.Value})
	}
	return out, nil
}

func (r *AnalyticsRepository) Sessions(ctx context.Context, rng analytics.Range) (analytics.SessionSummary, error) {
	var row struct {
		Sessions int     `db:"sessions"`
		Avg      float64 `db:"avg_events"`
		Bounced  int     `db:"bounced"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT
		COUNT(*) AS sessions,
		COALESCE(AVG(n), 0)::float8 AS avg_events,
		COUNT(*) FILTER (WHERE n = 1) AS bounced
		FROM (SELECT session_id, COUNT(*) AS n FROM analytics_events
			WHERE created_at >= $1 AND created_at <= $2 GROUP BY session_id) per_session`,
		rng.Start, rng.End)
	if err != nil {
		return analytics.SessionSummary{}, fmt.Errorf("select analytics sessions: %w", err)
	}
	return analytics.SessionSummary{Sessions: row.Sessions, AvgEventsPerSess: row.Avg, BouncedSessions: row.Bounced}, nil
}

// FunnelCounts counts distinct sessions reaching each step by event name or type.
func (r *AnalyticsRepository) FunnelCounts(ctx context.Context, rng analytics.Range, steps []string) (map[string]int, error) {
	var rows []struct {
		Step     string `db:"step"`
		Sessions int    `db:"sessions"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT step, COUNT(DISTINCT e.session_id) AS sessions
		FROM analytics_events e
		JOIN UNNEST($3::text[]) AS step ON step = e.event_name OR step = e.event_type
		WHERE e.created_at >= $1 AND e.created_at <= $2
		GROUP BY step`, rng.Start, rng.End, pq.Array(steps))
	if err != nil {
		return nil, fmt.Errorf("select analytics funnel: %w", err)
	}
	out := make(map[string]int, len(steps))
	for _, step := range steps {
		out[step] = 0
	}
	for _, row := range rows {
		out[row.Step] = row.Sessions
	}
	return out, nil
}
