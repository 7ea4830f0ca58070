package usecase

import (
	"testing"

	"github.com/proofofputt/putt-api/internal/domain/analytics"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/ratelimit"
	"github.com/stretchr/testify/require"
)

func newAnalyticsService(env *testEnv, limiter *ratelimit.Keyed) *AnalyticsService {
	svc := NewAnalyticsService(memory.NewAnalyticsRepository(env.store), limiter, "proofofputt.com", logging.NewNop())
	svc.now = env.clock
	return svc
}

func TestAnalyticsService_TrackAndDashboard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newAnalyticsService(env, nil)
	ctx := t.Context()

	events := []TrackEventInput{
		{EventType: "page_view", EventName: "page_view", SessionID: "s1", VisitorID: "v1", PageURL: "https://proofofputt.com/pricing?utm_source=newsletter", Referrer: "https://www.google.com/search?q=putting"},
		{EventType: "click", EventName: "signup_started", SessionID: "s1", VisitorID: "v1", PageURL: "https://proofofputt.com/register"},
		{EventType: "page_view", EventName: "page_view", SessionID: "s2", VisitorID: "v2", PageURL: "https://proofofputt.com/"},
		{EventType: "conversion", EventName: "registration_completed", SessionID: "s2", VisitorID: "v2", PageURL: "https://proofofputt.com/register", Properties: map[string]any{"value": "2.10"}},
	}
	for _, e := range events {
		require.NoError(t, svc.Track(ctx, e))
	}

	overview, err := svc.Dashboard(ctx, DashboardInput{})
	require.NoError(t, err)
	require.Equal(t, analytics.MetricOverview, overview.Metric)
	require.NotNil(t, overview.Totals)
	require.Equal(t, analytics.Totals{Events: 4, PageViews: 2, UniqueSessions: 2, UniqueVisitors: 2, Conversions: 1}, *overview.Totals)
	require.Equal(t, analytics.Count{Key: "direct", Count: 3}, overview.Referrers[0])
	require.Len(t, overview.Conversions, 1)
	require.InDelta(t, 2.10, overview.Conversions[0].Value, 0.001)

	funnel, err := svc.Dashboard(ctx, DashboardInput{Metric: "funnel"})
	require.NoError(t, err)
	require.Len(t, funnel.Funnel, len(analytics.FunnelSteps))
	require.Equal(t, 2, funnel.Funnel[0].Sessions)
	require.InDelta(t, 100, funnel.Funnel[0].Conversion, 0.001)
	require.Equal(t, 1, funnel.Funnel[1].Sessions)
	require.InDelta(t, 50, funnel.Funnel[1].Conversion, 0.001)
	require.Zero(t, funnel.Funnel[4].Sessions)

	traffic, err := svc.Dashboard(ctx, DashboardInput{Metric: "traffic", GroupBy: "week"})
	require.NoError(t, err)
	require.Equal(t, []analytics.Count{{Key: "newsletter", Count: 1}}, traffic.UTMSources)

	old, err := svc.Dashboard(ctx, DashboardInput{Metric: "sessions", StartDate: "2025-01-01", EndDate: "2025-01-31"})
	require.NoError(t, err)
	require.NotNil(t, old.Sessions)
	require.Zero(t, old.Sessions.Sessions)
}

func TestAnalyticsService_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newAnalyticsService(env, ratelimit.PerMinute(1))
	ctx := t.Context()

	require.ErrorIs(t, svc.Track(ctx, TrackEventInput{EventType: "page_view"}), ErrInvalidInput)

	e := TrackEventInput{EventType: "page_view", EventName: "page_view", SessionID: "s", PageURL: "https://proofofputt.com/", ForwardedFor: "203.0.113.9, 10.0.0.1"}
	require.NoError(t, svc.Track(ctx, e))
	require.ErrorIs(t, svc.Track(ctx, e), ErrRateLimited)
	e.ForwardedFor = "198.51.100.4"
	require.NoError(t, svc.Track(ctx, e))

	_, err := svc.Dashboard(ctx, DashboardInput{Metric: "revenue"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Dashboard(ctx, DashboardInput{GroupBy: "hour"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Dashboard(ctx, DashboardInput{StartDate: "2026-04-06", EndDate: "2026-04-01"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Dashboard(ctx, DashboardInput{StartDate: "04/01/2026"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
