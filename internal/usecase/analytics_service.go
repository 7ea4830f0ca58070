package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/analytics"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/ratelimit"
	"github.com/sourcegraph/conc/pool"
)

const (
	analyticsBreakdownLimit = 10
	dashboardDateLayout     = "2006-01-02"
)

type AnalyticsService struct {
	repo    analytics.Repository
	limiter *ratelimit.Keyed
	ownHost string
	logger  *logging.Logger
	now     func() time.Time
}

func NewAnalyticsService(repo analytics.Repository, limiter *ratelimit.Keyed, ownHost string, logger *logging.Logger) *AnalyticsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AnalyticsService{
		repo:    repo,
		limiter: limiter,
		ownHost: strings.TrimSpace(ownHost),
		logger:  logger,
		now:     time.Now,
	}
}

type TrackEventInput struct {
	EventType    string
	EventName    string
	SessionID    string
	VisitorID    string
	PlayerID     *int64
	PageURL      string
	Referrer     string
	Properties   map[string]any
	UserAgent    string
	ForwardedFor string
	RemoteAddr   string
}

func (s *AnalyticsService) Track(ctx context.Context, input TrackEventInput) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.AnalyticsService.Track")
	defer span.End()

	input.EventType = strings.TrimSpace(input.EventType)
	input.EventName = strings.TrimSpace(input.EventName)
	input.SessionID = strings.TrimSpace(input.SessionID)
	input.PageURL = strings.TrimSpace(input.PageURL)
	if input.EventType == "" || input.EventName == "" || input.SessionID == "" || input.PageURL == "" {
		return fmt.Errorf("%w: eventType, eventName, sessionId and pageUrl are required", ErrInvalidInput)
	}

	ip := analytics.ClientIP(input.ForwardedFor, input.RemoteAddr)
	if !s.limiter.Allow(ip) {
		return fmt.Errorf("%w: too many analytics events", ErrRateLimited)
	}

	utm, path := analytics.ParseUTM(input.PageURL)
	now := s.now().UTC()
	event := analytics.Event{
		EventType:      input.EventType,
		EventName:      input.EventName,
		SessionID:      input.SessionID,
		VisitorID:      strings.TrimSpace(input.VisitorID),
		PlayerID:       input.PlayerID,
		PageURL:        input.PageURL,
		PagePath:       path,
		Referrer:       input.Referrer,
		ReferrerSource: analytics.ParseReferrer(input.Referrer, s.ownHost),
		UTM:            utm,
		Client:         analytics.ParseUserAgent(input.UserAgent),
		IPAddress:      ip,
		Properties:     input.Properties,
		CreatedAt:      now,
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}

	if input.EventType != "conversion" {
		return nil
	}
	source := event.ReferrerSource
	if utm.Source != "" {
		source = utm.Source
	}
	conversion := analytics.Conversion{
		ConversionType: input.EventName,
		SessionID:      input.SessionID,
		VisitorID:      event.VisitorID,
		PlayerID:       input.PlayerID,
		Value:          propertyFloat(input.Properties, "value"),
		Source:         source,
		CreatedAt:      now,
	}
	if err := s.repo.InsertConversion(ctx, conversion); err != nil {
		return fmt.Errorf("insert analytics conversion: %w", err)
	}
	return nil
}

func propertyFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

type DashboardInput struct {
	Metric    string
	StartDate string
	EndDate   string
	GroupBy   string
}

type Dashboard struct {
	Metric      analytics.DashboardMetric
	Range       analytics.Range
	GroupBy     analytics.GroupBy
	Totals      *analytics.Totals
	Series      []analytics.Point
	Referrers   []analytics.Count
	Pages       []analytics.Count
	Devices     []analytics.Count
	Browsers    []analytics.Count
	UTMSources  []analytics.Count
	Events      []analytics.Count
	Conversions []analytics.ConversionSummary
	Sessions    *analytics.SessionSummary
	Funnel      []analytics.FunnelStep
}

func (s *AnalyticsService) Dashboard(ctx context.Context, input DashboardInput) (Dashboard, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AnalyticsService.Dashboard")
	defer span.End()

	metric, err := analytics.ParseDashboardMetric(strings.TrimSpace(input.Metric))
	if err != nil {
		return Dashboard{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	groupBy, err := analytics.ParseGroupBy(strings.TrimSpace(input.GroupBy))
	if err != nil {
		return Dashboard{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	r, err := s.parseRange(input.StartDate, input.EndDate)
	if err != nil {
		return Dashboard{}, err
	}

	out := Dashboard{Metric: metric, Range: r, GroupBy: groupBy}
	switch metric {
	case analytics.MetricOverview:
		err = s.overview(ctx, r, groupBy, &out)
	case analytics.MetricTraffic:
		err = s.traffic(ctx, r, groupBy, &out)
	case analytics.MetricConversions:
		out.Conversions, err = s.repo.Conversions(ctx, r)
	case analytics.MetricEvents:
		out.Events, err = s.repo.Breakdown(ctx, r, analytics.DimensionEventName, 50)
	case analytics.MetricSessions:
		var summary analytics.SessionSummary
		summary, err = s.repo.Sessions(ctx, r)
		out.Sessions = &summary
	case analytics.MetricFunnel:
		out.Funnel, err = s.funnel(ctx, r)
	}
	if err != nil {
		return Dashboard{}, fmt.Errorf("analytics %s: %w", metric, err)
	}
	return out, nil
}

// overview runs its independent aggregate queries concurrently.
func (s *AnalyticsService) overview(ctx context.Context, r analytics.Range, g analytics.GroupBy, out *Dashboard) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		totals, err := s.repo.Totals(ctx, r)
		if err != nil {
			return fmt.Errorf("totals: %w", err)
		}
		out.Totals = &totals
		return nil
	})
	p.Go(func(ctx context.Context) (err error) {
		out.Series, err = s.repo.Series(ctx, r, g)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		out.Referrers, err = s.repo.Breakdown(ctx, r, analytics.DimensionReferrerSource, analyticsBreakdownLimit)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		out.Pages, err = s.repo.Breakdown(ctx, r, analytics.DimensionPagePath, analyticsBreakdownLimit)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		out.Devices, err = s.repo.Breakdown(ctx, r, analytics.DimensionDevice, analyticsBreakdownLimit)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		out.Conversions, err = s.repo.Conversions(ctx, r)
		return err
	})
	return p.Wait()
}

func (s *AnalyticsService) traffic(ctx context.Context, r analytics.Range, g analytics.GroupBy, out *Dashboard) error {
	var err error
	if out.Series, err = s.repo.Series(ctx, r, g); err != nil {
		return err
	}
	if out.Referrers, err = s.repo.Breakdown(ctx, r, analytics.DimensionReferrerSource, analyticsBreakdownLimit); err != nil {
		return err
	}
	if out.UTMSources, err = s.repo.Breakdown(ctx, r, analytics.DimensionUTMSource, analyticsBreakdownLimit); err != nil {
		return err
	}
	if out.Browsers, err = s.repo.Breakdown(ctx, r, analytics.DimensionBrowser, analyticsBreakdownLimit); err != nil {
		return err
	}
	out.Devices, err = s.repo.Breakdown(ctx, r, analytics.DimensionDevice, analyticsBreakdownLimit)
	return err
}

// funnel reports each step's sessions and the share relative to the first step.
func (s *AnalyticsService) funnel(ctx context.Context, r analytics.Range) ([]analytics.FunnelStep, error) {
	counts, err := s.repo.FunnelCounts(ctx, r, analytics.FunnelSteps)
	if err != nil {
		return nil, err
	}
	steps := make([]analytics.FunnelStep, 0, len(analytics.FunnelSteps))
	top := counts[analytics.FunnelSteps[0]]
	for _, name := range analytics.FunnelSteps {
		step := analytics.FunnelStep{Step: name, Sessions: counts[name]}
		if top > 0 {
			step.Conversion = float64(int64(float64(step.Sessions)/float64(top)*10000+0.5)) / 100
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (s *AnalyticsService) parseRange(start, end string) (analytics.Range, error) {
	r := analytics.DefaultRange(s.now().UTC())
	if start = strings.TrimSpace(start); start != "" {
		t, err := time.Parse(dashboardDateLayout, start)
		if err != nil {
			return analytics.Range{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidInput)
		}
		r.Start = t
	}
	if end = strings.TrimSpace(end); end != "" {
		t, err := time.Parse(dashboardDateLayout, end)
		if err != nil {
			return analytics.Range{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidInput)
		}
		// end_date is inclusive.
		r.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	if r.End.Before(r.Start) {
		return analytics.Range{}, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}
	return r, nil
}
