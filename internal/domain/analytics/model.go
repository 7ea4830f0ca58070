package analytics

import (
	"fmt"
	"time"
)

type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

type Client struct {
	Browser string
	OS      string
	Device  string
}

type Event struct {
	ID             int64
	EventType      string
	EventName      string
	SessionID      string
	VisitorID      string
	PlayerID       *int64
	PageURL        string
	PagePath       string
	Referrer       string
	ReferrerSource string
	UTM            UTM
	Client         Client
	IPAddress      string
	Properties     map[string]any
	CreatedAt      time.Time
}

type Conversion struct {
	ConversionType string
	SessionID      string
	VisitorID      string
	PlayerID       *int64
	Value          float64
	Source         string
	CreatedAt      time.Time
}

type DashboardMetric string

const (
	MetricOverview    DashboardMetric = "overview"
	MetricTraffic     DashboardMetric = "traffic"
	MetricConversions DashboardMetric = "conversions"
	MetricEvents      DashboardMetric = "events"
	MetricSessions    DashboardMetric = "sessions"
	MetricFunnel      DashboardMetric = "funnel"
)

func ParseDashboardMetric(raw string) (DashboardMetric, error) {
	switch m := DashboardMetric(raw); m {
	case MetricOverview, MetricTraffic, MetricConversions, MetricEvents, MetricSessions, MetricFunnel:
		return m, nil
	case "":
		return MetricOverview, nil
	}
	return "", fmt.Errorf("unsupported metric %q", raw)
}

type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

func ParseGroupBy(raw string) (GroupBy, error) {
	switch g := GroupBy(raw); g {
	case GroupByDay, GroupByWeek, GroupByMonth:
		return g, nil
	case "":
		return GroupByDay, nil
	}
	return "", fmt.Errorf("unsupported group_by %q", raw)
}

type Range struct {
	Start time.Time
	End   time.Time
}

// DefaultRange covers the 30 days ending at now.
func DefaultRange(now time.Time) Range {
	return Range{Start: now.AddDate(0, 0, -30), End: now}
}

// Dimension names a breakdown column.
type Dimension string

const (
	DimensionReferrerSource Dimension = "referrer_source"
	DimensionDevice         Dimension = "device_type"
	DimensionBrowser        Dimension = "browser"
	DimensionPagePath       Dimension = "page_path"
	DimensionEventName      Dimension = "event_name"
	DimensionUTMSource      Dimension = "utm_source"
)

type Totals struct {
	Events         int
	PageViews      int
	UniqueSessions int
	UniqueVisitors int
	Conversions    int
}

type Count struct {
	Key   string
	Count int
}

type Point struct {
	Bucket    time.Time
	PageViews int
	Sessions  int
	Events    int
}

type ConversionSummary struct {
	ConversionType string
	Count          int
	Value          float64
}

type SessionSummary struct {
	Sessions         int
	AvgEventsPerSess float64
	BouncedSessions  int
}

// FunnelSteps are event names in the order a visitor normally reaches them.
var FunnelSteps = []string{"page_view", "signup_started", "registration_completed", "first_session_uploaded", "subscription_started"}

type FunnelStep struct {
	Step       string
	Sessions   int
	Conversion float64
}
