package memory

import (
	"context"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/analytics"
)

type AnalyticsRepository struct {
	s *Store
}

func NewAnalyticsRepository(s *Store) *AnalyticsRepository {
	return &AnalyticsRepository{s: s}
}

func (r *AnalyticsRepository) InsertEvent(_ context.Context, e analytics.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e.ID = r.s.nextID("analytics_events")
	r.s.events = append(r.s.events, e)
	return nil
}

func (r *AnalyticsRepository) InsertConversion(_ context.Context, c analytics.Conversion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.conversions = append(r.s.conversions, c)
	return nil
}

func (r *AnalyticsRepository) Totals(_ context.Context, rng analytics.Range) (analytics.Totals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var t analytics.Totals
	sessions := map[string]struct{}{}
	visitors := map[string]struct{}{}
	for _, e := range r.s.eventsIn(rng) {
		t.Events++
		if e.EventType == "page_view" {
			t.PageViews++
		}
		sessions[e.SessionID] = struct{}{}
		if e.VisitorID != "" {
			visitors[e.VisitorID] = struct{}{}
		}
	}
	for _, c := range r.s.conversions {
		if within(c.CreatedAt, rng) {
			t.Conversions++
		}
	}
	t.UniqueSessions = len(sessions)
	t.UniqueVisitors = len(visitors)
	return t, nil
}

func (r *AnalyticsRepository) Series(_ context.Context, rng analytics.Range, g analytics.GroupBy) ([]analytics.Point, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type acc struct {
		point    analytics.Point
		sessions map[string]struct{}
	}
	buckets := map[time.Time]*acc{}
	for _, e := range r.s.eventsIn(rng) {
		key := bucketOf(e.CreatedAt, g)
		a, ok := buckets[key]
		if !ok {
			a = &acc{point: analytics.Point{Bucket: key}, sessions: map[string]struct{}{}}
			buckets[key] = a
		}
		a.point.Events++
		if e.EventType == "page_view" {
			a.point.PageViews++
		}
		a.sessions[e.SessionID] = struct{}{}
	}

	out := make([]analytics.Point, 0, len(buckets))
	for _, a := range buckets {
		a.point.Sessions = len(a.sessions)
		out = append(out, a.point)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out, nil
}

func (r *AnalyticsRepository) Breakdown(_ context.Context, rng analytics.Range, d analytics.Dimension, limit int) ([]analytics.Count, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[string]int{}
	for _, e := range r.s.eventsIn(rng) {
		if key := dimensionOf(e, d); key != "" {
			counts[key]++
		}
	}
	out := make([]analytics.Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, analytics.Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Key < out[j].Key
		}
		return out[i].Count > out[j].Count
	})
	return page(out, limit, 0), nil
}

func (r *AnalyticsRepository) Conversions(_ context.Context, rng analytics.Range) ([]analytics.ConversionSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byType := map[string]*analytics.ConversionSummary{}
	for _, c := range r.s.conversions {
		if !within(c.CreatedAt, rng) {
			continue
		}
		sum, ok := byType[c.ConversionType]
		if !ok {
			sum = &analytics.ConversionSummary{ConversionType: c.ConversionType}
			byType[c.ConversionType] = sum
		}
		sum.Count++
		sum.Value += c.Value
	}
	out := make([]analytics.ConversionSummary, 0, len(byType))
	for _, sum := range byType {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].ConversionType < out[j].ConversionType
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (r *AnalyticsRepository) Sessions(_ context.Context, rng analytics.Range) (analytics.SessionSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	perSession := map[string]int{}
	for _, e := range r.s.eventsIn(rng) {
		perSession[e.SessionID]++
	}
	var out analytics.SessionSummary
	total := 0
	for _, n := range perSession {
		total += n
		if n == 1 {
			out.BouncedSessions++
		}
	}
	out.Sessions = len(perSession)
	if out.Sessions > 0 {
		out.AvgEventsPerSess = float64(total) / float64(out.Sessions)
	}
	return out, nil
}

func (r *AnalyticsRepository) FunnelCounts(_ context.Context, rng analytics.Range, steps []string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reached := make(map[string]map[string]struct{}, len(steps))
	for _, step := range steps {
		reached[step] = map[string]struct{}{}
	}
	for _, e := range r.s.eventsIn(rng) {
		for _, name := range []string{e.EventName, e.EventType} {
			if set, ok := reached[name]; ok {
				set[e.SessionID] = struct{}{}
			}
		}
	}
	out := make(map[string]int, len(steps))
	for step, set := range reached {
		out[step] = len(set)
	}
	return out, nil
}

// eventsIn filters by the inclusive range; callers hold the lock.
func (s *Store) eventsIn(rng analytics.Range) []analytics.Event {
	out := make([]analytics.Event, 0, len(s.events))
	for _, e := range s.events {
		if within(e.CreatedAt, rng) {
			out = append(out, e)
		}
	}
	return out
}

func within(at time.Time, rng analytics.Range) bool {
	return !at.Before(rng.Start) && !at.After(rng.End)
}

// bucketOf truncates like date_trunc: weeks start on Monday.
func bucketOf(at time.Time, g analytics.GroupBy) time.Time {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case analytics.GroupByWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case analytics.GroupByMonth:
		return time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}

func dimensionOf(e analytics.Event, d analytics.Dimension) string {
	switch d {
	case analytics.DimensionReferrerSource:
		return e.ReferrerSource
	case analytics.DimensionDevice:
		return e.Client.Device
	case analytics.DimensionBrowser:
		return e.Client.Browser
	case analytics.DimensionPagePath:
		return e.PagePath
	case analytics.DimensionEventName:
		return e.EventName
	case analytics.DimensionUTMSource:
		return e.UTM.Source
	}
	return ""
}
