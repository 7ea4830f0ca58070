package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proofofputt/putt-api/internal/platform/cache"
)

const metricsNamespace = "putt_api"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	streamsActive   prometheus.Gauge
	notifications   *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	refreshFailures *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "notification_streams_active",
			Help:      "Open Server-Sent Event notification streams.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_published_total",
			Help:      "Notifications stored and published, by type.",
		}, []string{"type"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "leaderboard_refresh_duration_seconds",
			Help:      "Time spent recomputing one leaderboard context.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"context"}),
		refreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "leaderboard_refresh_failures_total",
			Help:      "Leaderboard context refreshes that failed.",
		}, []string{"context"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "zaprite_webhooks_total",
			Help:      "Zaprite webhook deliveries, by event type and duplicate flag.",
		}, []string{"event", "duplicate"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.streamsActive,
		m.notifications,
		m.refreshDuration,
		m.refreshFailures,
		m.webhooks,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) StreamOpened() { m.streamsActive.Inc() }

func (m *Metrics) StreamClosed() { m.streamsActive.Dec() }

func (m *Metrics) NotificationPublished(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) LeaderboardRefreshed(contextType string, took time.Duration, failed bool) {
	m.refreshDuration.WithLabelValues(contextType).Observe(took.Seconds())
	if failed {
		m.refreshFailures.WithLabelValues(contextType).Inc()
	}
}

func (m *Metrics) WebhookReceived(eventType string, duplicate bool) {
	m.webhooks.WithLabelValues(eventType, strconv.FormatBool(duplicate)).Inc()
}

// ObserveCache exports a cache store's size and hit/miss counters under the
// given name. Register each name once.
func (m *Metrics) ObserveCache(name string, store *cache.Store) {
	labels := prometheus.Labels{"cache": name}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "cache_entries",
			Help:        "Entries currently held by a process-local cache.",
			ConstLabels: labels,
		}, func() float64 { return float64(store.Stats().Entries) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "cache_hits_total",
			Help:        "Cache lookups served from memory.",
			ConstLabels: labels,
		}, func() float64 { return float64(store.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "cache_misses_total",
			Help:        "Cache lookups that fell through to storage.",
			ConstLabels: labels,
		}, func() float64 { return float64(store.Stats().Misses) }),
	)
}

// Instrument counts requests and records latency. Streams are counted when
// they close, so their duration is the stream lifetime.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.httpRequests,
		promhttp.InstrumentHandlerDuration(m.httpDuration, next))
}
