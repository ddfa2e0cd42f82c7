package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Feed cache metrics, labelled by view kind (global, user, post, following)
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CachePatchesTotal   *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	StaleDiscardsTotal  *prometheus.CounterVec
	FeedFetchDuration   *prometheus.HistogramVec
	ActiveSessions      prometheus.Gauge

	// Mutations and notifications
	MutationsTotal     *prometheus.CounterVec
	TagRetriesTotal    *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	// Rate limiting
	RateLimitExceededTotal *prometheus.CounterVec

	// Realtime
	WebSocketConnections prometheus.Gauge
	WebSocketDropsTotal  *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_cache_hits_total",
					Help: "Reads served from a cached view entry",
				},
				[]string{"view_kind"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_cache_misses_total",
					Help: "Reads that had to fetch from the store",
				},
				[]string{"view_kind"},
			),
			CachePatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_cache_patches_total",
					Help: "Surgical patches applied to cached view models",
				},
				[]string{"patch"},
			),
			CacheEvictionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_cache_evictions_total",
					Help: "Posts removed from cached views",
				},
				[]string{"reason"},
			),
			StaleDiscardsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_stale_discards_total",
					Help: "Fetch results discarded by the stale-response guard",
				},
				[]string{"view_kind", "reason"},
			),
			FeedFetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feed_fetch_duration_seconds",
					Help:    "Time to plan and assemble a view in seconds",
					Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"view_kind"},
			),
			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "feed_active_sessions",
					Help: "Viewer sessions holding a feed cache",
				},
			),

			MutationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_mutations_total",
					Help: "Mutations by operation and outcome",
				},
				[]string{"op", "status"},
			),
			TagRetriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_tag_retries_total",
					Help: "Tag re-lookups after a creation race, by outcome",
				},
				[]string{"outcome"},
			),
			NotificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_total",
					Help: "Notifications delivered by sink and level",
				},
				[]string{"sink", "level"},
			),

			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by the rate limiter",
				},
				[]string{"path", "method", "backend"},
			),

			WebSocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Open notification websocket connections",
				},
			),
			WebSocketDropsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "websocket_drops_total",
					Help: "Connections closed by the server, by reason",
				},
				[]string{"reason"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by code and operation",
				},
				[]string{"code", "op"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}

// RecordCacheRead counts a view read as a hit or a miss
func RecordCacheRead(viewKind string, hit bool) {
	m := Get()
	if hit {
		m.CacheHitsTotal.WithLabelValues(viewKind).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(viewKind).Inc()
}

func RecordCachePatch(patch string) {
	Get().CachePatchesTotal.WithLabelValues(patch).Inc()
}

func RecordCacheEviction(reason string, count int) {
	Get().CacheEvictionsTotal.WithLabelValues(reason).Add(float64(count))
}

func RecordStaleDiscard(viewKind, reason string) {
	Get().StaleDiscardsTotal.WithLabelValues(viewKind, reason).Inc()
}

func RecordFeedFetch(viewKind string, duration time.Duration) {
	Get().FeedFetchDuration.WithLabelValues(viewKind).Observe(duration.Seconds())
}

// RecordMutation counts a mutation outcome; err == nil is a success
func RecordMutation(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	Get().MutationsTotal.WithLabelValues(op, status).Inc()
}

func RecordTagRetry(outcome string) {
	Get().TagRetriesTotal.WithLabelValues(outcome).Inc()
}

func RecordNotification(sink, level string) {
	Get().NotificationsTotal.WithLabelValues(sink, level).Inc()
}

// RecordRateLimitExceeded counts a rejected request; backend is "redis" or "memory"
func RecordRateLimitExceeded(path, method, backend string) {
	Get().RateLimitExceededTotal.WithLabelValues(path, method, backend).Inc()
}

// RecordWebSocketConnections sets the open connection gauge
func RecordWebSocketConnections(n int) {
	Get().WebSocketConnections.Set(float64(n))
}

// RecordWebSocketDrop counts a connection the server closed; reason is e.g. "slow_consumer"
func RecordWebSocketDrop(reason string) {
	Get().WebSocketDropsTotal.WithLabelValues(reason).Inc()
}

func RecordError(code, op string) {
	Get().ErrorsTotal.WithLabelValues(code, op).Inc()
}
