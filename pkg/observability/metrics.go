package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Fetch metrics
	FetchAttemptsTotal *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	// Fan-out metrics
	FanOutStationsTotal *prometheus.CounterVec
	FanOutDuration      *prometheus.HistogramVec
	CrawlsActive        prometheus.Gauge

	// Policy metrics
	NotificationsTotal *prometheus.CounterVec

	// Store metrics
	StoreQueriesTotal    *prometheus.CounterVec
	StoreQueryDuration   *prometheus.HistogramVec
	StoreConnectionsOpen prometheus.Gauge
}

// metrics is the global metrics instance
var metrics *Metrics

// InitMetrics initializes Prometheus metrics
func InitMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rentwatch"
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Fetch metrics
		FetchAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "attempts_total",
				Help:      "Total number of fetch attempts, including retries",
			},
			[]string{"status"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		// Fan-out metrics
		FanOutStationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "stations_total",
				Help:      "Total number of per-station sub-crawls run",
			},
			[]string{"outcome"},
		),
		FanOutDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "duration_seconds",
				Help:      "Fan-out duration in seconds",
				Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"multi_station"},
		),
		CrawlsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "crawls_active",
				Help:      "Number of currently running crawl orchestrations",
			},
		),

		// Policy metrics
		NotificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "notifications_total",
				Help:      "Total number of notification decisions, by outcome",
			},
			[]string{"outcome"}, // notified, silent, suppressed
		),

		// Store metrics
		StoreQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		StoreQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		StoreConnectionsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "connections_open",
				Help:      "Number of open database connections",
			},
		),
	}

	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if metrics == nil {
		return InitMetrics("")
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
