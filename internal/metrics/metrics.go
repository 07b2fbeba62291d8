// Package metrics holds the Prometheus collectors for the board daemon.
// The set is instance-scoped rather than package-global so tests can build
// isolated registries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector with its registry.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal    *prometheus.CounterVec
	RefreshFailures *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	Mutations       *prometheus.CounterVec
	ActiveToasts    prometheus.Gauge
	WSReconnects    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a registry with all board collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boardlink",
				Subsystem: "board",
				Name:      "refresh_total",
				Help:      "Refresh rounds per resource.",
			},
			[]string{"resource"},
		),
		RefreshFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boardlink",
				Subsystem: "board",
				Name:      "refresh_failures_total",
				Help:      "Failed resource fetches per refresh round.",
			},
			[]string{"resource"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "boardlink",
				Subsystem: "board",
				Name:      "refresh_duration_seconds",
				Help:      "Duration of full refresh rounds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
			},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boardlink",
				Subsystem: "board",
				Name:      "mutations_total",
				Help:      "Optimistic mutations by kind.",
			},
			[]string{"kind"},
		),
		ActiveToasts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "boardlink",
				Subsystem: "notify",
				Name:      "active_toasts",
				Help:      "Toasts currently displayed.",
			},
		),
		WSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "boardlink",
				Subsystem: "realtime",
				Name:      "reconnects_total",
				Help:      "Websocket reconnect attempts.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boardlink",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Status API requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "boardlink",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of status API requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path", "status_class"},
		),
	}

	m.registry.MustRegister(
		m.RefreshTotal,
		m.RefreshFailures,
		m.RefreshDuration,
		m.Mutations,
		m.ActiveToasts,
		m.WSReconnects,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an http.Handler with request counting and timing.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path, statusClass(recorder.status)).Observe(time.Since(start).Seconds())
	})
}

// statusClass buckets an HTTP status into its class, e.g. 404 -> "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
