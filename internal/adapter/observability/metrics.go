package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	HealthCheckRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "health_check_requests_total",
			Help: "Counts the number of health check requests",
		},
	)

	QuoteLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_lookups_total",
			Help: "Total number of quote lookups by source and result",
		},
		[]string{"source", "result"},
	)
	QuoteProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_provider_duration_seconds",
			Help:    "Market-data provider call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	WideEventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wide_events_emitted_total",
			Help: "Total number of wide events emitted by outcome",
		},
		[]string{"outcome"},
	)
	WideEventSinkFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wide_event_sink_failures_total",
			Help: "Total number of wide-event sink write failures",
		},
	)

	SnapshotsArchivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_archived_total",
			Help: "Total number of quote snapshots archived by source",
		},
		[]string{"source"},
	)
)

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HealthCheckRequests)
	prometheus.MustRegister(QuoteLookupsTotal)
	prometheus.MustRegister(QuoteProviderDuration)
	prometheus.MustRegister(WideEventsEmittedTotal)
	prometheus.MustRegister(WideEventSinkFailuresTotal)
	prometheus.MustRegister(SnapshotsArchivedTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
