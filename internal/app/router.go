// Package app wires middleware, routes, and readiness checks.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/investor-api/internal/adapter/httpserver"
	"github.com/fairyhunter13/investor-api/internal/adapter/observability"
	"github.com/fairyhunter13/investor-api/internal/config"
	"github.com/fairyhunter13/investor-api/internal/wideevent"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// NewRecorder builds the wide-event recorder with metrics hooks attached.
func NewRecorder(cfg config.Config, sink wideevent.Sink) *wideevent.Recorder {
	return &wideevent.Recorder{
		Sink: sink,
		Identity: wideevent.Identity{
			Service:      cfg.ServiceName,
			Version:      cfg.ServiceVersion,
			DeploymentID: cfg.DeploymentID,
			Region:       cfg.Region,
		},
		OnEmit: func(outcome wideevent.Outcome) {
			observability.WideEventsEmittedTotal.WithLabelValues(string(outcome)).Inc()
		},
		OnSinkError: func() {
			observability.WideEventSinkFailuresTotal.Inc()
		},
	}
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
// The wide-event recorder sits inside Recoverer so a panicking handler is
// recorded (and re-raised) before the 500 response is written, and inside
// RequestID so the recorder reuses the request id already on the headers.
func BuildRouter(cfg config.Config, srv *httpserver.Server, rec *wideevent.Recorder) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(httpserver.TraceMiddleware)
	r.Use(rec.Middleware)
	r.Use(observability.HTTPMetricsMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limit the market-data endpoints
	r.Group(func(qr chi.Router) {
		qr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		qr.Get("/v1/calculate/sum", srv.SumHandler())
		qr.Get("/v1/stock/{symbol}", srv.StockHandler())
		qr.Get("/v1/stock/{symbol}/history", srv.HistoryHandler())
	})

	// Health and metrics
	r.Get("/health", srv.HealthHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
