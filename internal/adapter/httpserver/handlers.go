package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/investor-api/internal/adapter/observability"
	"github.com/fairyhunter13/investor-api/internal/config"
	"github.com/fairyhunter13/investor-api/internal/domain"
	"github.com/fairyhunter13/investor-api/internal/usecase"
	"github.com/fairyhunter13/investor-api/internal/wideevent"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Quotes     usecase.QuoteService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, quotes usecase.QuoteService, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Quotes: quotes, DBCheck: dbCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		observability.HealthCheckRequests.Inc()
		LoggerFrom(r).Info("health check endpoint called")
		writeJSON(w, http.StatusOK, map[string]any{"status": "Service is healthy"})
	}
}

// ReadyzHandler reports readiness of the configured backends.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := map[string]func(context.Context) error{
			"db":    s.DBCheck,
			"redis": s.RedisCheck,
		}
		failed := map[string]string{}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "checks": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

// SumHandler computes the arithmetic sum of the a and b query params.
func (s *Server) SumHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		a, errA := strconv.ParseFloat(q.Get("a"), 64)
		b, errB := strconv.ParseFloat(q.Get("b"), 64)
		if errA != nil || errB != nil {
			writeValidationError(w, domain.ErrInvalidArgument,
				map[string]string{"a": q.Get("a"), "b": q.Get("b")})
			return
		}
		sum := a + b
		LoggerFrom(r).Info("calculating sum", slog.Float64("a", a), slog.Float64("b", b))
		wideevent.AnnotateAll(r.Context(), map[string]any{
			"operands": map[string]any{"a": a, "b": b},
			"sum":      sum,
		})
		writeJSON(w, http.StatusOK, map[string]any{"sum": sum})
	}
}

// StockHandler returns the current quote for the requested symbol.
func (s *Server) StockHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")
		quote, err := s.Quotes.Get(r.Context(), symbol)
		if err != nil {
			LoggerFrom(r).Error("stock lookup failed", slog.String("symbol", symbol), slog.Any("error", err))
			writeError(w, r, err, map[string]string{"symbol": symbol})
			return
		}
		LoggerFrom(r).Info("fetched stock info",
			slog.String("symbol", quote.Symbol),
			slog.Float64("price", quote.Price))
		writeJSON(w, http.StatusOK, map[string]any{
			"symbol":       quote.Symbol,
			"shortName":    quote.ShortName,
			"currentPrice": quote.Price,
			"marketCap":    quote.MarketCap,
		})
	}
}

type historyParams struct {
	Period   string `validate:"required,oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y 10y max"`
	Interval string `validate:"required,oneof=1m 5m 15m 30m 1h 1d 1wk 1mo"`
}

// HistoryHandler returns historical candles for the requested symbol.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")
		params := historyParams{
			Period:   r.URL.Query().Get("period"),
			Interval: r.URL.Query().Get("interval"),
		}
		if params.Period == "" {
			params.Period = "1y"
		}
		if params.Interval == "" {
			params.Interval = "1d"
		}
		if err := getValidator().Struct(&params); err != nil {
			writeValidationError(w, domain.ErrInvalidArgument,
				map[string]string{"period": params.Period, "interval": params.Interval})
			return
		}
		candles, err := s.Quotes.History(r.Context(), symbol, params.Period, params.Interval)
		if err != nil {
			LoggerFrom(r).Error("history lookup failed", slog.String("symbol", symbol), slog.Any("error", err))
			writeError(w, r, err, map[string]string{"symbol": symbol})
			return
		}
		out := make([]map[string]any, 0, len(candles))
		for _, c := range candles {
			out = append(out, map[string]any{
				"timestamp":  c.Timestamp.Format(time.RFC3339),
				"open":       c.Open,
				"high":       c.High,
				"low":        c.Low,
				"close":      c.Close,
				"volume":     c.Volume,
				"return_pct": c.ReturnPct,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"symbol":   symbol,
			"period":   params.Period,
			"interval": params.Interval,
			"candles":  out,
		})
	}
}
