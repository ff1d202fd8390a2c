// Package usecase contains application services orchestrating providers,
// caches, and repositories.
package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/investor-api/internal/adapter/observability"
	"github.com/fairyhunter13/investor-api/internal/domain"
	"github.com/fairyhunter13/investor-api/internal/wideevent"
)

// QuoteService resolves quotes through the cache, falls back to the
// provider, and archives successful lookups.
type QuoteService struct {
	Provider  domain.QuoteProvider
	Cache     domain.QuoteCache
	Snapshots domain.SnapshotRepository
}

// NewQuoteService constructs a QuoteService. Cache and Snapshots may be nil
// when the corresponding backend is not configured.
func NewQuoteService(p domain.QuoteProvider, c domain.QuoteCache, s domain.SnapshotRepository) QuoteService {
	return QuoteService{Provider: p, Cache: c, Snapshots: s}
}

// Get returns the quote for a symbol. The active wide event is annotated
// with the lookup's business context: symbol, source, provider latency, and
// the quote itself.
func (s QuoteService) Get(ctx domain.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	wideevent.Annotate(ctx, "symbol", symbol)

	if s.Cache != nil {
		if q, ok := s.Cache.Get(ctx, symbol); ok {
			observability.QuoteLookupsTotal.WithLabelValues("cache", "hit").Inc()
			wideevent.AnnotateAll(ctx, map[string]any{
				"quote_source": "cache",
				"quote": map[string]any{
					"price":      q.Price,
					"currency":   q.Currency,
					"market_cap": q.MarketCap,
				},
			})
			return q, nil
		}
	}

	start := time.Now()
	q, err := s.Provider.Quote(ctx, symbol)
	providerLatency := time.Since(start)
	observability.QuoteProviderDuration.WithLabelValues("quote").Observe(providerLatency.Seconds())
	wideevent.AnnotateAll(ctx, map[string]any{
		"quote_source":        "provider",
		"provider_latency_ms": float64(providerLatency) / float64(time.Millisecond),
	})
	if err != nil {
		observability.QuoteLookupsTotal.WithLabelValues("provider", "error").Inc()
		return domain.Quote{}, err
	}
	observability.QuoteLookupsTotal.WithLabelValues("provider", "ok").Inc()
	wideevent.Annotate(ctx, "quote", map[string]any{
		"price":      q.Price,
		"currency":   q.Currency,
		"market_cap": q.MarketCap,
	})

	if s.Cache != nil {
		s.Cache.Put(ctx, q)
	}
	s.archiveAsync(ctx, q, domain.SnapshotSourceRequest)
	return q, nil
}

// History returns candles for the symbol over period/interval.
func (s QuoteService) History(ctx domain.Context, symbol, period, interval string) ([]domain.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	start := time.Now()
	candles, err := s.Provider.History(ctx, symbol, period, interval)
	providerLatency := time.Since(start)
	observability.QuoteProviderDuration.WithLabelValues("history").Observe(providerLatency.Seconds())
	wideevent.AnnotateAll(ctx, map[string]any{
		"symbol":              symbol,
		"period":              period,
		"interval":            interval,
		"provider_latency_ms": float64(providerLatency) / float64(time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	wideevent.Annotate(ctx, "candle_count", len(candles))
	return candles, nil
}

// archiveAsync stores a snapshot without blocking or failing the request
// path. The archive context is detached so a finished request does not
// cancel the insert.
func (s QuoteService) archiveAsync(ctx domain.Context, q domain.Quote, source string) {
	if s.Snapshots == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		snap := domain.Snapshot{
			Symbol:     q.Symbol,
			Price:      q.Price,
			MarketCap:  q.MarketCap,
			Source:     source,
			CapturedAt: q.AsOf,
		}
		if _, err := s.Snapshots.Insert(ctx, snap); err != nil {
			slog.Warn("snapshot archive failed",
				slog.String("symbol", q.Symbol),
				slog.Any("error", err))
			return
		}
		observability.SnapshotsArchivedTotal.WithLabelValues(source).Inc()
	}()
}
