package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/investor-api/internal/adapter/observability"
	"github.com/fairyhunter13/investor-api/internal/domain"
)

// Watchlist is the YAML document listing symbols to snapshot periodically.
type Watchlist struct {
	Symbols []string `yaml:"symbols"`
}

// LoadWatchlist reads and validates a watchlist YAML file.
func LoadWatchlist(path string) (Watchlist, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // Path comes from operator config.
	if err != nil {
		return Watchlist{}, fmt.Errorf("op=watchlist.load: %w", err)
	}
	var wl Watchlist
	if err := yaml.Unmarshal(raw, &wl); err != nil {
		return Watchlist{}, fmt.Errorf("op=watchlist.parse: %w", err)
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(wl.Symbols))
	for _, s := range wl.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return Watchlist{}, fmt.Errorf("%w: watchlist has no symbols", domain.ErrInvalidArgument)
	}
	return Watchlist{Symbols: out}, nil
}

// WatchlistService periodically quotes every watchlist symbol and archives
// the observations.
type WatchlistService struct {
	Provider  domain.QuoteProvider
	Snapshots domain.SnapshotRepository
	Symbols   []string
}

// NewWatchlistService constructs a WatchlistService.
func NewWatchlistService(p domain.QuoteProvider, s domain.SnapshotRepository, wl Watchlist) WatchlistService {
	return WatchlistService{Provider: p, Snapshots: s, Symbols: wl.Symbols}
}

// RunPeriodic snapshots the watchlist on the given interval until ctx ends.
// The first sweep runs immediately.
func (s WatchlistService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	s.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s WatchlistService) sweep(ctx context.Context) {
	for _, symbol := range s.Symbols {
		if ctx.Err() != nil {
			return
		}
		q, err := s.Provider.Quote(ctx, symbol)
		if err != nil {
			slog.Warn("watchlist quote failed",
				slog.String("symbol", symbol),
				slog.Any("error", err))
			continue
		}
		snap := domain.Snapshot{
			Symbol:     q.Symbol,
			Price:      q.Price,
			MarketCap:  q.MarketCap,
			Source:     domain.SnapshotSourceWatchlist,
			CapturedAt: q.AsOf,
		}
		if _, err := s.Snapshots.Insert(ctx, snap); err != nil {
			slog.Warn("watchlist snapshot archive failed",
				slog.String("symbol", symbol),
				slog.Any("error", err))
			continue
		}
		observability.SnapshotsArchivedTotal.WithLabelValues(domain.SnapshotSourceWatchlist).Inc()
	}
	slog.Debug("watchlist sweep complete", slog.Int("symbols", len(s.Symbols)))
}
