// Package domain holds core entities, error taxonomy, and ports.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrInternal          = errors.New("internal error")
)

// Quote is a point-in-time market quote for one symbol.
type Quote struct {
	Symbol    string
	ShortName string
	Currency  string
	Price     float64
	MarketCap int64
	AsOf      time.Time
}

// Candle is one bar of historical price data. ReturnPct is the close-to-close
// change versus the previous candle, in percent; zero for the first candle.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	ReturnPct float64
}

// Snapshot is an archived quote observation.
type Snapshot struct {
	ID         string
	Symbol     string
	Price      float64
	MarketCap  int64
	Source     string
	CapturedAt time.Time
}

// Snapshot sources
const (
	SnapshotSourceRequest   = "request"
	SnapshotSourceWatchlist = "watchlist"
)

// Ports

// QuoteProvider fetches quotes and historical candles from a market-data backend.
type QuoteProvider interface {
	Quote(ctx Context, symbol string) (Quote, error)
	History(ctx Context, symbol, period, interval string) ([]Candle, error)
}

// QuoteCache caches quotes by symbol for a bounded TTL.
type QuoteCache interface {
	Get(ctx Context, symbol string) (Quote, bool)
	Put(ctx Context, q Quote)
}

// SnapshotRepository archives quote observations.
type SnapshotRepository interface {
	Insert(ctx Context, s Snapshot) (string, error)
	ListBySymbol(ctx Context, symbol string, limit int) ([]Snapshot, error)
	Count(ctx Context) (int64, error)
}

// Context is an alias to context.Context to keep port signatures compact.
type Context = context.Context
