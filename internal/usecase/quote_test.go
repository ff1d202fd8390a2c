package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/investor-api/internal/domain"
)

type fakeProvider struct {
	mu       sync.Mutex
	quote    domain.Quote
	quoteErr error
	candles  []domain.Candle
	histErr  error
	calls    int
}

func (f *fakeProvider) Quote(_ domain.Context, symbol string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.quoteErr != nil {
		return domain.Quote{}, f.quoteErr
	}
	q := f.quote
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

func (f *fakeProvider) History(_ domain.Context, _, _, _ string) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.candles, f.histErr
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Quote
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string]domain.Quote{}} }

func (f *fakeCache) Get(_ domain.Context, symbol string) (domain.Quote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.entries[symbol]
	return q, ok
}

func (f *fakeCache) Put(_ domain.Context, q domain.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[q.Symbol] = q
}

type fakeSnapshots struct {
	mu       sync.Mutex
	inserted []domain.Snapshot
	done     chan struct{}
}

func newFakeSnapshots(expect int) *fakeSnapshots {
	f := &fakeSnapshots{done: make(chan struct{}, expect)}
	return f
}

func (f *fakeSnapshots) Insert(_ domain.Context, s domain.Snapshot) (string, error) {
	f.mu.Lock()
	f.inserted = append(f.inserted, s)
	f.mu.Unlock()
	f.done <- struct{}{}
	return "id-1", nil
}

func (f *fakeSnapshots) ListBySymbol(domain.Context, string, int) ([]domain.Snapshot, error) {
	return nil, nil
}

func (f *fakeSnapshots) Count(domain.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.inserted)), nil
}

func (f *fakeSnapshots) waitOne(t *testing.T) domain.Snapshot {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot insert")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserted[len(f.inserted)-1]
}

func Test_QuoteService_Get_ProviderPath(t *testing.T) {
	provider := &fakeProvider{quote: domain.Quote{Symbol: "NVDA", Price: 100, AsOf: time.Now().UTC()}}
	cache := newFakeCache()
	snaps := newFakeSnapshots(1)
	svc := NewQuoteService(provider, cache, snaps)

	q, err := svc.Get(context.Background(), "nvda")
	require.NoError(t, err)
	require.Equal(t, "NVDA", q.Symbol)
	require.Equal(t, 1, provider.callCount())

	// Quote is now cached.
	cached, ok := cache.Get(context.Background(), "NVDA")
	require.True(t, ok)
	require.Equal(t, q, cached)

	// And archived asynchronously.
	snap := snaps.waitOne(t)
	require.Equal(t, "NVDA", snap.Symbol)
	require.Equal(t, domain.SnapshotSourceRequest, snap.Source)
}

func Test_QuoteService_Get_CacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	cache := newFakeCache()
	cache.Put(context.Background(), domain.Quote{Symbol: "NVDA", Price: 99})
	svc := NewQuoteService(provider, cache, nil)

	q, err := svc.Get(context.Background(), "NVDA")
	require.NoError(t, err)
	require.Equal(t, 99.0, q.Price)
	require.Equal(t, 0, provider.callCount())
}

func Test_QuoteService_Get_ProviderError(t *testing.T) {
	provider := &fakeProvider{quoteErr: fmt.Errorf("%w: no data", domain.ErrNotFound)}
	svc := NewQuoteService(provider, nil, nil)

	_, err := svc.Get(context.Background(), "INVALIDTICKER")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func Test_QuoteService_Get_NoCacheNoSnapshots(t *testing.T) {
	provider := &fakeProvider{quote: domain.Quote{Symbol: "NVDA", Price: 100}}
	svc := NewQuoteService(provider, nil, nil)

	q, err := svc.Get(context.Background(), " nvda ")
	require.NoError(t, err)
	require.Equal(t, "NVDA", q.Symbol)
}

func Test_QuoteService_History(t *testing.T) {
	provider := &fakeProvider{candles: []domain.Candle{{Close: 10}, {Close: 12, ReturnPct: 20}}}
	svc := NewQuoteService(provider, nil, nil)

	candles, err := svc.History(context.Background(), "NVDA", "1y", "1d")
	require.NoError(t, err)
	require.Len(t, candles, 2)
}

func Test_QuoteService_History_Error(t *testing.T) {
	provider := &fakeProvider{histErr: fmt.Errorf("%w: boom", domain.ErrUpstreamTimeout)}
	svc := NewQuoteService(provider, nil, nil)

	_, err := svc.History(context.Background(), "NVDA", "1y", "1d")
	require.True(t, errors.Is(err, domain.ErrUpstreamTimeout))
}
