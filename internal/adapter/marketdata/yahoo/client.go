// Package yahoo implements domain.QuoteProvider against a Yahoo-Finance-style
// JSON API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/investor-api/internal/config"
	"github.com/fairyhunter13/investor-api/internal/domain"
)

// Client fetches quotes and candles over HTTP.
type Client struct {
	cfg     config.Config
	baseURL string
	hc      *http.Client
}

// New constructs a provider client with tracing on the outbound transport.
func New(cfg config.Config) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "marketdata " + r.URL.Path
		}),
	)
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.MarketBaseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second, Transport: transport},
	}
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOffContext {
	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInterval, multiplier := c.cfg.GetProviderBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return backoff.WithContext(expo, ctx)
}

// doJSON issues one GET and decodes the body, retrying transient failures.
// Permanent failures (4xx mappings) abort the retry loop immediately.
func (c *Client) doJSON(ctx context.Context, rawURL string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.hc.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(fmt.Errorf("%w: provider call: %v", domain.ErrUpstreamTimeout, err))
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: provider returned 404", domain.ErrNotFound))
		case resp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(fmt.Errorf("%w: provider returned 429", domain.ErrUpstreamRateLimit))
		case resp.StatusCode >= 500:
			return fmt.Errorf("provider status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: provider status %d", domain.ErrInvalidArgument, resp.StatusCode))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode provider response: %v", domain.ErrInternal, err))
		}
		return nil
	}
	return backoff.RetryNotify(op, c.newBackoff(ctx), func(err error, next time.Duration) {
		slog.Warn("provider call retrying",
			slog.Any("error", err),
			slog.Duration("next_in", next))
	})
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			ShortName          string  `json:"shortName"`
			Currency           string  `json:"currency"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			MarketCap          int64   `json:"marketCap"`
			RegularMarketTime  int64   `json:"regularMarketTime"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"quoteResponse"`
}

// Quote returns the current quote for one symbol.
func (c *Client) Quote(ctx domain.Context, symbol string) (domain.Quote, error) {
	if symbol == "" {
		return domain.Quote{}, fmt.Errorf("%w: symbol must be provided", domain.ErrInvalidArgument)
	}
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(symbol))
	var qr quoteResponse
	if err := c.doJSON(ctx, u, &qr); err != nil {
		return domain.Quote{}, fmt.Errorf("op=yahoo.Quote: %w", err)
	}
	if len(qr.QuoteResponse.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("%w: no data returned for %s", domain.ErrNotFound, symbol)
	}
	res := qr.QuoteResponse.Result[0]
	asOf := time.Now().UTC()
	if res.RegularMarketTime > 0 {
		asOf = time.Unix(res.RegularMarketTime, 0).UTC()
	}
	return domain.Quote{
		Symbol:    strings.ToUpper(res.Symbol),
		ShortName: res.ShortName,
		Currency:  res.Currency,
		Price:     res.RegularMarketPrice,
		MarketCap: res.MarketCap,
		AsOf:      asOf,
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// History returns candles for the period/interval, oldest first, with the
// close-to-close return percentage precomputed.
func (c *Client) History(ctx domain.Context, symbol, period, interval string) ([]domain.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol must be provided", domain.ErrInvalidArgument)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(period), url.QueryEscape(interval))
	var cr chartResponse
	if err := c.doJSON(ctx, u, &cr); err != nil {
		return nil, fmt.Errorf("op=yahoo.History: %w", err)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no data returned for %s (period=%s, interval=%s)", domain.ErrNotFound, symbol, period, interval)
	}
	res := cr.Chart.Result[0]
	q := res.Indicators.Quote[0]
	candles := make([]domain.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(q.Close) {
			break
		}
		cdl := domain.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     q.Close[i],
		}
		if i < len(q.Open) {
			cdl.Open = q.Open[i]
		}
		if i < len(q.High) {
			cdl.High = q.High[i]
		}
		if i < len(q.Low) {
			cdl.Low = q.Low[i]
		}
		if i < len(q.Volume) {
			cdl.Volume = q.Volume[i]
		}
		if i > 0 && q.Close[i-1] != 0 {
			cdl.ReturnPct = (q.Close[i] - q.Close[i-1]) / q.Close[i-1] * 100.0
		}
		candles = append(candles, cdl)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no data returned for %s (period=%s, interval=%s)", domain.ErrNotFound, symbol, period, interval)
	}
	return candles, nil
}
