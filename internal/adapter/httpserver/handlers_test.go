package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/investor-api/internal/config"
	"github.com/fairyhunter13/investor-api/internal/domain"
	"github.com/fairyhunter13/investor-api/internal/usecase"
)

type stubProvider struct {
	quote    domain.Quote
	quoteErr error
	candles  []domain.Candle
	histErr  error
}

func (s stubProvider) Quote(domain.Context, string) (domain.Quote, error) {
	return s.quote, s.quoteErr
}

func (s stubProvider) History(domain.Context, string, string, string) ([]domain.Candle, error) {
	return s.candles, s.histErr
}

func newTestServer(p domain.QuoteProvider) *Server {
	return NewServer(config.Config{AppEnv: "test"}, usecase.NewQuoteService(p, nil, nil), nil, nil)
}

func testRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.HealthHandler())
	r.Get("/readyz", s.ReadyzHandler())
	r.Get("/v1/calculate/sum", s.SumHandler())
	r.Get("/v1/stock/{symbol}", s.StockHandler())
	r.Get("/v1/stock/{symbol}/history", s.HistoryHandler())
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func Test_HealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "Service is healthy" {
		t.Fatalf("unexpected status %v", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func Test_ReadyzHandler_NoChecksIsReady(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func Test_ReadyzHandler_FailingCheck(t *testing.T) {
	srv := newTestServer(stubProvider{})
	srv.DBCheck = func(context.Context) error { return errors.New("connection refused") }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	testRouter(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	checks, ok := body["checks"].(map[string]any)
	if !ok || checks["db"] == nil {
		t.Fatalf("failing check must be reported: %v", body)
	}
}

func Test_SumHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calculate/sum?a=10&b=32.5", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["sum"].(float64); got != 42.5 {
		t.Fatalf("want 42.5, got %v", got)
	}
}

func Test_SumHandler_ZeroOperands(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calculate/sum?a=0&b=0", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("zero operands are valid, got %d", rec.Code)
	}
}

func Test_SumHandler_InvalidOperand(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calculate/sum?a=ten&b=2", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	apiErr := body["error"].(map[string]any)
	if apiErr["code"] != "INVALID_ARGUMENT" {
		t.Fatalf("unexpected error code %v", apiErr["code"])
	}
}

func Test_StockHandler(t *testing.T) {
	provider := stubProvider{quote: domain.Quote{
		Symbol:    "NVDA",
		ShortName: "NVIDIA Corporation",
		Currency:  "USD",
		Price:     123.45,
		MarketCap: 3000000000000,
		AsOf:      time.Now().UTC(),
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stock/NVDA", nil)
	testRouter(newTestServer(provider)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["symbol"] != "NVDA" || body["shortName"] != "NVIDIA Corporation" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["currentPrice"].(float64) != 123.45 {
		t.Fatalf("price mismatch: %v", body["currentPrice"])
	}
}

func Test_StockHandler_NotFound(t *testing.T) {
	provider := stubProvider{quoteErr: fmt.Errorf("%w: no quote for symbol", domain.ErrNotFound)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stock/INVALIDTICKER", nil)
	testRouter(newTestServer(provider)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
	apiErr := decodeBody(t, rec)["error"].(map[string]any)
	if apiErr["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected error code %v", apiErr["code"])
	}
	details := apiErr["details"].(map[string]any)
	if details["symbol"] != "INVALIDTICKER" {
		t.Fatalf("details must carry the symbol: %v", details)
	}
}

func Test_StockHandler_UpstreamTimeout(t *testing.T) {
	provider := stubProvider{quoteErr: fmt.Errorf("%w: context deadline exceeded", domain.ErrUpstreamTimeout)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stock/NVDA", nil)
	testRouter(newTestServer(provider)).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	apiErr := decodeBody(t, rec)["error"].(map[string]any)
	if apiErr["code"] != "UPSTREAM_TIMEOUT" {
		t.Fatalf("unexpected error code %v", apiErr["code"])
	}
}

func Test_HistoryHandler_Defaults(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	provider := stubProvider{candles: []domain.Candle{
		{Timestamp: base, Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Timestamp: base.AddDate(0, 0, 1), Open: 10, High: 13, Low: 10, Close: 12, Volume: 200, ReturnPct: 20},
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stock/NVDA/history", nil)
	testRouter(newTestServer(provider)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["period"] != "1y" || body["interval"] != "1d" {
		t.Fatalf("defaults not applied: %v", body)
	}
	candles := body["candles"].([]any)
	if len(candles) != 2 {
		t.Fatalf("want 2 candles, got %d", len(candles))
	}
	second := candles[1].(map[string]any)
	if second["return_pct"].(float64) != 20 {
		t.Fatalf("return_pct mismatch: %v", second)
	}
}

func Test_HistoryHandler_InvalidPeriod(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stock/NVDA/history?period=7y", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	apiErr := decodeBody(t, rec)["error"].(map[string]any)
	if apiErr["code"] != "INVALID_ARGUMENT" {
		t.Fatalf("unexpected error code %v", apiErr["code"])
	}
}

func Test_HistoryHandler_InvalidInterval(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stock/NVDA/history?interval=2h", nil)
	testRouter(newTestServer(stubProvider{})).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}
