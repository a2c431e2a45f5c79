package oracle_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/oracle"
)

// vendorStub serves canned Alpha Vantage responses keyed by function.
func vendorStub(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn := r.URL.Query().Get("function")
		body, ok := responses[fn]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestQuote_ParsesGlobalQuote(t *testing.T) {
	srv := vendorStub(t, map[string]string{
		"GLOBAL_QUOTE": `{"Global Quote": {"01. symbol": "AAPL", "05. price": "187.4400"}}`,
	})
	defer srv.Close()

	av := oracle.NewAlphaVantage("test-key", srv.URL, time.Second)
	price, err := av.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("187.44")) {
		t.Errorf("expected 187.44, got %s", price)
	}
}

func TestQuote_EmptyPayload(t *testing.T) {
	// Alpha Vantage answers 200 with an empty object for unknown
	// symbols and exhausted rate limits.
	srv := vendorStub(t, map[string]string{"GLOBAL_QUOTE": `{"Global Quote": {}}`})
	defer srv.Close()

	av := oracle.NewAlphaVantage("test-key", srv.URL, time.Second)
	if _, err := av.Quote(context.Background(), "NOPE"); !errors.Is(err, oracle.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestQuote_MalformedPrice(t *testing.T) {
	srv := vendorStub(t, map[string]string{
		"GLOBAL_QUOTE": `{"Global Quote": {"05. price": "not-a-number"}}`,
	})
	defer srv.Close()

	av := oracle.NewAlphaVantage("test-key", srv.URL, time.Second)
	if _, err := av.Quote(context.Background(), "AAPL"); !errors.Is(err, oracle.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestQuote_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	av := oracle.NewAlphaVantage("test-key", srv.URL, time.Second)
	if _, err := av.Quote(context.Background(), "AAPL"); !errors.Is(err, oracle.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestDailySeries_SortedAscending(t *testing.T) {
	srv := vendorStub(t, map[string]string{
		"TIME_SERIES_DAILY": `{"Time Series (Daily)": {
			"2026-08-28": {"4. close": "187.44"},
			"2026-08-26": {"4. close": "182.10"},
			"2026-08-27": {"4. close": "185.02"}
		}}`,
	})
	defer srv.Close()

	av := oracle.NewAlphaVantage("test-key", srv.URL, time.Second)
	points, err := av.DailySeries(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i-1].Date >= points[i].Date {
			t.Errorf("series not ascending: %s before %s", points[i-1].Date, points[i].Date)
		}
	}
	if !points[0].Close.Equal(decimal.RequireFromString("182.10")) {
		t.Errorf("expected oldest close 182.10, got %s", points[0].Close)
	}
}

func TestDailySeries_Empty(t *testing.T) {
	srv := vendorStub(t, map[string]string{"TIME_SERIES_DAILY": `{}`})
	defer srv.Close()

	av := oracle.NewAlphaVantage("test-key", srv.URL, time.Second)
	if _, err := av.DailySeries(context.Background(), "NOPE"); !errors.Is(err, oracle.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}
