package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the Alpha Vantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage fetches quotes from the Alpha Vantage HTTP API.
// Lookups have a bounded timeout and are not retried; failures
// propagate immediately as wrapped ErrPriceUnavailable.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAlphaVantage creates a client. baseURL "" uses DefaultBaseURL;
// timeout 0 defaults to 10s.
func NewAlphaVantage(apiKey, baseURL string, timeout time.Duration) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *AlphaVantage) get(ctx context.Context, function, symbol string, out any) error {
	q := url.Values{}
	q.Set("function", function)
	q.Set("symbol", symbol)
	q.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: vendor status %d", ErrPriceUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrPriceUnavailable, err)
	}
	return nil
}

// Quote fetches the current price via the GLOBAL_QUOTE function.
func (a *AlphaVantage) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var payload struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := a.get(ctx, "GLOBAL_QUOTE", symbol, &payload); err != nil {
		return decimal.Zero, err
	}

	priceStr, ok := payload.GlobalQuote["05. price"]
	if !ok || priceStr == "" {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", ErrPriceUnavailable, symbol)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q for %s", ErrPriceUnavailable, priceStr, symbol)
	}
	return price, nil
}

// DailySeries fetches daily closes via TIME_SERIES_DAILY, sorted
// ascending by date.
func (a *AlphaVantage) DailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	var payload struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := a.get(ctx, "TIME_SERIES_DAILY", symbol, &payload); err != nil {
		return nil, err
	}
	if len(payload.Series) == 0 {
		return nil, fmt.Errorf("%w: no series for %s", ErrPriceUnavailable, symbol)
	}

	points := make([]PricePoint, 0, len(payload.Series))
	for date, day := range payload.Series {
		closeStr, ok := day["4. close"]
		if !ok {
			continue
		}
		close, err := decimal.NewFromString(closeStr)
		if err != nil {
			continue
		}
		points = append(points, PricePoint{Date: date, Close: close})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}
