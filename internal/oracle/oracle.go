// Package oracle provides current and historical security prices.
// The concrete vendor is Alpha Vantage; a Redis read-through cache and
// an in-memory fixture implementation share the same interface.
package oracle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when the vendor errors, times out, or
// returns no usable quote for a symbol.
var ErrPriceUnavailable = errors.New("oracle: price unavailable")

// PricePoint is one day's closing price for a chart series.
type PricePoint struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Close decimal.Decimal `json:"close"`
}

// Oracle answers price queries. Failures surface as wrapped
// ErrPriceUnavailable; callers decide whether to fail the request or
// degrade (valuation treats a failed lookup as a zero contribution).
type Oracle interface {
	// Quote returns the current price for a symbol.
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)

	// DailySeries returns daily closing prices in ascending date order.
	DailySeries(ctx context.Context, symbol string) ([]PricePoint, error)
}

// Static is a fixture oracle for tests and API-key-free development.
// Symbols not present in the map report ErrPriceUnavailable.
type Static struct {
	Prices map[string]decimal.Decimal
	Series map[string][]PricePoint
}

// NewStatic creates a Static oracle with the given symbol prices.
func NewStatic(prices map[string]decimal.Decimal) *Static {
	if prices == nil {
		prices = make(map[string]decimal.Decimal)
	}
	return &Static{Prices: prices, Series: make(map[string][]PricePoint)}
}

func (s *Static) Quote(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := s.Prices[symbol]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return p, nil
}

func (s *Static) DailySeries(_ context.Context, symbol string) ([]PricePoint, error) {
	series, ok := s.Series[symbol]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return series, nil
}
