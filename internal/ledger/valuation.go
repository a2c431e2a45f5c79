package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// Valuation is an account marked to market.
type Valuation struct {
	Cash      decimal.Decimal  `json:"cash_balance"`
	Positions []model.Position `json:"portfolio"`
	Total     decimal.Decimal  `json:"total_value"`
}

// Value computes cash plus the mark-to-market value of every holding.
// A failed price lookup contributes zero for that holding instead of
// failing the aggregate; the valuation itself never errors on oracle
// trouble.
func (s *Service) Value(ctx context.Context, accountID string) (*Valuation, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	holdings, err := s.store.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}

	total := account.Cash
	positions := make([]model.Position, 0, len(holdings))
	for _, h := range holdings {
		price, err := s.oracle.Quote(ctx, h.Symbol)
		if err != nil {
			slog.Warn("valuation price lookup failed", "symbol", h.Symbol, "err", err)
			price = decimal.Zero
		}
		value := price.Mul(decimal.NewFromInt(h.Quantity))
		total = total.Add(value)
		positions = append(positions, model.Position{
			Symbol:       h.Symbol,
			Quantity:     h.Quantity,
			BuyPrice:     h.BuyPrice,
			CurrentPrice: price,
			TotalValue:   value,
		})
	}

	return &Valuation{
		Cash:      account.Cash,
		Positions: positions,
		Total:     total,
	}, nil
}

// DailyPnL is today's gain or loss against the start-of-day baseline.
// An account that has never been snapshotted baselines at its current
// value, so its daily P&L reads zero.
func (s *Service) DailyPnL(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}

	v, err := s.Value(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	baseline := account.StartOfDayValue
	if account.SnapshotDate == "" {
		baseline = v.Total
	}
	return v.Total.Sub(baseline), nil
}
