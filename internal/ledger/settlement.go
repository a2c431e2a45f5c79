package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/metrics"
	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// TradeResult reports a settled trade back to the caller.
type TradeResult struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	// Amount is the cash moved: cost for a buy, proceeds for a sell.
	Amount decimal.Decimal `json:"amount"`
	Cash   decimal.Decimal `json:"cash_balance"`
}

// Buy purchases quantity shares of symbol for the account at the
// oracle's current price. When comp carries a position-limit policy the
// guard runs before settlement. The whole mutation is atomic: on any
// error, cash and holdings are unchanged.
func (s *Service) Buy(ctx context.Context, accountID, sym string, quantity int64, comp *model.Competition) (*TradeResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	price, err := s.oracle.Quote(ctx, sym)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("price_unavailable").Inc()
		return nil, err
	}

	cost := price.Mul(decimal.NewFromInt(quantity))
	if account.Cash.LessThan(cost) {
		metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost, account.Cash)
	}

	if comp != nil && comp.PositionLimit != "" {
		if err := s.checkPositionLimit(ctx, accountID, sym, quantity, price, comp); err != nil {
			return nil, err
		}
	}

	err = s.store.ApplyTrade(ctx, model.TradeApplication{
		AccountID:     accountID,
		CashDelta:     cost.Neg(),
		Symbol:        sym,
		QuantityDelta: quantity,
		BuyPrice:      price,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	metrics.TradeLatency.WithLabelValues("buy").Observe(time.Since(start).Seconds())
	return &TradeResult{
		Symbol:   sym,
		Quantity: quantity,
		Price:    price,
		Amount:   cost,
		Cash:     account.Cash.Sub(cost),
	}, nil
}

// Sell liquidates quantity shares of symbol from the account at the
// oracle's current price. Selling more than held is rejected whole; no
// partial fills. A holding that reaches zero quantity is deleted.
func (s *Service) Sell(ctx context.Context, accountID, sym string, quantity int64) (*TradeResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	holding, err := s.store.GetHolding(ctx, accountID, sym)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.TradeRejections.WithLabelValues("holding_not_found").Inc()
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}
	if holding.Quantity < quantity {
		metrics.TradeRejections.WithLabelValues("insufficient_shares").Inc()
		return nil, fmt.Errorf("%w: have %d, selling %d", ErrInsufficientShares, holding.Quantity, quantity)
	}

	price, err := s.oracle.Quote(ctx, sym)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("price_unavailable").Inc()
		return nil, err
	}

	proceeds := price.Mul(decimal.NewFromInt(quantity))
	err = s.store.ApplyTrade(ctx, model.TradeApplication{
		AccountID:     accountID,
		CashDelta:     proceeds,
		Symbol:        sym,
		QuantityDelta: -quantity,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrInsufficientShares
		}
		return nil, err
	}

	metrics.TradeLatency.WithLabelValues("sell").Observe(time.Since(start).Seconds())
	return &TradeResult{
		Symbol:   sym,
		Quantity: quantity,
		Price:    price,
		Amount:   proceeds,
		Cash:     account.Cash.Add(proceeds),
	}, nil
}
