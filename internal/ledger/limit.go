package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/metrics"
	"github.com/timbro-mach/stock-simulator-backend/internal/model"
)

// ParseLimit parses a competition position-limit policy string.
// "" means no limit (nil). "NN%" is a percentage of the starting
// cash baseline. Anything else must parse as an absolute currency
// amount. An unparsable policy returns ErrBadLimit: the caller fails
// closed and rejects all buys in that competition.
func ParseLimit(policy string) (*decimal.Decimal, error) {
	policy = strings.TrimSpace(policy)
	if policy == "" {
		return nil, nil
	}

	if pct, ok := strings.CutSuffix(policy, "%"); ok {
		p, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil || p.IsNegative() {
			return nil, fmt.Errorf("%w: %q", ErrBadLimit, policy)
		}
		limit := StartingCash.Mul(p).Div(decimal.NewFromInt(100))
		return &limit, nil
	}

	limit, err := decimal.NewFromString(policy)
	if err != nil || limit.IsNegative() {
		return nil, fmt.Errorf("%w: %q", ErrBadLimit, policy)
	}
	return &limit, nil
}

// checkPositionLimit enforces a competition's limit policy against a
// prospective buy. Exposure counts the account's current holdings
// marked to market — the symbol being bought at the trade's own price,
// other symbols at the oracle price falling back to the stored buy
// price when the lookup fails — plus the incremental buy value.
func (s *Service) checkPositionLimit(ctx context.Context, accountID, sym string, quantity int64, price decimal.Decimal, comp *model.Competition) error {
	limit, err := ParseLimit(comp.PositionLimit)
	if err != nil {
		// Fail closed: a misconfigured limit blocks every buy.
		return err
	}
	if limit == nil {
		return nil
	}

	holdings, err := s.store.ListHoldings(ctx, accountID)
	if err != nil {
		return err
	}

	exposure := price.Mul(decimal.NewFromInt(quantity))
	for _, h := range holdings {
		p := price
		if h.Symbol != sym {
			p, err = s.oracle.Quote(ctx, h.Symbol)
			if err != nil {
				p = h.BuyPrice
			}
		}
		exposure = exposure.Add(p.Mul(decimal.NewFromInt(h.Quantity)))
	}

	if exposure.GreaterThan(*limit) {
		metrics.PositionLimitRejections.Inc()
		return fmt.Errorf("%w: exposure %s exceeds limit %s", ErrPositionLimitExceeded, exposure, limit)
	}
	return nil
}
