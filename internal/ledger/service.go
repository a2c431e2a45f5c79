// Package ledger implements the portfolio kernel: trade settlement,
// valuation, leaderboards, and the competition position-limit guard.
// All account flavors (user, competition member, team, competition
// team) settle through the same code paths against their own account.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/oracle"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// StartingCash is the baseline cash balance every new account opens
// with, and the baseline for percentage position limits.
var StartingCash = decimal.NewFromInt(100000)

// Service executes kernel operations against a store and a price
// oracle. A mutex serializes settlements in-process; the store's
// ApplyTrade transaction guards against races beyond a single instance.
type Service struct {
	store  store.Store
	oracle oracle.Oracle
	mu     sync.Mutex
}

// NewService creates a ledger service.
func NewService(st store.Store, o oracle.Oracle) *Service {
	return &Service{store: st, oracle: o}
}

// Store exposes the underlying store for callers that manage entities
// around the kernel (registration, joins, admin).
func (s *Service) Store() store.Store { return s.store }

// Oracle exposes the price oracle for quote and chart queries.
func (s *Service) Oracle() oracle.Oracle { return s.oracle }

// NewAccount builds a fresh account with the baseline cash balance and
// no holdings.
func NewAccount() *model.Account {
	return &model.Account{
		ID:              uuid.New().String(),
		Cash:            StartingCash,
		StartOfDayValue: decimal.Zero,
		CreatedAt:       time.Now().UTC(),
	}
}

// OpenAccount creates and persists a fresh baseline account.
func (s *Service) OpenAccount(ctx context.Context) (*model.Account, error) {
	a := NewAccount()
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
