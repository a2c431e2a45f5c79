package api

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
	"github.com/timbro-mach/stock-simulator-backend/internal/symbol"
)

type tradeRequest struct {
	Username string `json:"username"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// handleBuy buys into the user's global account.
// POST /buy
func (s *Service) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Buy(r.Context(), user.AccountID, sym, req.Quantity, nil)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("user", "buy", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "purchase successful",
		"symbol":       res.Symbol,
		"quantity":     res.Quantity,
		"price":        res.Price,
		"total_cost":   res.Amount,
		"cash_balance": res.Cash,
	})
}

// handleSell sells from the user's global account.
// POST /sell
func (s *Service) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Sell(r.Context(), user.AccountID, sym, req.Quantity)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("user", "sell", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "sale successful",
		"symbol":         res.Symbol,
		"quantity":       res.Quantity,
		"price":          res.Price,
		"total_proceeds": res.Amount,
		"cash_balance":   res.Cash,
	})
}

// competitionSnapshot is one competition account inside the user
// snapshot.
type competitionSnapshot struct {
	Code string `json:"code"`
	Name string `json:"name"`
	ledger.Valuation
	DailyPnL decimal.Decimal `json:"daily_pnl"`
}

// handleUser returns the user's full state: global account valuation,
// daily P&L, and every competition account.
// GET /user?username=...
func (s *Service) handleUser(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, "username is required", http.StatusBadRequest)
		return
	}

	user, err := s.userByName(r.Context(), username)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	valuation, err := s.ledger.Value(r.Context(), user.AccountID)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	pnl, err := s.ledger.DailyPnL(r.Context(), user.AccountID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	memberships, err := s.store.ListMembershipsByUser(r.Context(), user.ID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	competitions := make([]competitionSnapshot, 0, len(memberships))
	for _, m := range memberships {
		comp, err := s.store.GetCompetitionByID(r.Context(), m.CompetitionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			writeKernelError(w, err)
			return
		}
		cv, err := s.ledger.Value(r.Context(), m.AccountID)
		if err != nil {
			writeKernelError(w, err)
			return
		}
		cpnl, err := s.ledger.DailyPnL(r.Context(), m.AccountID)
		if err != nil {
			writeKernelError(w, err)
			return
		}
		competitions = append(competitions, competitionSnapshot{
			Code:      comp.Code,
			Name:      comp.Name,
			Valuation: *cv,
			DailyPnL:  cpnl,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":     user.Username,
		"is_admin":     user.IsAdmin,
		"cash_balance": valuation.Cash,
		"portfolio":    valuation.Positions,
		"total_value":  valuation.Total,
		"daily_pnl":    pnl,
		"competitions": competitions,
	})
}
