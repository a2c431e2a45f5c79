package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timbro-mach/stock-simulator-backend/internal/symbol"
)

// handleStock returns the current price for a symbol.
// GET /stock/{symbol}
func (s *Service) handleStock(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Normalize(chi.URLParam(r, "symbol"))
	if err != nil {
		writeKernelError(w, err)
		return
	}

	price, err := s.ledger.Oracle().Quote(r.Context(), sym)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": sym,
		"price":  price,
	})
}

// handleStockChart returns the daily close series for a symbol, oldest
// first. GET /stock_chart/{symbol}
func (s *Service) handleStockChart(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Normalize(chi.URLParam(r, "symbol"))
	if err != nil {
		writeKernelError(w, err)
		return
	}

	series, err := s.ledger.Oracle().DailySeries(r.Context(), sym)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": sym,
		"series": series,
	})
}
