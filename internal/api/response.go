package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/oracle"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
	"github.com/timbro-mach/stock-simulator-backend/internal/symbol"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeKernelError maps kernel and store sentinels to HTTP statuses and
// writes the error message.
func writeKernelError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrCompetitionNotFound),
		errors.Is(err, ledger.ErrTeamNotFound),
		errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrHoldingNotFound),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, symbol.ErrInvalidSymbol):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrPositionLimitExceeded),
		errors.Is(err, ledger.ErrBadLimit),
		errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, oracle.ErrPriceUnavailable):
		status = http.StatusBadGateway
	}
	writeError(w, err.Error(), status)
}

// decodeJSON parses the request body as JSON into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
