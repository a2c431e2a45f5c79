package ledger

import "errors"

// Sentinel errors for the ledger kernel.
// The API layer maps these to HTTP status codes.
var (
	ErrAccountNotFound       = errors.New("ledger: account not found")
	ErrCompetitionNotFound   = errors.New("ledger: competition not found")
	ErrTeamNotFound          = errors.New("ledger: team not found")
	ErrHoldingNotFound       = errors.New("ledger: no holding for symbol")
	ErrInsufficientFunds     = errors.New("ledger: insufficient funds")
	ErrInsufficientShares    = errors.New("ledger: not enough shares to sell")
	ErrPositionLimitExceeded = errors.New("ledger: position limit exceeded")
	ErrInvalidQuantity       = errors.New("ledger: quantity must be a positive integer")

	// ErrBadLimit marks an unparsable competition position-limit policy.
	// A bad policy fails closed: every buy in that competition is rejected.
	ErrBadLimit = errors.New("ledger: unparsable position limit")
)
