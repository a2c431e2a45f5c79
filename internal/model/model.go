// Package model defines the core domain types shared across the simulator.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a ledger account: a cash balance plus a set of holdings.
// Every trading entity (user, competition membership, team,
// competition-team) owns exactly one account, so settlement, valuation,
// and leaderboards are written once against this type instead of four
// parallel copies.
type Account struct {
	ID              string          `json:"id" db:"id"`
	Cash            decimal.Decimal `json:"cash" db:"cash"`
	StartOfDayValue decimal.Decimal `json:"start_of_day_value" db:"start_of_day_value"`
	// SnapshotDate is the calendar date (YYYY-MM-DD) the start-of-day
	// value was last recorded. Empty means never snapshotted.
	SnapshotDate string    `json:"snapshot_date" db:"snapshot_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Holding is a quantity of one symbol owned by one account.
// Quantity is always > 0 while the row exists; a holding that reaches
// zero quantity is deleted. BuyPrice is the price at first purchase and
// is intentionally not recomputed when later buys merge into the row.
type Holding struct {
	ID        string          `json:"id" db:"id"`
	AccountID string          `json:"account_id" db:"account_id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	BuyPrice  decimal.Decimal `json:"buy_price" db:"buy_price"`
}

// User is a registered participant with a global trading account.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	AccountID    string    `json:"account_id" db:"account_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Competition is a grouping of accounts compared via a leaderboard.
// Code is the public identifier and also the join token. PositionLimit
// is empty (no limit), "NN%" (percent of the starting cash baseline),
// or an absolute currency amount.
type Competition struct {
	ID            string     `json:"id" db:"id"`
	Code          string     `json:"code" db:"code"`
	Name          string     `json:"name" db:"name"`
	CreatedBy     string     `json:"created_by" db:"created_by"`
	StartAt       *time.Time `json:"start_at,omitempty" db:"start_at"`
	EndAt         *time.Time `json:"end_at,omitempty" db:"end_at"`
	PositionLimit string     `json:"position_limit,omitempty" db:"position_limit"`
	Open          bool       `json:"open" db:"open"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// CompetitionMember links a user to a competition with its own account.
// (CompetitionID, UserID) is unique; re-joining is idempotent.
type CompetitionMember struct {
	ID            string    `json:"id" db:"id"`
	CompetitionID string    `json:"competition_id" db:"competition_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Team trades like a user: it has its own account shared by its members.
type Team struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	AccountID string    `json:"account_id" db:"account_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeamMember links a user to a team. (TeamID, UserID) is unique.
// Members have no account of their own at team scope; trades hit the
// team's account.
type TeamMember struct {
	ID        string    `json:"id" db:"id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CompetitionTeam enters a team into a competition with a separate
// account. (CompetitionID, TeamID) is unique.
type CompetitionTeam struct {
	ID            string    `json:"id" db:"id"`
	CompetitionID string    `json:"competition_id" db:"competition_id"`
	TeamID        string    `json:"team_id" db:"team_id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PasswordResetToken is a single-use, time-limited reset credential.
// Only the SHA-256 of the raw token is stored.
type PasswordResetToken struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// TradeApplication is the single atomic settlement write applied by the
// store: a cash delta on one account together with one holding
// mutation. The store re-validates the guards (cash cannot go
// negative, a decrement must be covered by the held quantity) inside
// its transaction and rejects with ErrConflict, so two concurrent
// trades against the same account cannot double-spend.
type TradeApplication struct {
	AccountID string
	CashDelta decimal.Decimal
	Symbol    string
	// QuantityDelta is positive for buys, negative for sells.
	QuantityDelta int64
	// BuyPrice is recorded only when the trade creates a new holding.
	BuyPrice decimal.Decimal
}

// Position is one holding marked to market for account snapshots.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

// LeaderboardEntry is one ranked participant in a competition.
type LeaderboardEntry struct {
	DisplayName string          `json:"display_name"`
	TotalValue  decimal.Decimal `json:"total_value"`
}
