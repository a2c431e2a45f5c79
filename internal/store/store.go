// Package store defines the persistence interface for the simulator.
// Implementations include PostgreSQL (source of truth) and in-memory
// (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/model"
)

var (
	// ErrNotFound is returned when a row keyed as requested does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert violates a natural-key
	// uniqueness constraint (username, competition code, membership pair).
	ErrDuplicate = errors.New("store: duplicate")

	// ErrConflict is returned by ApplyTrade when a write-time guard fails:
	// the cash delta would drive the balance negative, or the holding
	// decrement is not covered by the held quantity.
	ErrConflict = errors.New("store: conflict")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// MemoryStore backs tests and API-key-free development.
type Store interface {
	// --- Users ---

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserAdmin(ctx context.Context, username string, isAdmin bool) error
	SetUserPassword(ctx context.Context, userID, passwordHash string) error

	// DeleteUser removes a user together with its account and that
	// account's holdings.
	DeleteUser(ctx context.Context, username string) error

	// --- Accounts ---

	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	SetStartOfDayValue(ctx context.Context, accountID string, value decimal.Decimal, date string) error

	// --- Holdings ---

	GetHolding(ctx context.Context, accountID, symbol string) (*model.Holding, error)
	ListHoldings(ctx context.Context, accountID string) ([]model.Holding, error)

	// ApplyTrade atomically applies one settlement: a cash delta plus a
	// holding upsert/decrement, deleting the holding if its quantity
	// reaches zero. Guards are re-validated inside the transaction and a
	// violation returns ErrConflict with no state change.
	ApplyTrade(ctx context.Context, t model.TradeApplication) error

	// --- Competitions ---

	CreateCompetition(ctx context.Context, c *model.Competition) error
	GetCompetitionByCode(ctx context.Context, code string) (*model.Competition, error)
	ListOpenCompetitions(ctx context.Context) ([]model.Competition, error)
	SetCompetitionOpen(ctx context.Context, code string, open bool) error
	AddCompetitionMember(ctx context.Context, m *model.CompetitionMember) error
	GetCompetitionMember(ctx context.Context, competitionID, userID string) (*model.CompetitionMember, error)
	ListCompetitionMembers(ctx context.Context, competitionID string) ([]model.CompetitionMember, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]model.CompetitionMember, error)
	GetCompetitionByID(ctx context.Context, id string) (*model.Competition, error)

	// --- Teams ---

	CreateTeam(ctx context.Context, t *model.Team) error
	GetTeam(ctx context.Context, id string) (*model.Team, error)
	GetTeamByName(ctx context.Context, name string) (*model.Team, error)
	AddTeamMember(ctx context.Context, m *model.TeamMember) error
	GetTeamMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
	AddCompetitionTeam(ctx context.Context, ct *model.CompetitionTeam) error
	GetCompetitionTeam(ctx context.Context, competitionID, teamID string) (*model.CompetitionTeam, error)
	ListCompetitionTeams(ctx context.Context, competitionID string) ([]model.CompetitionTeam, error)

	// --- Password reset ---

	CreatePasswordResetToken(ctx context.Context, t *model.PasswordResetToken) error
	GetPasswordResetToken(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)
	MarkPasswordResetTokenUsed(ctx context.Context, id string) error

	// --- Snapshot job marker ---

	// GetSnapshotDate returns the calendar date (YYYY-MM-DD) the daily
	// snapshot job last completed, or "" if it never ran.
	GetSnapshotDate(ctx context.Context) (string, error)
	SetSnapshotDate(ctx context.Context, date string) error
}
