package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Schema: see schema.sql at the repository root.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// mapErr translates pgx errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_admin, account_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.AccountID, u.CreatedAt,
	)
	return mapErr(err)
}

const userColumns = `id, username, COALESCE(email, ''), password_hash, is_admin, account_id, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.AccountID, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.AccountID, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) SetUserAdmin(ctx context.Context, username string, isAdmin bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_admin = $2 WHERE username = $1`, username, isAdmin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, username string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var userID, accountID string
	err = tx.QueryRow(ctx,
		`SELECT id, account_id FROM users WHERE username = $1`, username).
		Scan(&userID, &accountID)
	if err != nil {
		return mapErr(err)
	}

	// Competition accounts owned through memberships go first; the
	// membership rows cascade from their accounts, holdings cascade
	// from every account (see schema.sql).
	if _, err := tx.Exec(ctx,
		`DELETE FROM accounts WHERE id IN
		 (SELECT account_id FROM competition_members WHERE user_id = $1)`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Accounts ---

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, cash, start_of_day_value, snapshot_date, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5)`,
		a.ID, a.Cash.String(), a.StartOfDayValue.String(), a.SnapshotDate, a.CreatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	var cash, sodv string

	err := s.pool.QueryRow(ctx,
		`SELECT id, cash::TEXT, start_of_day_value::TEXT, snapshot_date, created_at
		 FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &cash, &sodv, &a.SnapshotDate, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	a.Cash, _ = decimal.NewFromString(cash)
	a.StartOfDayValue, _ = decimal.NewFromString(sodv)
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cash::TEXT, start_of_day_value::TEXT, snapshot_date, created_at
		 FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var cash, sodv string
		if err := rows.Scan(&a.ID, &cash, &sodv, &a.SnapshotDate, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Cash, _ = decimal.NewFromString(cash)
		a.StartOfDayValue, _ = decimal.NewFromString(sodv)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) SetStartOfDayValue(ctx context.Context, accountID string, value decimal.Decimal, date string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET start_of_day_value = $2::NUMERIC, snapshot_date = $3 WHERE id = $1`,
		accountID, value.String(), date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// --- Holdings ---

func (s *PostgresStore) GetHolding(ctx context.Context, accountID, symbol string) (*model.Holding, error) {
	var h model.Holding
	var buyPrice string

	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, symbol, quantity, buy_price::TEXT
		 FROM holdings WHERE account_id = $1 AND symbol = $2`, accountID, symbol).
		Scan(&h.ID, &h.AccountID, &h.Symbol, &h.Quantity, &buyPrice)
	if err != nil {
		return nil, mapErr(err)
	}

	h.BuyPrice, _ = decimal.NewFromString(buyPrice)
	return &h, nil
}

func (s *PostgresStore) ListHoldings(ctx context.Context, accountID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, symbol, quantity, buy_price::TEXT
		 FROM holdings WHERE account_id = $1 ORDER BY symbol`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var buyPrice string
		if err := rows.Scan(&h.ID, &h.AccountID, &h.Symbol, &h.Quantity, &buyPrice); err != nil {
			return nil, err
		}
		h.BuyPrice, _ = decimal.NewFromString(buyPrice)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ApplyTrade runs the settlement as one transaction with the account row
// locked, so concurrent trades against the same account serialize at the
// database and the guards hold under contention.
func (s *PostgresStore) ApplyTrade(ctx context.Context, t model.TradeApplication) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var cash string
	err = tx.QueryRow(ctx,
		`SELECT cash::TEXT FROM accounts WHERE id = $1 FOR UPDATE`, t.AccountID).
		Scan(&cash)
	if err != nil {
		return mapErr(err)
	}

	current, _ := decimal.NewFromString(cash)
	newCash := current.Add(t.CashDelta)
	if newCash.IsNegative() {
		return fmt.Errorf("account %s cash would go negative: %w", t.AccountID, ErrConflict)
	}

	var holdingID string
	var quantity int64
	err = tx.QueryRow(ctx,
		`SELECT id, quantity FROM holdings WHERE account_id = $1 AND symbol = $2 FOR UPDATE`,
		t.AccountID, t.Symbol).
		Scan(&holdingID, &quantity)
	holdingExists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if t.QuantityDelta < 0 && (!holdingExists || quantity < -t.QuantityDelta) {
		return fmt.Errorf("holding %s/%s: %w", t.AccountID, t.Symbol, ErrConflict)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET cash = $2::NUMERIC WHERE id = $1`,
		t.AccountID, newCash.String()); err != nil {
		return err
	}

	switch {
	case !holdingExists:
		if _, err := tx.Exec(ctx,
			`INSERT INTO holdings (id, account_id, symbol, quantity, buy_price)
			 VALUES (gen_random_uuid(), $1, $2, $3, $4::NUMERIC)`,
			t.AccountID, t.Symbol, t.QuantityDelta, t.BuyPrice.String()); err != nil {
			return mapErr(err)
		}
	case quantity+t.QuantityDelta == 0:
		if _, err := tx.Exec(ctx,
			`DELETE FROM holdings WHERE id = $1`, holdingID); err != nil {
			return err
		}
	default:
		if _, err := tx.Exec(ctx,
			`UPDATE holdings SET quantity = quantity + $2 WHERE id = $1`,
			holdingID, t.QuantityDelta); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// --- Competitions ---

func (s *PostgresStore) CreateCompetition(ctx context.Context, c *model.Competition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO competitions (id, code, name, created_by, start_at, end_at, position_limit, open, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Code, c.Name, c.CreatedBy, c.StartAt, c.EndAt, c.PositionLimit, c.Open, c.CreatedAt,
	)
	return mapErr(err)
}

const competitionColumns = `id, code, COALESCE(name, ''), created_by, start_at, end_at, COALESCE(position_limit, ''), open, created_at`

func scanCompetition(row pgx.Row) (*model.Competition, error) {
	var c model.Competition
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.CreatedBy, &c.StartAt, &c.EndAt, &c.PositionLimit, &c.Open, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *PostgresStore) GetCompetitionByCode(ctx context.Context, code string) (*model.Competition, error) {
	return scanCompetition(s.pool.QueryRow(ctx,
		`SELECT `+competitionColumns+` FROM competitions WHERE code = $1`, code))
}

func (s *PostgresStore) GetCompetitionByID(ctx context.Context, id string) (*model.Competition, error) {
	return scanCompetition(s.pool.QueryRow(ctx,
		`SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id))
}

func (s *PostgresStore) ListOpenCompetitions(ctx context.Context) ([]model.Competition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+competitionColumns+` FROM competitions WHERE open ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []model.Competition
	for rows.Next() {
		var c model.Competition
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.CreatedBy, &c.StartAt, &c.EndAt, &c.PositionLimit, &c.Open, &c.CreatedAt); err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

func (s *PostgresStore) SetCompetitionOpen(ctx context.Context, code string, open bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE competitions SET open = $2 WHERE code = $1`, code, open)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("competition %s: %w", code, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AddCompetitionMember(ctx context.Context, m *model.CompetitionMember) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO competition_members (id, competition_id, user_id, account_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.CompetitionID, m.UserID, m.AccountID, m.CreatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetCompetitionMember(ctx context.Context, competitionID, userID string) (*model.CompetitionMember, error) {
	var m model.CompetitionMember
	err := s.pool.QueryRow(ctx,
		`SELECT id, competition_id, user_id, account_id, created_at
		 FROM competition_members WHERE competition_id = $1 AND user_id = $2`,
		competitionID, userID).
		Scan(&m.ID, &m.CompetitionID, &m.UserID, &m.AccountID, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *PostgresStore) ListCompetitionMembers(ctx context.Context, competitionID string) ([]model.CompetitionMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, competition_id, user_id, account_id, created_at
		 FROM competition_members WHERE competition_id = $1 ORDER BY created_at`, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.CompetitionMember
	for rows.Next() {
		var m model.CompetitionMember
		if err := rows.Scan(&m.ID, &m.CompetitionID, &m.UserID, &m.AccountID, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) ListMembershipsByUser(ctx context.Context, userID string) ([]model.CompetitionMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, competition_id, user_id, account_id, created_at
		 FROM competition_members WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.CompetitionMember
	for rows.Next() {
		var m model.CompetitionMember
		if err := rows.Scan(&m.ID, &m.CompetitionID, &m.UserID, &m.AccountID, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// --- Teams ---

func (s *PostgresStore) CreateTeam(ctx context.Context, t *model.Team) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (id, name, created_by, account_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.CreatedBy, t.AccountID, t.CreatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_by, account_id, created_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedBy, &t.AccountID, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTeamByName(ctx context.Context, name string) (*model.Team, error) {
	var t model.Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_by, account_id, created_at FROM teams WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.CreatedBy, &t.AccountID, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *PostgresStore) AddTeamMember(ctx context.Context, m *model.TeamMember) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_members (id, team_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		m.ID, m.TeamID, m.UserID, m.CreatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetTeamMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	var m model.TeamMember
	err := s.pool.QueryRow(ctx,
		`SELECT id, team_id, user_id, created_at
		 FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID).
		Scan(&m.ID, &m.TeamID, &m.UserID, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *PostgresStore) AddCompetitionTeam(ctx context.Context, ct *model.CompetitionTeam) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO competition_teams (id, competition_id, team_id, account_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ct.ID, ct.CompetitionID, ct.TeamID, ct.AccountID, ct.CreatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetCompetitionTeam(ctx context.Context, competitionID, teamID string) (*model.CompetitionTeam, error) {
	var ct model.CompetitionTeam
	err := s.pool.QueryRow(ctx,
		`SELECT id, competition_id, team_id, account_id, created_at
		 FROM competition_teams WHERE competition_id = $1 AND team_id = $2`,
		competitionID, teamID).
		Scan(&ct.ID, &ct.CompetitionID, &ct.TeamID, &ct.AccountID, &ct.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &ct, nil
}

func (s *PostgresStore) ListCompetitionTeams(ctx context.Context, competitionID string) ([]model.CompetitionTeam, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, competition_id, team_id, account_id, created_at
		 FROM competition_teams WHERE competition_id = $1 ORDER BY created_at`, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []model.CompetitionTeam
	for rows.Next() {
		var ct model.CompetitionTeam
		if err := rows.Scan(&ct.ID, &ct.CompetitionID, &ct.TeamID, &ct.AccountID, &ct.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, ct)
	}
	return teams, rows.Err()
}

// --- Password reset ---

func (s *PostgresStore) CreatePasswordResetToken(ctx context.Context, t *model.PasswordResetToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.UsedAt, t.CreatedAt,
	)
	return mapErr(err)
}

func (s *PostgresStore) GetPasswordResetToken(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at
		 FROM password_reset_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *PostgresStore) MarkPasswordResetTokenUsed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reset token %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Snapshot marker ---

func (s *PostgresStore) GetSnapshotDate(ctx context.Context) (string, error) {
	var date string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM job_markers WHERE name = 'daily_snapshot'`).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return date, err
}

func (s *PostgresStore) SetSnapshotDate(ctx context.Context, date string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_markers (name, value) VALUES ('daily_snapshot', $1)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, date)
	return err
}
