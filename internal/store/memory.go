package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/model"
)

func nowUTC() time.Time { return time.Now().UTC() }

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*model.User // by ID
	accounts     map[string]*model.Account
	holdings     map[string]*model.Holding // by ID
	competitions map[string]*model.Competition
	compMembers  []*model.CompetitionMember
	teams        map[string]*model.Team
	teamMembers  []*model.TeamMember
	compTeams    []*model.CompetitionTeam
	resetTokens  map[string]*model.PasswordResetToken // by token hash
	snapshotDate string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*model.User),
		accounts:     make(map[string]*model.Account),
		holdings:     make(map[string]*model.Holding),
		competitions: make(map[string]*model.Competition),
		teams:        make(map[string]*model.Team),
		resetTokens:  make(map[string]*model.PasswordResetToken),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("user %s: %w", u.Username, ErrDuplicate)
		}
	}

	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email != "" && u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("email %s: %w", email, ErrNotFound)
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryStore) SetUserAdmin(_ context.Context, username string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			u.IsAdmin = isAdmin
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", username, ErrNotFound)
}

func (s *MemoryStore) SetUserPassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.Username != username {
			continue
		}
		gone := map[string]bool{u.AccountID: true}
		kept := s.compMembers[:0]
		for _, cm := range s.compMembers {
			if cm.UserID == id {
				gone[cm.AccountID] = true
				continue
			}
			kept = append(kept, cm)
		}
		s.compMembers = kept
		keptTeam := s.teamMembers[:0]
		for _, tm := range s.teamMembers {
			if tm.UserID != id {
				keptTeam = append(keptTeam, tm)
			}
		}
		s.teamMembers = keptTeam
		for aid := range gone {
			delete(s.accounts, aid)
		}
		for hid, h := range s.holdings {
			if gone[h.AccountID] {
				delete(s.holdings, hid)
			}
		}
		delete(s.users, id)
		return nil
	}
	return fmt.Errorf("user %s: %w", username, ErrNotFound)
}

// --- Accounts ---

func (s *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, ErrDuplicate)
	}
	copy := *a
	s.accounts[a.ID] = &copy
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, *a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *MemoryStore) SetStartOfDayValue(_ context.Context, accountID string, value decimal.Decimal, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	a.StartOfDayValue = value
	a.SnapshotDate = date
	return nil
}

// --- Holdings ---

func (s *MemoryStore) GetHolding(_ context.Context, accountID, symbol string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.holdings {
		if h.AccountID == accountID && h.Symbol == symbol {
			copy := *h
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("holding %s/%s: %w", accountID, symbol, ErrNotFound)
}

func (s *MemoryStore) ListHoldings(_ context.Context, accountID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var holdings []model.Holding
	for _, h := range s.holdings {
		if h.AccountID == accountID {
			holdings = append(holdings, *h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

// ApplyTrade applies the cash delta and holding mutation under one lock,
// re-validating the guards so a stale read by the caller cannot
// double-spend. All-or-nothing: guards are checked before any mutation.
func (s *MemoryStore) ApplyTrade(_ context.Context, t model.TradeApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[t.AccountID]
	if !ok {
		return fmt.Errorf("account %s: %w", t.AccountID, ErrNotFound)
	}

	newCash := a.Cash.Add(t.CashDelta)
	if newCash.IsNegative() {
		return fmt.Errorf("account %s cash would go negative: %w", t.AccountID, ErrConflict)
	}

	var holding *model.Holding
	for _, h := range s.holdings {
		if h.AccountID == t.AccountID && h.Symbol == t.Symbol {
			holding = h
			break
		}
	}

	if t.QuantityDelta < 0 {
		if holding == nil || holding.Quantity < -t.QuantityDelta {
			return fmt.Errorf("holding %s/%s: %w", t.AccountID, t.Symbol, ErrConflict)
		}
	}

	a.Cash = newCash
	switch {
	case holding == nil:
		id := uuid.New().String()
		s.holdings[id] = &model.Holding{
			ID:        id,
			AccountID: t.AccountID,
			Symbol:    t.Symbol,
			Quantity:  t.QuantityDelta,
			BuyPrice:  t.BuyPrice,
		}
	default:
		holding.Quantity += t.QuantityDelta
		if holding.Quantity == 0 {
			for id, h := range s.holdings {
				if h == holding {
					delete(s.holdings, id)
					break
				}
			}
		}
	}
	return nil
}

// --- Competitions ---

func (s *MemoryStore) CreateCompetition(_ context.Context, c *model.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.competitions {
		if existing.Code == c.Code {
			return fmt.Errorf("competition %s: %w", c.Code, ErrDuplicate)
		}
	}
	copy := *c
	s.competitions[c.ID] = &copy
	return nil
}

func (s *MemoryStore) GetCompetitionByCode(_ context.Context, code string) (*model.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.competitions {
		if c.Code == code {
			copy := *c
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("competition %s: %w", code, ErrNotFound)
}

func (s *MemoryStore) GetCompetitionByID(_ context.Context, id string) (*model.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.competitions[id]
	if !ok {
		return nil, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	copy := *c
	return &copy, nil
}

func (s *MemoryStore) ListOpenCompetitions(_ context.Context) ([]model.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var comps []model.Competition
	for _, c := range s.competitions {
		if c.Open {
			comps = append(comps, *c)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].CreatedAt.Before(comps[j].CreatedAt) })
	return comps, nil
}

func (s *MemoryStore) SetCompetitionOpen(_ context.Context, code string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.competitions {
		if c.Code == code {
			c.Open = open
			return nil
		}
	}
	return fmt.Errorf("competition %s: %w", code, ErrNotFound)
}

func (s *MemoryStore) AddCompetitionMember(_ context.Context, m *model.CompetitionMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.compMembers {
		if existing.CompetitionID == m.CompetitionID && existing.UserID == m.UserID {
			return fmt.Errorf("competition member %s/%s: %w", m.CompetitionID, m.UserID, ErrDuplicate)
		}
	}
	copy := *m
	s.compMembers = append(s.compMembers, &copy)
	return nil
}

func (s *MemoryStore) GetCompetitionMember(_ context.Context, competitionID, userID string) (*model.CompetitionMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.compMembers {
		if m.CompetitionID == competitionID && m.UserID == userID {
			copy := *m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("competition member %s/%s: %w", competitionID, userID, ErrNotFound)
}

func (s *MemoryStore) ListCompetitionMembers(_ context.Context, competitionID string) ([]model.CompetitionMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []model.CompetitionMember
	for _, m := range s.compMembers {
		if m.CompetitionID == competitionID {
			members = append(members, *m)
		}
	}
	return members, nil
}

func (s *MemoryStore) ListMembershipsByUser(_ context.Context, userID string) ([]model.CompetitionMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []model.CompetitionMember
	for _, m := range s.compMembers {
		if m.UserID == userID {
			members = append(members, *m)
		}
	}
	return members, nil
}

// --- Teams ---

func (s *MemoryStore) CreateTeam(_ context.Context, t *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.teams {
		if existing.Name == t.Name {
			return fmt.Errorf("team %s: %w", t.Name, ErrDuplicate)
		}
	}
	copy := *t
	s.teams[t.ID] = &copy
	return nil
}

func (s *MemoryStore) GetTeam(_ context.Context, id string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	copy := *t
	return &copy, nil
}

func (s *MemoryStore) GetTeamByName(_ context.Context, name string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.teams {
		if t.Name == name {
			copy := *t
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("team %s: %w", name, ErrNotFound)
}

func (s *MemoryStore) AddTeamMember(_ context.Context, m *model.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.teamMembers {
		if existing.TeamID == m.TeamID && existing.UserID == m.UserID {
			return fmt.Errorf("team member %s/%s: %w", m.TeamID, m.UserID, ErrDuplicate)
		}
	}
	copy := *m
	s.teamMembers = append(s.teamMembers, &copy)
	return nil
}

func (s *MemoryStore) GetTeamMember(_ context.Context, teamID, userID string) (*model.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.teamMembers {
		if m.TeamID == teamID && m.UserID == userID {
			copy := *m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("team member %s/%s: %w", teamID, userID, ErrNotFound)
}

func (s *MemoryStore) AddCompetitionTeam(_ context.Context, ct *model.CompetitionTeam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.compTeams {
		if existing.CompetitionID == ct.CompetitionID && existing.TeamID == ct.TeamID {
			return fmt.Errorf("competition team %s/%s: %w", ct.CompetitionID, ct.TeamID, ErrDuplicate)
		}
	}
	copy := *ct
	s.compTeams = append(s.compTeams, &copy)
	return nil
}

func (s *MemoryStore) GetCompetitionTeam(_ context.Context, competitionID, teamID string) (*model.CompetitionTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ct := range s.compTeams {
		if ct.CompetitionID == competitionID && ct.TeamID == teamID {
			copy := *ct
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("competition team %s/%s: %w", competitionID, teamID, ErrNotFound)
}

func (s *MemoryStore) ListCompetitionTeams(_ context.Context, competitionID string) ([]model.CompetitionTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var teams []model.CompetitionTeam
	for _, ct := range s.compTeams {
		if ct.CompetitionID == competitionID {
			teams = append(teams, *ct)
		}
	}
	return teams, nil
}

// --- Password reset ---

func (s *MemoryStore) CreatePasswordResetToken(_ context.Context, t *model.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *t
	s.resetTokens[t.TokenHash] = &copy
	return nil
}

func (s *MemoryStore) GetPasswordResetToken(_ context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.resetTokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("reset token: %w", ErrNotFound)
	}
	copy := *t
	return &copy, nil
}

func (s *MemoryStore) MarkPasswordResetTokenUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.resetTokens {
		if t.ID == id {
			now := nowUTC()
			t.UsedAt = &now
			return nil
		}
	}
	return fmt.Errorf("reset token %s: %w", id, ErrNotFound)
}

// --- Snapshot marker ---

func (s *MemoryStore) GetSnapshotDate(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotDate, nil
}

func (s *MemoryStore) SetSnapshotDate(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotDate = date
	return nil
}
