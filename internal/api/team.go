package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
	"github.com/timbro-mach/stock-simulator-backend/internal/symbol"
)

type createTeamRequest struct {
	Username string `json:"username"`
	TeamName string `json:"team_name"`
}

// handleCreateTeam creates a team with its own shared account and adds
// the creator as the first member. POST /team/create
func (s *Service) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.TeamName == "" {
		writeError(w, "username and team_name are required", http.StatusBadRequest)
		return
	}

	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	account, err := s.ledger.OpenAccount(r.Context())
	if err != nil {
		writeKernelError(w, err)
		return
	}
	team := &model.Team{
		ID:        uuid.New().String(),
		Name:      req.TeamName,
		CreatedBy: user.ID,
		AccountID: account.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTeam(r.Context(), team); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, "team name already taken", http.StatusConflict)
			return
		}
		writeKernelError(w, err)
		return
	}

	if err := s.addTeamMember(r.Context(), team.ID, user.ID); err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "team created",
		"team_id": team.ID,
		"name":    team.Name,
	})
}

// addTeamMember adds a user to a team; a duplicate membership is not an
// error.
func (s *Service) addTeamMember(ctx context.Context, teamID, userID string) error {
	member := &model.TeamMember{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddTeamMember(ctx, member); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return err
	}
	return nil
}

type joinTeamRequest struct {
	Username string `json:"username"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
}

// handleJoinTeam adds a user to an existing team, looked up by id or by
// name. POST /team/join
func (s *Service) handleJoinTeam(w http.ResponseWriter, r *http.Request) {
	var req joinTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	var team *model.Team
	if req.TeamID != "" {
		team, err = s.store.GetTeam(r.Context(), req.TeamID)
	} else {
		team, err = s.store.GetTeamByName(r.Context(), req.TeamName)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeKernelError(w, ledger.ErrTeamNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}

	if err := s.addTeamMember(r.Context(), team.ID, user.ID); err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "joined team",
		"team_id": team.ID,
		"name":    team.Name,
	})
}

type teamTradeRequest struct {
	Username string `json:"username"`
	TeamID   string `json:"team_id"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// handleTeamBuy buys into the team's shared account. Any member may
// trade it. POST /team/buy
func (s *Service) handleTeamBuy(w http.ResponseWriter, r *http.Request) {
	var req teamTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	accountID, err := s.teamAccount(r.Context(), req.Username, req.TeamID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Buy(r.Context(), accountID, sym, req.Quantity, nil)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("team", "buy", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "purchase successful",
		"symbol":       res.Symbol,
		"quantity":     res.Quantity,
		"price":        res.Price,
		"total_cost":   res.Amount,
		"cash_balance": res.Cash,
	})
}

// handleTeamSell sells from the team's shared account. POST /team/sell
func (s *Service) handleTeamSell(w http.ResponseWriter, r *http.Request) {
	var req teamTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	accountID, err := s.teamAccount(r.Context(), req.Username, req.TeamID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Sell(r.Context(), accountID, sym, req.Quantity)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("team", "sell", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "sale successful",
		"symbol":         res.Symbol,
		"quantity":       res.Quantity,
		"price":          res.Price,
		"total_proceeds": res.Amount,
		"cash_balance":   res.Cash,
	})
}

type competitionTeamJoinRequest struct {
	Username        string `json:"username"`
	CompetitionCode string `json:"competition_code"`
	TeamID          string `json:"team_id"`
}

// handleCompetitionTeamJoin enters a team into a competition with a
// separate account. Any team member may enter it; doing so twice is
// idempotent. POST /competition/team/join
func (s *Service) handleCompetitionTeamJoin(w http.ResponseWriter, r *http.Request) {
	var req competitionTeamJoinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	comp, err := s.store.GetCompetitionByCode(r.Context(), req.CompetitionCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeKernelError(w, ledger.ErrCompetitionNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}
	team, err := s.store.GetTeam(r.Context(), req.TeamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeKernelError(w, ledger.ErrTeamNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}
	if _, err := s.store.GetTeamMember(r.Context(), team.ID, user.ID); err != nil {
		writeError(w, "not a member of this team", http.StatusForbidden)
		return
	}

	// Entering twice is idempotent and must not open a second account.
	if _, err := s.store.GetCompetitionTeam(r.Context(), comp.ID, team.ID); err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "team entered competition",
			"code":    comp.Code,
			"team_id": team.ID,
		})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeKernelError(w, err)
		return
	}

	account, err := s.ledger.OpenAccount(r.Context())
	if err != nil {
		writeKernelError(w, err)
		return
	}
	ct := &model.CompetitionTeam{
		ID:            uuid.New().String(),
		CompetitionID: comp.ID,
		TeamID:        team.ID,
		AccountID:     account.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AddCompetitionTeam(r.Context(), ct); err != nil && !errors.Is(err, store.ErrDuplicate) {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "team entered competition",
		"code":    comp.Code,
		"team_id": team.ID,
	})
}

type competitionTeamTradeRequest struct {
	Username        string `json:"username"`
	CompetitionCode string `json:"competition_code"`
	TeamID          string `json:"team_id"`
	Symbol          string `json:"symbol"`
	Quantity        int64  `json:"quantity"`
}

// handleCompetitionTeamBuy buys into the team's competition account.
// The competition's position-limit policy, if any, applies.
// POST /competition/team/buy
func (s *Service) handleCompetitionTeamBuy(w http.ResponseWriter, r *http.Request) {
	var req competitionTeamTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	accountID, comp, err := s.competitionTeamAccount(r.Context(), req.Username, req.CompetitionCode, req.TeamID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Buy(r.Context(), accountID, sym, req.Quantity, comp)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("competition_team", "buy", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "purchase successful",
		"symbol":       res.Symbol,
		"quantity":     res.Quantity,
		"price":        res.Price,
		"total_cost":   res.Amount,
		"cash_balance": res.Cash,
	})
}

// handleCompetitionTeamSell sells from the team's competition account.
// POST /competition/team/sell
func (s *Service) handleCompetitionTeamSell(w http.ResponseWriter, r *http.Request) {
	var req competitionTeamTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	accountID, _, err := s.competitionTeamAccount(r.Context(), req.Username, req.CompetitionCode, req.TeamID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Sell(r.Context(), accountID, sym, req.Quantity)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("competition_team", "sell", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "sale successful",
		"symbol":         res.Symbol,
		"quantity":       res.Quantity,
		"price":          res.Price,
		"total_proceeds": res.Amount,
		"cash_balance":   res.Cash,
	})
}
