package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/timbro-mach/stock-simulator-backend/internal/auth"
	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
	"github.com/timbro-mach/stock-simulator-backend/internal/symbol"
)

type createCompetitionRequest struct {
	Username      string     `json:"username"`
	Name          string     `json:"name"`
	StartAt       *time.Time `json:"start_at,omitempty"`
	EndAt         *time.Time `json:"end_at,omitempty"`
	PositionLimit string     `json:"position_limit,omitempty"`
	Open          *bool      `json:"open,omitempty"`
}

// handleCreateCompetition creates a competition and enrolls the creator
// with a fresh account. POST /competition/create
func (s *Service) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req createCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Name == "" {
		writeError(w, "username and name are required", http.StatusBadRequest)
		return
	}

	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	// Reject unparsable limit policies at creation instead of at the
	// first buy.
	if req.PositionLimit != "" {
		if _, err := ledger.ParseLimit(req.PositionLimit); err != nil {
			writeKernelError(w, err)
			return
		}
	}

	// Closed competitions are hidden from the public listing; the code
	// still admits anyone who presents it.
	open := true
	if req.Open != nil {
		open = *req.Open
	}

	comp := &model.Competition{
		ID:            uuid.New().String(),
		Code:          strings.ToUpper(auth.RandomToken()[:8]),
		Name:          req.Name,
		CreatedBy:     user.ID,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		PositionLimit: req.PositionLimit,
		Open:          open,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateCompetition(r.Context(), comp); err != nil {
		writeKernelError(w, err)
		return
	}

	if _, err := s.enrollMember(r.Context(), comp.ID, user.ID); err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "competition created",
		"code":    comp.Code,
		"name":    comp.Name,
	})
}

// enrollMember creates a fresh account and membership for a user in a
// competition. A duplicate membership returns the existing one without
// opening another account.
func (s *Service) enrollMember(ctx context.Context, competitionID, userID string) (*model.CompetitionMember, error) {
	existing, err := s.store.GetCompetitionMember(ctx, competitionID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	account, err := s.ledger.OpenAccount(ctx)
	if err != nil {
		return nil, err
	}
	member := &model.CompetitionMember{
		ID:            uuid.New().String(),
		CompetitionID: competitionID,
		UserID:        userID,
		AccountID:     account.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AddCompetitionMember(ctx, member); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.store.GetCompetitionMember(ctx, competitionID, userID)
		}
		return nil, err
	}
	return member, nil
}

type joinCompetitionRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// handleJoinCompetition enrolls a user in a competition. The code is
// the access token: presenting it admits the user even when the
// competition is closed (closed only hides it from the public
// listing). Joining twice is idempotent and succeeds without a second
// account. POST /competition/join
func (s *Service) handleJoinCompetition(w http.ResponseWriter, r *http.Request) {
	var req joinCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	comp, err := s.store.GetCompetitionByCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeKernelError(w, ledger.ErrCompetitionNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}

	if _, err := s.enrollMember(r.Context(), comp.ID, user.ID); err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "joined competition",
		"code":    comp.Code,
		"name":    comp.Name,
	})
}

type closeCompetitionRequest struct {
	Username string `json:"username"`
}

// handleCloseCompetition hides a competition from the public listing.
// Only the creator may close it; the code keeps admitting joins.
// POST /competition/{code}/close
func (s *Service) handleCloseCompetition(w http.ResponseWriter, r *http.Request) {
	var req closeCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	code := chi.URLParam(r, "code")

	user, err := s.userByName(r.Context(), req.Username)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	comp, err := s.store.GetCompetitionByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeKernelError(w, ledger.ErrCompetitionNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}
	if comp.CreatedBy != user.ID {
		writeError(w, "only the creator may close a competition", http.StatusForbidden)
		return
	}

	if err := s.store.SetCompetitionOpen(r.Context(), code, false); err != nil {
		writeKernelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "competition closed",
		"code":    comp.Code,
	})
}

type competitionTradeRequest struct {
	Username        string `json:"username"`
	CompetitionCode string `json:"competition_code"`
	Symbol          string `json:"symbol"`
	Quantity        int64  `json:"quantity"`
}

// handleCompetitionBuy buys into the user's competition account. The
// competition's position-limit policy, if any, applies.
// POST /competition/buy
func (s *Service) handleCompetitionBuy(w http.ResponseWriter, r *http.Request) {
	var req competitionTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	accountID, comp, err := s.competitionAccount(r.Context(), req.Username, req.CompetitionCode)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Buy(r.Context(), accountID, sym, req.Quantity, comp)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("competition", "buy", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "purchase successful",
		"symbol":       res.Symbol,
		"quantity":     res.Quantity,
		"price":        res.Price,
		"total_cost":   res.Amount,
		"cash_balance": res.Cash,
	})
}

// handleCompetitionSell sells from the user's competition account.
// POST /competition/sell
func (s *Service) handleCompetitionSell(w http.ResponseWriter, r *http.Request) {
	var req competitionTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	accountID, _, err := s.competitionAccount(r.Context(), req.Username, req.CompetitionCode)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	res, err := s.ledger.Sell(r.Context(), accountID, sym, req.Quantity)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	s.recordTrade("competition", "sell", res)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "sale successful",
		"symbol":         res.Symbol,
		"quantity":       res.Quantity,
		"price":          res.Price,
		"total_proceeds": res.Amount,
		"cash_balance":   res.Cash,
	})
}

// handleLeaderboard returns the individual leaderboard.
// GET /competition/{code}/leaderboard
func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	entries, err := s.ledger.Rank(r.Context(), code)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"competition": code,
		"leaderboard": entries,
	})
}

// handleTeamLeaderboard returns the team leaderboard.
// GET /competition/{code}/team_leaderboard
func (s *Service) handleTeamLeaderboard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	entries, err := s.ledger.RankTeams(r.Context(), code)
	if err != nil {
		writeKernelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"competition": code,
		"leaderboard": entries,
	})
}

// handleListCompetitions lists competitions that are open to join.
// GET /competitions
func (s *Service) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	comps, err := s.store.ListOpenCompetitions(r.Context())
	if err != nil {
		writeKernelError(w, err)
		return
	}

	type entry struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	entries := make([]entry, 0, len(comps))
	for _, c := range comps {
		entries = append(entries, entry{Code: c.Code, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitions": entries})
}

// handleMemberCompetitions lists the competitions a user belongs to.
// GET /competition/member?username=...
func (s *Service) handleMemberCompetitions(w http.ResponseWriter, r *http.Request) {
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
	memberships, err := s.store.ListMembershipsByUser(r.Context(), user.ID)
	if err != nil {
		writeKernelError(w, err)
		return
	}

	type entry struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	entries := make([]entry, 0, len(memberships))
	for _, m := range memberships {
		comp, err := s.store.GetCompetitionByID(r.Context(), m.CompetitionID)
		if err != nil {
			continue
		}
		entries = append(entries, entry{Code: comp.Code, Name: comp.Name})
	}

	writeJSON(w, http.StatusOK, map[string]any{"competitions": entries})
}
