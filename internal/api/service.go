// Package api provides the HTTP handlers that translate JSON requests
// into ledger kernel operations and kernel results/errors back to JSON.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/timbro-mach/stock-simulator-backend/internal/auth"
	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/metrics"
	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// Mailer delivers password reset links. The default implementation only
// logs; SMTP delivery is deployment-specific.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer logs reset links instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	slog.Info("password reset requested", "email", email, "link", link)
	return nil
}

// Service holds the handler dependencies: the ledger kernel, the
// backing store, the token manager, and the optional trade-event hub.
type Service struct {
	ledger *ledger.Service
	store  store.Store
	tokens *auth.Manager
	hub    *Hub
	mailer Mailer
}

// NewService creates the API service. Pass nil for hub if WebSocket
// broadcasting is not needed; a nil mailer falls back to LogMailer.
func NewService(svc *ledger.Service, tokens *auth.Manager, hub *Hub, mailer Mailer) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{
		ledger: svc,
		store:  svc.Store(),
		tokens: tokens,
		hub:    hub,
		mailer: mailer,
	}
}

// --- Account resolution ---
//
// Every trading scope resolves to one account ID; settlement and
// valuation are scope-agnostic from there.

func (s *Service) userByName(ctx context.Context, username string) (*model.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	return u, nil
}

// competitionAccount resolves a user's membership account in a
// competition identified by code.
func (s *Service) competitionAccount(ctx context.Context, username, code string) (string, *model.Competition, error) {
	user, err := s.userByName(ctx, username)
	if err != nil {
		return "", nil, err
	}
	comp, err := s.store.GetCompetitionByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ledger.ErrCompetitionNotFound
		}
		return "", nil, err
	}
	member, err := s.store.GetCompetitionMember(ctx, comp.ID, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ledger.ErrAccountNotFound
		}
		return "", nil, err
	}
	return member.AccountID, comp, nil
}

// teamAccount resolves a team's account, verifying the user belongs to
// the team.
func (s *Service) teamAccount(ctx context.Context, username, teamID string) (string, error) {
	user, err := s.userByName(ctx, username)
	if err != nil {
		return "", err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ledger.ErrTeamNotFound
		}
		return "", err
	}
	if _, err := s.store.GetTeamMember(ctx, team.ID, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ledger.ErrAccountNotFound
		}
		return "", err
	}
	return team.AccountID, nil
}

// competitionTeamAccount resolves a team's account within a
// competition, verifying the user belongs to the team.
func (s *Service) competitionTeamAccount(ctx context.Context, username, code, teamID string) (string, *model.Competition, error) {
	user, err := s.userByName(ctx, username)
	if err != nil {
		return "", nil, err
	}
	comp, err := s.store.GetCompetitionByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ledger.ErrCompetitionNotFound
		}
		return "", nil, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ledger.ErrTeamNotFound
		}
		return "", nil, err
	}
	if _, err := s.store.GetTeamMember(ctx, team.ID, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ledger.ErrAccountNotFound
		}
		return "", nil, err
	}
	ct, err := s.store.GetCompetitionTeam(ctx, comp.ID, team.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ledger.ErrAccountNotFound
		}
		return "", nil, err
	}
	return ct.AccountID, comp, nil
}

// recordTrade counts a settled trade and pushes it to WebSocket clients.
func (s *Service) recordTrade(scope, side string, res *ledger.TradeResult) {
	metrics.TradesTotal.WithLabelValues(scope, side).Inc()
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(TradeEvent{
		Type:     "trade",
		Scope:    scope,
		Side:     side,
		Symbol:   res.Symbol,
		Quantity: res.Quantity,
		Price:    res.Price.String(),
	})
}
