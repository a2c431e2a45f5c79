package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/timbro-mach/stock-simulator-backend/internal/metrics"
)

// Router builds the HTTP routing table.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"stock-simulator"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	if s.hub != nil {
		// WebSocket endpoint for real-time trade events.
		r.Get("/ws", s.hub.HandleWS)
	}

	// Auth.
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/api/auth/forgot-password", s.handleForgotPassword)
	r.Post("/api/auth/reset-password", s.handleResetPassword)

	// Quotes and charts.
	r.Get("/stock/{symbol}", s.handleStock)
	r.Get("/stock_chart/{symbol}", s.handleStockChart)

	// Global account trading.
	r.Post("/buy", s.handleBuy)
	r.Post("/sell", s.handleSell)
	r.Get("/user", s.handleUser)

	// Competitions.
	r.Get("/competitions", s.handleListCompetitions)
	r.Post("/competition/create", s.handleCreateCompetition)
	r.Post("/competition/join", s.handleJoinCompetition)
	r.Post("/competition/buy", s.handleCompetitionBuy)
	r.Post("/competition/sell", s.handleCompetitionSell)
	r.Get("/competition/member", s.handleMemberCompetitions)
	r.Post("/competition/{code}/close", s.handleCloseCompetition)
	r.Get("/competition/{code}/leaderboard", s.handleLeaderboard)
	r.Get("/competition/{code}/team_leaderboard", s.handleTeamLeaderboard)

	// Teams.
	r.Post("/team/create", s.handleCreateTeam)
	r.Post("/team/join", s.handleJoinTeam)
	r.Post("/team/buy", s.handleTeamBuy)
	r.Post("/team/sell", s.handleTeamSell)

	// Teams inside competitions.
	r.Post("/competition/team/join", s.handleCompetitionTeamJoin)
	r.Post("/competition/team/buy", s.handleCompetitionTeamBuy)
	r.Post("/competition/team/sell", s.handleCompetitionTeamSell)

	// Admin.
	r.Get("/admin/users", s.requireAdmin(s.handleAdminListUsers))
	r.Post("/admin/users/{username}/promote", s.requireAdmin(s.handleAdminPromote))
	r.Delete("/admin/users/{username}", s.requireAdmin(s.handleAdminDeleteUser))

	return r
}
