package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/timbro-mach/stock-simulator-backend/internal/auth"
	"github.com/timbro-mach/stock-simulator-backend/internal/model"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// resetTokenTTL bounds how long a password reset link stays valid.
const resetTokenTTL = time.Hour

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a user with a fresh baseline account.
// POST /register
func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, "username, email, and password are required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	account, err := s.ledger.OpenAccount(r.Context())
	if err != nil {
		writeKernelError(w, err)
		return
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		AccountID:    account.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, "username or email already registered", http.StatusConflict)
			return
		}
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "registration successful",
		"username":     user.Username,
		"cash_balance": account.Cash,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin verifies credentials and issues a session token.
// POST /login
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := s.tokens.Issue(user.Username, user.IsAdmin)
	if err != nil {
		writeError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "login successful",
		"token":    token,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
}

// forgotPasswordMessage is deliberately identical whether or not the
// email is registered, so the endpoint cannot be used to probe accounts.
const forgotPasswordMessage = "If that email is registered, a reset link has been sent."

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword issues a single-use reset token for a registered
// email. POST /api/auth/forgot-password
func (s *Service) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, "email is required", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Unknown email gets the same response as a known one.
		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
		return
	}

	raw := auth.RandomToken()
	token := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePasswordResetToken(r.Context(), token); err != nil {
		writeKernelError(w, err)
		return
	}

	link := fmt.Sprintf("/reset-password?token=%s", raw)
	if err := s.mailer.SendPasswordReset(r.Context(), user.Email, link); err != nil {
		writeError(w, "failed to send reset email", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// handleResetPassword consumes a reset token and sets a new password.
// POST /api/auth/reset-password
func (s *Service) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.NewPassword == "" {
		writeError(w, "token and new_password are required", http.StatusBadRequest)
		return
	}

	token, err := s.store.GetPasswordResetToken(r.Context(), auth.HashToken(req.Token))
	if err != nil {
		writeError(w, "invalid or expired reset token", http.StatusBadRequest)
		return
	}
	if token.UsedAt != nil || time.Now().UTC().After(token.ExpiresAt) {
		writeError(w, "invalid or expired reset token", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	if err := s.store.SetUserPassword(r.Context(), token.UserID, hash); err != nil {
		writeKernelError(w, err)
		return
	}
	if err := s.store.MarkPasswordResetTokenUsed(r.Context(), token.ID); err != nil {
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}

// sessionFromRequest extracts and verifies the bearer token.
func (s *Service) sessionFromRequest(r *http.Request) (*auth.Session, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, auth.ErrInvalidToken
	}
	return s.tokens.Verify(header[len(prefix):])
}

// requireAdmin gates a route behind a valid admin session.
func (s *Service) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionFromRequest(r)
		if err != nil {
			writeError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		// Re-check the flag in the store so a revoked admin loses access
		// before the token expires.
		user, err := s.store.GetUserByUsername(r.Context(), session.Username)
		if err != nil || !user.IsAdmin {
			writeError(w, "admin access required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
