package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// handleAdminListUsers lists all users. GET /admin/users
func (s *Service) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeKernelError(w, err)
		return
	}

	type entry struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"is_admin"`
	}
	entries := make([]entry, 0, len(users))
	for _, u := range users {
		entries = append(entries, entry{
			Username: u.Username,
			Email:    u.Email,
			IsAdmin:  u.IsAdmin,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": entries})
}

// handleAdminPromote grants admin rights to a user.
// POST /admin/users/{username}/promote
func (s *Service) handleAdminPromote(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := s.store.SetUserAdmin(r.Context(), username, true); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "user promoted to admin"})
}

// handleAdminDeleteUser removes a user, its account, and the account's
// holdings. DELETE /admin/users/{username}
func (s *Service) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := s.store.DeleteUser(r.Context(), username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return
		}
		writeKernelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
