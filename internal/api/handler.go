// Package api provides HTTP handlers for login, logout and health.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/countrychat/internal/domain"
	"github.com/ashureev/countrychat/internal/identity"
	"github.com/ashureev/countrychat/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler provides the authentication and health endpoints.
type Handler struct {
	repo  store.Repository
	isDev bool
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, isDev bool) *Handler {
	return &Handler{repo: repo, isDev: isDev}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type loginRequest struct {
	Username string `json:"username"`
}

// HandleLogin handles POST /api/login. The user record is created on first
// successful login when absent.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Username is required")
		return
	}

	username, err := identity.ValidateUsername(req.Username)
	if err != nil {
		Error(w, http.StatusBadRequest, "Username is required")
		return
	}

	user, err := h.repo.GetUser(r.Context(), username)
	if err != nil {
		slog.Error("login lookup failed", "username", username, "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil {
		if err := h.repo.UpsertUser(r.Context(), &domain.User{ID: username, CreatedAt: time.Now()}); err != nil {
			slog.Error("login user creation failed", "username", username, "error", err)
			Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		slog.Info("created user on first login", "username", username)
	}

	identity.SetCookie(w, username, h.isDev)
	JSON(w, http.StatusOK, map[string]string{"userId": username})
}

// HandleLogout handles POST /api/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	identity.ClearCookie(w, h.isDev)
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterRoutes registers authentication and health routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/login", h.HandleLogin)
	r.Post("/api/logout", h.HandleLogout)
	r.Get("/api/health", h.HandleHealth)
}
