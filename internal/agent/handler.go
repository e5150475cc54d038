package agent

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/countrychat/internal/api"
	"github.com/ashureev/countrychat/internal/identity"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize is the maximum allowed turn request body (1MB).
const maxRequestBodySize = 1 << 20

// TurnRequest is the body of a turn request.
type TurnRequest struct {
	Message string `json:"message"`
}

// Handler handles agent HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates an agent HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleTurn handles POST /api/agent requests.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	// A body that fails to parse at all is an internal failure, not a
	// missing-message request; only a parsed-but-empty message gets the 400.
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "Message is required")
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	slog.Info("Agent turn request", "user_id", userID, "message_length", len(req.Message))

	result, err := h.service.Turn(r.Context(), userID, req.Message)
	if err != nil {
		slog.Error("Agent turn failed", "user_id", userID, "error", err)
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// RegisterRoutes registers agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/agent", h.HandleTurn)
}
