package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/internal/services"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Success bool               `json:"success"`
	Message models.ChatMessage `json:"message"`
}

// Chat answers a single question. The reply always succeeds; provider
// problems turn into demo answers or an apology.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.fail(w, r, http.StatusBadRequest, "error.message_required")
		return
	}

	hc := h.healthContext(r.Context(), userID(r))
	reply := h.assistant.Reply(r.Context(), req.Message, hc, h.lang(r))
	writeJSON(w, http.StatusOK, ChatResponse{Success: true, Message: reply})
}

// QuickQuestions lists suggested first questions.
func (h *Handler) QuickQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"questions": h.assistant.QuickQuestions(h.lang(r)),
	})
}

// healthContext loads what the assistant may know about the user. A failed
// load gives an empty context rather than failing the chat.
func (h *Handler) healthContext(ctx context.Context, userID string) *services.HealthContext {
	hc, err := services.LoadHealthContext(ctx, h.meds, h.visits, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("chat context unavailable")
		return &services.HealthContext{}
	}
	return hc
}
