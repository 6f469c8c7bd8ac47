package handlers

import (
	"net/http"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

type TriageRequest struct {
	Symptoms string `json:"symptoms"`
}

type TriageResponse struct {
	Success   bool                 `json:"success"`
	Result    *models.TriageResult `json:"result"`
	Checklist []string             `json:"checklist"`
}

// Triage classifies the symptoms and, unless home care is enough, adds
// what to bring to the visit.
func (h *Handler) Triage(w http.ResponseWriter, r *http.Request) {
	var req TriageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}

	lang := h.lang(r)
	result, err := h.triage.Analyze(r.Context(), req.Symptoms, lang)
	if err != nil {
		h.failErr(w, r, err, "error.triage_failed")
		return
	}
	checklist := h.triage.GenerateChecklist(r.Context(), req.Symptoms, result.Severity, lang)
	if checklist == nil {
		checklist = []string{}
	}
	writeJSON(w, http.StatusOK, TriageResponse{Success: true, Result: result, Checklist: checklist})
}
