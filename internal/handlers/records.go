package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cliniccompass/cliniccompass-backend/internal/middleware"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/internal/services"
)

func userID(r *http.Request) string {
	return middleware.UserFrom(r.Context()).ID
}

func (h *Handler) ListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.meds.List(r.Context(), userID(r))
	if err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "medications": meds})
}

func (h *Handler) AddMedication(w http.ResponseWriter, r *http.Request) {
	var in models.MedicationInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	id, err := h.meds.Add(r.Context(), userID(r), in)
	if err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

func (h *Handler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	var in models.MedicationInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	if err := h.meds.Update(r.Context(), userID(r), chi.URLParam(r, "id"), in); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

func (h *Handler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.meds.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

// visitRequest accepts the date as RFC 3339 or as the zone-less value an
// HTML datetime-local input produces (read as UTC).
type visitRequest struct {
	DoctorName string `json:"doctorName"`
	Hospital   string `json:"hospital"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes"`
}

var visitDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseVisitDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range visitDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (v visitRequest) input() models.VisitInput {
	return models.VisitInput{
		DoctorName: v.DoctorName,
		Hospital:   v.Hospital,
		Date:       parseVisitDate(v.Date),
		Reason:     v.Reason,
		Notes:      v.Notes,
	}
}

type visitsResponse struct {
	Success bool `json:"success"`
	models.VisitList
}

func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	list, err := h.visits.List(r.Context(), userID(r))
	if err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, visitsResponse{Success: true, VisitList: list})
}

func (h *Handler) AddVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	id, err := h.visits.Add(r.Context(), userID(r), req.input())
	if err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

func (h *Handler) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	if err := h.visits.Update(r.Context(), userID(r), chi.URLParam(r, "id"), req.input()); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

func (h *Handler) CompleteVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	// The body is optional.
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	if err := h.visits.Complete(r.Context(), userID(r), chi.URLParam(r, "id"), req.Notes); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

func (h *Handler) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	if err := h.visits.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

type dashboardResponse struct {
	Success bool `json:"success"`
	services.Dashboard
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	hc, err := services.LoadHealthContext(r.Context(), h.meds, h.visits, userID(r))
	if err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{Success: true, Dashboard: hc.Dashboard()})
}
