package handlers

import (
	"net/http"

	"github.com/cliniccompass/cliniccompass-backend/internal/services"
)

// Clinics lists clinics near ?lat=&lng=, filtered by ?filter=all|free|low.
// Lookup problems never fail the request.
func (h *Handler) Clinics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	at := services.ParseCoordinates(q.Get("lat"), q.Get("lng"))
	filter := q.Get("filter")
	if filter == "" {
		filter = services.FilterAll
	}

	clinics := h.clinics.Find(r.Context(), at, filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"filter":  filter,
		"clinics": clinics,
	})
}
