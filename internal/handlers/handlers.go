// Package handlers exposes the services over HTTP. Every JSON response
// carries "success" and, on failure, a localized "message".
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/middleware"
	"github.com/cliniccompass/cliniccompass-backend/internal/services"
	"github.com/cliniccompass/cliniccompass-backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	identity  *services.IdentityService
	meds      *services.MedicationService
	visits    *services.VisitService
	triage    *services.TriageService
	assistant *services.AssistantService
	clinics   *services.ClinicLocator
	catalog   *i18n.Catalog
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	// base parents every WebSocket's context; cancelling it closes them.
	base      context.Context
}

// Deps are the services a Handler serves.
type Deps struct {
	Identity    *services.IdentityService
	Medications *services.MedicationService
	Visits      *services.VisitService
	Triage      *services.TriageService
	Assistant   *services.AssistantService
	Clinics     *services.ClinicLocator
	Catalog     *i18n.Catalog
	Logger      zerolog.Logger
	// BaseContext ends open WebSockets when it is done. Defaults to
	// context.Background.
	BaseContext context.Context
}

func New(d Deps) *Handler {
	catalog := d.Catalog
	if catalog == nil {
		catalog = i18n.Default()
	}
	base := d.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &Handler{
		identity:  d.Identity,
		meds:      d.Medications,
		visits:    d.Visits,
		triage:    d.Triage,
		assistant: d.Assistant,
		clinics:   d.Clinics,
		catalog:   catalog,
		logger:    d.Logger,
		base:      base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is enforced on the HTTP routes; the socket itself needs a
			// valid session token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, key string) {
	writeJSON(w, status, messageResponse{Success: false, Message: h.catalog.T(h.lang(r), key)})
}

// failErr maps a service error to a status and a localized message. Raw
// error text only goes to the log.
func (h *Handler) failErr(w http.ResponseWriter, r *http.Request, err error, fallbackKey string) {
	var ve *utils.ValidationError
	switch {
	case errors.As(err, &ve):
		h.fail(w, r, http.StatusBadRequest, ve.Key)
	case errors.Is(err, services.ErrEmailTaken):
		h.fail(w, r, http.StatusConflict, "error.email_taken")
	case errors.Is(err, services.ErrInvalidCredentials):
		h.fail(w, r, http.StatusUnauthorized, "error.login_failed")
	case errors.Is(err, services.ErrNotFound):
		h.fail(w, r, http.StatusNotFound, "error.not_found")
	case errors.Is(err, services.ErrTriageUnavailable):
		h.log(r).Error().Err(err).Msg("triage unavailable")
		h.fail(w, r, http.StatusBadGateway, "error.triage_failed")
	default:
		h.log(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.fail(w, r, http.StatusInternalServerError, fallbackKey)
	}
}

// lang resolves the response language: explicit request choice, then the
// user's saved preference, then English.
func (h *Handler) lang(r *http.Request) i18n.Lang {
	if l, ok := middleware.RequestLanguage(r); ok {
		return l
	}
	if u := middleware.UserFrom(r.Context()); u != nil {
		return i18n.Normalize(u.PreferredLanguage)
	}
	return i18n.English
}

func (h *Handler) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
