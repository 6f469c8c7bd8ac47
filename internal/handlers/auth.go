package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/middleware"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LanguageRequest struct {
	Language string `json:"language"`
}

// AuthResponse is returned by signup, login and the session lookup. User is
// null when signed out.
type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *models.User `json:"user"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}

	sess, err := h.identity.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.failErr(w, r, err, "error.signup_failed")
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Success: true, Token: sess.Token, User: sess.User})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}

	sess, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.failErr(w, r, err, "error.login_failed")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Token: sess.Token, User: sess.User})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		h.fail(w, r, http.StatusUnauthorized, "error.auth_required")
		return
	}
	lang := h.lang(r)
	if err := h.identity.Logout(r.Context(), token); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: h.catalog.T(lang, "auth.logged_out")})
}

// Session returns the signed-in user, or a null user.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: middleware.UserFrom(r.Context())})
}

func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	lang, ok := i18n.Parse(req.Language)
	if !ok {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_language")
		return
	}

	user := middleware.UserFrom(r.Context())
	if err := h.identity.SetLanguage(r.Context(), user.ID, lang); err != nil {
		h.failErr(w, r, err, "error.try_again")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  h.catalog.T(lang, "language.updated"),
		"language": lang,
	})
}

// Dictionary serves the UI strings for one language.
func (h *Handler) Dictionary(w http.ResponseWriter, r *http.Request) {
	lang, ok := i18n.Parse(strings.TrimSpace(chi.URLParam(r, "lang")))
	if !ok {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_language")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"language": lang,
		"strings":  h.catalog.Dictionary(lang),
	})
}
