package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// Authenticator resolves a bearer token. A nil user with a nil error means
// the token is unknown or expired. RefreshSession extends a live session.
type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	RefreshSession(ctx context.Context, token string) error
}

type contextKey int

const (
	userKey contextKey = iota
	tokenKey
)

// BearerToken returns the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// requestToken also accepts ?token= on WebSocket upgrades, since browsers
// cannot set headers there.
func requestToken(r *http.Request) string {
	if t := BearerToken(r); t != "" {
		return t
	}
	if websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

// Authenticate resolves the session token, if any, and stores the user in
// the request context. Each authenticated request slides the session's
// expiry. Requests without a valid session pass through anonymous.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := auth.CurrentUser(r.Context(), token)
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("session lookup failed")
				writeError(w, r, http.StatusInternalServerError, "error.try_again")
				return
			}
			if user != nil {
				if err := auth.RefreshSession(r.Context(), token); err != nil {
					zerolog.Ctx(r.Context()).Warn().Err(err).Msg("session refresh failed")
				}
				r = r.WithContext(WithSession(r.Context(), token, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that Authenticate left anonymous.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			writeError(w, r, http.StatusUnauthorized, "error.auth_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, token string, user *models.User) context.Context {
	ctx = context.WithValue(ctx, tokenKey, token)
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the signed-in user, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
