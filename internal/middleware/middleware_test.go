package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/pkg/clientip"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestHostCheck(t *testing.T) {
	h := HostCheck("api.cliniccompass.app")(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "API.cliniccompass.app:443"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Host = "evil.example.com"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	HostCheck("")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(clientip.Resolver{}, rate.Every(time.Hour), 2)
	h := l.Handler(ok)

	serve := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/triage?lang=es", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, serve("10.0.0.1:1001").Code)
	limited := serve("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, i18n.Default().T(i18n.Spanish, "error.rate_limited"), decodeMessage(t, limited))

	assert.Equal(t, http.StatusOK, serve("10.0.0.2:1000").Code, "buckets are per ip")
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	l := NewIPRateLimiter(clientip.Resolver{}, rate.Limit(1), 1)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(20 * time.Minute)
	l.Allow("b")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.entries, 1)
	assert.Contains(t, l.entries, "b")
}

func TestIPRateLimiter_Paths(t *testing.T) {
	l := NewIPRateLimiter(clientip.Resolver{}, rate.Every(time.Hour), 1)
	h := l.Paths(LoginPaths...)(ok)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/medications", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisRateLimiter(rdb, clientip.Resolver{}, zerolog.Nop())
	l.Max = 2
	h := l.Handler(ok)

	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := serve()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, RateLimitWindow, mr.TTL(RateLimitKeyPrefix+"192.0.2.7"))

	assert.Equal(t, http.StatusOK, serve().Code)
	over := serve()
	assert.Equal(t, http.StatusTooManyRequests, over.Code)
	assert.Equal(t, "120", over.Header().Get("Retry-After"))

	blocked, err := l.IsBlocked(context.Background(), "192.0.2.7")
	require.NoError(t, err)
	assert.True(t, blocked)

	// Still blocked after the window resets.
	mr.FastForward(RateLimitWindow + time.Second)
	assert.Equal(t, http.StatusTooManyRequests, serve().Code)

	require.NoError(t, l.Unblock(context.Background(), "192.0.2.7"))
	mr.FastForward(RateLimitWindow + time.Second)
	assert.Equal(t, http.StatusOK, serve().Code)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	rec := httptest.NewRecorder()
	NewRedisRateLimiter(rdb, clientip.Resolver{}, zerolog.Nop()).Handler(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeAuth struct {
	users      map[string]*models.User
	err        error
	refreshed  map[string]int
	refreshErr error
}

func (f fakeAuth) CurrentUser(_ context.Context, token string) (*models.User, error) {
	return f.users[token], f.err
}

func (f fakeAuth) RefreshSession(_ context.Context, token string) error {
	if f.refreshed != nil {
		f.refreshed[token]++
	}
	return f.refreshErr
}

func TestAuthenticate(t *testing.T) {
	ana := &models.User{ID: "u-1", PreferredLanguage: "es"}
	auth := fakeAuth{users: map[string]*models.User{"good": ana}, refreshed: map[string]int{}}

	var seen *models.User
	var seenToken string
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
		seenToken = TokenFrom(r.Context())
	})
	h := Authenticate(auth)(capture)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, ana, seen)
	assert.Equal(t, "good", seenToken)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, seen)

	// Query tokens only count on WebSocket upgrades.
	req = httptest.NewRequest(http.MethodGet, "/ws/chat?token=good", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, seen)

	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, ana, seen)

	assert.Equal(t, map[string]int{"good": 2}, auth.refreshed, "only live sessions are refreshed")
}

func TestAuthenticate_RefreshErrorIsNotFatal(t *testing.T) {
	auth := fakeAuth{users: map[string]*models.User{"good": {ID: "u-1"}}, refreshErr: errors.New("redis timeout")}
	var seen *models.User
	h := Authenticate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-1", seen.ID)
}

func TestAuthenticate_StoreError(t *testing.T) {
	h := Authenticate(fakeAuth{err: errors.New("redis down")})(ok)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer any")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(LanguageHeader, "es")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, i18n.Default().T(i18n.Spanish, "error.auth_required"), decodeMessage(t, rec))

	req = req.WithContext(WithSession(req.Context(), "t", &models.User{ID: "u-1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLanguage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?lang=ES", nil)
	lang, found := RequestLanguage(req)
	assert.True(t, found)
	assert.Equal(t, i18n.Spanish, lang)

	req = httptest.NewRequest(http.MethodGet, "/?lang=fr", nil)
	req.Header.Set(LanguageHeader, "en")
	lang, found = RequestLanguage(req)
	assert.True(t, found)
	assert.Equal(t, i18n.English, lang)

	_, found = RequestLanguage(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, found)
}

func TestRequestLoggerAndRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	h := chimw.RequestID(RequestLogger(logger, clientip.Resolver{})(Recoverer(boom)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var panicked, request map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &panicked))
	require.NoError(t, json.Unmarshal(lines[1], &request))
	assert.Equal(t, "handler panicked", panicked["message"])
	assert.Equal(t, "boom", panicked["panic"])
	assert.Equal(t, "/api/dashboard", request["path"])
	assert.EqualValues(t, http.StatusInternalServerError, request["status"])
	assert.Equal(t, "error", request["level"])
	assert.NotEmpty(t, request["request_id"])
	assert.Equal(t, panicked["request_id"], request["request_id"])
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://cliniccompass.app"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/triage", nil)
	req.Header.Set("Origin", "https://cliniccompass.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Language")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cliniccompass.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/triage", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
