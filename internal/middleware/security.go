package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cliniccompass/cliniccompass-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// HostCheck returns 403 when r.Host does not match allowedHost (e.g. api.cliniccompass.app).
// allowedHost should be the bare hostname without scheme or port.
func HostCheck(allowedHost string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedHost == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqHost := r.Host
			if host, _, err := net.SplitHostPort(reqHost); err == nil {
				reqHost = host
			}
			if !strings.EqualFold(strings.TrimSpace(reqHost), strings.TrimSpace(allowedHost)) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// IPRateLimiter keeps one token bucket per client IP. Idle buckets are
// dropped by Run.
type IPRateLimiter struct {
	resolver clientip.Resolver
	limit    rate.Limit
	burst    int

	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

func NewIPRateLimiter(resolver clientip.Resolver, limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		resolver: resolver,
		limit:    limit,
		burst:    burst,
		entries:  make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Allow reports whether ip may make another request now.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastUse = l.now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep drops buckets unused for longer than the idle TTL and returns how
// many it removed.
func (l *IPRateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for ip, e := range l.entries {
		if now.Sub(e.lastUse) > limiterIdleTTL {
			delete(l.entries, ip)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets until ctx is done.
func (l *IPRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Handler limits every request.
func (l *IPRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.resolver.IP(r)) {
			writeError(w, r, http.StatusTooManyRequests, "error.rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Paths limits only requests whose path is one of paths.
func (l *IPRateLimiter) Paths(paths ...string) func(http.Handler) http.Handler {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(next http.Handler) http.Handler {
		limited := l.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if set[r.URL.Path] {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Limiters are the per-IP buckets the server uses.
//
//	Global: 1 req/s, burst 10, every route (production only)
//	Login:  1 req/5s, burst 2, sign-in and sign-up
//	AI:     30 req/min, burst 10, triage and chat
type Limiters struct {
	Global *IPRateLimiter
	Login  *IPRateLimiter
	AI     *IPRateLimiter
}

// LoginPaths are the credential routes the login limiter guards.
var LoginPaths = []string{"/api/auth/login", "/api/auth/signup"}

func NewLimiters(resolver clientip.Resolver) *Limiters {
	return &Limiters{
		Global: NewIPRateLimiter(resolver, rate.Limit(1), 10),
		Login:  NewIPRateLimiter(resolver, rate.Every(5*time.Second), 2),
		AI:     NewIPRateLimiter(resolver, rate.Every(2*time.Second), 10),
	}
}

// Run sweeps all buckets until ctx is done.
func (ls *Limiters) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range []*IPRateLimiter{ls.Global, ls.Login, ls.AI} {
		wg.Add(1)
		go func(l *IPRateLimiter) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}
	wg.Wait()
}

// ProductionSecurity returns middlewares for production: SecurityHeaders → HostCheck → global limit → login limit.
func ProductionSecurity(allowedHost string, ls *Limiters) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		HostCheck(allowedHost),
		ls.Global.Handler,
		ls.Login.Paths(LoginPaths...),
	}
}
