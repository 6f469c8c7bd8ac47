package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/pkg/clientip"
)

const (
	// RateLimitWindow is 120 seconds
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 25
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked (24 hours)
	BlockedIPDuration = 24 * time.Hour
)

// RedisRateLimiter counts requests per IP in a fixed Redis window shared by
// every instance. An IP that goes over the limit is blocked for a day.
// Redis errors let the request through.
type RedisRateLimiter struct {
	rdb      *redis.Client
	resolver clientip.Resolver
	logger   zerolog.Logger

	Max      int
	Window   time.Duration
	BlockFor time.Duration
}

func NewRedisRateLimiter(rdb *redis.Client, resolver clientip.Resolver, logger zerolog.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:      rdb,
		resolver: resolver,
		logger:   logger,
		Max:      RateLimitMaxRequests,
		Window:   RateLimitWindow,
		BlockFor: BlockedIPDuration,
	}
}

func (l *RedisRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := l.resolver.IP(r)

		blocked, err := l.IsBlocked(ctx, ip)
		if err == nil && blocked {
			writeError(w, r, http.StatusTooManyRequests, "error.rate_limited")
			return
		}

		key := RateLimitKeyPrefix + ip
		count, err := l.rdb.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			err = l.rdb.Expire(ctx, key, l.Window).Err()
		}
		if err != nil {
			l.logger.Warn().Err(err).Msg("rate limit check failed; allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(l.Max) {
			if err := l.rdb.Set(ctx, BlockedIPKeyPrefix+ip, "1", l.BlockFor).Err(); err != nil {
				l.logger.Warn().Err(err).Str("ip", ip).Msg("failed to block ip")
			} else {
				l.logger.Warn().Str("ip", ip).Msg("ip blocked after exceeding rate limit")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(l.Window.Seconds())))
			writeError(w, r, http.StatusTooManyRequests, "error.rate_limited")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(l.Max)-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(l.Window).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// Unblock removes an IP from the blocked list.
func (l *RedisRateLimiter) Unblock(ctx context.Context, ip string) error {
	return l.rdb.Del(ctx, BlockedIPKeyPrefix+ip).Err()
}

// IsBlocked checks if an IP is currently blocked
func (l *RedisRateLimiter) IsBlocked(ctx context.Context, ip string) (bool, error) {
	count, err := l.rdb.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
	return count > 0, err
}
