package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// SessionStore keeps opaque bearer tokens in Redis. A user has at most one
// live session: opening a new one invalidates the old.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: SessionDuration}
}

// Create opens a session for userID and returns the new token along with the
// token it replaced, if any.
func (s *SessionStore) Create(ctx context.Context, userID string) (token, replaced string, err error) {
	replaced, err = s.InvalidateUser(ctx, userID)
	if err != nil {
		return "", "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate session token: %w", err)
	}
	token = base64.URLEncoding.EncodeToString(tokenBytes)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+token, userID, s.ttl)
	pipe.Set(ctx, UserSessionKeyPrefix+userID, token, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", "", fmt.Errorf("store session: %w", err)
	}
	return token, replaced, nil
}

// Validate returns the user id a token belongs to. An unknown or expired
// token is not an error.
func (s *SessionStore) Validate(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	userID, err := s.rdb.Get(ctx, SessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read session: %w", err)
	}
	return userID, true, nil
}

// Refresh extends the session by another full duration from now.
func (s *SessionStore) Refresh(ctx context.Context, token string) error {
	userID, ok, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}

	pipe := s.rdb.TxPipeline()
	pipe.Expire(ctx, SessionKeyPrefix+token, s.ttl)
	pipe.Expire(ctx, UserSessionKeyPrefix+userID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate removes a session and returns the user it belonged to.
func (s *SessionStore) Invalidate(ctx context.Context, token string) (string, error) {
	userID, ok, err := s.Validate(ctx, token)
	if err != nil || !ok {
		return "", err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, SessionKeyPrefix+token)
	// Only drop the mapping if it still points at this token.
	current, err := s.rdb.Get(ctx, UserSessionKeyPrefix+userID).Result()
	if err == nil && current == token {
		pipe.Del(ctx, UserSessionKeyPrefix+userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}
	return userID, nil
}

// InvalidateUser drops the user's current session and returns its token.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string) (string, error) {
	userSessionKey := UserSessionKeyPrefix + userID

	token, err := s.rdb.Get(ctx, userSessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read user session: %w", err)
	}

	if err := s.rdb.Del(ctx, SessionKeyPrefix+token, userSessionKey).Err(); err != nil {
		return "", fmt.Errorf("delete user session: %w", err)
	}
	return token, nil
}
