package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	token, replaced, err := store.Create(ctx, "u-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Empty(t, replaced)
	assert.Equal(t, SessionDuration, mr.TTL(SessionKeyPrefix+token))

	userID, ok, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-1", userID)

	userID, err = store.Invalidate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	_, ok, err = store.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(UserSessionKeyPrefix+"u-1"))
}

func TestSessionStore_OneSessionPerUser(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	first, _, err := store.Create(ctx, "u-1")
	require.NoError(t, err)
	second, replaced, err := store.Create(ctx, "u-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, replaced)

	_, ok, _ := store.Validate(ctx, first)
	assert.False(t, ok, "old session must be gone")
	_, ok, _ = store.Validate(ctx, second)
	assert.True(t, ok)
}

func TestSessionStore_Expiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	token, _, err := store.Create(ctx, "u-1")
	require.NoError(t, err)

	mr.FastForward(SessionDuration / 2)
	require.NoError(t, store.Refresh(ctx, token))
	assert.Equal(t, SessionDuration, mr.TTL(SessionKeyPrefix+token))

	mr.FastForward(SessionDuration + 1)
	_, ok, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.Refresh(ctx, token), ErrSessionNotFound)
}

func TestSessionStore_UnknownTokens(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	_, ok, err := store.Validate(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	userID, err := store.Invalidate(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, userID)
}
