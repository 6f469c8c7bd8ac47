package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSessionDispatcher_LocalDelivery(t *testing.T) {
	d := NewSessionDispatcher(nil, zerolog.Nop())

	var mu sync.Mutex
	var got []SessionEvent
	unsubscribe := d.Subscribe("u-1", func(e SessionEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	d.Subscribe("u-2", func(SessionEvent) { t.Error("u-2 must not see u-1 events") })

	d.Publish(context.Background(), SessionEvent{UserID: "u-1", Token: "t-1"})
	assert.Equal(t, 1, d.ListenerCount("u-1"))

	unsubscribe()
	unsubscribe()
	d.Publish(context.Background(), SessionEvent{UserID: "u-1", Token: "t-1"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.True(t, got[0].SignedOut("t-1"))
	assert.False(t, got[0].SignedOut("t-other"))
	assert.Equal(t, 0, d.ListenerCount("u-1"))
}

func TestSessionDispatcher_RunWithoutRedisReturns(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	d := NewSessionDispatcher(nil, zerolog.Nop())
	d.Run(context.Background())
}

func TestSessionDispatcher_RedisBridge(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	d := NewSessionDispatcher(rdb, zerolog.Nop())
	var received atomic.Int32
	d.Subscribe("u-1", func(e SessionEvent) {
		if e.Token == "t-1" && e.User == nil {
			received.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	// The subscription may not be live yet, so keep publishing until an
	// event makes the round trip.
	assert.Eventually(t, func() bool {
		d.Publish(ctx, SessionEvent{UserID: "u-1", Token: "t-1"})
		return received.Load() > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	require.NoError(t, rdb.Close())
	mr.Close()
	goleak.VerifyNone(t, ignore)
}

func TestSessionDispatcher_PublishFallsBackLocally(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	d := NewSessionDispatcher(rdb, zerolog.Nop())
	var received atomic.Int32
	d.Subscribe("u-1", func(SessionEvent) { received.Add(1) })

	d.Publish(context.Background(), SessionEvent{UserID: "u-1"})
	assert.Equal(t, int32(1), received.Load())
}
