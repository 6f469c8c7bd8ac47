package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// SessionEventsChannel carries session changes between server instances.
const SessionEventsChannel = "session:events"

// SessionEvent reports a change to a user's session. A nil User means the
// session identified by Token signed out; an empty Token applies to every
// session of the user (a profile change).
type SessionEvent struct {
	UserID string       `json:"user_id"`
	Token  string       `json:"token,omitempty"`
	User   *models.User `json:"user"`
}

// SignedOut reports whether the event ends the session holding token.
func (e SessionEvent) SignedOut(token string) bool {
	return e.User == nil && (e.Token == "" || e.Token == token)
}

type SessionListener func(SessionEvent)

// SessionDispatcher fans session events out to the listeners registered for
// a user. With a Redis client the events go through pub/sub so that
// listeners on every instance see them; Run must then be started.
type SessionDispatcher struct {
	rdb    *redis.Client
	logger zerolog.Logger

	mu        sync.RWMutex
	nextID    uint64
	listeners map[string]map[uint64]SessionListener
}

func NewSessionDispatcher(rdb *redis.Client, logger zerolog.Logger) *SessionDispatcher {
	return &SessionDispatcher{
		rdb:       rdb,
		logger:    logger,
		listeners: make(map[string]map[uint64]SessionListener),
	}
}

// Subscribe registers listener for userID's events and returns the function
// that removes it. Calling the returned function more than once is safe.
func (d *SessionDispatcher) Subscribe(userID string, listener SessionListener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	if d.listeners[userID] == nil {
		d.listeners[userID] = make(map[uint64]SessionListener)
	}
	d.listeners[userID][id] = listener
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.listeners[userID], id)
			if len(d.listeners[userID]) == 0 {
				delete(d.listeners, userID)
			}
		})
	}
}

// Publish announces an event. Without Redis, or when publishing fails, it is
// delivered to local listeners directly.
func (d *SessionDispatcher) Publish(ctx context.Context, event SessionEvent) {
	if d.rdb != nil {
		data, err := json.Marshal(event)
		if err == nil {
			err = d.rdb.Publish(ctx, SessionEventsChannel, data).Err()
		}
		if err == nil {
			return
		}
		d.logger.Warn().Err(err).Msg("session event publish failed; delivering locally")
	}
	d.deliver(event)
}

// ListenerCount returns the number of listeners registered for userID.
func (d *SessionDispatcher) ListenerCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[userID])
}

func (d *SessionDispatcher) deliver(event SessionEvent) {
	d.mu.RLock()
	targets := make([]SessionListener, 0, len(d.listeners[event.UserID]))
	for _, l := range d.listeners[event.UserID] {
		targets = append(targets, l)
	}
	d.mu.RUnlock()

	for _, l := range targets {
		l(event)
	}
}

// Run relays events from Redis to local listeners until ctx is done. It
// reconnects with backoff when the subscription drops.
func (d *SessionDispatcher) Run(ctx context.Context) {
	if d.rdb == nil {
		d.logger.Info().Msg("redis not configured; session events stay local")
		return
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := d.receive(ctx, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn().Err(err).Dur("backoff", backoff).Msg("session event subscriber error")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (d *SessionDispatcher) receive(ctx context.Context, onMessage func()) error {
	pubsub := d.rdb.Subscribe(ctx, SessionEventsChannel)
	defer pubsub.Close()
	// A blocked ReceiveMessage does not observe ctx; closing the
	// subscription unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = pubsub.Close() })
	defer stop()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	d.logger.Info().Str("channel", SessionEventsChannel).Msg("session event subscriber started")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		onMessage()

		var event SessionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			d.logger.Warn().Err(err).Msg("failed to unmarshal session event")
			continue
		}
		d.deliver(event)
	}
}
