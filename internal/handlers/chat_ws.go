package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/middleware"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/internal/services"
)

const (
	wsReadLimit     = 64 * 1024
	wsPongWait      = 90 * time.Second
	wsPingInterval  = 30 * time.Second
	wsWriteWait     = 10 * time.Second
	maxTranscript   = 100
	chatEventBuffer = 8
)

// Client message types.
const (
	ChatTypeMessage = "message"
	ChatTypeHistory = "history"
	ChatTypePing    = "ping"
)

// Server event types.
const (
	ChatEventReady     = "ready"
	ChatEventReply     = "reply"
	ChatEventHistory   = "history"
	ChatEventLanguage  = "language"
	ChatEventSignedOut = "signed_out"
	ChatEventError     = "error"
	ChatEventPong      = "pong"
)

// ChatClientMessage represents messages coming from the frontend over WebSocket.
type ChatClientMessage struct {
	Type string `json:"type"` // "message", "history", "ping"
	Text string `json:"text,omitempty"`
}

// ChatEvent is everything the server sends over the socket.
type ChatEvent struct {
	Type           string               `json:"type"`
	Message        *models.ChatMessage  `json:"message,omitempty"`
	Messages       []models.ChatMessage `json:"messages,omitempty"`
	Language       i18n.Lang            `json:"language,omitempty"`
	QuickQuestions []string             `json:"quickQuestions,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// chatConversation is the per-connection state. The transcript lives only
// as long as the socket.
type chatConversation struct {
	mu         sync.Mutex
	lang       i18n.Lang
	transcript []models.ChatMessage
}

func (c *chatConversation) language() i18n.Lang {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

// setLanguage reports whether the language changed.
func (c *chatConversation) setLanguage(l i18n.Lang) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lang == l {
		return false
	}
	c.lang = l
	return true
}

func (c *chatConversation) append(msgs ...models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, msgs...)
	if over := len(c.transcript) - maxTranscript; over > 0 {
		c.transcript = append([]models.ChatMessage(nil), c.transcript[over:]...)
	}
}

func (c *chatConversation) history() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage{}, c.transcript...)
}

// ChatWebSocket runs the assistant over a WebSocket. The connection follows
// the session: a language change is announced and applied to later replies,
// and signing out (here or from another login) closes it. Server shutdown
// closes it with a going-away frame.
func (h *Handler) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	token := middleware.TokenFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	conv := &chatConversation{lang: h.lang(r)}
	events := make(chan ChatEvent, chatEventBuffer)
	signedOut := make(chan struct{})
	var signOutOnce sync.Once

	unsubscribe, err := h.identity.Observe(ctx, token, func(e services.SessionEvent) {
		if e.SignedOut(token) {
			signOutOnce.Do(func() { close(signedOut) })
			return
		}
		// Only profile changes (no token) move the language; the initial
		// value must not override an explicit ?lang.
		if e.User == nil || e.Token != "" {
			return
		}
		lang := i18n.Normalize(e.User.PreferredLanguage)
		if conv.setLanguage(lang) {
			select {
			case events <- ChatEvent{Type: ChatEventLanguage, Language: lang, QuickQuestions: h.assistant.QuickQuestions(lang)}:
			default:
			}
		}
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to observe session")
		return
	}
	defer unsubscribe()

	// Writer goroutine: the only one that writes to conn.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				if h.base.Err() != nil {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(wsWriteWait))
				}
				// Unblocks the reader.
				_ = conn.Close()
				return
			case evt := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-signedOut:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteJSON(ChatEvent{Type: ChatEventSignedOut})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
					time.Now().Add(wsWriteWait))
				_ = conn.Close()
				return
			}
		}
	}()
	defer func() {
		cancel()
		<-writerDone
	}()

	send := func(evt ChatEvent) bool {
		select {
		case events <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	lang := conv.language()
	if !send(ChatEvent{Type: ChatEventReady, Language: lang, QuickQuestions: h.assistant.QuickQuestions(lang)}) {
		return
	}

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg ChatClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		var evt ChatEvent
		switch msg.Type {
		case ChatTypeMessage:
			evt = h.chatTurn(ctx, user.ID, conv, msg.Text)
		case ChatTypeHistory:
			evt = ChatEvent{Type: ChatEventHistory, Messages: conv.history()}
		case ChatTypePing:
			evt = ChatEvent{Type: ChatEventPong}
		default:
			continue
		}
		if !send(evt) {
			return
		}
	}
}

func (h *Handler) chatTurn(ctx context.Context, userID string, conv *chatConversation, text string) ChatEvent {
	lang := conv.language()
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatEvent{Type: ChatEventError, Error: h.catalog.T(lang, "error.message_required")}
	}

	question := models.ChatMessage{Role: models.RoleUser, Content: text}
	reply := h.assistant.Reply(ctx, text, h.healthContext(ctx, userID), lang)
	conv.append(question, reply)
	return ChatEvent{Type: ChatEventReply, Message: &reply}
}
