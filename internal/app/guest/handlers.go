package guest

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vachat/internal/app/ai"
	"vachat/internal/pkg/errs"
	"vachat/internal/pkg/logx"
	"vachat/internal/pkg/randx"
)

// systemPrompt frames guest replies and nudges toward registration.
const systemPrompt = "You are a helpful assistant for a chat application. " +
	"The user is trying the product as a guest. Answer their questions helpfully and concisely. " +
	"Where it fits naturally, mention that creating a free account unlocks saved conversations, " +
	"file uploads, and longer replies."

// Conn is the slice of a socket connection the guest handlers need.
type Conn interface {
	ConnectionID() string
	Emit(event string, data any)
}

// Config carries the guest path's limits and AI parameters.
type Config struct {
	// RateLimit is the maximum number of guest messages per RateWindow.
	RateLimit int

	// RateWindow is the rolling window for the guest message limit.
	RateWindow time.Duration

	// GracePeriod is how long a session survives after disconnect.
	GracePeriod time.Duration

	// MaxTokens is the hard ceiling on guest reply length.
	MaxTokens int

	// Model and Temperature are passed through to the completion client.
	Model       string
	Temperature float32
}

// Handlers processes the guest socket events.
type Handlers struct {
	sessions SessionStore
	ai       ai.Client
	cfg      Config
	logger   zerolog.Logger

	now func() time.Time
}

// NewHandlers constructs the guest event handlers.
func NewHandlers(sessions SessionStore, aiClient ai.Client, cfg Config) *Handlers {
	return &Handlers{
		sessions: sessions,
		ai:       aiClient,
		cfg:      cfg,
		logger:   logx.Logger().With().Str("component", "guest").Logger(),
		now:      time.Now,
	}
}

// HandleConnect initializes an empty conversation buffer for the connection.
// If a session already exists for the id (reconnect within the grace window),
// it is retained.
func (h *Handlers) HandleConnect(conn Conn) {
	if existing := h.sessions.Get(conn.ConnectionID()); existing != nil {
		// Reconnect within the grace window: keep the buffer, cancel deletion.
		h.sessions.Put(existing)
		return
	}

	h.sessions.Put(&Session{
		ConnectionID: conn.ConnectionID(),
		CreatedAt:    h.now(),
	})
}

// HandleDisconnect schedules the session for deletion after the grace period
// rather than dropping it immediately, to tolerate brief reconnects.
func (h *Handlers) HandleDisconnect(conn Conn) {
	h.sessions.ScheduleDelete(conn.ConnectionID(), h.cfg.GracePeriod)
}

// HandleSendMessage validates and rate-limits a guest message, echoes it back
// to the sender only, and generates an AI reply with the guest prompt and a
// capped token budget.
func (h *Handlers) HandleSendMessage(ctx context.Context, conn Conn, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		emitError(conn, errs.NewError(errs.ErrInvalidMessageData))
		return
	}

	session := h.sessions.Get(conn.ConnectionID())
	if session == nil {
		session = &Session{ConnectionID: conn.ConnectionID(), CreatedAt: h.now()}
	}

	if h.countRecent(session) >= h.cfg.RateLimit {
		emitError(conn, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	userMsg := Message{
		ID:        randx.ID(),
		Role:      ai.RoleUser,
		Content:   content,
		Timestamp: h.now(),
	}
	session.Messages = append(session.Messages, userMsg)
	h.sessions.Put(session)

	conn.Emit("message_received", guestMessagePayload(userMsg))

	conn.Emit("ai_typing", map[string]any{"isTyping": true})

	reply, err := h.ai.Complete(ctx, h.completionContext(session), ai.Options{
		Model:       h.cfg.Model,
		Temperature: h.cfg.Temperature,
		MaxTokens:   h.cfg.MaxTokens,
	})

	conn.Emit("ai_typing", map[string]any{"isTyping": false})

	if err != nil {
		h.logger.Error().Err(err).
			Str("connection_id", conn.ConnectionID()).
			Msg("Guest AI completion failed.")
		emitError(conn, errs.NewError(errs.ErrAIResponse))
		return
	}

	assistantMsg := Message{
		ID:        randx.ID(),
		Role:      ai.RoleAssistant,
		Content:   reply,
		Timestamp: h.now(),
	}
	session.Messages = append(session.Messages, assistantMsg)
	h.sessions.Put(session)

	conn.Emit("message_received", guestMessagePayload(assistantMsg))
}

// HandleGetHistory returns the in-memory conversation buffer.
func (h *Handlers) HandleGetHistory(conn Conn) {
	messages := []Message{}
	if session := h.sessions.Get(conn.ConnectionID()); session != nil {
		messages = session.Messages
	}

	conn.Emit("conversation_history", map[string]any{
		"messages": messages,
		"isGuest":  true,
	})
}

// HandleClearConversation empties the conversation buffer.
func (h *Handlers) HandleClearConversation(conn Conn) {
	if session := h.sessions.Get(conn.ConnectionID()); session != nil {
		session.Messages = nil
		h.sessions.Put(session)
	}

	conn.Emit("conversation_cleared", map[string]any{
		"timestamp": h.now(),
	})
}

// countRecent counts the guest's own messages inside the rolling rate window.
func (h *Handlers) countRecent(session *Session) int {
	cutoff := h.now().Add(-h.cfg.RateWindow)

	count := 0
	for _, msg := range session.Messages {
		if msg.Role == ai.RoleUser && msg.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// completionContext assembles the guest system prompt plus the buffer.
func (h *Handlers) completionContext(session *Session) []ai.Message {
	messages := make([]ai.Message, 0, len(session.Messages)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})

	for _, msg := range session.Messages {
		messages = append(messages, ai.Message{Role: msg.Role, Content: msg.Content})
	}

	return messages
}

func guestMessagePayload(msg Message) map[string]any {
	return map[string]any{
		"id":        msg.ID,
		"role":      msg.Role,
		"content":   msg.Content,
		"timestamp": msg.Timestamp,
		"isGuest":   true,
	}
}

func emitError(conn Conn, customErr *errs.CustomError) {
	conn.Emit("error", map[string]any{
		"message": customErr.Message,
		"code":    customErr.Code,
	})
}
