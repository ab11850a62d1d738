/*
Package socket contains the real-time connection layer.

This file defines the Gateway: the dispatch point between one connection and
the domain handlers. It owns the connect/disconnect lifecycle, per-event rate
limiting, payload decoding, and the split between the authenticated and guest
event surfaces. Every handler invocation runs behind a recover boundary so a
programming error in one handler never takes down the connection.
*/
package socket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"vachat/internal/app/chat"
	"vachat/internal/app/guest"
	"vachat/internal/app/presence"
	"vachat/internal/app/store"
	"vachat/internal/pkg/errs"
	"vachat/internal/pkg/limiter"
	"vachat/internal/pkg/logx"
)

// Gateway wires connections to the domain handler sets.
type Gateway struct {
	hub      *Hub
	chat     *chat.Handlers
	guests   *guest.Handlers
	presence *presence.Tracker
	store    store.Store
	limiter  *limiter.EventLimiter

	// batchLimit caps get_presence lookups per request.
	batchLimit int

	logger zerolog.Logger
}

// NewGateway constructs the event dispatch layer.
func NewGateway(hub *Hub, chatHandlers *chat.Handlers, guestHandlers *guest.Handlers, tracker *presence.Tracker, st store.Store, eventLimiter *limiter.EventLimiter, batchLimit int) *Gateway {
	return &Gateway{
		hub:        hub,
		chat:       chatHandlers,
		guests:     guestHandlers,
		presence:   tracker,
		store:      st,
		limiter:    eventLimiter,
		batchLimit: batchLimit,
		logger:     logx.Logger().With().Str("component", "gateway").Logger(),
	}
}

// Hub exposes the gateway's hub for presence broadcasting and server wiring.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// HandleConnect registers the connection and runs the identity-specific
// connect sequence. deviceInfo is the handshake's User-Agent, kept for
// presence diagnostics.
func (g *Gateway) HandleConnect(ctx context.Context, c *Client, deviceInfo string) {
	g.hub.Register(c)

	if c.identity.IsGuest() {
		g.hub.Join(c, chat.GuestsRoom)
		g.guests.HandleConnect(c)

		c.Emit("connected", map[string]any{
			"userId":    nil,
			"isGuest":   true,
			"socketId":  c.connectionID,
			"timestamp": time.Now().UTC(),
		})
		return
	}

	u := c.User()
	g.hub.Join(c, chat.UserRoom(u.ID))

	if err := g.presence.HandleConnect(ctx, u.ID, c.connectionID, deviceInfo); err != nil {
		g.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Presence init on connect failed.")
	}

	if err := g.store.TouchUserLastActive(ctx, u.ID); err != nil {
		g.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Failed to update last-active on connect.")
	}

	c.Emit("connected", map[string]any{
		"userId":    u.ID,
		"isGuest":   false,
		"socketId":  c.connectionID,
		"timestamp": time.Now().UTC(),
	})
}

// handleDisconnect runs the identity-specific teardown and removes the
// connection from the hub. Cleanup uses a background context: the connection
// is already gone, and its state must still be released.
func (g *Gateway) handleDisconnect(c *Client) {
	ctx := context.Background()

	if c.identity.IsGuest() {
		g.guests.HandleDisconnect(c)
		g.hub.Unregister(c)
		return
	}

	u := c.User()

	// Offline only when this was the user's last open connection; other
	// devices in the personal room keep the user present.
	lastDevice := g.hub.RoomSize(chat.UserRoom(u.ID)) <= 1

	g.chat.HandleDisconnect(ctx, c)

	if lastDevice {
		if err := g.presence.HandleDisconnect(ctx, u.ID); err != nil {
			g.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Presence teardown on disconnect failed.")
		}
	}

	g.hub.Unregister(c)
}

// processInbound decodes one inbound frame and dispatches it. Runs on the
// connection's ReadPump goroutine.
func (g *Gateway) processInbound(c *Client, messageBytes []byte) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().
				Interface("panic", r).
				Str("connection_id", c.connectionID).
				Bytes("message_bytes", messageBytes).
				Msg("Recovered from panic in event handler.")
			chat.EmitError(c, errs.NewError(errs.ErrInternal))
		}
	}()

	var inbound inboundEnvelope
	if err := json.Unmarshal(messageBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).Bytes("message_bytes", messageBytes).Msg("Client sent invalid JSON")
		chat.EmitError(c, errs.NewError(errs.ErrInvalidMessageData))
		return
	}

	if !g.limiter.Allow(context.Background(), g.limitIdentity(c)) {
		chat.EmitError(c, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	ctx := context.Background()

	if inbound.Event == EventPing {
		c.Emit("pong", map[string]any{"timestamp": time.Now().UTC()})
		return
	}

	if c.identity.IsGuest() {
		g.dispatchGuest(ctx, c, inbound)
		return
	}

	g.dispatchAuthenticated(ctx, c, inbound)
}

// limitIdentity scopes the event rate limit per user for authenticated
// connections and per connection for guests.
func (g *Gateway) limitIdentity(c *Client) string {
	if c.identity.IsGuest() {
		return c.connectionID
	}
	return c.identity.User.ID
}

func (g *Gateway) dispatchGuest(ctx context.Context, c *Client, inbound inboundEnvelope) {
	switch inbound.Event {
	case EventSendMessage:
		var payload guestSendPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.guests.HandleSendMessage(ctx, c, payload.Content)

	case EventGetHistory:
		g.guests.HandleGetHistory(c)

	case EventClearConversation:
		g.guests.HandleClearConversation(c)

	default:
		c.logger.Warn().Str("event", inbound.Event).Msg("Guest sent unsupported event")
		chat.EmitError(c, errs.NewError(errs.ErrInvalidMessageData))
	}
}

func (g *Gateway) dispatchAuthenticated(ctx context.Context, c *Client, inbound inboundEnvelope) {
	switch inbound.Event {
	case EventJoinConversation:
		var payload conversationPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleJoinConversation(ctx, c, payload.ConversationID)

	case EventLeaveConversation:
		var payload conversationPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleLeaveConversation(ctx, c, payload.ConversationID)

	case EventSendMessage:
		var payload sendMessagePayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleSendMessage(ctx, c, chat.SendMessageInput{
			ConversationID: payload.ConversationID,
			Content:        payload.Content,
			FileIDs:        payload.FileIDs,
		})

	case EventGetHistory:
		var payload historyPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleGetHistory(ctx, c, payload.ConversationID, payload.Page, payload.Limit)

	case EventDeleteMessage:
		var payload deleteMessagePayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleDeleteMessage(ctx, c, payload.MessageID, payload.ConversationID)

	case EventTyping:
		var payload typingPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleTyping(ctx, c, payload.ConversationID, payload.IsTyping)

	case EventTypingTimeout:
		var payload conversationPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleTypingTimeout(ctx, c, payload.ConversationID)

	case EventGetTypingUsers:
		var payload conversationPayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.chat.HandleGetTypingUsers(ctx, c, payload.ConversationID)

	case EventUpdatePresence:
		var payload updatePresencePayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.handleUpdatePresence(ctx, c, payload.Status)

	case EventGetPresence:
		var payload getPresencePayload
		if !decodePayload(c, inbound.Data, &payload) {
			return
		}
		g.handleGetPresence(ctx, c, payload.UserIDs)

	case EventGetOnlineCount:
		g.handleGetOnlineCount(ctx, c)

	case EventActivityPing:
		if err := g.presence.Activity(ctx, c.User().ID); err != nil {
			g.logger.Warn().Err(err).Str("user_id", c.User().ID).Msg("Activity refresh failed.")
		}

	default:
		c.logger.Warn().Str("event", inbound.Event).Msg("Client sent unsupported event")
		chat.EmitError(c, errs.NewError(errs.ErrInvalidMessageData))
	}
}

func (g *Gateway) handleUpdatePresence(ctx context.Context, c *Client, status string) {
	if !presence.ValidStatus(status) {
		chat.EmitError(c, errs.NewError(errs.ErrInvalidPresenceStatus))
		return
	}

	record, err := g.presence.SetStatus(ctx, c.User().ID, status)
	if err != nil {
		g.logger.Error().Err(err).Str("user_id", c.User().ID).Msg("Presence status update failed.")
		chat.EmitError(c, errs.NewError(errs.ErrInternal))
		return
	}

	c.Emit("presence_updated", map[string]any{
		"presence": record,
	})
}

func (g *Gateway) handleGetPresence(ctx context.Context, c *Client, userIDs []string) {
	if len(userIDs) == 0 {
		chat.EmitError(c, errs.NewError(errs.ErrInvalidUserIDs))
		return
	}
	if len(userIDs) > g.batchLimit {
		chat.EmitError(c, errs.NewError(errs.ErrTooManyUserIDs, g.batchLimit))
		return
	}

	records, err := g.presence.GetMany(ctx, userIDs)
	if err != nil {
		g.logger.Error().Err(err).Int("batch_size", len(userIDs)).Msg("Presence batch read failed.")
		chat.EmitError(c, errs.NewError(errs.ErrGetPresence))
		return
	}

	c.Emit("presence_data", map[string]any{
		"presences": records,
	})
}

func (g *Gateway) handleGetOnlineCount(ctx context.Context, c *Client) {
	count, err := g.presence.OnlineCount(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("Online count read failed.")
		chat.EmitError(c, errs.NewError(errs.ErrGetPresence))
		return
	}

	c.Emit("online_count", map[string]any{
		"count": count,
	})
}

// decodePayload unmarshals an event payload, rejecting malformed shapes with
// a validation error.
func decodePayload(c *Client, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		chat.EmitError(c, errs.NewError(errs.ErrInvalidMessageData))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent malformed event payload")
		chat.EmitError(c, errs.NewError(errs.ErrInvalidMessageData))
		return false
	}
	return true
}
