/*
Package socket contains the real-time connection layer.

This file defines the Client struct, representing one active WebSocket
connection. It manages the connection lifecycle, the message communication
loops (ReadPump and WritePump), and the room membership view the domain
handlers use for disconnect cleanup.
*/
package socket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vachat/internal/app/chat"
	"vachat/internal/app/user"
	"vachat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// capacity of the per-client outbound queue.
	sendQueueSize = 256
)

// Client represents one active WebSocket connection and its resolved identity.
type Client struct {
	// the gateway that dispatches this client's inbound events.
	gateway *Gateway

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity resolved at handshake time; immutable for the connection's lifetime.
	identity Identity

	// connectionID keys this connection's ephemeral state.
	connectionID string

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// closeOnce guards the send channel against double close.
	closeOnce sync.Once

	// mu protects rooms.
	mu sync.Mutex

	// rooms is this connection's own membership view, maintained by the Hub.
	rooms map[string]struct{}

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(gateway *Gateway, wsConn *websocket.Conn, identity Identity) *Client {
	connectionID := NewConnectionID()

	clientLogger := logx.Logger().With().
		Str("connection_id", connectionID).
		Bool("is_guest", identity.IsGuest()).
		Logger()
	if !identity.IsGuest() {
		clientLogger = clientLogger.With().Str("user_id", identity.User.ID).Logger()
	}

	return &Client{
		gateway:      gateway,
		conn:         wsConn,
		identity:     identity,
		connectionID: connectionID,
		send:         make(chan []byte, sendQueueSize),
		rooms:        make(map[string]struct{}),
		logger:       clientLogger,
	}
}

// ConnectionID returns the connection's ephemeral identifier.
func (c *Client) ConnectionID() string {
	return c.connectionID
}

// User returns the authenticated user. Only meaningful when the identity is
// not a guest.
func (c *Client) User() user.User {
	if c.identity.User == nil {
		return user.User{}
	}
	return *c.identity.User
}

// Emit queues a single event for this connection.
func (c *Client) Emit(event string, data any) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event envelope.")
		return
	}
	c.queue(payload)
}

// JoinRoom adds this connection to the named room.
func (c *Client) JoinRoom(room string) {
	c.gateway.hub.Join(c, room)
}

// LeaveRoom removes this connection from the named room.
func (c *Client) LeaveRoom(room string) {
	c.gateway.hub.Leave(c, room)
}

// ConversationIDs returns the conversation ids of every conversation room
// this connection has joined. Used for typing cleanup on disconnect.
func (c *Client) ConversationIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for room := range c.rooms {
		if id, ok := chat.ConversationIDFromRoom(room); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// trackRoom records room membership on the client side. Called by the Hub
// under its own lock.
func (c *Client) trackRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

// untrackRoom drops room membership on the client side. Called by the Hub
// under its own lock.
func (c *Client) untrackRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// queue attempts to enqueue an already-marshaled payload. Delivery is
// best-effort: when the queue is full, the event is dropped and logged
// instead of blocking the broadcaster.
func (c *Client) queue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping event.")
	}
}

// closeSend closes the send channel exactly once, terminating WritePump.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), event parsing, and performs cleanup upon
// connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.gateway.processInbound(c, messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's
// ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.gateway.handleDisconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// WritePump handles writing messages from the Client.send channel to the
// WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing
// them to the WebSocket. Returns true if the WritePump loop should continue,
// false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the
// connection heartbeat. Returns false if the WritePump loop should terminate
// due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
