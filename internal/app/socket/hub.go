/*
Package socket contains the real-time connection layer: the Hub tracking all
connected clients and their rooms, the Client connection lifecycle, and the
gateway that resolves identities and dispatches events.

This file defines the Hub, the central fan-out point. A room is a named
broadcast group: per-conversation rooms, per-user personal rooms (multi-device
fan-out), and the shared guests room.
*/
package socket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"vachat/internal/pkg/logx"
)

// Hub tracks every connected client and the rooms they belong to.
type Hub struct {
	// mu protects clients and rooms.
	mu sync.RWMutex

	// clients is the set of all connected clients.
	clients map[*Client]struct{}

	// rooms maps room name to its member set.
	rooms map[string]map[*Client]struct{}

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}

	h.logger.Info().
		Str("connection_id", c.connectionID).
		Int("total_clients", len(h.clients)).
		Msg("Client registered.")
}

// Unregister removes a client from the hub and from every room it joined,
// then closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for name, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, name)
			}
		}
	}

	c.closeSend()

	h.logger.Info().
		Str("connection_id", c.connectionID).
		Int("total_clients", len(h.clients)).
		Msg("Client unregistered.")
}

// Join adds the client to the named room, creating the room as needed.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	c.trackRoom(room)
}

// Leave removes the client from the named room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	c.untrackRoom(room)
}

// ToRoom broadcasts an event to every member of the room.
func (h *Hub) ToRoom(room, event string, data any) {
	h.ToRoomExcept(room, event, data, "")
}

// ToRoomExcept broadcasts an event to every member of the room except the
// connection with the given id. Delivery is best-effort: a client whose send
// queue is full simply misses the event.
func (h *Hub) ToRoomExcept(room, event string, data any, exceptConnectionID string) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal broadcast envelope.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for member := range h.rooms[room] {
		if member.connectionID == exceptConnectionID {
			continue
		}
		member.queue(payload)
	}
}

// BroadcastAll broadcasts an event to every connected client.
func (h *Hub) BroadcastAll(event string, data any) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal broadcast envelope.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.queue(payload)
	}
}

// RoomSize returns the number of clients currently in the room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}
