/*
Package chat implements the authenticated real-time path: conversation room
lifecycle, message persistence and fan-out, AI reply orchestration, typing
events, and disconnect cleanup.

This file defines room naming and the contracts the handlers need from the
socket layer. Handlers never hold socket connections directly; they talk to a
Session (one connection) and a Broadcaster (room fan-out), which keeps the
business logic testable without a network.
*/
package chat

import (
	"strings"

	"vachat/internal/app/user"
)

// GuestsRoom is the shared room all guest connections join.
const GuestsRoom = "guests"

const (
	conversationRoomPrefix = "conversation:"
	userRoomPrefix         = "user:"
)

// ConversationRoom returns the room name fanning out a conversation's events.
func ConversationRoom(conversationID string) string {
	return conversationRoomPrefix + conversationID
}

// UserRoom returns the personal room carrying a user's multi-device echo.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// ConversationIDFromRoom extracts the conversation id from a room name,
// returning false for non-conversation rooms.
func ConversationIDFromRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, conversationRoomPrefix) {
		return "", false
	}
	return room[len(conversationRoomPrefix):], true
}

// Session is one authenticated connection as seen by the handlers.
type Session interface {
	// ConnectionID identifies the underlying socket connection.
	ConnectionID() string

	// User returns the authenticated identity attached to the connection.
	User() user.User

	// Emit queues an event to this connection only.
	Emit(event string, data any)

	// JoinRoom and LeaveRoom manage the connection's room membership.
	JoinRoom(name string)
	LeaveRoom(name string)

	// ConversationIDs lists the conversations whose rooms the connection has joined.
	ConversationIDs() []string
}

// Broadcaster fans events out to rooms. Delivery is best-effort with no
// retries; both signals it carries (messages, typing) are reconstructible
// from durable or TTL-bound state.
type Broadcaster interface {
	ToRoom(room, event string, data any)
	ToRoomExcept(room, event string, data any, exceptConnectionID string)
	RoomSize(room string) int
}
