/*
Package socket contains the real-time connection layer.

This file defines the JSON event envelope and the inbound payload types.
Every payload is validated at the dispatch boundary before any handler logic
runs; unrecognized shapes are rejected with a validation error instead of
propagating partial data.
*/
package socket

import "encoding/json"

// Envelope is the outbound wire format: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundEnvelope is the inbound wire format; Data stays raw until the event
// name selects the payload type.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names, authenticated path.
const (
	EventJoinConversation   = "join_conversation"
	EventLeaveConversation  = "leave_conversation"
	EventSendMessage        = "send_message"
	EventGetHistory         = "get_conversation_history"
	EventDeleteMessage      = "delete_message"
	EventTyping             = "typing"
	EventTypingTimeout      = "typing_timeout"
	EventGetTypingUsers     = "get_typing_users"
	EventUpdatePresence     = "update_presence"
	EventGetPresence        = "get_presence"
	EventGetOnlineCount     = "get_online_count"
	EventActivityPing       = "activity_ping"
	EventPing               = "ping"
	EventClearConversation  = "clear_conversation"
)

// conversationPayload covers the events carrying only a conversation id.
type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type sendMessagePayload struct {
	ConversationID string   `json:"conversationId"`
	Content        string   `json:"content"`
	FileIDs        []string `json:"fileIds,omitempty"`
}

type historyPayload struct {
	ConversationID string `json:"conversationId"`
	Page           int    `json:"page,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type deleteMessagePayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type updatePresencePayload struct {
	Status string `json:"status"`
}

type getPresencePayload struct {
	UserIDs []string `json:"userIds"`
}

// guestSendPayload is the guest path's send_message shape: content only.
type guestSendPayload struct {
	Content string `json:"content"`
}
