/*
Package store provides access to the durable relational store backing the chat
application: users, conversations, messages, and uploaded files.

The real-time layer consumes it through the Store interface for ownership
checks, message persistence, quota counting, and last-active bookkeeping.
*/
package store

import (
	"context"
	"errors"
	"time"

	"vachat/internal/app/user"
)

// ErrNotFound is returned when the requested row does not exist, or exists but
// is not owned by the requesting user. Ownership lookups deliberately do not
// distinguish the two cases.
var ErrNotFound = errors.New("store: not found")

// Message roles as persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a persisted chat conversation owned by a single user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a persisted chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	FileIDs        []string  `json:"fileIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// File is a persisted record of an uploaded file. The object itself lives in
// S3 under Key; the row carries ownership and display metadata.
type File struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Store is the durable-store contract consumed by the real-time layer.
type Store interface {
	// UserByID returns the user with the given id, or ErrNotFound.
	UserByID(ctx context.Context, id string) (*user.User, error)

	// TouchUserLastActive updates the user's last-active timestamp to now.
	TouchUserLastActive(ctx context.Context, id string) error

	// ConversationByIDAndOwner returns the conversation only when it exists
	// and is owned by ownerID; otherwise ErrNotFound.
	ConversationByIDAndOwner(ctx context.Context, id, ownerID string) (*Conversation, error)

	// CreateMessage persists a message and fills in its CreatedAt.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListMessages returns one page of a conversation's messages in
	// chronological order, plus the total message count for pagination.
	ListMessages(ctx context.Context, conversationID string, page, limit int) ([]Message, int64, error)

	// RecentMessages returns the newest limit messages of a conversation in
	// chronological order, for assembling AI completion context.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// MessageByID returns the message with the given id within the
	// conversation, or ErrNotFound.
	MessageByID(ctx context.Context, id, conversationID string) (*Message, error)

	// DeleteMessage removes a message by id.
	DeleteMessage(ctx context.Context, id string) error

	// CountMessagesToday returns how many user-role messages the user has
	// persisted since midnight UTC. Used for daily quota enforcement.
	CountMessagesToday(ctx context.Context, userID string) (int64, error)

	// FilesByIDsAndOwner returns the file rows for the given ids that are
	// owned by ownerID. Callers compare lengths to detect foreign files.
	FilesByIDsAndOwner(ctx context.Context, ids []string, ownerID string) ([]File, error)
}
