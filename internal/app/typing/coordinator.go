/*
Package typing maintains the live set of users currently typing in each
conversation, backed by the shared cache.

Each typing user has an individual record with a short TTL; the conversation's
set is an index over those records and is never trusted on its own. Every read
filters out members whose record has expired, so a disconnected or stalled
client can never leave a phantom indicator beyond one TTL window.
*/
package typing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vachat/internal/app/cache"
	"vachat/internal/pkg/logx"
)

const (
	recordKeyPrefix = "typing:record:"
	setKeyPrefix    = "typing:set:"

	// setTTLFactor pads the set key's expiry past the individual record TTL so
	// the index never outlives its last possible live member by much.
	setTTLFactor = 2
)

// User is one member of a conversation's typing set.
type User struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	StartedAt   time.Time `json:"startedAt"`
}

// Coordinator owns typing state. It mutates cache keys only; broadcasting the
// resulting sets is the socket layer's job.
type Coordinator struct {
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger

	now func() time.Time
}

// NewCoordinator builds a Coordinator with the given per-user record TTL.
func NewCoordinator(c cache.Cache, ttl time.Duration) *Coordinator {
	return &Coordinator{
		cache:  c,
		ttl:    ttl,
		logger: logx.Logger().With().Str("component", "typing").Logger(),
		now:    time.Now,
	}
}

func recordKey(conversationID, userID string) string {
	return recordKeyPrefix + conversationID + ":" + userID
}

func setKey(conversationID string) string {
	return setKeyPrefix + conversationID
}

// SetTyping upserts (isTyping=true) or removes (isTyping=false) the user's
// typing record and returns the resulting live set for the conversation.
func (c *Coordinator) SetTyping(ctx context.Context, conversationID, userID, displayName string, isTyping bool) ([]User, error) {
	if isTyping {
		record := User{
			UserID:      userID,
			DisplayName: displayName,
			StartedAt:   c.now(),
		}

		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode typing record: %w", err)
		}

		if err := c.cache.Set(ctx, recordKey(conversationID, userID), string(raw), c.ttl); err != nil {
			return nil, fmt.Errorf("write typing record: %w", err)
		}

		if err := c.cache.SAdd(ctx, setKey(conversationID), userID); err != nil {
			return nil, fmt.Errorf("add typing set member: %w", err)
		}

		if err := c.cache.Expire(ctx, setKey(conversationID), c.ttl*setTTLFactor); err != nil {
			return nil, fmt.Errorf("refresh typing set ttl: %w", err)
		}
	} else {
		if err := c.remove(ctx, conversationID, userID); err != nil {
			return nil, err
		}
	}

	return c.Users(ctx, conversationID)
}

// ClearUser removes the user's typing record from one conversation and returns
// the resulting live set. Idempotent with TTL-based expiry.
func (c *Coordinator) ClearUser(ctx context.Context, conversationID, userID string) ([]User, error) {
	if err := c.remove(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return c.Users(ctx, conversationID)
}

// ClearUserEverywhere removes the user's typing records across the given
// conversations, returning the updated live set per conversation that actually
// contained the user. Called on disconnect.
func (c *Coordinator) ClearUserEverywhere(ctx context.Context, userID string, conversationIDs []string) (map[string][]User, error) {
	updated := make(map[string][]User)

	for _, conversationID := range conversationIDs {
		members, err := c.cache.SMembers(ctx, setKey(conversationID))
		if err != nil {
			return nil, fmt.Errorf("list typing set: %w", err)
		}

		present := false
		for _, member := range members {
			if member == userID {
				present = true
				break
			}
		}
		if !present {
			continue
		}

		if err := c.remove(ctx, conversationID, userID); err != nil {
			return nil, err
		}

		users, err := c.Users(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		updated[conversationID] = users
	}

	return updated, nil
}

// Users returns the conversation's current typing set, dropping any member
// whose individual record has expired. Expired members are also pruned from
// the set index as a side effect.
func (c *Coordinator) Users(ctx context.Context, conversationID string) ([]User, error) {
	members, err := c.cache.SMembers(ctx, setKey(conversationID))
	if err != nil {
		return nil, fmt.Errorf("list typing set: %w", err)
	}

	users := make([]User, 0, len(members))

	for _, userID := range members {
		raw, err := c.cache.Get(ctx, recordKey(conversationID, userID))
		if errors.Is(err, cache.ErrMiss) {
			// Record expired: lazily prune the stale index entry.
			if err := c.cache.SRem(ctx, setKey(conversationID), userID); err != nil {
				c.logger.Warn().Err(err).
					Str("conversation_id", conversationID).
					Str("user_id", userID).
					Msg("Failed to prune expired typing set member.")
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read typing record: %w", err)
		}

		var record User
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			c.logger.Warn().Err(err).
				Str("conversation_id", conversationID).
				Str("user_id", userID).
				Msg("Dropping undecodable typing record.")
			continue
		}

		users = append(users, record)
	}

	return users, nil
}

// UsersExcept returns the conversation's typing set without the given user,
// for answering a requester's own query.
func (c *Coordinator) UsersExcept(ctx context.Context, conversationID, exceptUserID string) ([]User, error) {
	users, err := c.Users(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	filtered := users[:0]
	for _, u := range users {
		if u.UserID != exceptUserID {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

func (c *Coordinator) remove(ctx context.Context, conversationID, userID string) error {
	if err := c.cache.Del(ctx, recordKey(conversationID, userID)); err != nil {
		return fmt.Errorf("delete typing record: %w", err)
	}
	if err := c.cache.SRem(ctx, setKey(conversationID), userID); err != nil {
		return fmt.Errorf("remove typing set member: %w", err)
	}
	return nil
}
