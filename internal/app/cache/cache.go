/*
Package cache abstracts the shared key-value store used for all ephemeral
real-time state: presence records, typing sets, and rate-limit counters.

All operations are single-key by design, so no client-side locking or
multi-key transactions are required. Two implementations exist: a Redis
client for shared deployments and an in-process store for single-node
setups and tests.
*/
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Cache is the shared key-value store contract consumed by the presence
// tracker, typing coordinator, and event rate limiter.
type Cache interface {
	// Get returns the string value stored at key, or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A non-zero ttl sets per-key expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// SAdd adds members to the set at key.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from the set at key.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of the set at key. An absent set yields an empty slice.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SCard returns the cardinality of the set at key.
	SCard(ctx context.Context, key string) (int64, error)

	// Incr increments the integer counter at key and returns the new value.
	// When the increment creates the key, ttl is applied as its expiry, which
	// makes the counter a fixed-window rate limiter.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
