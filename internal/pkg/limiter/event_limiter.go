package limiter

import (
	"context"
	"time"

	"vachat/internal/app/cache"
	"vachat/internal/pkg/logx"
)

const eventCounterPrefix = "ratelimit:events:"

// EventLimiter caps the number of socket events an identity may emit per
// window, backed by a shared-cache counter so all of a user's connections
// share one budget.
//
// The limiter fails open: if the cache is unreachable, events are allowed and
// a warning is logged. An infra failure must never surface to users as a
// false rate-limit rejection.
type EventLimiter struct {
	cache  cache.Cache
	limit  int
	window time.Duration
}

// NewEventLimiter creates a limiter allowing limit events per window per identity.
func NewEventLimiter(c cache.Cache, limit int, window time.Duration) *EventLimiter {
	return &EventLimiter{
		cache:  c,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the identity may emit another event in the current window.
func (l *EventLimiter) Allow(ctx context.Context, identity string) bool {
	count, err := l.cache.Incr(ctx, eventCounterPrefix+identity, l.window)
	if err != nil {
		logx.Warn("Event rate limiter cache unavailable, failing open.", "identity", identity, "error", err.Error())
		return true
	}

	return count <= int64(l.limit)
}
