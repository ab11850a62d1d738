package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"vachat/internal/app/cache"
)

// brokenCache fails every operation, standing in for an unreachable Redis.
type brokenCache struct{}

var errCacheDown = errors.New("cache unreachable")

func (brokenCache) Get(ctx context.Context, key string) (string, error) { return "", errCacheDown }
func (brokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errCacheDown
}
func (brokenCache) Del(ctx context.Context, keys ...string) error                 { return errCacheDown }
func (brokenCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errCacheDown
}
func (brokenCache) SAdd(ctx context.Context, key string, members ...string) error { return errCacheDown }
func (brokenCache) SRem(ctx context.Context, key string, members ...string) error { return errCacheDown }
func (brokenCache) SMembers(ctx context.Context, key string) ([]string, error) {
	return nil, errCacheDown
}
func (brokenCache) SCard(ctx context.Context, key string) (int64, error) { return 0, errCacheDown }
func (brokenCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errCacheDown
}

func TestEventLimiterEnforcesLimit(t *testing.T) {
	l := NewEventLimiter(cache.NewMemory(), 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "u1") {
			t.Fatalf("event %d rejected below the limit", i+1)
		}
	}

	if l.Allow(ctx, "u1") {
		t.Error("event above the limit was allowed")
	}
}

func TestEventLimiterScopesPerIdentity(t *testing.T) {
	l := NewEventLimiter(cache.NewMemory(), 1, time.Minute)
	ctx := context.Background()

	if !l.Allow(ctx, "u1") {
		t.Fatal("first event for u1 rejected")
	}
	if l.Allow(ctx, "u1") {
		t.Error("second event for u1 allowed")
	}

	// An exhausted budget for one identity never affects another.
	if !l.Allow(ctx, "u2") {
		t.Error("first event for u2 rejected")
	}
}

func TestEventLimiterWindowResets(t *testing.T) {
	m := cache.NewMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now }

	l := NewEventLimiter(m, 1, time.Minute)
	ctx := context.Background()

	if !l.Allow(ctx, "u1") {
		t.Fatal("first event rejected")
	}
	if l.Allow(ctx, "u1") {
		t.Fatal("second event in the same window allowed")
	}

	now = now.Add(61 * time.Second)

	if !l.Allow(ctx, "u1") {
		t.Error("event in a fresh window rejected")
	}
}

func TestEventLimiterFailsOpen(t *testing.T) {
	l := NewEventLimiter(brokenCache{}, 1, time.Minute)
	ctx := context.Background()

	// Well above the configured limit: every event still passes.
	for i := 0; i < 10; i++ {
		if !l.Allow(ctx, "u1") {
			t.Fatalf("event %d rejected while the cache is down", i+1)
		}
	}
}
