package cache

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// testClock advances manually so expiry is deterministic.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestMemory() (*Memory, *testClock) {
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.Now = clock.Now
	return m, clock
}

func TestMemoryGetSet(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty cache: got %v, want ErrMiss", err)
	}

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("Get: got %q, want %q", got, "v")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 5*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock.Advance(4 * time.Second)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	clock.Advance(2 * time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after expiry: got %v, want ErrMiss", err)
	}
}

func TestMemoryExpire(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Expire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}

	clock.Advance(30 * time.Second)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Errorf("Get after TTL extension: %v", err)
	}
}

func TestMemorySetOperations(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()

	if err := m.SAdd(ctx, "s", "a", "b", "c"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}

	card, err := m.SCard(ctx, "s")
	if err != nil {
		t.Fatalf("SCard: %v", err)
	}
	if card != 3 {
		t.Errorf("SCard: got %d, want 3", card)
	}

	if err := m.SRem(ctx, "s", "b"); err != nil {
		t.Fatalf("SRem: %v", err)
	}

	members, err := m.SMembers(ctx, "s")
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	sort.Strings(members)
	if len(members) != 2 || members[0] != "a" || members[1] != "c" {
		t.Errorf("SMembers: got %v, want [a c]", members)
	}
}

func TestMemorySRemDropsEmptySet(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()

	if err := m.SAdd(ctx, "s", "only"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	if err := m.SRem(ctx, "s", "only"); err != nil {
		t.Fatalf("SRem: %v", err)
	}

	card, err := m.SCard(ctx, "s")
	if err != nil {
		t.Fatalf("SCard: %v", err)
	}
	if card != 0 {
		t.Errorf("SCard after draining set: got %d, want 0", card)
	}
}

func TestMemoryIncr(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := m.Incr(ctx, "counter", time.Minute)
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if got != want {
			t.Errorf("Incr: got %d, want %d", got, want)
		}
	}

	// TTL set on the first increment only: the counter resets as one unit.
	clock.Advance(61 * time.Second)

	got, err := m.Incr(ctx, "counter", time.Minute)
	if err != nil {
		t.Fatalf("Incr after window: %v", err)
	}
	if got != 1 {
		t.Errorf("Incr after window: got %d, want 1", got)
	}
}
