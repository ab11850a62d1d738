package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// entry holds a string value or a set, with an optional absolute expiry.
type entry struct {
	value     string
	set       map[string]struct{}
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Cache implementation. It serves single-node
// deployments without a Redis dependency and gives tests deterministic
// expiry via the Now hook.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry

	// Now supplies the current time for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		Now:     time.Now,
	}
}

// get returns the live entry for key, dropping it first if expired.
// Callers must hold mu.
func (m *Memory) get(key string) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if e.expired(m.Now()) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.set != nil {
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil {
		return nil
	}
	e.expiresAt = m.Now().Add(ttl)
	return nil
}

func (m *Memory) SAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.set == nil {
		e = &entry{set: make(map[string]struct{})}
		m.entries[key] = e
	}
	for _, member := range members {
		e.set[member] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.set == nil {
		return nil
	}
	for _, member := range members {
		delete(e.set, member)
	}
	if len(e.set) == 0 {
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.set == nil {
		return []string{}, nil
	}
	members := make([]string, 0, len(e.set))
	for member := range e.set {
		members = append(members, member)
	}
	return members, nil
}

func (m *Memory) SCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.set == nil {
		return 0, nil
	}
	return int64(len(e.set)), nil
}

func (m *Memory) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.set != nil {
		e = &entry{value: "0"}
		if ttl > 0 {
			e.expiresAt = m.Now().Add(ttl)
		}
		m.entries[key] = e
	}

	count, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		count = 0
	}
	count++
	e.value = strconv.FormatInt(count, 10)
	return count, nil
}
