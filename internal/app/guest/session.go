/*
Package guest implements the unauthenticated chat path: an ephemeral,
connection-scoped conversation buffer with local rate limiting and AI replies,
fully isolated from the authenticated data model.

Nothing here touches the durable store or the shared cache. State is keyed by
connection id and lives only in process memory; a server restart loses all
guest context, which is an accepted property of the design.
*/
package guest

import (
	"sync"
	"time"
)

// Message is one entry of a guest's conversation buffer.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one guest connection's conversation state.
type Session struct {
	ConnectionID string
	Messages     []Message
	CreatedAt    time.Time
}

// SessionStore holds guest sessions keyed by connection id. The interface
// exists so a multi-instance deployment can swap the in-process map for a
// distributed cache; lifecycle is always driven explicitly by
// connect/disconnect/grace-timer events.
type SessionStore interface {
	// Get returns the session for the connection, or nil.
	Get(connectionID string) *Session

	// Put stores the session, cancelling any pending scheduled deletion.
	Put(session *Session)

	// Delete removes the session immediately.
	Delete(connectionID string)

	// ScheduleDelete removes the session after the grace period unless the
	// session is Put again first (reconnect within the grace window).
	ScheduleDelete(connectionID string, after time.Duration)
}

// MemoryStore is the in-process SessionStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timers   map[string]*time.Timer
}

// NewMemoryStore returns an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		timers:   make(map[string]*time.Timer),
	}
}

func (s *MemoryStore) Get(connectionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[connectionID]
}

func (s *MemoryStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimer(session.ConnectionID)
	s.sessions[session.ConnectionID] = session
}

func (s *MemoryStore) Delete(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimer(connectionID)
	delete(s.sessions, connectionID)
}

func (s *MemoryStore) ScheduleDelete(connectionID string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimer(connectionID)
	s.timers[connectionID] = time.AfterFunc(after, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, connectionID)
		delete(s.sessions, connectionID)
	})
}

// cancelTimer stops a pending deletion. Callers must hold mu.
func (s *MemoryStore) cancelTimer(connectionID string) {
	if timer, ok := s.timers[connectionID]; ok {
		timer.Stop()
		delete(s.timers, connectionID)
	}
}
