package socket

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

// newTestClient builds a Client detached from any real connection; only the
// send queue and room tracking matter to the Hub.
func newTestClient(connectionID string) *Client {
	return &Client{
		connectionID: connectionID,
		send:         make(chan []byte, 16),
		rooms:        make(map[string]struct{}),
		logger:       zerolog.Nop(),
	}
}

// drain decodes every queued envelope for a client.
func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()

	var out []Envelope
	for {
		select {
		case payload := <-c.send:
			var env Envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				t.Fatalf("queued payload is not a valid envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHubRoomFanOut(t *testing.T) {
	hub := NewHub()

	a := newTestClient("conn_a")
	b := newTestClient("conn_b")
	c := newTestClient("conn_c")

	for _, client := range []*Client{a, b, c} {
		hub.Register(client)
	}
	hub.Join(a, "conversation:c1")
	hub.Join(b, "conversation:c1")

	hub.ToRoom("conversation:c1", "message_received", map[string]any{"id": "m1"})

	if got := len(drain(t, a)); got != 1 {
		t.Errorf("member a received %d events, want 1", got)
	}
	if got := len(drain(t, b)); got != 1 {
		t.Errorf("member b received %d events, want 1", got)
	}
	if got := len(drain(t, c)); got != 0 {
		t.Errorf("non-member c received %d events, want 0", got)
	}
}

func TestHubToRoomExceptSkipsSender(t *testing.T) {
	hub := NewHub()

	a := newTestClient("conn_a")
	b := newTestClient("conn_b")

	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "conversation:c1")
	hub.Join(b, "conversation:c1")

	hub.ToRoomExcept("conversation:c1", "typing_update", map[string]any{}, "conn_a")

	if got := len(drain(t, a)); got != 0 {
		t.Errorf("excluded sender received %d events, want 0", got)
	}
	if got := len(drain(t, b)); got != 1 {
		t.Errorf("other member received %d events, want 1", got)
	}
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub()

	a := newTestClient("conn_a")
	b := newTestClient("conn_b")

	hub.Register(a)
	hub.Register(b)

	hub.BroadcastAll("presence_update", map[string]any{"userId": "u1"})

	for _, client := range []*Client{a, b} {
		events := drain(t, client)
		if len(events) != 1 {
			t.Fatalf("client %s received %d events, want 1", client.connectionID, len(events))
		}
		if events[0].Event != "presence_update" {
			t.Errorf("event name: got %q, want presence_update", events[0].Event)
		}
	}
}

func TestHubRoomSizeAndMembershipTracking(t *testing.T) {
	hub := NewHub()

	a := newTestClient("conn_a")
	hub.Register(a)

	hub.Join(a, "conversation:c1")
	hub.Join(a, "conversation:c2")
	hub.Join(a, "user:u1")

	if got := hub.RoomSize("conversation:c1"); got != 1 {
		t.Errorf("RoomSize: got %d, want 1", got)
	}

	ids := a.ConversationIDs()
	if len(ids) != 2 {
		t.Errorf("ConversationIDs: got %v, want two conversation ids", ids)
	}

	hub.Leave(a, "conversation:c1")
	if got := hub.RoomSize("conversation:c1"); got != 0 {
		t.Errorf("RoomSize after leave: got %d, want 0", got)
	}
	if len(a.ConversationIDs()) != 1 {
		t.Errorf("ConversationIDs after leave: got %v", a.ConversationIDs())
	}
}

func TestHubUnregisterRemovesFromAllRooms(t *testing.T) {
	hub := NewHub()

	a := newTestClient("conn_a")
	b := newTestClient("conn_b")

	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "conversation:c1")
	hub.Join(b, "conversation:c1")

	hub.Unregister(a)

	if got := hub.RoomSize("conversation:c1"); got != 1 {
		t.Errorf("RoomSize after unregister: got %d, want 1", got)
	}

	// The send channel is closed so WritePump terminates.
	if _, open := <-a.send; open {
		t.Error("send channel still open after unregister")
	}

	// A second unregister is a no-op, not a double close.
	hub.Unregister(a)
}

func TestHubFullQueueDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()

	a := &Client{
		connectionID: "conn_a",
		send:         make(chan []byte, 1),
		rooms:        make(map[string]struct{}),
		logger:       zerolog.Nop(),
	}
	hub.Register(a)
	hub.Join(a, "conversation:c1")

	// Second broadcast overflows the 1-slot queue and must return promptly.
	hub.ToRoom("conversation:c1", "message_received", map[string]any{"id": "m1"})
	hub.ToRoom("conversation:c1", "message_received", map[string]any{"id": "m2"})

	if got := len(drain(t, a)); got != 1 {
		t.Errorf("queued events: got %d, want 1", got)
	}
}
