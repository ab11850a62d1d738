package socket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vachat/internal/app/ai"
	"vachat/internal/app/cache"
	"vachat/internal/app/chat"
	"vachat/internal/app/guest"
	"vachat/internal/app/presence"
	"vachat/internal/app/typing"
	"vachat/internal/app/user"
	"vachat/internal/pkg/errs"
	"vachat/internal/pkg/limiter"
)

type nullAI struct{}

func (nullAI) Complete(ctx context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	return "ok", nil
}

// newTestGateway wires a gateway against in-process fakes: memory cache,
// no-op AI, and an empty store.
func newTestGateway(t *testing.T, eventLimit int) *Gateway {
	t.Helper()

	mem := cache.NewMemory()
	hub := NewHub()

	tracker := presence.NewTracker(mem, hub, presence.Config{
		AwayAfter:  5 * time.Minute,
		RecordTTL:  10 * time.Minute,
		SweepEvery: 30 * time.Second,
		BatchLimit: 3,
	})

	coordinator := typing.NewCoordinator(mem, 5*time.Second)

	chatHandlers := chat.NewHandlers(&userStore{}, coordinator, nullAI{}, nil, hub, chat.Config{})
	guestHandlers := guest.NewHandlers(guest.NewMemoryStore(), nullAI{}, guest.Config{
		RateLimit:  10,
		RateWindow: time.Minute,
	})

	eventLimiter := limiter.NewEventLimiter(mem, eventLimit, time.Minute)

	return NewGateway(hub, chatHandlers, guestHandlers, tracker, &userStore{}, eventLimiter, 3)
}

func attachClient(g *Gateway, identity Identity) *Client {
	c := &Client{
		gateway:      g,
		identity:     identity,
		connectionID: NewConnectionID(),
		send:         make(chan []byte, 64),
		rooms:        make(map[string]struct{}),
		logger:       zerolog.Nop(),
	}
	g.hub.Register(c)
	return c
}

func authedIdentity(id string) Identity {
	return Identity{User: &user.User{ID: id, DisplayName: "Alice", Tier: user.TierStandard, IsActive: true}}
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return raw
}

func received(t *testing.T, c *Client) []Envelope {
	t.Helper()

	var out []Envelope
	for {
		select {
		case payload := <-c.send:
			var env Envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				t.Fatalf("invalid envelope on send queue: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func lastErrorCode(t *testing.T, events []Envelope) string {
	t.Helper()

	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event != "error" {
			continue
		}
		data, _ := events[i].Data.(map[string]any)
		code, _ := data["code"].(string)
		return code
	}
	t.Fatal("no error event received")
	return ""
}

func TestGatewayPingPong(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, Identity{})

	g.processInbound(c, frame(t, EventPing, nil))

	events := received(t, c)
	if len(events) != 1 || events[0].Event != "pong" {
		t.Fatalf("events: got %v, want a single pong", events)
	}
	data, _ := events[0].Data.(map[string]any)
	if _, ok := data["timestamp"]; !ok {
		t.Error("pong payload missing timestamp")
	}
}

func TestGatewayInvalidJSON(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, Identity{})

	g.processInbound(c, []byte("{not json"))

	if got := lastErrorCode(t, received(t, c)); got != errs.ErrInvalidMessageData {
		t.Errorf("error code: got %q, want %q", got, errs.ErrInvalidMessageData)
	}
}

func TestGatewayGuestCannotUseAuthenticatedEvents(t *testing.T) {
	g := newTestGateway(t, 100)

	events := []string{
		EventJoinConversation,
		EventDeleteMessage,
		EventTyping,
		EventUpdatePresence,
		EventGetPresence,
	}

	for _, event := range events {
		t.Run(event, func(t *testing.T) {
			c := attachClient(g, Identity{})
			g.processInbound(c, frame(t, event, map[string]any{"conversationId": "c1"}))

			if got := lastErrorCode(t, received(t, c)); got != errs.ErrInvalidMessageData {
				t.Errorf("error code: got %q, want %q", got, errs.ErrInvalidMessageData)
			}
		})
	}
}

func TestGatewayEventRateLimit(t *testing.T) {
	g := newTestGateway(t, 3)
	c := attachClient(g, authedIdentity("u1"))

	for i := 0; i < 3; i++ {
		g.processInbound(c, frame(t, EventPing, nil))
	}
	g.processInbound(c, frame(t, EventPing, nil))

	events := received(t, c)
	if got := lastErrorCode(t, events); got != errs.ErrRateLimitExceeded {
		t.Errorf("error code: got %q, want %q", got, errs.ErrRateLimitExceeded)
	}

	pongs := 0
	for _, e := range events {
		if e.Event == "pong" {
			pongs++
		}
	}
	if pongs != 3 {
		t.Errorf("pongs before the limit: got %d, want 3", pongs)
	}
}

func TestGatewayUpdatePresence(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, authedIdentity("u1"))

	g.processInbound(c, frame(t, EventUpdatePresence, map[string]any{"status": "away"}))

	events := received(t, c)
	var confirmed bool
	for _, e := range events {
		if e.Event == "presence_updated" {
			confirmed = true
		}
	}
	if !confirmed {
		t.Errorf("presence_updated not received; events: %v", events)
	}
}

func TestGatewayUpdatePresenceInvalidStatus(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, authedIdentity("u1"))

	g.processInbound(c, frame(t, EventUpdatePresence, map[string]any{"status": "busy"}))

	if got := lastErrorCode(t, received(t, c)); got != errs.ErrInvalidPresenceStatus {
		t.Errorf("error code: got %q, want %q", got, errs.ErrInvalidPresenceStatus)
	}
}

func TestGatewayGetPresenceValidation(t *testing.T) {
	g := newTestGateway(t, 100)

	tests := []struct {
		name     string
		userIDs  []string
		wantCode string
	}{
		{"empty batch", []string{}, errs.ErrInvalidUserIDs},
		{"oversized batch", []string{"a", "b", "c", "d"}, errs.ErrTooManyUserIDs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := attachClient(g, authedIdentity("u1"))
			g.processInbound(c, frame(t, EventGetPresence, map[string]any{"userIds": tt.userIDs}))

			if got := lastErrorCode(t, received(t, c)); got != tt.wantCode {
				t.Errorf("error code: got %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestGatewayGetPresenceData(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, authedIdentity("u1"))

	g.processInbound(c, frame(t, EventGetPresence, map[string]any{"userIds": []string{"u2", "u3"}}))

	events := received(t, c)
	if len(events) != 1 || events[0].Event != "presence_data" {
		t.Fatalf("events: got %v, want a single presence_data", events)
	}

	data, _ := events[0].Data.(map[string]any)
	presences, ok := data["presences"].([]any)
	if !ok || len(presences) != 2 {
		t.Errorf("presences payload: got %v, want 2 records", data["presences"])
	}
}

func TestGatewayOnlineCount(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, authedIdentity("u1"))

	g.processInbound(c, frame(t, EventGetOnlineCount, nil))

	events := received(t, c)
	if len(events) != 1 || events[0].Event != "online_count" {
		t.Fatalf("events: got %v, want a single online_count", events)
	}
	data, _ := events[0].Data.(map[string]any)
	if count, ok := data["count"].(float64); !ok || count != 0 {
		t.Errorf("count: got %v, want 0", data["count"])
	}
}

func TestGatewayLimitIdentityScoping(t *testing.T) {
	g := newTestGateway(t, 100)

	authed := attachClient(g, authedIdentity("u1"))
	guestConn := attachClient(g, Identity{})

	if got := g.limitIdentity(authed); got != "u1" {
		t.Errorf("authenticated limit identity: got %q, want u1", got)
	}
	if got := g.limitIdentity(guestConn); got != guestConn.connectionID {
		t.Errorf("guest limit identity: got %q, want the connection id", got)
	}
}

func TestGatewayUnknownEvent(t *testing.T) {
	g := newTestGateway(t, 100)
	c := attachClient(g, authedIdentity("u1"))

	g.processInbound(c, frame(t, "no_such_event", map[string]any{}))

	if got := lastErrorCode(t, received(t, c)); got != errs.ErrInvalidMessageData {
		t.Errorf("error code: got %q, want %q", got, errs.ErrInvalidMessageData)
	}
}
