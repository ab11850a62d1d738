package presence

import (
	"context"
	"testing"
	"time"

	"vachat/internal/app/cache"
)

// recordingBroadcaster captures every presence broadcast for assertions.
type recordingBroadcaster struct {
	events []broadcastEvent
}

type broadcastEvent struct {
	event string
	data  map[string]any
}

func (b *recordingBroadcaster) BroadcastAll(event string, data any) {
	payload, _ := data.(map[string]any)
	b.events = append(b.events, broadcastEvent{event: event, data: payload})
}

func (b *recordingBroadcaster) statuses() []string {
	var out []string
	for _, e := range b.events {
		record, ok := e.data["presence"].(Record)
		if !ok {
			continue
		}
		out = append(out, record.Status)
	}
	return out
}

type trackerFixture struct {
	tracker     *Tracker
	cache       *cache.Memory
	broadcaster *recordingBroadcaster
	now         time.Time
}

func (f *trackerFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()

	f := &trackerFixture{
		cache:       cache.NewMemory(),
		broadcaster: &recordingBroadcaster{},
		now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.cache.Now = func() time.Time { return f.now }

	f.tracker = NewTracker(f.cache, f.broadcaster, Config{
		AwayAfter:  5 * time.Minute,
		RecordTTL:  10 * time.Minute,
		SweepEvery: 30 * time.Second,
		BatchLimit: 50,
	})
	f.tracker.now = func() time.Time { return f.now }

	return f
}

func TestValidStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusOnline, true},
		{StatusAway, true},
		{StatusOffline, true},
		{"busy", false},
		{"", false},
		{"ONLINE", false},
	}

	for _, tt := range tests {
		if got := ValidStatus(tt.status); got != tt.want {
			t.Errorf("ValidStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestHandleConnectMarksOnline(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", "test-agent"); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	records, err := f.tracker.GetMany(ctx, []string{"u1"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if records[0].Status != StatusOnline {
		t.Errorf("status after connect: got %q, want %q", records[0].Status, StatusOnline)
	}

	count, err := f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 1 {
		t.Errorf("OnlineCount: got %d, want 1", count)
	}

	if got := f.broadcaster.statuses(); len(got) != 1 || got[0] != StatusOnline {
		t.Errorf("broadcasts after connect: got %v, want [online]", got)
	}
}

func TestHandleConnectAlreadyOnlineDoesNotRebroadcast(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("first HandleConnect: %v", err)
	}
	if err := f.tracker.HandleConnect(ctx, "u1", "conn_2", ""); err != nil {
		t.Fatalf("second HandleConnect: %v", err)
	}

	if got := len(f.broadcaster.events); got != 1 {
		t.Errorf("broadcasts after second device connect: got %d, want 1", got)
	}
}

func TestHandleDisconnectMarksOffline(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}
	if err := f.tracker.HandleDisconnect(ctx, "u1"); err != nil {
		t.Fatalf("HandleDisconnect: %v", err)
	}

	records, err := f.tracker.GetMany(ctx, []string{"u1"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if records[0].Status != StatusOffline {
		t.Errorf("status after disconnect: got %q, want %q", records[0].Status, StatusOffline)
	}

	count, err := f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 0 {
		t.Errorf("OnlineCount after disconnect: got %d, want 0", count)
	}
}

func TestSweepDemotesIdleToAway(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	// Idle past the away threshold but before record expiry.
	f.advance(6 * time.Minute)
	f.tracker.Sweep(ctx)

	records, err := f.tracker.GetMany(ctx, []string{"u1"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if records[0].Status != StatusAway {
		t.Errorf("status after idle sweep: got %q, want %q", records[0].Status, StatusAway)
	}

	if got := f.broadcaster.statuses(); len(got) != 2 || got[1] != StatusAway {
		t.Errorf("broadcast statuses: got %v, want [online away]", got)
	}

	// Away users keep their connection and stay in the online count.
	count, err := f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 1 {
		t.Errorf("OnlineCount with an away user: got %d, want 1", count)
	}
}

func TestSweepExpiredRecordGoesOffline(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	// Idle past the record TTL: the record is gone, only the set entry remains.
	f.advance(11 * time.Minute)
	f.tracker.Sweep(ctx)

	count, err := f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 0 {
		t.Errorf("OnlineCount after expiry sweep: got %d, want 0", count)
	}

	statuses := f.broadcaster.statuses()
	if len(statuses) != 2 || statuses[1] != StatusOffline {
		t.Errorf("broadcast statuses: got %v, want [online offline]", statuses)
	}
}

func TestActivityRestoresAwayToOnline(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	f.advance(6 * time.Minute)
	f.tracker.Sweep(ctx)

	if err := f.tracker.Activity(ctx, "u1"); err != nil {
		t.Fatalf("Activity: %v", err)
	}

	records, err := f.tracker.GetMany(ctx, []string{"u1"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if records[0].Status != StatusOnline {
		t.Errorf("status after activity: got %q, want %q", records[0].Status, StatusOnline)
	}

	statuses := f.broadcaster.statuses()
	if len(statuses) != 3 || statuses[2] != StatusOnline {
		t.Errorf("broadcast statuses: got %v, want [online away online]", statuses)
	}
}

func TestActivityIgnoresOffline(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}
	if err := f.tracker.HandleDisconnect(ctx, "u1"); err != nil {
		t.Fatalf("HandleDisconnect: %v", err)
	}

	if err := f.tracker.Activity(ctx, "u1"); err != nil {
		t.Fatalf("Activity: %v", err)
	}

	records, err := f.tracker.GetMany(ctx, []string{"u1"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if records[0].Status != StatusOffline {
		t.Errorf("offline user bumped by activity: got %q, want %q", records[0].Status, StatusOffline)
	}
}

func TestGetManyReadRepairsExpired(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	f.advance(11 * time.Minute)

	records, err := f.tracker.GetMany(ctx, []string{"u1", "never-seen"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}

	for i, record := range records {
		if record.Status != StatusOffline {
			t.Errorf("records[%d].Status = %q, want %q", i, record.Status, StatusOffline)
		}
	}

	// The read repaired the stale set entry.
	count, err := f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 0 {
		t.Errorf("OnlineCount after read-repair: got %d, want 0", count)
	}
}

func TestSetStatusManualOverride(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if err := f.tracker.HandleConnect(ctx, "u1", "conn_1", ""); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	record, err := f.tracker.SetStatus(ctx, "u1", StatusAway)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if record.Status != StatusAway {
		t.Errorf("SetStatus record: got %q, want %q", record.Status, StatusAway)
	}

	// Away users still count as present in the online set.
	count, err := f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 1 {
		t.Errorf("OnlineCount with away user: got %d, want 1", count)
	}

	if _, err := f.tracker.SetStatus(ctx, "u1", StatusOffline); err != nil {
		t.Fatalf("SetStatus offline: %v", err)
	}

	count, err = f.tracker.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount: %v", err)
	}
	if count != 0 {
		t.Errorf("OnlineCount after manual offline: got %d, want 0", count)
	}
}
