/*
Package presence tracks per-user online/away/offline status backed by the
shared cache.

One record exists per authenticated user regardless of how many devices are
connected. Status decays linearly (online -> away -> offline): a periodic sweep
demotes idle users to away, and record TTL expiry demotes them to offline.
Reads lazily reconcile expired records to offline (read-repair), so the set is
never trusted without checking the individual records behind it.
*/
package presence

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

// Presence statuses. Transitions only follow online -> away -> offline, with a
// reset to online via reconnection or an activity signal.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

const (
	recordKeyPrefix = "presence:user:"
	onlineSetKey    = "presence:online"
)

// Record is one user's presence state as stored in the shared cache.
type Record struct {
	UserID       string    `json:"userId"`
	Status       string    `json:"status"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
	ConnectionID string    `json:"connectionId,omitempty"`
	DeviceInfo   string    `json:"deviceInfo,omitempty"`
}

// Broadcaster delivers presence transitions to every connected socket.
type Broadcaster interface {
	BroadcastAll(event string, data any)
}

// Config carries the tracker's timing parameters.
type Config struct {
	// AwayAfter is how long a user may be idle before the sweep demotes them to away.
	AwayAfter time.Duration

	// RecordTTL is the cache expiry of a presence record. An unrefreshed
	// record expiring is equivalent to going offline.
	RecordTTL time.Duration

	// SweepEvery is the interval of the away-demotion sweep.
	SweepEvery time.Duration

	// BatchLimit is the ceiling on get_presence query sizes.
	BatchLimit int
}

// Tracker owns all presence state and its timed transitions.
type Tracker struct {
	cache       cache.Cache
	broadcaster Broadcaster
	cfg         Config
	logger      zerolog.Logger

	// now is swappable for deterministic transition tests.
	now func() time.Time
}

// NewTracker constructs a Tracker. The sweep does not run until Run is called.
func NewTracker(c cache.Cache, b Broadcaster, cfg Config) *Tracker {
	return &Tracker{
		cache:       c,
		broadcaster: b,
		cfg:         cfg,
		logger:      logx.Logger().With().Str("component", "presence").Logger(),
		now:         time.Now,
	}
}

// ValidStatus reports whether s is one of the three presence enum values.
func ValidStatus(s string) bool {
	return s == StatusOnline || s == StatusAway || s == StatusOffline
}

func recordKey(userID string) string {
	return recordKeyPrefix + userID
}

// HandleConnect marks the user online on a new connection and broadcasts the
// transition when the status actually changed.
func (t *Tracker) HandleConnect(ctx context.Context, userID, connectionID, deviceInfo string) error {
	prev, _ := t.read(ctx, userID)

	record := Record{
		UserID:       userID,
		Status:       StatusOnline,
		LastSeenAt:   t.now(),
		ConnectionID: connectionID,
		DeviceInfo:   deviceInfo,
	}

	if err := t.write(ctx, record); err != nil {
		return err
	}

	if err := t.cache.SAdd(ctx, onlineSetKey, userID); err != nil {
		return fmt.Errorf("add to online set: %w", err)
	}

	if prev == nil || prev.Status != StatusOnline {
		t.broadcastUpdate(record)
	}

	return nil
}

// HandleDisconnect marks the user offline and removes them from the online set.
func (t *Tracker) HandleDisconnect(ctx context.Context, userID string) error {
	record := Record{
		UserID:     userID,
		Status:     StatusOffline,
		LastSeenAt: t.now(),
	}

	if err := t.write(ctx, record); err != nil {
		return err
	}

	if err := t.cache.SRem(ctx, onlineSetKey, userID); err != nil {
		return fmt.Errorf("remove from online set: %w", err)
	}

	t.broadcastUpdate(record)
	return nil
}

// Activity refreshes the user's last-seen timestamp. An away user returns to
// online; an offline user must reconnect first, so their record stays untouched.
func (t *Tracker) Activity(ctx context.Context, userID string) error {
	record, err := t.read(ctx, userID)
	if err != nil {
		return err
	}

	if record == nil || record.Status == StatusOffline {
		return nil
	}

	wasAway := record.Status == StatusAway
	record.Status = StatusOnline
	record.LastSeenAt = t.now()

	if err := t.write(ctx, *record); err != nil {
		return err
	}

	if wasAway {
		t.broadcastUpdate(*record)
	}

	return nil
}

// SetStatus applies a manual status change requested by the user.
// The caller must have validated the status with ValidStatus.
func (t *Tracker) SetStatus(ctx context.Context, userID, status string) (Record, error) {
	record := Record{
		UserID:     userID,
		Status:     status,
		LastSeenAt: t.now(),
	}

	if err := t.write(ctx, record); err != nil {
		return Record{}, err
	}

	var err error
	if status == StatusOffline {
		err = t.cache.SRem(ctx, onlineSetKey, userID)
	} else {
		err = t.cache.SAdd(ctx, onlineSetKey, userID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("update online set: %w", err)
	}

	t.broadcastUpdate(record)
	return record, nil
}

// GetMany returns the current status of each requested user, lazily
// reconciling expired records to offline as a side effect of the read.
func (t *Tracker) GetMany(ctx context.Context, userIDs []string) ([]Record, error) {
	records := make([]Record, 0, len(userIDs))

	for _, userID := range userIDs {
		record, err := t.read(ctx, userID)
		if err != nil {
			return nil, err
		}

		if record == nil {
			// Expired or never tracked: read-repair to offline.
			if err := t.cache.SRem(ctx, onlineSetKey, userID); err != nil {
				t.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed online-set repair during presence read")
			}
			record = &Record{UserID: userID, Status: StatusOffline}
		}

		records = append(records, *record)
	}

	return records, nil
}

// OnlineCount returns the cardinality of the online set. Away users stay in
// the set until they transition to offline, so the count covers everyone with
// a live connection, not only those marked online.
func (t *Tracker) OnlineCount(ctx context.Context) (int64, error) {
	return t.cache.SCard(ctx, onlineSetKey)
}

// Run executes the away-demotion sweep until ctx is cancelled. It is the only
// goroutine the tracker owns; start it once with the server lifecycle.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepEvery)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.cfg.SweepEvery).Msg("Presence sweep started.")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("Presence sweep stopped.")
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Sweep demotes idle online users to away and repairs online-set entries whose
// records have expired. Exposed for deterministic testing.
func (t *Tracker) Sweep(ctx context.Context) {
	userIDs, err := t.cache.SMembers(ctx, onlineSetKey)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Presence sweep failed to list online users.")
		return
	}

	for _, userID := range userIDs {
		record, err := t.read(ctx, userID)
		if err != nil {
			t.logger.Warn().Err(err).Str("user_id", userID).Msg("Presence sweep read failed.")
			continue
		}

		if record == nil {
			// Record expired without renewal: the user is offline.
			offline := Record{UserID: userID, Status: StatusOffline, LastSeenAt: t.now()}
			if err := t.cache.SRem(ctx, onlineSetKey, userID); err != nil {
				t.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to repair online set.")
				continue
			}
			t.broadcastUpdate(offline)
			continue
		}

		if record.Status == StatusOnline && t.now().Sub(record.LastSeenAt) > t.cfg.AwayAfter {
			record.Status = StatusAway
			if err := t.write(ctx, *record); err != nil {
				t.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to demote user to away.")
				continue
			}
			t.broadcastUpdate(*record)
		}
	}
}

func (t *Tracker) read(ctx context.Context, userID string) (*Record, error) {
	raw, err := t.cache.Get(ctx, recordKey(userID))
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presence record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode presence record: %w", err)
	}

	return &record, nil
}

func (t *Tracker) write(ctx context.Context, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode presence record: %w", err)
	}

	if err := t.cache.Set(ctx, recordKey(record.UserID), string(raw), t.cfg.RecordTTL); err != nil {
		return fmt.Errorf("write presence record: %w", err)
	}

	return nil
}

func (t *Tracker) broadcastUpdate(record Record) {
	if t.broadcaster == nil {
		return
	}

	t.broadcaster.BroadcastAll("presence_update", map[string]any{
		"userId":   record.UserID,
		"presence": record,
	})
}
