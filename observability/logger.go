// Package observability records goosd control-plane activity in SQLite:
// one row per accepted or rejected mutation, subscriber connect/disconnect,
// and dead-subscriber eviction, plus periodic process heartbeats. A failing
// observability store never blocks or fails the control path.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/oceanbureau/goosd/idgen"
)

// Event types recorded by goosd.
const (
	EventMutationAccepted    = "mutation_accepted"
	EventMutationRejected    = "mutation_rejected"
	EventPayloadOversized    = "payload_oversized"
	EventSubscriberConnected = "subscriber_connected"
	EventSubscriberClosed    = "subscriber_closed"
	EventSubscriberEvicted   = "subscriber_evicted"
)

// ControlEvent is one control-plane event to record.
type ControlEvent struct {
	Type         string
	SubscriberID string
	Details      string // optional JSON
	Success      bool
}

// EventLogger writes control events. A nil *EventLogger is valid and records
// nothing, so callers can wire observability optionally.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a control event. Errors are logged via slog but do not
// propagate, so the mutation/broadcast path is never blocked by the store.
func (l *EventLogger) LogEvent(ctx context.Context, event ControlEvent) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO control_event_logs (
			event_id, event_type, subscriber_id, details, success, created_at
		) VALUES (?,?,?,?,?,?)`,
		l.newID(), event.Type, event.SubscriberID, event.Details, event.Success,
		time.Now().Unix())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "event_type", event.Type)
	}
}

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	EventLogsDays  int
	HeartbeatsDays int
	RunVacuumAfter bool
}

// Cleanup deletes records exceeding the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	if cfg.EventLogsDays > 0 {
		cutoff := now - int64(cfg.EventLogsDays)*86400
		if _, err := db.ExecContext(ctx,
			"DELETE FROM control_event_logs WHERE created_at < ?", cutoff); err != nil {
			return err
		}
	}
	if cfg.HeartbeatsDays > 0 {
		cutoff := now - int64(cfg.HeartbeatsDays)*86400
		if _, err := db.ExecContext(ctx,
			"DELETE FROM process_heartbeats WHERE timestamp < ?", cutoff); err != nil {
			return err
		}
	}
	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return err
		}
	}
	return nil
}
