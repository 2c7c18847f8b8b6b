package observability

import "database/sql"

// Schema is the DDL for the goosd operational tables. This database records
// control-plane activity only; the canonical control snapshot itself is never
// persisted.
const Schema = `
-- Control-plane events: accepted/rejected mutations, subscriber lifecycle.
CREATE TABLE IF NOT EXISTS control_event_logs (
    event_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    subscriber_id TEXT,
    details TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_control_events_type
    ON control_event_logs(event_type, created_at DESC);

-- Process liveness heartbeats with runtime metrics.
CREATE TABLE IF NOT EXISTS process_heartbeats (
    heartbeat_id TEXT PRIMARY KEY DEFAULT ('hb_' || hex(randomblob(16))),
    process_name TEXT NOT NULL,
    hostname TEXT NOT NULL,
    pid INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    goroutines_count INTEGER,
    memory_alloc_mb REAL,
    memory_sys_mb REAL,
    gc_count INTEGER
);
CREATE INDEX IF NOT EXISTS idx_heartbeats_process_time
    ON process_heartbeats(process_name, timestamp DESC);
`

// Init applies the observability schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
