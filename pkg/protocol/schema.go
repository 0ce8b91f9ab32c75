package protocol

// SchemaDDL defines the SQLite schema for the hook state database.
// Tables: idempotency_records, failure_counts, service_cooldowns, hook_events.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Idempotency guard: one row per recently-seen command signature
CREATE TABLE IF NOT EXISTS idempotency_records (
    signature TEXT PRIMARY KEY,
    last_seen TEXT NOT NULL,
    ttl_seconds INTEGER NOT NULL
);

-- Failure tracker: rolling consecutive-failure counts per signature
CREATE TABLE IF NOT EXISTS failure_counts (
    signature TEXT PRIMARY KEY,
    consecutive_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    last_updated TEXT NOT NULL
);

-- Escalation service cooldowns (quota rejections park a service here)
CREATE TABLE IF NOT EXISTS service_cooldowns (
    service TEXT PRIMARY KEY,
    cooldown_until TEXT NOT NULL,
    reason TEXT,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Audit log: every hook decision and escalation outcome
CREATE TABLE IF NOT EXISTS hook_events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    signature TEXT,
    phase_id TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
