package protocol

// IdempotencyRecord represents a row in the idempotency_records SQLite table.
// Created on first observation of a signature, refreshed on each allowed
// repeat, expired by the guard's check-and-expire logic.
type IdempotencyRecord struct {
	Signature  string `json:"signature"`
	LastSeen   string `json:"last_seen"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// FailureRecord represents a row in the failure_counts SQLite table.
// Incremented on each consecutive failure of a signature, deleted on success.
type FailureRecord struct {
	Signature        string `json:"signature"`
	ConsecutiveCount int    `json:"consecutive_count"`
	LastError        string `json:"last_error"`
	LastUpdated      string `json:"last_updated"`
}

// ServiceCooldown represents a row in the service_cooldowns SQLite table.
// A quota rejection parks the service until cooldown_until passes.
type ServiceCooldown struct {
	Service       string `json:"service"`
	CooldownUntil string `json:"cooldown_until"`
	Reason        string `json:"reason"`
	UpdatedAt     string `json:"updated_at"`
}

// HookEvent represents a row in the hook_events SQLite table.
// Tracks every hook decision and escalation outcome for `nextrust logs`.
type HookEvent struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Signature string `json:"signature"`
	PhaseID   string `json:"phase_id"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}
