package protocol

// TokenCounts holds token usage for a single escalation call.
type TokenCounts struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// CostBreakdown holds derived USD cost for a single escalation call.
type CostBreakdown struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`
}

// UsageRecord is one JSONL line in a monthly ledger file. Written exactly
// once per escalation call outcome (failed calls get a zero-cost record with
// ErrorKind set); never mutated after write, only aggregated by readers.
type UsageRecord struct {
	Type      string        `json:"type"` // RecordTypeUsage
	Timestamp string        `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Service   string        `json:"service"`
	Model     string        `json:"model"`
	Phase     string        `json:"phase"`
	Success   bool          `json:"success"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Tokens    TokenCounts   `json:"tokens"`
	CostUSD   CostBreakdown `json:"cost_usd"`
}

// PromptAuditRecord is one JSONL line recording the prompt sent to an
// escalation backend. Lives alongside usage records in the same monthly
// files; cost aggregation skips it by type.
type PromptAuditRecord struct {
	Type      string `json:"type"` // RecordTypePromptAudit
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Service   string `json:"service"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
}
