// Package ledger implements the append-only usage/cost ledger: one JSONL
// file per month under the status directory, each line a usage or
// prompt-audit record. Writers only ever append whole lines (O_APPEND, one
// write syscall), so concurrent CI jobs need no locking; readers aggregate
// tolerantly, skipping lines they cannot parse.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nextrust/pkg/protocol"
)

// Ledger appends and aggregates usage records.
type Ledger struct {
	dir     string
	pricing Pricing

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Ledger writing to dir (created on first append).
func New(dir string, pricing Pricing) *Ledger {
	return &Ledger{dir: dir, pricing: pricing, nowFunc: time.Now}
}

// Pricing returns the ledger's pricing table.
func (l *Ledger) Pricing() Pricing {
	return l.pricing
}

// Append writes one usage record to the current month's file. The record's
// Type is forced to RecordTypeUsage and an empty Timestamp is filled in;
// cost is derived from the pricing table when the record carries none.
// Append never fails silently: any IO error is returned so the caller can
// emit a diagnostic, though per the containment policy it must not abort
// the wrapped build.
func (l *Ledger) Append(rec protocol.UsageRecord) error {
	now := l.nowFunc().UTC()
	rec.Type = protocol.RecordTypeUsage
	if rec.Timestamp == "" {
		rec.Timestamp = now.Format(time.RFC3339)
	}
	if rec.CostUSD.Total == 0 && rec.Success {
		rec.CostUSD = l.pricing.Cost(rec.Model, rec.Tokens)
	}
	return l.appendLine(rec, now)
}

// AppendPromptAudit writes one prompt-audit record alongside the usage
// records. Cost aggregation skips it by type.
func (l *Ledger) AppendPromptAudit(rec protocol.PromptAuditRecord) error {
	now := l.nowFunc().UTC()
	rec.Type = protocol.RecordTypePromptAudit
	if rec.Timestamp == "" {
		rec.Timestamp = now.Format(time.RFC3339)
	}
	return l.appendLine(rec, now)
}

// appendLine marshals v and appends it as a single line to the month file
// for t. The line is written with one Write call so concurrent appends from
// separate processes interleave at line granularity, never mid-record.
func (l *Ledger) appendLine(v any, t time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	path := l.filePath(t)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append to ledger file %s: %w", path, err)
	}
	return nil
}

// filePath returns the monthly ledger file for t, e.g. usage-2026-08.jsonl.
func (l *Ledger) filePath(t time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("usage-%s.jsonl", t.Format("2006-01")))
}
