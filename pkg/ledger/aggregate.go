package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nextrust/pkg/protocol"
)

// GroupBy selects the aggregation key for ledger queries.
type GroupBy string

// Grouping fields.
const (
	GroupNone    GroupBy = ""
	GroupModel   GroupBy = "model"
	GroupPhase   GroupBy = "phase"
	GroupSession GroupBy = "session"
	GroupService GroupBy = "service"
)

// TotalKey is the single map key used when aggregating without grouping.
const TotalKey = "total"

// GroupStats holds aggregated usage for one group key.
type GroupStats struct {
	Requests int
	Failures int
	Tokens   protocol.TokenCounts
	CostUSD  float64
}

// Aggregate scans the ledger files and sums usage records with timestamps at
// or after since, keyed by the groupBy field (or TotalKey when ungrouped).
// Malformed or non-usage lines are skipped, never fatal: a partially-written
// line from a killed CI job must not poison cost reporting.
func (l *Ledger) Aggregate(since time.Time, groupBy GroupBy) (map[string]GroupStats, error) {
	files, err := l.ledgerFiles(since)
	if err != nil {
		return nil, err
	}

	out := make(map[string]GroupStats)
	for _, path := range files {
		if err := l.aggregateFile(path, since, groupBy, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SumCost returns the USD cost totals for records at or after since, keyed
// by the groupBy field.
func (l *Ledger) SumCost(since time.Time, groupBy GroupBy) (map[string]float64, error) {
	stats, err := l.Aggregate(since, groupBy)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(stats))
	for k, v := range stats {
		out[k] = v.CostUSD
	}
	return out, nil
}

// ServiceTotals returns the request count and USD cost for one service since
// the given time. Backs the per-service budget limit checks.
func (l *Ledger) ServiceTotals(service string, since time.Time) (requests int, cost float64, err error) {
	stats, err := l.Aggregate(since, GroupService)
	if err != nil {
		return 0, 0, err
	}
	s := stats[service]
	return s.Requests, s.CostUSD, nil
}

// ledgerFiles lists monthly files that could contain records at or after
// since, oldest first.
func (l *Ledger) ledgerFiles(since time.Time) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "usage-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		// Skip months that ended before the window opened.
		month, err := time.Parse("2006-01", strings.TrimSuffix(strings.TrimPrefix(name, "usage-"), ".jsonl"))
		if err == nil && month.AddDate(0, 1, 0).Before(since) {
			continue
		}
		files = append(files, filepath.Join(l.dir, name))
	}
	return files, nil
}

func (l *Ledger) aggregateFile(path string, since time.Time, groupBy GroupBy, out map[string]GroupStats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ledger file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Prompt-audit lines can be long; allow up to 1 MiB per line.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec protocol.UsageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // malformed line: skip and keep aggregating
		}
		if rec.Type != protocol.RecordTypeUsage {
			continue
		}
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil || ts.Before(since) {
			continue
		}

		key := groupKey(rec, groupBy)
		stats := out[key]
		stats.Requests++
		if !rec.Success {
			stats.Failures++
		}
		stats.Tokens.Input += rec.Tokens.Input
		stats.Tokens.Output += rec.Tokens.Output
		stats.Tokens.Total += rec.Tokens.Total
		stats.CostUSD += rec.CostUSD.Total
		out[key] = stats
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan ledger file %s: %w", path, err)
	}
	return nil
}

func groupKey(rec protocol.UsageRecord, groupBy GroupBy) string {
	switch groupBy {
	case GroupModel:
		return rec.Model
	case GroupPhase:
		return rec.Phase
	case GroupSession:
		return rec.SessionID
	case GroupService:
		return rec.Service
	default:
		return TotalKey
	}
}
