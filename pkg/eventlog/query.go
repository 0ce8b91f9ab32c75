// Package eventlog provides access to the hook_events audit table: every
// pre/post decision and escalation outcome the dispatcher records. The
// reader backs `nextrust logs`; the writer is used best-effort by the hook
// path (audit failures never abort the wrapped command).
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Event represents a single audit entry from the hook state database.
type Event struct {
	ID        int64
	Type      string
	Source    string
	Signature string
	PhaseID   string
	Payload   string
	CreatedAt time.Time
}

// QueryOpts specifies filter criteria for querying audit events.
type QueryOpts struct {
	// Signature filters events to a specific command signature
	Signature string

	// EventType filters to a specific event type (e.g., "pre_decision",
	// "post_action", "escalation")
	EventType string

	// PhaseID filters to a specific pipeline phase
	PhaseID string

	// After filters events created after this time (inclusive)
	After *time.Time

	// Before filters events created before this time (inclusive)
	Before *time.Time

	// Limit restricts the number of results (0 = no limit)
	Limit int
}

// Reader provides read-only access to the hook audit log.
type Reader struct {
	db *sql.DB
}

// NewReader opens the hook state database in read-only mode with WAL so
// queries never block a concurrently-running hook invocation.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Reader{db: db}, nil
}

// Close releases the database connection.
// Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query retrieves audit events matching the given filter criteria, newest
// first. Returns an empty slice if no events match.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAtStr string

		err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.Source,
			&e.Signature,
			&e.PhaseID,
			&e.Payload,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		// Parse the SQLite datetime('now') format, falling back to RFC3339
		// for rows written by external tooling.
		if createdAtStr != "" {
			parsedTime, err := time.Parse("2006-01-02 15:04:05", createdAtStr)
			if err != nil {
				parsedTime, err = time.Parse(time.RFC3339, createdAtStr)
				if err != nil {
					return nil, fmt.Errorf("parse created_at: %w", err)
				}
			}
			e.CreatedAt = parsedTime
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, type, source, signature, phase_id, payload, created_at FROM hook_events WHERE 1=1"

	if opts.Signature != "" {
		conditions = append(conditions, "signature = ?")
		args = append(args, opts.Signature)
	}

	if opts.EventType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.EventType)
	}

	if opts.PhaseID != "" {
		conditions = append(conditions, "phase_id = ?")
		args = append(args, opts.PhaseID)
	}

	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.Format("2006-01-02 15:04:05"))
	}

	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.Format("2006-01-02 15:04:05"))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	return query, args
}
