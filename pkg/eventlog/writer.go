package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Writer appends audit entries to the hook_events table. It shares the
// read-write database handle owned by the hook state store.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a Writer over an open read-write database handle.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// Append records one audit event. payload may be any JSON-marshalable value;
// nil stores an empty payload.
func (w *Writer) Append(ctx context.Context, eventType, source, signature, phaseID string, payload any) error {
	var payloadStr string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payloadStr = string(data)
	}

	_, err := w.db.ExecContext(ctx,
		`INSERT INTO hook_events (type, source, signature, phase_id, payload) VALUES (?, ?, ?, ?, ?)`,
		eventType, source, signature, phaseID, payloadStr)
	if err != nil {
		return fmt.Errorf("append hook event: %w", err)
	}
	return nil
}
