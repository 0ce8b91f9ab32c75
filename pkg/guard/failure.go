package guard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Ceiling is the failure tracker's verdict against a configured ceiling.
type Ceiling string

// Ceiling constants.
const (
	UnderLimit Ceiling = "under_limit"
	AtLimit    Ceiling = "at_limit"
)

// RecordFailure increments the consecutive-failure count for a signature and
// returns the new count. The increment is a single UPSERT so concurrent
// failures of the same signature cannot lose updates.
func (s *Store) RecordFailure(ctx context.Context, signature, errText string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO failure_counts (signature, consecutive_count, last_error, last_updated)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			consecutive_count = consecutive_count + 1,
			last_error = excluded.last_error,
			last_updated = excluded.last_updated
		RETURNING consecutive_count`,
		signature, truncateError(errText), s.now().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("record failure for %s: %w", signature, err)
	}
	return count, nil
}

// RecordSuccess resets the consecutive-failure count for a signature by
// deleting its record. No-op if no failures were recorded.
func (s *Store) RecordSuccess(ctx context.Context, signature string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failure_counts WHERE signature = ?`, signature); err != nil {
		return fmt.Errorf("record success for %s: %w", signature, err)
	}
	return nil
}

// CheckCeiling reports whether a signature's consecutive-failure count has
// reached max. A signature with no failure record is UnderLimit.
func (s *Store) CheckCeiling(ctx context.Context, signature string, max int) (Ceiling, int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT consecutive_count FROM failure_counts WHERE signature = ?`, signature).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return UnderLimit, 0, nil
	}
	if err != nil {
		return UnderLimit, 0, fmt.Errorf("check ceiling for %s: %w", signature, err)
	}
	if count >= max {
		return AtLimit, count, nil
	}
	return UnderLimit, count, nil
}

// maxStoredError bounds the last_error column so a multi-megabyte build log
// does not bloat the state database.
const maxStoredError = 4096

func truncateError(s string) string {
	if len(s) <= maxStoredError {
		return s
	}
	// Back up to a rune boundary so the cut never stores invalid UTF-8.
	cut := maxStoredError
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
