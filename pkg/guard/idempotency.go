package guard

import (
	"context"
	"fmt"
	"time"
)

// CheckResult is the idempotency guard's verdict for a command signature.
type CheckResult string

// Check result constants.
const (
	Allow CheckResult = "allow"
	Skip  CheckResult = "skip"
)

// Check decides whether an identical command already ran within ttl. If the
// signature is absent or its record has expired, the record is created or
// refreshed and the result is Allow. If a fresh record exists, the result is
// Skip and nothing is written.
//
// The check-and-refresh is a single UPSERT so concurrent invocations of the
// same signature cannot both observe "expired" and double-run.
//
// Check fails open: on store errors the result is Allow (availability of the
// wrapped build tooling takes priority over perfect idempotency) and the
// error is returned for diagnostics.
func (s *Store) Check(ctx context.Context, signature string, ttl time.Duration) (CheckResult, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (signature, last_seen, ttl_seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			last_seen = excluded.last_seen,
			ttl_seconds = excluded.ttl_seconds
		WHERE unixepoch(idempotency_records.last_seen) + idempotency_records.ttl_seconds
			<= unixepoch(excluded.last_seen)`,
		signature, now.Format(time.RFC3339), int64(ttl.Seconds()))
	if err != nil {
		return Allow, fmt.Errorf("idempotency check for %s: %w", signature, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Allow, fmt.Errorf("idempotency check for %s: %w", signature, err)
	}
	if affected == 0 {
		// Record exists and has not expired: a duplicate invocation.
		return Skip, nil
	}
	return Allow, nil
}

// ExpireStale deletes idempotency records whose TTL has elapsed. The guard
// works without this (Check refreshes in place), but periodic cleanup keeps
// the table from accumulating one row per command the CI ever ran.
func (s *Store) ExpireStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_records
		WHERE unixepoch(last_seen) + ttl_seconds <= unixepoch(?)`,
		s.now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("expire idempotency records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire idempotency records: %w", err)
	}
	return n, nil
}
