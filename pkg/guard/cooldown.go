package guard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetCooldown parks a service until the given deadline. Called after a quota
// rejection; subsequent escalation attempts for the service are skipped until
// the deadline passes.
func (s *Store) SetCooldown(ctx context.Context, service string, until time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_cooldowns (service, cooldown_until, reason, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			cooldown_until = excluded.cooldown_until,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		service, until.UTC().Format(time.RFC3339), reason, s.now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set cooldown for %s: %w", service, err)
	}
	return nil
}

// CooldownActive reports whether a service is currently cooling down, and if
// so, until when.
func (s *Store) CooldownActive(ctx context.Context, service string) (time.Time, bool, error) {
	var untilStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT cooldown_until FROM service_cooldowns WHERE service = ?`, service).Scan(&untilStr)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("check cooldown for %s: %w", service, err)
	}
	until, err := time.Parse(time.RFC3339, untilStr)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cooldown_until for %s: %w", service, err)
	}
	if s.now().Before(until) {
		return until, true, nil
	}
	return time.Time{}, false, nil
}

// ClearCooldown removes a service's cooldown, if any. Used by the budget
// tooling's manual reset path.
func (s *Store) ClearCooldown(ctx context.Context, service string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM service_cooldowns WHERE service = ?`, service); err != nil {
		return fmt.Errorf("clear cooldown for %s: %w", service, err)
	}
	return nil
}
