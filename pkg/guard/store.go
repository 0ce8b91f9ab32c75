// Package guard implements the persisted hook state: the idempotency guard,
// the consecutive-failure tracker, and escalation service cooldowns. All
// state lives in a single SQLite database so concurrent CI jobs see atomic
// read-modify-write semantics instead of racing over ad-hoc JSON files.
package guard

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides access to the hook state database.
type Store struct {
	db *sql.DB

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewStore creates a Store over an open database handle. Call Init to apply
// the schema before first use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, nowFunc: time.Now}
}

// Init applies the SQLite schema. Safe to call on every startup.
func (s *Store) Init(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// now returns the current UTC time via the injectable clock.
func (s *Store) now() time.Time {
	return s.nowFunc().UTC()
}
