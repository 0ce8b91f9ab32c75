package guard

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"nextrust/pkg/protocol"

	_ "modernc.org/sqlite"
)

// newTestStore creates a Store over a fresh SQLite database with the schema
// applied and a fixed starting clock.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "hooks.db")
	// busy_timeout goes in the DSN so it applies to every pooled connection,
	// not just the one a bare Exec("PRAGMA ...") happens to run on.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	if err := s.Init(context.Background(), protocol.SchemaDDL); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return base }
	return s
}

// advance moves the store's clock forward by d.
func advance(s *Store, d time.Duration) {
	current := s.nowFunc()
	s.nowFunc = func() time.Time { return current.Add(d) }
}

func TestCheck_AllowThenSkipWithinTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Check(ctx, "sig-build", 5*time.Minute)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if first != Allow {
		t.Fatalf("first check = %v, want Allow", first)
	}

	advance(s, 1*time.Minute)
	second, err := s.Check(ctx, "sig-build", 5*time.Minute)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if second != Skip {
		t.Fatalf("second check within TTL = %v, want Skip", second)
	}
}

func TestCheck_AllowAgainAfterExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Check(ctx, "sig-build", 5*time.Minute); err != nil {
		t.Fatalf("first check: %v", err)
	}

	advance(s, 6*time.Minute)
	res, err := s.Check(ctx, "sig-build", 5*time.Minute)
	if err != nil {
		t.Fatalf("check after expiry: %v", err)
	}
	if res != Allow {
		t.Fatalf("check after TTL elapsed = %v, want Allow", res)
	}
}

func TestCheck_DistinctSignaturesIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Check(ctx, "sig-a", 5*time.Minute); err != nil {
		t.Fatalf("check sig-a: %v", err)
	}
	res, err := s.Check(ctx, "sig-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("check sig-b: %v", err)
	}
	if res != Allow {
		t.Fatalf("unrelated signature = %v, want Allow", res)
	}
}

func TestCheck_FailsOpenOnStoreError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hooks.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	// No schema applied: every query errors.
	s := NewStore(db)
	res, err := s.Check(context.Background(), "sig-build", time.Minute)
	if err == nil {
		t.Fatal("expected store error to be surfaced")
	}
	if res != Allow {
		t.Fatalf("guard must fail open, got %v", res)
	}
}

func TestExpireStale_RemovesOnlyExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Check(ctx, "sig-old", 1*time.Minute); err != nil {
		t.Fatalf("seed sig-old: %v", err)
	}
	advance(s, 30*time.Second)
	if _, err := s.Check(ctx, "sig-new", 10*time.Minute); err != nil {
		t.Fatalf("seed sig-new: %v", err)
	}

	advance(s, 2*time.Minute)
	removed, err := s.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expired %d records, want 1", removed)
	}
}

func TestRecordFailure_CeilingMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const max = 3

	for i := 1; i <= max; i++ {
		count, err := s.RecordFailure(ctx, "build-llvm", "SIGSEGV in ScheduleDAGRRList")
		if err != nil {
			t.Fatalf("record failure %d: %v", i, err)
		}
		if count != i {
			t.Fatalf("failure %d returned count %d", i, count)
		}

		verdict, _, err := s.CheckCeiling(ctx, "build-llvm", max)
		if err != nil {
			t.Fatalf("check ceiling after %d failures: %v", i, err)
		}
		want := UnderLimit
		if i >= max {
			want = AtLimit
		}
		if verdict != want {
			t.Fatalf("after %d failures: ceiling = %v, want %v", i, verdict, want)
		}
	}
}

func TestRecordSuccess_ResetsCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.RecordFailure(ctx, "build-llvm", "undefined reference"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := s.RecordSuccess(ctx, "build-llvm"); err != nil {
		t.Fatalf("record success: %v", err)
	}

	verdict, count, err := s.CheckCeiling(ctx, "build-llvm", 3)
	if err != nil {
		t.Fatalf("check ceiling: %v", err)
	}
	if verdict != UnderLimit || count != 0 {
		t.Fatalf("after success: verdict=%v count=%d, want UnderLimit 0", verdict, count)
	}

	// Counting restarts from 1.
	count2, err := s.RecordFailure(ctx, "build-llvm", "timeout")
	if err != nil {
		t.Fatalf("record failure after reset: %v", err)
	}
	if count2 != 1 {
		t.Fatalf("count after reset = %d, want 1", count2)
	}
}

func TestRecordFailure_ConcurrentIncrementsLoseNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RecordFailure(ctx, "sig-race", "flaky"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent record failure: %v", err)
	}

	_, count, err := s.CheckCeiling(ctx, "sig-race", 100)
	if err != nil {
		t.Fatalf("check ceiling: %v", err)
	}
	if count != writers {
		t.Fatalf("count = %d after %d concurrent failures, want %d", count, writers, writers)
	}
}

func TestRecordFailure_TruncatesHugeErrorText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	huge := make([]byte, 100_000)
	for i := range huge {
		huge[i] = 'x'
	}
	if _, err := s.RecordFailure(ctx, "sig-huge", string(huge)); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT last_error FROM failure_counts WHERE signature = ?`, "sig-huge").Scan(&stored)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(stored) > maxStoredError {
		t.Fatalf("stored error is %d bytes, cap is %d", len(stored), maxStoredError)
	}
}

func TestRecordFailure_TruncationKeepsValidUTF8(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Multi-byte runes straddle the byte cap.
	text := strings.Repeat("é", maxStoredError)
	if _, err := s.RecordFailure(ctx, "sig-utf8", text); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT last_error FROM failure_counts WHERE signature = ?`, "sig-utf8").Scan(&stored)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(stored) > maxStoredError {
		t.Fatalf("stored error is %d bytes, cap is %d", len(stored), maxStoredError)
	}
	if !utf8.ValidString(stored) {
		t.Fatal("truncation split a rune")
	}
}

func TestCooldown_SetActiveExpire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, active, err := s.CooldownActive(ctx, "review"); err != nil || active {
		t.Fatalf("fresh store: active=%v err=%v, want inactive", active, err)
	}

	until := s.now().Add(30 * time.Minute)
	if err := s.SetCooldown(ctx, "review", until, "quota exceeded"); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}

	got, active, err := s.CooldownActive(ctx, "review")
	if err != nil {
		t.Fatalf("check cooldown: %v", err)
	}
	if !active {
		t.Fatal("cooldown should be active")
	}
	if !got.Equal(until) {
		t.Fatalf("cooldown until %v, want %v", got, until)
	}

	advance(s, time.Hour)
	if _, active, err := s.CooldownActive(ctx, "review"); err != nil || active {
		t.Fatalf("after deadline: active=%v err=%v, want inactive", active, err)
	}
}

func TestClearCooldown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetCooldown(ctx, "review", s.now().Add(time.Hour), "quota"); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}
	if err := s.ClearCooldown(ctx, "review"); err != nil {
		t.Fatalf("clear cooldown: %v", err)
	}
	if _, active, err := s.CooldownActive(ctx, "review"); err != nil || active {
		t.Fatalf("after clear: active=%v err=%v, want inactive", active, err)
	}
}
