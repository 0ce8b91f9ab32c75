package statuslog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nextrust/pkg/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "ci-status", "pipeline-log.json"))
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return base }
	return s
}

func TestAppend_BootstrapsMissingLog(t *testing.T) {
	s := newTestStore(t)
	err := s.Append(protocol.PipelineEntry{EventType: "build_started"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(doc.Activities))
	}
	if doc.Activities[0].Timestamp == "" {
		t.Fatal("append should fill in the timestamp")
	}
}

func TestAppend_InheritsCurrentPhase(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetPhase("phase-3", "LLVM backend"); err != nil {
		t.Fatalf("set phase: %v", err)
	}
	if err := s.Append(protocol.PipelineEntry{EventType: "build_started"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	last := doc.Activities[len(doc.Activities)-1]
	if last.PhaseID != "phase-3" {
		t.Fatalf("activity phase = %q, want phase-3", last.PhaseID)
	}
}

func TestAppend_NeverRewritesHistory(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		details, _ := json.Marshal(map[string]int{"n": i})
		if err := s.Append(protocol.PipelineEntry{EventType: "tick", Details: details}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for i, a := range doc.Activities {
		var d map[string]int
		if err := json.Unmarshal(a.Details, &d); err != nil {
			t.Fatalf("activity %d details: %v", i, err)
		}
		if d["n"] != i {
			t.Fatalf("activity %d rewritten: %v", i, d)
		}
	}
}

func TestAppend_TrimsToBound(t *testing.T) {
	s := newTestStore(t)
	s.maxActivities = 10
	for i := 0; i < 25; i++ {
		details, _ := json.Marshal(map[string]int{"n": i})
		if err := s.Append(protocol.PipelineEntry{EventType: "tick", Details: details}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Activities) != 10 {
		t.Fatalf("history length = %d, want 10", len(doc.Activities))
	}
	var first map[string]int
	if err := json.Unmarshal(doc.Activities[0].Details, &first); err != nil {
		t.Fatalf("first details: %v", err)
	}
	if first["n"] != 15 {
		t.Fatalf("oldest surviving entry is %d, want 15 (trim drops from the front)", first["n"])
	}
}

func TestSetPhase_RecordsTransition(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetPhase("phase-3", "LLVM backend"); err != nil {
		t.Fatalf("set phase-3: %v", err)
	}
	if err := s.SetPhase("phase-4", "Rust target"); err != nil {
		t.Fatalf("set phase-4: %v", err)
	}

	phase, err := s.CurrentPhase()
	if err != nil {
		t.Fatalf("current phase: %v", err)
	}
	if phase.ID != "phase-4" || phase.Name != "Rust target" {
		t.Fatalf("current phase = %+v", phase)
	}
	if phase.StartedAt == "" || phase.Status != "active" {
		t.Fatalf("phase pointer incomplete: %+v", phase)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	last := doc.Activities[len(doc.Activities)-1]
	if last.EventType != "phase_transition" {
		t.Fatalf("last activity = %q, want phase_transition", last.EventType)
	}
	var d map[string]string
	if err := json.Unmarshal(last.Details, &d); err != nil {
		t.Fatalf("details: %v", err)
	}
	if d["from"] != "phase-3" || d["to"] != "phase-4" {
		t.Fatalf("transition details = %v", d)
	}
}

func TestSetPhase_SameIDOnlyRenames(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetPhase("phase-3", "LLVM"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetPhase("phase-3", "LLVM backend"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.CurrentPhase.Name != "LLVM backend" {
		t.Fatalf("name not updated: %+v", doc.CurrentPhase)
	}
	// Only the first transition is recorded.
	transitions := 0
	for _, a := range doc.Activities {
		if a.EventType == "phase_transition" {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("expected 1 transition, got %d", transitions)
	}
}

func TestCurrentPhase_MissingLog(t *testing.T) {
	s := newTestStore(t)
	phase, err := s.CurrentPhase()
	if err != nil {
		t.Fatalf("current phase: %v", err)
	}
	if phase.ID != "" {
		t.Fatalf("expected zero phase, got %+v", phase)
	}
}

func TestAppend_ConcurrentWritersLoseNothing(t *testing.T) {
	s := newTestStore(t)
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			details, _ := json.Marshal(map[string]int{"writer": i})
			if err := s.Append(protocol.PipelineEntry{EventType: "tick", Details: details}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Activities) != writers {
		t.Fatalf("found %d activities after %d concurrent appends", len(doc.Activities), writers)
	}
}

func TestRotate_BySizeArchivesAndTrims(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 150; i++ {
		if err := s.Append(protocol.PipelineEntry{EventType: "tick"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	archiveDir := filepath.Join(filepath.Dir(s.path), "archive")

	res, err := s.Rotate(0, 1, archiveDir, false) // 1 byte: always over
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !res.Rotated {
		t.Fatal("expected rotation")
	}
	if res.Archived != 150 || res.Kept != keepAfterRotate {
		t.Fatalf("archived=%d kept=%d", res.Archived, res.Kept)
	}

	// Archive holds the full history.
	data, err := os.ReadFile(res.ArchivePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var archived protocol.PipelineDocument
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("parse archive: %v", err)
	}
	if len(archived.Activities) != 150 {
		t.Fatalf("archive has %d activities, want 150", len(archived.Activities))
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Activities) != keepAfterRotate {
		t.Fatalf("live log has %d activities, want %d", len(doc.Activities), keepAfterRotate)
	}
}

func TestRotate_ByAge(t *testing.T) {
	s := newTestStore(t)
	old := protocol.PipelineEntry{EventType: "tick", Timestamp: "2026-07-01T00:00:00Z"}
	if err := s.Append(old); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := s.Rotate(14*24*time.Hour, 0, filepath.Join(filepath.Dir(s.path), "archive"), false)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !res.Rotated {
		t.Fatal("50-day-old activity should trigger a 14-day rotation")
	}
}

func TestRotate_NoTriggerNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(protocol.PipelineEntry{EventType: "tick"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := s.Rotate(365*24*time.Hour, 10*1024*1024, filepath.Join(filepath.Dir(s.path), "archive"), false)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Rotated {
		t.Fatalf("unexpected rotation: %+v", res)
	}
}

func TestRotate_DryRunTouchesNothing(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 120; i++ {
		if err := s.Append(protocol.PipelineEntry{EventType: "tick"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	archiveDir := filepath.Join(filepath.Dir(s.path), "archive")

	res, err := s.Rotate(0, 1, archiveDir, true)
	if err != nil {
		t.Fatalf("rotate dry run: %v", err)
	}
	if !res.Rotated {
		t.Fatal("dry run should still report the pending rotation")
	}
	if _, err := os.Stat(res.ArchivePath); !os.IsNotExist(err) {
		t.Fatal("dry run must not write the archive")
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Activities) != 120 {
		t.Fatalf("dry run trimmed the log: %d activities", len(doc.Activities))
	}
}

func TestRotate_MissingLogNoOp(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Rotate(time.Hour, 1, filepath.Join(t.TempDir(), "archive"), false)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Rotated {
		t.Fatalf("missing log rotated: %+v", res)
	}
}

func TestSnapshot_ExternalWriterVisible(t *testing.T) {
	// External build scripts write the same document; the store must read
	// what they leave behind.
	s := newTestStore(t)
	doc := protocol.PipelineDocument{
		CurrentPhase: protocol.Phase{ID: "phase-2", Name: "Emulator bring-up"},
		Activities: []protocol.PipelineEntry{
			{Timestamp: "2026-08-19T00:00:00Z", EventType: "external_write", PhaseID: "phase-2"},
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	phase, err := s.CurrentPhase()
	if err != nil {
		t.Fatalf("current phase: %v", err)
	}
	if phase.ID != "phase-2" {
		t.Fatalf("phase = %+v", phase)
	}

	got, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(got.Activities) != 1 || got.Activities[0].EventType != "external_write" {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestRotate_ArchiveNameIncludesTimestamp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(protocol.PipelineEntry{EventType: "tick"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	res, err := s.Rotate(0, 1, filepath.Join(filepath.Dir(s.path), "archive"), true)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	want := fmt.Sprintf("pipeline-log-%s.json", s.nowFunc().UTC().Format("20060102T150405Z"))
	if filepath.Base(res.ArchivePath) != want {
		t.Fatalf("archive name = %q, want %q", filepath.Base(res.ArchivePath), want)
	}
}
