// Package statuslog owns the pipeline log: a single JSON document holding
// the current-phase pointer and an append-only activity history. External
// build scripts read and append the same file, so every access here runs
// under a flock sidecar lock and writes go through an atomic rename;
// concurrent CI jobs never observe a half-written document.
//
// Activities are append-only: entries are never rewritten, only appended,
// trimmed from the front past the history bound, or archived by rotation.
package statuslog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nextrust/pkg/protocol"

	"github.com/gofrs/flock"
)

// Store provides locked access to one pipeline log file.
type Store struct {
	path          string
	maxActivities int

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Store for the pipeline log at path.
func New(path string) *Store {
	return &Store{
		path:          path,
		maxActivities: protocol.MaxActivities,
		nowFunc:       time.Now,
	}
}

// lock acquires the sidecar flock and returns a cleanup func. The lock file
// lives next to the log so external scripts can take the same lock.
func (s *Store) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	fl := flock.New(s.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquire pipeline log lock: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// load reads the document. A missing file yields an empty document, not an
// error: the first append bootstraps the log.
func (s *Store) load() (*protocol.PipelineDocument, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &protocol.PipelineDocument{Activities: []protocol.PipelineEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pipeline log: %w", err)
	}
	var doc protocol.PipelineDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pipeline log: %w", err)
	}
	if doc.Activities == nil {
		doc.Activities = []protocol.PipelineEntry{}
	}
	return &doc, nil
}

// save writes the document via temp file + rename so readers outside the
// lock never see a torn write.
func (s *Store) save(doc *protocol.PipelineDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pipeline log: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write pipeline log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace pipeline log: %w", err)
	}
	return nil
}

// Append adds one activity entry. An empty Timestamp is filled in; an empty
// PhaseID inherits the current phase. History beyond the bound drops oldest
// entries.
func (s *Store) Append(entry protocol.PipelineEntry) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if entry.Timestamp == "" {
		entry.Timestamp = s.nowFunc().UTC().Format(time.RFC3339)
	}
	if entry.PhaseID == "" {
		entry.PhaseID = doc.CurrentPhase.ID
	}
	doc.Activities = append(doc.Activities, entry)
	if over := len(doc.Activities) - s.maxActivities; over > 0 {
		doc.Activities = doc.Activities[over:]
	}
	return s.save(doc)
}

// CurrentPhase returns the current-phase pointer. A missing log yields a
// zero Phase.
func (s *Store) CurrentPhase() (protocol.Phase, error) {
	unlock, err := s.lock()
	if err != nil {
		return protocol.Phase{}, err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return protocol.Phase{}, err
	}
	return doc.CurrentPhase, nil
}

// SetPhase moves the current-phase pointer and appends a phase_transition
// activity recording the move. Setting the already-current phase only
// refreshes its name.
func (s *Store) SetPhase(id, name string) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	now := s.nowFunc().UTC().Format(time.RFC3339)
	if doc.CurrentPhase.ID == id {
		doc.CurrentPhase.Name = name
		return s.save(doc)
	}

	details, _ := json.Marshal(map[string]string{
		"from": doc.CurrentPhase.ID,
		"to":   id,
	})
	doc.CurrentPhase = protocol.Phase{ID: id, Name: name, Status: "active", StartedAt: now}
	doc.Activities = append(doc.Activities, protocol.PipelineEntry{
		Timestamp: now,
		EventType: "phase_transition",
		PhaseID:   id,
		Details:   details,
	})
	if over := len(doc.Activities) - s.maxActivities; over > 0 {
		doc.Activities = doc.Activities[over:]
	}
	return s.save(doc)
}

// Snapshot returns a copy of the full document for reporting and the
// dashboard.
func (s *Store) Snapshot() (*protocol.PipelineDocument, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.load()
}
