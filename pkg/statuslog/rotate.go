package statuslog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nextrust/pkg/protocol"
)

// keepAfterRotate is how many recent activities survive a rotation; the
// archive copy holds the full history.
const keepAfterRotate = 100

// RotateResult reports what Rotate did (or would do, under dry run).
type RotateResult struct {
	Rotated     bool
	Reason      string
	ArchivePath string
	Archived    int // activities preserved in the archive
	Kept        int // activities remaining in the live log
}

// Rotate archives the pipeline log when it exceeds maxAge (oldest activity)
// or maxSizeBytes, then trims the live log to its most recent activities.
// Zero maxAge or maxSizeBytes disables that trigger. Under dryRun the result
// reports what would happen without touching anything.
func (s *Store) Rotate(maxAge time.Duration, maxSizeBytes int64, archiveDir string, dryRun bool) (RotateResult, error) {
	unlock, err := s.lock()
	if err != nil {
		return RotateResult{}, err
	}
	defer unlock()

	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return RotateResult{}, nil
	}
	if err != nil {
		return RotateResult{}, fmt.Errorf("stat pipeline log: %w", err)
	}

	doc, err := s.load()
	if err != nil {
		return RotateResult{}, err
	}

	reason := s.rotateReason(doc, info.Size(), maxAge, maxSizeBytes)
	if reason == "" {
		return RotateResult{}, nil
	}

	kept := len(doc.Activities)
	if kept > keepAfterRotate {
		kept = keepAfterRotate
	}
	res := RotateResult{
		Rotated:     true,
		Reason:      reason,
		ArchivePath: filepath.Join(archiveDir, fmt.Sprintf("pipeline-log-%s.json", s.nowFunc().UTC().Format("20060102T150405Z"))),
		Archived:    len(doc.Activities),
		Kept:        kept,
	}
	if dryRun {
		return res, nil
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return RotateResult{}, fmt.Errorf("create archive dir: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return RotateResult{}, fmt.Errorf("read pipeline log for archive: %w", err)
	}
	if err := os.WriteFile(res.ArchivePath, data, 0o644); err != nil {
		return RotateResult{}, fmt.Errorf("write archive: %w", err)
	}

	doc.Activities = doc.Activities[len(doc.Activities)-kept:]
	if err := s.save(doc); err != nil {
		return RotateResult{}, err
	}
	return res, nil
}

// rotateReason returns why the log needs rotating, or "" if it doesn't.
func (s *Store) rotateReason(doc *protocol.PipelineDocument, size int64, maxAge time.Duration, maxSizeBytes int64) string {
	if maxSizeBytes > 0 && size > maxSizeBytes {
		return fmt.Sprintf("size %d bytes exceeds limit %d", size, maxSizeBytes)
	}
	if maxAge > 0 && len(doc.Activities) > 0 {
		oldest, err := time.Parse(time.RFC3339, doc.Activities[0].Timestamp)
		if err == nil && s.nowFunc().UTC().Sub(oldest) > maxAge {
			return fmt.Sprintf("oldest activity %s exceeds max age %s", doc.Activities[0].Timestamp, maxAge)
		}
	}
	return ""
}
