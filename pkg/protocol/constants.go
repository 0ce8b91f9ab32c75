package protocol

// Directory and path constants used throughout the hook tooling.
const (
	// NextrustDir is the per-repo configuration directory (e.g., .nextrust).
	NextrustDir = ".nextrust"

	// StatusDirName is the default directory for pipeline status artifacts:
	// the pipeline log, usage ledger files, known issues, and archives.
	StatusDirName = "ci-status"

	// UsageDirName is the ledger subdirectory under the status directory.
	UsageDirName = "usage"

	// ArchiveDirName is the rotation archive subdirectory.
	ArchiveDirName = "archive"

	// PipelineLogName is the pipeline log filename under the status directory.
	PipelineLogName = "pipeline-log.json"

	// KnownIssuesName is the curated failure-signature table filename.
	KnownIssuesName = "known-issues.json"
)

// MaxActivities bounds the pipeline log's activity history. Appends beyond
// this drop the oldest entries; rotation archives the full document first.
const MaxActivities = 1000

// Ledger record type discriminators. Every JSONL line in a usage file
// carries one of these in its "type" field; aggregation skips the rest.
const (
	RecordTypeUsage       = "usage_captured"
	RecordTypePromptAudit = "prompt_audit"
)
