package protocol

import "encoding/json"

// Phase is the mutable current-phase pointer in the pipeline log document.
type Phase struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
}

// PipelineEntry is one record in the pipeline log's append-only activity
// history.
type PipelineEntry struct {
	Timestamp string          `json:"timestamp"`
	EventType string          `json:"event_type"`
	PhaseID   string          `json:"phase_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// PipelineDocument is the on-disk shape of the pipeline log file. External
// build scripts read current_phase.id and append activities directly, so this
// schema is a cross-process contract.
type PipelineDocument struct {
	CurrentPhase Phase           `json:"current_phase"`
	Activities   []PipelineEntry `json:"activities"`
}
