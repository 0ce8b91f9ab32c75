// Package protocol defines the cross-process contracts of the NeXTRust CI
// hook system: tool-invocation event payloads, the SQLite schema for hook
// state, the pipeline log document, and the usage ledger record shapes.
// External build scripts read and write these artifacts directly, so every
// type here is a wire contract, not an implementation detail.
package protocol

import (
	"crypto/sha256"
	"encoding/hex"
)

// ToolEvent is the payload delivered to the hook dispatcher by the wrapping
// script layer. Pre-call events carry only the command (ExitCode is nil);
// post-call events include the exit code and captured output.
type ToolEvent struct {
	Command  string `json:"command"`
	Cwd      string `json:"cwd,omitempty"`
	PhaseID  string `json:"phase_id,omitempty"`
	Variant  string `json:"variant,omitempty"` // CPU variant (e.g., m68030, m68040)
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Signature returns the stable identity of the invoked command, used as the
// key for idempotency and failure-count lookups. Commands differing only in
// working directory hash differently.
func (e ToolEvent) Signature() string {
	h := sha256.New()
	h.Write([]byte(e.Command))
	h.Write([]byte{0})
	h.Write([]byte(e.Cwd))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// PreDecision is the dispatcher's verdict on a pre-call event.
type PreDecision string

// Pre-call decision constants.
const (
	DecisionAllow PreDecision = "allow"
	DecisionSkip  PreDecision = "skip"  // identical command ran within the idempotency window
	DecisionBlock PreDecision = "block" // failure ceiling reached, automatic retries refused
)

// PostAction is the dispatcher's verdict on a post-call event.
type PostAction string

// Post-call action constants.
const (
	ActionNoOp     PostAction = "noop"
	ActionEscalate PostAction = "escalate"
	ActionFatal    PostAction = "fatal" // ceiling crossed, human attention required
)
