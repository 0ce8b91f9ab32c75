package protocol

import (
	"fmt"
	"time"
)

// CeilingReachedError represents a failure-ceiling breach for a command
// signature. It enables typed error discrimination via errors.As so callers
// can distinguish "retries refused" from ordinary store errors.
type CeilingReachedError struct {
	Signature string
	Count     int
	Ceiling   int
}

func (e *CeilingReachedError) Error() string {
	return fmt.Sprintf("failure ceiling reached for %s (%d consecutive failures, ceiling %d): automatic retries refused",
		e.Signature, e.Count, e.Ceiling)
}

// QuotaExceededError represents a quota rejection from an escalation backend.
// Distinct from transient failures: it triggers a cooldown, not a retry, so
// operators can tell "service is down" from "we used our free quota."
type QuotaExceededError struct {
	Service       string
	CooldownUntil time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s service: cooling down until %s",
		e.Service, e.CooldownUntil.Format(time.RFC3339))
}

// CredentialError represents a missing or rejected backend credential.
// Never retried; the message names the environment variable to fix.
type CredentialError struct {
	Service string
	EnvVar  string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s service credentials missing or rejected: set %s", e.Service, e.EnvVar)
}
