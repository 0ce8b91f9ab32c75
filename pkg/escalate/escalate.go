// Package escalate implements the AI escalation client: a unified interface
// over two backend services: a "design" service (deep reasoning, priced per
// token, used sparingly) and a "review" service (free-tier, daily quota,
// used liberally). The client owns retry/backoff for transient failures,
// cooldown on quota rejection, and usage reporting: every call outcome,
// success or failure, produces exactly one ledger record.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nextrust/pkg/protocol"

	"github.com/google/uuid"
)

// Service selects an escalation backend.
type Service string

// Escalation services.
const (
	DesignService Service = "design"
	ReviewService Service = "review"
)

// Valid reports whether s names a known service.
func (s Service) Valid() bool {
	return s == DesignService || s == ReviewService
}

// Request describes one escalation: what failed, where in the pipeline, and
// how many times it already failed.
type Request struct {
	Service       Service
	Context       string // what was being attempted (command, phase narrative)
	ErrorText     string // captured failure output, may be empty
	PhaseID       string
	PriorAttempts int
}

// Response is the unified result of one escalation, regardless of backend.
type Response struct {
	Text      string
	Tokens    protocol.TokenCounts
	Success   bool
	ErrorKind FailureKind // empty on success
}

// FailureKind is the error taxonomy for escalation call outcomes.
type FailureKind string

// Failure kinds.
const (
	KindTransient FailureKind = "transient" // network, 5xx, rate limit: retry with backoff
	KindPermanent FailureKind = "permanent" // auth, malformed request: never retry
	KindQuota     FailureKind = "quota"     // free-tier exhausted: cooldown, don't retry
)

// BackendError classifies a failed backend call. Backends wrap their native
// errors in this so the client can drive the retry state machine without
// knowing either API's error schema.
type BackendError struct {
	Service Service
	Kind    FailureKind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend (%s): %v", e.Service, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Backend is one concrete escalation service.
type Backend interface {
	// Service identifies which profile this backend serves.
	Service() Service
	// Model returns the model name used for ledger records.
	Model() string
	// Invoke performs one call. Failures must be returned as *BackendError
	// so the client can classify them; any other error is treated as
	// transient.
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Reporter receives one usage record per call outcome. Implemented by the
// usage ledger.
type Reporter interface {
	Append(rec protocol.UsageRecord) error
	AppendPromptAudit(rec protocol.PromptAuditRecord) error
}

// CooldownStore persists quota cooldowns across invocations. Implemented by
// the hook state store.
type CooldownStore interface {
	CooldownActive(ctx context.Context, service string) (time.Time, bool, error)
	SetCooldown(ctx context.Context, service string, until time.Time, reason string) error
}

// Config holds escalation client configuration.
type Config struct {
	MaxAttempts    int           // per-escalation attempt bound (default 3).
	BackoffBase    time.Duration // delay before attempt 2; doubles per attempt (default 1s).
	CallTimeout    time.Duration // per-attempt backend timeout (default 2m).
	Cooldown       time.Duration // quota cooldown duration (default 30m).
	SessionID      string        // ledger session ID (default: fresh UUID).
	AuditPrompts   bool          // also write prompt-audit records.
	DisableBackoff bool          // tests only: skip sleeps.
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxAttempts == 0 {
		out.MaxAttempts = 3
	}
	if out.BackoffBase == 0 {
		out.BackoffBase = time.Second
	}
	if out.CallTimeout == 0 {
		out.CallTimeout = 2 * time.Minute
	}
	if out.Cooldown == 0 {
		out.Cooldown = 30 * time.Minute
	}
	if out.SessionID == "" {
		out.SessionID = uuid.NewString()
	}
	return out
}

// Client routes escalation requests to the appropriate backend.
type Client struct {
	cfg       Config
	backends  map[Service]Backend
	reporter  Reporter
	cooldowns CooldownStore

	// nowFunc and sleepFunc allow tests to control time.
	nowFunc   func() time.Time
	sleepFunc func(context.Context, time.Duration) error
}

// NewClient creates a Client over the given backends. reporter and cooldowns
// may not be nil: usage accounting and quota handling are not optional.
func NewClient(cfg Config, backends []Backend, reporter Reporter, cooldowns CooldownStore) *Client {
	m := make(map[Service]Backend, len(backends))
	for _, b := range backends {
		m[b.Service()] = b
	}
	return &Client{
		cfg:       cfg.withDefaults(),
		backends:  m,
		reporter:  reporter,
		cooldowns: cooldowns,
		nowFunc:   time.Now,
		sleepFunc: sleepCtx,
	}
}

// Escalate performs one escalation with bounded retry. The attempt state
// machine: Pending -> Success | TransientFailure (retry until the attempt
// bound) | PermanentFailure | QuotaExceeded. Quota rejections set a cooldown
// and return a *protocol.QuotaExceededError; while a cooldown is active no
// backend call is made at all. Every outcome, including failures, is
// reported to the ledger (failures as zero-cost records).
func (c *Client) Escalate(ctx context.Context, req Request) (Response, error) {
	backend, ok := c.backends[req.Service]
	if !ok {
		return Response{}, fmt.Errorf("no backend configured for %s service", req.Service)
	}

	if until, active, err := c.cooldowns.CooldownActive(ctx, string(req.Service)); err == nil && active {
		resp := Response{Success: false, ErrorKind: KindQuota}
		c.report(backend, req, resp)
		return resp, &protocol.QuotaExceededError{Service: string(req.Service), CooldownUntil: until}
	}

	if c.cfg.AuditPrompts {
		// Best-effort: an unwritable audit trail must not block escalation.
		_ = c.reporter.AppendPromptAudit(protocol.PromptAuditRecord{
			Timestamp: c.nowFunc().UTC().Format(time.RFC3339),
			SessionID: c.cfg.SessionID,
			Service:   string(req.Service),
			Model:     backend.Model(),
			Prompt:    BuildPrompt(req),
		})
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 && !c.cfg.DisableBackoff {
			delay := c.cfg.BackoffBase << uint(attempt-2)
			if err := c.sleepFunc(ctx, delay); err != nil {
				return Response{}, err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		resp, err := backend.Invoke(callCtx, req)
		cancel()

		if err == nil {
			resp.Success = true
			resp.ErrorKind = ""
			c.report(backend, req, resp)
			return resp, nil
		}
		lastErr = err

		switch classifyErr(err) {
		case KindPermanent:
			resp := Response{Success: false, ErrorKind: KindPermanent}
			c.report(backend, req, resp)
			return resp, fmt.Errorf("%s escalation failed permanently: %w", req.Service, err)

		case KindQuota:
			until := c.nowFunc().UTC().Add(c.cfg.Cooldown)
			if cdErr := c.cooldowns.SetCooldown(ctx, string(req.Service), until, err.Error()); cdErr != nil {
				lastErr = errors.Join(err, cdErr)
			}
			resp := Response{Success: false, ErrorKind: KindQuota}
			c.report(backend, req, resp)
			return resp, &protocol.QuotaExceededError{Service: string(req.Service), CooldownUntil: until}

		default:
			// Transient: fall through to the next attempt.
		}
	}

	resp := Response{Success: false, ErrorKind: KindTransient}
	c.report(backend, req, resp)
	return resp, fmt.Errorf("%s escalation failed after %d attempts: %w", req.Service, c.cfg.MaxAttempts, lastErr)
}

// report writes exactly one usage record for a call outcome. Failures cost
// zero. Reporting errors are swallowed: accounting must never break
// escalation itself.
func (c *Client) report(backend Backend, req Request, resp Response) {
	_ = c.reporter.Append(protocol.UsageRecord{
		Timestamp: c.nowFunc().UTC().Format(time.RFC3339),
		SessionID: c.cfg.SessionID,
		Service:   string(req.Service),
		Model:     backend.Model(),
		Phase:     req.PhaseID,
		Success:   resp.Success,
		ErrorKind: string(resp.ErrorKind),
		Tokens:    resp.Tokens,
	})
}

// classifyErr maps a backend error to the retry taxonomy. Unknown errors
// (including context deadline on the per-call timeout) count as transient.
func classifyErr(err error) FailureKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindTransient
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
