// Package hook implements the event dispatcher, the orchestration nucleus
// routing pre/post tool-invocation events through the idempotency guard, the
// failure tracker, and the failure classifier, and deciding whether a
// failure escalates to an AI service.
//
// The dispatcher is synchronous and stateless between calls: each tool
// invocation triggers one HandlePre and one HandlePost, processed to
// completion. All bookkeeping is best-effort; only the wrapped command's own
// failure ever propagates as a real failure signal.
package hook

import (
	"context"
	"fmt"
	"time"

	"nextrust/pkg/classify"
	"nextrust/pkg/escalate"
	"nextrust/pkg/guard"
	"nextrust/pkg/protocol"
)

// --- Interfaces for testability ---

// Guard is the idempotency check. Production impl is *guard.Store.
type Guard interface {
	Check(ctx context.Context, signature string, ttl time.Duration) (guard.CheckResult, error)
}

// Tracker is the consecutive-failure counter. Production impl is *guard.Store.
type Tracker interface {
	RecordFailure(ctx context.Context, signature, errText string) (int, error)
	RecordSuccess(ctx context.Context, signature string) error
	CheckCeiling(ctx context.Context, signature string, max int) (guard.Ceiling, int, error)
}

// Classifier matches failure output against the curated rule table.
// Production impl is *classify.Classifier.
type Classifier interface {
	Match(text, phase, variant string) classify.Result
}

// AuditLog records hook decisions. Production impl is *eventlog.Writer.
// Append failures are swallowed by the dispatcher: auditing must never
// abort the wrapped command.
type AuditLog interface {
	Append(ctx context.Context, eventType, source, signature, phaseID string, payload any) error
}

// --- Config ---

// Config holds dispatcher configuration.
type Config struct {
	IdempotencyTTL     time.Duration // duplicate-suppression window (default 5m).
	FailureCeiling     int           // consecutive failures before Fatal (default 3).
	UnclassifiedAfter  int           // unclassified failures tolerated before escalating (default 2).
	MaxEscalationBytes int           // cap on error text forwarded to a backend (default 16KiB).
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.IdempotencyTTL == 0 {
		out.IdempotencyTTL = 5 * time.Minute
	}
	if out.FailureCeiling == 0 {
		out.FailureCeiling = 3
	}
	if out.UnclassifiedAfter == 0 {
		out.UnclassifiedAfter = 2
	}
	if out.MaxEscalationBytes == 0 {
		out.MaxEscalationBytes = 16 * 1024
	}
	return out
}

// --- Dispatcher ---

// Dispatcher routes tool-invocation events. Create with New.
type Dispatcher struct {
	cfg        Config
	guard      Guard
	tracker    Tracker
	classifier Classifier
	audit      AuditLog
}

// New creates a Dispatcher. audit may be nil to disable audit logging.
func New(cfg Config, g Guard, t Tracker, c Classifier, audit AuditLog) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg.withDefaults(),
		guard:      g,
		tracker:    t,
		classifier: c,
		audit:      audit,
	}
}

// PreResult is the outcome of a pre-call event.
type PreResult struct {
	Decision  protocol.PreDecision
	Signature string
	Reason    string
}

// HandlePre decides whether a command may run. The failure ceiling vetoes
// first (Block); then the idempotency guard may suppress a duplicate (Skip).
// Bookkeeping errors fail open to Allow: the build must not be hostage to
// the hook's own storage.
func (d *Dispatcher) HandlePre(ctx context.Context, ev protocol.ToolEvent) PreResult {
	sig := ev.Signature()

	verdict, count, err := d.tracker.CheckCeiling(ctx, sig, d.cfg.FailureCeiling)
	if err == nil && verdict == guard.AtLimit {
		res := PreResult{
			Decision:  protocol.DecisionBlock,
			Signature: sig,
			Reason: (&protocol.CeilingReachedError{
				Signature: sig, Count: count, Ceiling: d.cfg.FailureCeiling,
			}).Error(),
		}
		d.logDecision(ctx, ev, sig, string(res.Decision), res.Reason)
		return res
	}

	check, err := d.guard.Check(ctx, sig, d.cfg.IdempotencyTTL)
	if err == nil && check == guard.Skip {
		res := PreResult{
			Decision:  protocol.DecisionSkip,
			Signature: sig,
			Reason:    fmt.Sprintf("identical command ran within the last %s", d.cfg.IdempotencyTTL),
		}
		d.logDecision(ctx, ev, sig, string(res.Decision), res.Reason)
		return res
	}

	res := PreResult{Decision: protocol.DecisionAllow, Signature: sig}
	if err != nil {
		res.Reason = fmt.Sprintf("hook state degraded, failing open: %v", err)
	}
	d.logDecision(ctx, ev, sig, string(res.Decision), res.Reason)
	return res
}

// PostResult is the outcome of a post-call event.
type PostResult struct {
	Action       protocol.PostAction
	Signature    string
	Classified   classify.Result
	FailureCount int
	Reason       string

	// Request is set when Action is ActionEscalate.
	Request *escalate.Request
}

// HandlePost inspects a completed command. Success resets the failure count.
// A failure is counted, classified, and routed: ceiling crossings are Fatal
// regardless of classification; Known failures need no AI; design-level
// failures escalate to the design service; implementation-level and
// persistently unclassified failures escalate to the review service.
func (d *Dispatcher) HandlePost(ctx context.Context, ev protocol.ToolEvent) PostResult {
	sig := ev.Signature()

	exit := 0
	if ev.ExitCode != nil {
		exit = *ev.ExitCode
	}

	if exit == 0 {
		// Best-effort reset; a failed reset only delays ceiling recovery.
		_ = d.tracker.RecordSuccess(ctx, sig)
		res := PostResult{Action: protocol.ActionNoOp, Signature: sig}
		d.logAction(ctx, ev, sig, res)
		return res
	}

	errText := failureText(ev)
	count, err := d.tracker.RecordFailure(ctx, sig, errText)
	if err != nil {
		// Degraded store: proceed with classification on a count of 1 so a
		// single failure still gets routed sensibly.
		count = 1
	}

	classified := d.classifier.Match(errText, ev.PhaseID, ev.Variant)
	res := PostResult{
		Signature:    sig,
		Classified:   classified,
		FailureCount: count,
	}

	switch {
	case count >= d.cfg.FailureCeiling:
		res.Action = protocol.ActionFatal
		res.Reason = (&protocol.CeilingReachedError{
			Signature: sig, Count: count, Ceiling: d.cfg.FailureCeiling,
		}).Error()

	case classified.Category == classify.Known:
		res.Action = protocol.ActionNoOp
		res.Reason = knownReason(classified)

	case classified.Category == classify.DesignIssue:
		res.Action = protocol.ActionEscalate
		res.Request = d.buildRequest(escalate.DesignService, ev, errText, count)

	case classified.Category == classify.ImplementationIssue:
		res.Action = protocol.ActionEscalate
		res.Request = d.buildRequest(escalate.ReviewService, ev, errText, count)

	case count >= d.cfg.UnclassifiedAfter:
		// Repeated unclassified failures stop being "probably flaky".
		res.Action = protocol.ActionEscalate
		res.Request = d.buildRequest(escalate.ReviewService, ev, errText, count)

	default:
		res.Action = protocol.ActionNoOp
		res.Reason = fmt.Sprintf("unclassified failure %d of %d tolerated before escalation", count, d.cfg.UnclassifiedAfter)
	}

	d.logAction(ctx, ev, sig, res)
	return res
}

// buildRequest assembles the escalation request for a failed command.
func (d *Dispatcher) buildRequest(service escalate.Service, ev protocol.ToolEvent, errText string, count int) *escalate.Request {
	exit := 0
	if ev.ExitCode != nil {
		exit = *ev.ExitCode
	}
	return &escalate.Request{
		Service:       service,
		Context:       fmt.Sprintf("Command %q exited with code %d.", ev.Command, exit),
		ErrorText:     tail(errText, d.cfg.MaxEscalationBytes),
		PhaseID:       ev.PhaseID,
		PriorAttempts: count - 1,
	}
}

// Summary renders the human-readable line for CI output: category, matched
// pattern, and the suggested next action.
func (r PostResult) Summary() string {
	switch {
	case r.Action == protocol.ActionNoOp && r.FailureCount == 0:
		return "ok"
	case r.Action == protocol.ActionFatal:
		return fmt.Sprintf("fatal: %s (category %s)", r.Reason, r.Classified.Category)
	case r.Action == protocol.ActionEscalate:
		return fmt.Sprintf("escalating to %s service: category %s%s",
			r.Request.Service, r.Classified.Category, matchedClause(r.Classified))
	default:
		return fmt.Sprintf("category %s%s: %s", r.Classified.Category, matchedClause(r.Classified), r.Reason)
	}
}

func matchedClause(c classify.Result) string {
	if c.MatchedPattern == "" {
		return ""
	}
	return fmt.Sprintf(" (matched %q)", c.MatchedPattern)
}

func knownReason(c classify.Result) string {
	if c.Rule != nil && c.Rule.AutoFix != "" {
		return fmt.Sprintf("known issue, standard fix: %s", c.Rule.AutoFix)
	}
	return "known issue with a documented standard fix"
}

// failureText picks the most informative captured output: stderr when
// present, stdout otherwise.
func failureText(ev protocol.ToolEvent) string {
	if ev.Stderr != "" {
		return ev.Stderr
	}
	return ev.Stdout
}

// tail keeps the last n bytes of s. Build failures bury the interesting
// lines at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func (d *Dispatcher) logDecision(ctx context.Context, ev protocol.ToolEvent, sig, decision, reason string) {
	if d.audit == nil {
		return
	}
	_ = d.audit.Append(ctx, "pre_decision", "hook", sig, ev.PhaseID, map[string]string{
		"decision": decision,
		"reason":   reason,
	})
}

func (d *Dispatcher) logAction(ctx context.Context, ev protocol.ToolEvent, sig string, res PostResult) {
	if d.audit == nil {
		return
	}
	payload := map[string]any{
		"action":        string(res.Action),
		"category":      string(res.Classified.Category),
		"failure_count": res.FailureCount,
	}
	if res.Request != nil {
		payload["service"] = string(res.Request.Service)
	}
	_ = d.audit.Append(ctx, "post_action", "hook", sig, ev.PhaseID, payload)
}
