package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"nextrust/pkg/escalate"
	"nextrust/pkg/eventlog"
	"nextrust/pkg/hook"
	"nextrust/pkg/protocol"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// maxHookStdin caps the tool event read from stdin. Oversized input fails
// open rather than blocking the wrapped command.
const maxHookStdin = 1 << 20

// newHookCmd creates the "nextrust hook" subcommand group. These are the
// entry points the CI wrapper invokes around every tool call, so they never
// exit non-zero: every internal failure degrades to an allow/noop decision
// printed on stdout.
func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Pre/post tool-invocation hooks for the CI wrapper",
		Long:  "Reads a tool event as JSON on stdin and prints a decision as JSON on stdout.\nInvoked by the pipeline wrapper before and after every build tool call.",
	}
	cmd.AddCommand(newHookPreCmd(), newHookPostCmd())
	return cmd
}

// preOutput is the stdout contract for "hook pre".
type preOutput struct {
	Decision  protocol.PreDecision `json:"decision"`
	Signature string               `json:"signature,omitempty"`
	Reason    string               `json:"reason,omitempty"`
}

// postOutput is the stdout contract for "hook post".
type postOutput struct {
	Action       protocol.PostAction `json:"action"`
	Signature    string              `json:"signature,omitempty"`
	Category     string              `json:"category,omitempty"`
	FailureCount int                 `json:"failure_count,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	Escalation   string              `json:"escalation,omitempty"`
}

func newHookPreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pre",
		Short: "Decide whether a tool invocation may run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			ev, err := readToolEvent(cmd.InOrStdin())
			if err != nil {
				return emitJSON(out, preOutput{Decision: protocol.DecisionAllow, Reason: failOpenReason(err)})
			}

			ctx := cmd.Context()
			d, db, err := buildDispatcher(ctx)
			if err != nil {
				return emitJSON(out, preOutput{Decision: protocol.DecisionAllow, Reason: failOpenReason(err)})
			}
			defer db.Close()

			res := d.HandlePre(ctx, ev)
			return emitJSON(out, preOutput{Decision: res.Decision, Signature: res.Signature, Reason: res.Reason})
		},
	}
}

func newHookPostCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Record a tool invocation outcome and escalate hard failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			ev, err := readToolEvent(cmd.InOrStdin())
			if err != nil {
				return emitJSON(out, postOutput{Action: protocol.ActionNoOp, Reason: failOpenReason(err)})
			}

			ctx := cmd.Context()
			d, db, err := buildDispatcher(ctx)
			if err != nil {
				return emitJSON(out, postOutput{Action: protocol.ActionNoOp, Reason: failOpenReason(err)})
			}
			defer db.Close()

			res := d.HandlePost(ctx, ev)
			output := postOutput{
				Action:       res.Action,
				Signature:    res.Signature,
				Category:     string(res.Classified.Category),
				FailureCount: res.FailureCount,
				Reason:       res.Reason,
			}

			a, aerr := loadApp()
			if aerr == nil {
				recordHookActivity(a, ev, res)
			}

			if res.Action == protocol.ActionEscalate && res.Request != nil && aerr == nil {
				output.Escalation = escalateFromHook(ctx, a, *res.Request, sessionID, cmd.ErrOrStderr())
			}

			fmt.Fprintln(cmd.ErrOrStderr(), res.Summary())
			return emitJSON(out, output)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "ledger session ID (default: fresh UUID per invocation)")
	return cmd
}

// readToolEvent decodes one ToolEvent from r, bounded by maxHookStdin.
func readToolEvent(r io.Reader) (protocol.ToolEvent, error) {
	var ev protocol.ToolEvent
	data, err := io.ReadAll(io.LimitReader(r, maxHookStdin+1))
	if err != nil {
		return ev, fmt.Errorf("read stdin: %w", err)
	}
	if len(data) > maxHookStdin {
		return ev, fmt.Errorf("tool event exceeds %d bytes", maxHookStdin)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("parse tool event: %w", err)
	}
	if ev.Command == "" {
		return ev, fmt.Errorf("tool event has no command")
	}
	return ev, nil
}

// buildDispatcher wires the production dispatcher: state store, curated
// classifier, audit log. The caller owns the returned db handle.
func buildDispatcher(ctx context.Context) (*hook.Dispatcher, *sql.DB, error) {
	a, err := loadApp()
	if err != nil {
		return nil, nil, err
	}
	db, store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cls, err := a.classifier()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	d := hook.New(hook.Config{
		IdempotencyTTL:     a.cfg.Hooks.IdempotencyTTL(),
		FailureCeiling:     a.cfg.Hooks.FailureCeiling,
		UnclassifiedAfter:  a.cfg.Hooks.UnclassifiedAfter,
		MaxEscalationBytes: a.cfg.Hooks.MaxEscalationBytes,
	}, store, store, cls, eventlog.NewWriter(db))
	return d, db, nil
}

// escalateFromHook runs the dispatcher-requested escalation synchronously and
// returns the advice text. The hook still exits zero whatever happens here;
// a failed escalation is reported in the JSON output and on stderr.
func escalateFromHook(ctx context.Context, a *app, req escalate.Request, sessionID string, errw io.Writer) string {
	db, store, err := a.openStore(ctx)
	if err != nil {
		fmt.Fprintf(errw, "escalation unavailable: %v\n", err)
		return ""
	}
	defer db.Close()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	resp, err := runEscalation(ctx, a, store, req, sessionID, false)
	if err != nil {
		fmt.Fprintf(errw, "escalation failed: %v\n", err)
		return ""
	}
	return resp.Text
}

// recordHookActivity appends the post-hook outcome to the pipeline log.
// Best effort: the log is observability, not control flow.
func recordHookActivity(a *app, ev protocol.ToolEvent, res hook.PostResult) {
	if res.Action == protocol.ActionNoOp && res.FailureCount == 0 {
		return
	}
	details, err := json.Marshal(map[string]any{
		"signature": res.Signature,
		"command":   ev.Command,
		"action":    res.Action,
		"category":  res.Classified.Category,
		"failures":  res.FailureCount,
	})
	if err != nil {
		return
	}
	_ = a.pipelineLog().Append(protocol.PipelineEntry{
		EventType: "tool_failure",
		PhaseID:   ev.PhaseID,
		Details:   details,
	})
}

func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

func failOpenReason(err error) string {
	return fmt.Sprintf("hook degraded, failing open: %v", err)
}
