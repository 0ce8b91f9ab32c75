package main

import (
	"fmt"
	"os"

	"nextrust/pkg/escalate"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newEscalateCmd creates the "nextrust escalate" subcommand: a manual
// escalation outside the hook flow, for build scripts and operators. It is
// the single escalation path; the pre/post hooks route through the same
// budget check, backends, and ledger accounting.
func newEscalateCmd() *cobra.Command {
	var (
		contextText  string
		errorFile    string
		phaseID      string
		sessionID    string
		auditPrompts bool
	)

	cmd := &cobra.Command{
		Use:   "escalate <design|review>",
		Short: "Ask an AI service for help with a build failure",
		Long:  "Sends the failure context to the chosen escalation service and prints the\nadvice. design uses a reasoning model for architectural problems; review\nuses a high-volume model for implementation-level review.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := escalate.Service(args[0])
			if !svc.Valid() {
				return fmt.Errorf("unknown service %q (want design or review)", args[0])
			}
			if contextText == "" {
				return fmt.Errorf("--context is required")
			}

			var errText string
			if errorFile != "" {
				data, err := os.ReadFile(errorFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", errorFile, err)
				}
				errText = string(data)
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			resp, err := runEscalation(ctx, a, store, escalate.Request{
				Service:   svc,
				Context:   contextText,
				ErrorText: errText,
				PhaseID:   phaseID,
			}, sessionID, auditPrompts)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d in, %d out\n", resp.Tokens.Input, resp.Tokens.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextText, "context", "", "what was being attempted (required)")
	cmd.Flags().StringVar(&errorFile, "error-file", "", "file holding the captured error output")
	cmd.Flags().StringVar(&phaseID, "phase", "", "pipeline phase ID for ledger records")
	cmd.Flags().StringVar(&sessionID, "session", "", "ledger session ID (default: fresh UUID)")
	cmd.Flags().BoolVar(&auditPrompts, "audit-prompts", false, "also record the full prompt in the ledger")
	return cmd
}
