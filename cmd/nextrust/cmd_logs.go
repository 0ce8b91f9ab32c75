package main

import (
	"fmt"

	"nextrust/pkg/eventlog"

	"github.com/spf13/cobra"
)

// newLogsCmd creates the "nextrust logs" subcommand over the hook audit log.
func newLogsCmd() *cobra.Command {
	var (
		tail      int
		eventType string
		phaseID   string
		signature string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query recent hook decisions from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			r, err := eventlog.NewReader(paths.StateDBPath)
			if err != nil {
				return fmt.Errorf("open audit log: %w", err)
			}
			defer r.Close()

			events, err := r.Query(cmd.Context(), eventlog.QueryOpts{
				Signature: signature,
				EventType: eventType,
				PhaseID:   phaseID,
				Limit:     tail,
			})
			if err != nil {
				return fmt.Errorf("query audit log: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(w, "no events found")
				return nil
			}

			// Query returns newest first; print oldest first.
			for i := len(events) - 1; i >= 0; i-- {
				evt := events[i]
				line := fmt.Sprintf("%s  %-14s %s", evt.CreatedAt.Format("2006-01-02 15:04:05"), evt.Type, evt.Signature)
				if evt.PhaseID != "" {
					line += "  phase=" + evt.PhaseID
				}
				if evt.Payload != "" {
					line += "  " + evt.Payload
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 20, "number of recent events to show (0 = all)")
	cmd.Flags().StringVar(&eventType, "type", "", "filter by event type (pre_decision, post_action)")
	cmd.Flags().StringVar(&phaseID, "phase", "", "filter by pipeline phase")
	cmd.Flags().StringVar(&signature, "signature", "", "filter by command signature")
	return cmd
}
