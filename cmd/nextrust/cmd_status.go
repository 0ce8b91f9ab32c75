package main

import (
	"encoding/json"
	"fmt"

	"nextrust/pkg/protocol"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "nextrust status" subcommand group over the
// pipeline log.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show and append pipeline log activity",
	}
	cmd.AddCommand(newStatusShowCmd(), newStatusAppendCmd())
	return cmd
}

func newStatusShowCmd() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current phase and recent activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			doc, err := a.pipelineLog().Snapshot()
			if err != nil {
				return fmt.Errorf("read pipeline log: %w", err)
			}

			w := cmd.OutOrStdout()
			if doc.CurrentPhase.ID == "" {
				fmt.Fprintln(w, "phase: (none)")
			} else {
				fmt.Fprintf(w, "phase: %s  %s  [%s]\n", doc.CurrentPhase.ID, doc.CurrentPhase.Name, doc.CurrentPhase.Status)
			}

			acts := doc.Activities
			if tail > 0 && len(acts) > tail {
				acts = acts[len(acts)-tail:]
			}
			for _, act := range acts {
				line := fmt.Sprintf("%s  %-20s", act.Timestamp, act.EventType)
				if act.PhaseID != "" {
					line += "  phase=" + act.PhaseID
				}
				if len(act.Details) > 0 {
					line += "  " + string(act.Details)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 20, "number of recent activities to show (0 = all)")
	return cmd
}

func newStatusAppendCmd() *cobra.Command {
	var (
		eventType string
		phaseID   string
		details   string
	)

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one activity to the pipeline log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventType == "" {
				return fmt.Errorf("--event-type is required")
			}
			var raw json.RawMessage
			if details != "" {
				if !json.Valid([]byte(details)) {
					return fmt.Errorf("--details must be valid JSON")
				}
				raw = json.RawMessage(details)
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			return a.pipelineLog().Append(protocol.PipelineEntry{
				EventType: eventType,
				PhaseID:   phaseID,
				Details:   raw,
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "event-type", "", "activity event type (required)")
	cmd.Flags().StringVar(&phaseID, "phase", "", "phase ID (default: current phase)")
	cmd.Flags().StringVar(&details, "details", "", "JSON details payload")
	return cmd
}

// newPhaseCmd creates the "nextrust phase" subcommand group.
func newPhaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Get or set the current pipeline phase",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the current phase ID",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := loadApp()
				if err != nil {
					return err
				}
				phase, err := a.pipelineLog().CurrentPhase()
				if err != nil {
					return fmt.Errorf("read pipeline log: %w", err)
				}
				if phase.ID == "" {
					return fmt.Errorf("no current phase")
				}
				fmt.Fprintln(cmd.OutOrStdout(), phase.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <id> [name]",
			Short: "Transition to a phase, recording the transition",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := ""
				if len(args) == 2 {
					name = args[1]
				}
				a, err := loadApp()
				if err != nil {
					return err
				}
				return a.pipelineLog().SetPhase(args[0], name)
			},
		},
	)
	return cmd
}
