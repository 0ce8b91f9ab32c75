package main

import (
	"fmt"

	"nextrust/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root nextrust command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nextrust",
		Short:         "CI pipeline hook dispatcher and failure escalation",
		Long:          "nextrust wraps the Rust-on-NeXTSTEP CI pipeline.\nIt dedupes tool invocations, tracks consecutive failures, classifies\nbuild errors, and escalates hard failures to AI review services.",
		Version:       fmt.Sprintf("nextrust %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newHookCmd(),
		newStatusCmd(),
		newPhaseCmd(),
		newCheckIssueCmd(),
		newUsageCmd(),
		newBudgetCmd(),
		newEscalateCmd(),
		newRotateCmd(),
		newLogsCmd(),
	)

	return cmd
}
