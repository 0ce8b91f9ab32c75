package main

import (
	"errors"
	"fmt"
	"time"

	"nextrust/pkg/escalate"
	"nextrust/pkg/ledger"

	"github.com/spf13/cobra"
)

// newBudgetCmd creates the "nextrust budget" subcommand group.
func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Check escalation spending limits and thresholds",
	}
	cmd.AddCommand(newBudgetCheckCmd(), newBudgetStatusCmd(), newBudgetResetCmd())
	return cmd
}

// newBudgetResetCmd clears quota cooldowns so escalation can resume before
// the deadline, for when the operator knows provider quota has been restored.
func newBudgetResetCmd() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear service cooldowns set by quota rejections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			services, err := selectServices(service)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			for _, svc := range services {
				if err := store.ClearCooldown(ctx, string(svc)); err != nil {
					return err
				}
				fmt.Fprintf(w, "%s: cooldown cleared\n", svc)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "reset a single service (design or review)")
	return cmd
}

// selectServices resolves the --service flag to the services to operate on,
// all of them when the flag is empty.
func selectServices(flag string) ([]escalate.Service, error) {
	if flag == "" {
		return []escalate.Service{escalate.DesignService, escalate.ReviewService}, nil
	}
	svc := escalate.Service(flag)
	if !svc.Valid() {
		return nil, fmt.Errorf("unknown service %q", flag)
	}
	return []escalate.Service{svc}, nil
}

// newBudgetCheckCmd enforces the per-service request and cost limits. Exit
// status is the contract: non-zero when any checked service is over budget
// or cooling down, so build scripts can gate escalation steps on it.
func newBudgetCheckCmd() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify per-service limits; non-zero exit when exceeded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			services, err := selectServices(service)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			var failed []error
			for _, svc := range services {
				if until, active, err := store.CooldownActive(ctx, string(svc)); err == nil && active {
					fmt.Fprintf(w, "%s: cooling down until %s\n", svc, until.Format(time.RFC3339))
					failed = append(failed, fmt.Errorf("%s service is cooling down", svc))
					continue
				}
				if err := checkBudget(a, svc); err != nil {
					fmt.Fprintf(w, "%s: %v\n", svc, err)
					failed = append(failed, err)
					continue
				}
				fmt.Fprintf(w, "%s: within budget\n", svc)
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "check a single service (design or review)")
	return cmd
}

// newBudgetStatusCmd reports total spend against the warning and critical
// thresholds. Informational by default; --fail-on-critical makes a critical
// threshold a non-zero exit so pipelines can be configured to stop.
func newBudgetStatusCmd() *cobra.Command {
	var (
		days           int
		failOnCritical bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report spend against the alert thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			period := time.Duration(days) * 24 * time.Hour
			sev, total, err := a.usageLedger().CheckThreshold(period, a.cfg.Ledger.WarningUSD, a.cfg.Ledger.CriticalUSD)
			if err != nil {
				return fmt.Errorf("check thresholds: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "spend: $%.2f over %dd  severity: %s  (warning $%.2f, critical $%.2f)\n",
				total, days, sev, a.cfg.Ledger.WarningUSD, a.cfg.Ledger.CriticalUSD)

			if sev == ledger.SeverityCritical && (failOnCritical || a.cfg.Ledger.FailBuildOnCritical) {
				return fmt.Errorf("spend $%.2f crossed the critical threshold $%.2f", total, a.cfg.Ledger.CriticalUSD)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "spend window in days")
	cmd.Flags().BoolVar(&failOnCritical, "fail-on-critical", false, "exit non-zero when the critical threshold is crossed")
	return cmd
}
