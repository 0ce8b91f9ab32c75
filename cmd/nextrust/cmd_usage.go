package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"nextrust/pkg/ledger"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// newUsageCmd creates the "nextrust usage" subcommand group over the ledger.
func newUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report escalation token usage and spend",
	}
	cmd.AddCommand(newUsageReportCmd())
	return cmd
}

func newUsageReportCmd() *cobra.Command {
	var (
		days    int
		groupBy string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate usage records from the monthly ledger files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gb := ledger.GroupBy(groupBy)
			switch gb {
			case ledger.GroupNone, ledger.GroupModel, ledger.GroupPhase, ledger.GroupSession, ledger.GroupService:
			default:
				return fmt.Errorf("unknown --group-by %q (want model, phase, session, or service)", groupBy)
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			since := time.Now().UTC().AddDate(0, 0, -days)
			stats, err := a.usageLedger().Aggregate(since, gb)
			if err != nil {
				return fmt.Errorf("aggregate ledger: %w", err)
			}

			if format == "" {
				format = "json"
				if isatty.IsTerminal(os.Stdout.Fd()) {
					format = "table"
				}
			}

			keys := sortedKeys(stats)
			switch format {
			case "table":
				return writeUsageTable(cmd, keys, stats)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			case "csv":
				return writeUsageCSV(cmd, keys, stats)
			default:
				return fmt.Errorf("unknown --format %q (want table, json, or csv)", format)
			}
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "aggregation window in days")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "group rows by model, phase, session, or service")
	cmd.Flags().StringVar(&format, "format", "", "output format: table, json, or csv (default: table on a TTY)")
	return cmd
}

// sortedKeys orders group keys alphabetically with the total row last.
func sortedKeys(stats map[string]ledger.GroupStats) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		if k != ledger.TotalKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := stats[ledger.TotalKey]; ok {
		keys = append(keys, ledger.TotalKey)
	}
	return keys
}

func writeUsageTable(cmd *cobra.Command, keys []string, stats map[string]ledger.GroupStats) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tREQUESTS\tFAILURES\tTOKENS\tCOST (USD)")
	for _, k := range keys {
		s := stats[k]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\n", k, s.Requests, s.Failures, s.Tokens.Total, s.CostUSD)
	}
	return w.Flush()
}

func writeUsageCSV(cmd *cobra.Command, keys []string, stats map[string]ledger.GroupStats) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"group", "requests", "failures", "tokens", "cost_usd"}); err != nil {
		return err
	}
	for _, k := range keys {
		s := stats[k]
		row := []string{
			k,
			strconv.Itoa(s.Requests),
			strconv.Itoa(s.Failures),
			strconv.Itoa(s.Tokens.Total),
			strconv.FormatFloat(s.CostUSD, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
