package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newRotateCmd creates the "nextrust rotate" subcommand for pipeline log
// rotation.
func newRotateCmd() *cobra.Command {
	var (
		maxAge  time.Duration
		maxSize int64
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Archive the pipeline log when it grows too old or too large",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			res, err := a.pipelineLog().Rotate(maxAge, maxSize, a.paths.ArchiveDir, dryRun)
			if err != nil {
				return fmt.Errorf("rotate pipeline log: %w", err)
			}

			w := cmd.OutOrStdout()
			switch {
			case !res.Rotated:
				fmt.Fprintln(w, "no rotation needed")
			case dryRun:
				fmt.Fprintf(w, "would rotate (%s): archive %d activities, keep %d\n", res.Reason, res.Archived, res.Kept)
			default:
				fmt.Fprintf(w, "rotated (%s): archived %d activities to %s, kept %d\n", res.Reason, res.Archived, res.ArchivePath, res.Kept)
			}

			if dryRun {
				return nil
			}
			// Rotation doubles as state maintenance: drop idempotency
			// records whose TTL has long passed.
			db, store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			expired, err := store.ExpireStale(cmd.Context())
			if err != nil {
				return fmt.Errorf("expire idempotency records: %w", err)
			}
			if expired > 0 {
				fmt.Fprintf(w, "expired %d stale idempotency records\n", expired)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "rotate when the oldest activity is older than this")
	cmd.Flags().Int64Var(&maxSize, "max-size", 1<<20, "rotate when the log file exceeds this many bytes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without writing")
	return cmd
}
