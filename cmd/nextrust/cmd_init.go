package main

import (
	"fmt"
	"os"

	"nextrust/pkg/config"

	"github.com/spf13/cobra"
)

// newInitCmd creates the "nextrust init" subcommand. It scaffolds the state
// directory layout and a commented starter config. Idempotent: existing
// files are left alone so re-running init never clobbers local tuning.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold the .nextrust state directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			w := cmd.OutOrStdout()

			for _, dir := range []string{paths.Home, paths.StatusDir, paths.UsageDir, paths.ArchiveDir} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			created, err := writeIfAbsent(paths.ConfigPath, []byte(config.Sample))
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(w, "wrote %s\n", paths.ConfigPath)
			} else {
				fmt.Fprintf(w, "kept existing %s\n", paths.ConfigPath)
			}

			created, err = writeIfAbsent(paths.KnownIssuesPath, []byte("{\n  \"issues\": []\n}\n"))
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(w, "wrote %s\n", paths.KnownIssuesPath)
			}

			// Apply the schema now so the first hook invocation does not pay
			// for table creation under CI time pressure.
			db, _, err := (&app{paths: paths, cfg: config.Default()}).openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(w, "initialized %s\n", paths.Home)
			return nil
		},
	}
}

// writeIfAbsent writes content to path only when no file exists there.
func writeIfAbsent(path string, content []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
