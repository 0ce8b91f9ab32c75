package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// newCheckIssueCmd creates the "nextrust check-issue" subcommand. Build
// scripts pipe captured error output through it to ask "is this a known
// failure with a standard fix". Exit status 1 means no rule matched.
func newCheckIssueCmd() *cobra.Command {
	var (
		file    string
		phase   string
		variant string
	)

	cmd := &cobra.Command{
		Use:   "check-issue [text]",
		Short: "Match error text against the failure signature table",
		Long:  "Classifies error text against the curated known-issues table plus the\nbuiltin signatures. Prints the matched rule as JSON; exits 1 on no match.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readIssueText(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			cls, err := a.classifier()
			if err != nil {
				return err
			}

			res := cls.Match(text, phase, variant)
			if res.Rule == nil {
				return fmt.Errorf("no matching issue (category %s)", res.Category)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Rule)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read error text from file instead of stdin")
	cmd.Flags().StringVar(&phase, "phase", "", "restrict to rules scoped to this phase")
	cmd.Flags().StringVar(&variant, "variant", "", "restrict to rules scoped to this build variant")
	return cmd
}

// readIssueText resolves the error text from, in order: the positional
// argument, --file, stdin.
func readIssueText(stdin io.Reader, args []string, file string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxHookStdin))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no error text given")
	}
	return text, nil
}
