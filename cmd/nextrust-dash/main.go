// Package main implements the nextrust-dash pipeline dashboard: a terminal
// view of the current phase, recent activity, and escalation spend.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--robot" {
		if err := robotMode(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(newModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

// robotMode writes a one-shot JSON snapshot for scripts and CI annotations
// instead of starting the interactive UI.
func robotMode(w io.Writer) error {
	doc, stats, sev, total := fetchAll()
	snapshot := map[string]any{
		"current_phase": doc.CurrentPhase,
		"activities":    len(doc.Activities),
		"usage":         stats,
		"spend_usd":     total,
		"severity":      sev,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
