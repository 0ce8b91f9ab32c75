package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"nextrust/pkg/ledger"
)

// maxVisibleActivities bounds the activity panel regardless of log length.
const maxVisibleActivities = 15

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.activeView {
	case UsageView:
		b.WriteString(m.renderUsage())
	default:
		b.WriteString(m.renderActivities())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary).Render("NeXTRust Pipeline")

	phase := "no active phase"
	if m.doc.CurrentPhase.ID != "" {
		phase = fmt.Sprintf("%s  %s", m.doc.CurrentPhase.ID, m.doc.CurrentPhase.Name)
		if m.doc.CurrentPhase.Status != "" {
			phase += "  [" + m.doc.CurrentPhase.Status + "]"
		}
	}
	phaseLine := lipgloss.NewStyle().Foreground(m.theme.Secondary).Render(phase)

	spendStyle := lipgloss.NewStyle().Foreground(m.theme.Success)
	switch m.sev {
	case ledger.SeverityWarning:
		spendStyle = spendStyle.Foreground(m.theme.Warning)
	case ledger.SeverityCritical:
		spendStyle = spendStyle.Foreground(m.theme.Error)
	}
	spendLine := spendStyle.Render(fmt.Sprintf("spend $%.2f (%s)", m.spend, m.sev))

	return title + "\n" + phaseLine + "   " + spendLine
}

func (m Model) renderActivities() string {
	muted := lipgloss.NewStyle().Foreground(m.theme.Muted)
	if len(m.doc.Activities) == 0 {
		return muted.Render("no pipeline activity yet")
	}

	acts := m.doc.Activities
	if len(acts) > maxVisibleActivities {
		acts = acts[len(acts)-maxVisibleActivities:]
	}

	var b strings.Builder
	for _, act := range acts {
		line := fmt.Sprintf("%s  %-20s", act.Timestamp, act.EventType)
		if act.PhaseID != "" {
			line += "  " + muted.Render(act.PhaseID)
		}
		if len(act.Details) > 0 {
			line += "  " + truncate(string(act.Details), 60)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderUsage() string {
	if len(m.usage) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("no escalation usage recorded")
	}

	keys := make([]string, 0, len(m.usage))
	for k := range m.usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%-12s %9s %9s %10s %10s", "SERVICE", "REQUESTS", "FAILURES", "TOKENS", "COST"))
	b.WriteString(header)
	b.WriteString("\n")
	for _, k := range keys {
		s := m.usage[k]
		b.WriteString(fmt.Sprintf("%-12s %9d %9d %10d %9.4f\n", k, s.Requests, s.Failures, s.Tokens.Total, s.CostUSD))
	}
	return b.String()
}

func (m Model) renderFooter() string {
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("tab: switch view  r: refresh  q: quit")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
