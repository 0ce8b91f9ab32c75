package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nextrust/pkg/ledger"
	"nextrust/pkg/protocol"
)

// tickMsg triggers a periodic data refresh.
type tickMsg time.Time

// dataMsg carries a full refresh of pipeline and usage state.
type dataMsg struct {
	doc   *protocol.PipelineDocument
	usage map[string]ledger.GroupStats
	sev   ledger.Severity
	spend float64
}

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd returns a tea.Cmd that loads the pipeline log and ledger.
func fetchCmd() tea.Cmd {
	return func() tea.Msg {
		doc, usage, sev, spend := fetchAll()
		return dataMsg{doc: doc, usage: usage, sev: sev, spend: spend}
	}
}

// ViewType selects the active dashboard panel.
type ViewType int

const (
	// ActivityView shows the current phase and recent pipeline activity.
	ActivityView ViewType = iota
	// UsageView shows escalation spend by service.
	UsageView
)

// Model is the Bubble Tea model for the pipeline dashboard.
type Model struct {
	activeView ViewType
	theme      Theme

	doc   *protocol.PipelineDocument
	usage map[string]ledger.GroupStats
	sev   ledger.Severity
	spend float64

	width  int
	height int
}

func newModel() Model {
	return Model{
		theme: DefaultTheme(),
		doc:   &protocol.PipelineDocument{},
		usage: map[string]ledger.GroupStats{},
		sev:   ledger.SeverityOK,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(), tickCmd(), watchStatusDir(statusDir()))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchCmd(), tickCmd())

	case fsChangeMsg:
		// Re-arm the watcher after each change so the stream keeps flowing.
		return m, tea.Batch(fetchCmd(), watchStatusDir(statusDir()))

	case dataMsg:
		m.doc = msg.doc
		m.usage = msg.usage
		m.sev = msg.sev
		m.spend = msg.spend
		return m, nil
	}

	return m, nil
}

// handleKeyPress routes key events.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.activeView == ActivityView {
			m.activeView = UsageView
		} else {
			m.activeView = ActivityView
		}
		return m, nil
	case "r":
		return m, fetchCmd()
	}
	return m, nil
}
