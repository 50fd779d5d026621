package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogLevel represents the severity of a log message.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelDebug LogLevel = "DEBUG"
)

// LogEntry is a single line in the log view.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	RunID     string // Empty means a session-level line
	Message   string
}

// streamTail holds the accumulated live output for one running run.
type streamTail struct {
	runID string
	text  string
}

// LogsPanel displays a filterable, scrollable log of run events, with a live
// section at the bottom showing the latest streamed output per running run.
type LogsPanel struct {
	entries       []LogEntry
	vp            viewport.Model
	ready         bool
	filter        string   // "all" or a run ID
	filterOptions []string // Available filter values
	filterIndex   int
	follow        bool
	tails         []*streamTail
	width         int
	height        int
	focused       bool
	maxEntries    int

	// Styles
	titleStyle   lipgloss.Style
	filterStyle  lipgloss.Style
	infoStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	debugStyle   lipgloss.Style
	timeStyle    lipgloss.Style
	runStyle     lipgloss.Style
	messageStyle lipgloss.Style
	dimStyle     lipgloss.Style
}

// NewLogsPanel creates a new LogsPanel instance.
func NewLogsPanel() *LogsPanel {
	return &LogsPanel{
		entries:       make([]LogEntry, 0),
		filter:        "all",
		filterOptions: []string{"all"},
		follow:        true,
		maxEntries:    1000,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		filterStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		debugStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")),

		messageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Add appends a log entry and refreshes the view.
func (p *LogsPanel) Add(entry LogEntry) {
	p.entries = append(p.entries, entry)
	if len(p.entries) > p.maxEntries {
		p.entries = p.entries[len(p.entries)-p.maxEntries:]
	}
	if entry.RunID != "" {
		p.addFilterOption(entry.RunID)
	}
	p.refresh()
}

// AppendStream adds streamed model output to a run's live tail. Only the
// last line is displayed, so chunk boundaries never matter.
func (p *LogsPanel) AppendStream(runID, text string) {
	if runID == "" || text == "" {
		return
	}
	tail := p.findTail(runID)
	if tail == nil {
		tail = &streamTail{runID: runID}
		p.tails = append(p.tails, tail)
	}
	tail.text += text
	// Keep the tail bounded; only the end is ever shown.
	if len(tail.text) > 512 {
		tail.text = tail.text[len(tail.text)-512:]
	}
	p.refresh()
}

// ClearStream removes a run's live tail once the run reaches a terminal state.
func (p *LogsPanel) ClearStream(runID string) {
	for i, tail := range p.tails {
		if tail.runID == runID {
			p.tails = append(p.tails[:i], p.tails[i+1:]...)
			p.refresh()
			return
		}
	}
}

func (p *LogsPanel) findTail(runID string) *streamTail {
	for _, tail := range p.tails {
		if tail.runID == runID {
			return tail
		}
	}
	return nil
}

// addFilterOption adds a run ID to the filter cycle if not already present.
func (p *LogsPanel) addFilterOption(runID string) {
	for _, opt := range p.filterOptions {
		if opt == runID {
			return
		}
	}
	p.filterOptions = append(p.filterOptions, runID)
}

// SetSize updates the panel dimensions.
func (p *LogsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height

	viewHeight := height - 4 // Title line, borders
	if viewHeight < 3 {
		viewHeight = 3
	}
	viewWidth := width - 4
	if viewWidth < 20 {
		viewWidth = 20
	}

	if !p.ready {
		p.vp = viewport.New(viewWidth, viewHeight)
		p.vp.MouseWheelEnabled = true
		p.ready = true
	} else {
		p.vp.Width = viewWidth
		p.vp.Height = viewHeight
	}
	p.refresh()
}

// SetFocused sets whether this panel has keyboard focus.
func (p *LogsPanel) SetFocused(focused bool) {
	p.focused = focused
}

// Update handles input messages.
func (p *LogsPanel) Update(msg tea.Msg) (*LogsPanel, tea.Cmd) {
	if !p.focused || !p.ready {
		return p, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "f":
			p.filterIndex = (p.filterIndex + 1) % len(p.filterOptions)
			p.filter = p.filterOptions[p.filterIndex]
			p.refresh()
			return p, nil
		case "a":
			p.follow = !p.follow
			if p.follow {
				p.vp.GotoBottom()
			}
			return p, nil
		case "g":
			p.follow = false
			p.vp.GotoTop()
			return p, nil
		case "G":
			p.follow = true
			p.vp.GotoBottom()
			return p, nil
		case "up", "k":
			p.follow = false
		}
	}

	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	return p, cmd
}

// refresh rebuilds the viewport content from the filtered entries.
func (p *LogsPanel) refresh() {
	if !p.ready {
		return
	}

	var b strings.Builder
	filtered := p.filteredEntries()
	for i, entry := range filtered {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.renderEntry(entry))
	}

	if len(p.tails) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.dimStyle.Render("─── live ───"))
		for _, tail := range p.tails {
			if p.filter != "all" && tail.runID != p.filter {
				continue
			}
			b.WriteString("\n")
			b.WriteString(p.renderTail(tail))
		}
	}

	p.vp.SetContent(b.String())
	if p.follow {
		p.vp.GotoBottom()
	}
}

// filteredEntries returns entries matching the current filter.
func (p *LogsPanel) filteredEntries() []LogEntry {
	if p.filter == "all" {
		return p.entries
	}
	filtered := make([]LogEntry, 0)
	for _, entry := range p.entries {
		if entry.RunID == p.filter {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// renderEntry renders a single log line.
func (p *LogsPanel) renderEntry(entry LogEntry) string {
	var parts []string

	parts = append(parts, p.timeStyle.Render(entry.Timestamp.Format("15:04:05")))

	levelStyle := p.infoStyle
	levelIcon := "I"
	switch entry.Level {
	case LogLevelWarn:
		levelStyle = p.warnStyle
		levelIcon = "W"
	case LogLevelError:
		levelStyle = p.errorStyle
		levelIcon = "E"
	case LogLevelDebug:
		levelStyle = p.debugStyle
		levelIcon = "D"
	}
	parts = append(parts, levelStyle.Render(levelIcon))

	if entry.RunID != "" && p.filter == "all" {
		parts = append(parts, p.runStyle.Render("["+entry.RunID+"]"))
	}

	msg := entry.Message
	maxLen := p.vp.Width - 22
	if maxLen < 20 {
		maxLen = 20
	}
	if len(msg) > maxLen {
		msg = msg[:maxLen-3] + "..."
	}
	parts = append(parts, p.messageStyle.Render(msg))

	return strings.Join(parts, " ")
}

// renderTail renders the live output line for one run.
func (p *LogsPanel) renderTail(tail *streamTail) string {
	text := tail.text
	if idx := strings.LastIndexByte(strings.TrimRight(text, "\n"), '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimRight(text, "\n")

	maxLen := p.vp.Width - 14
	if maxLen < 20 {
		maxLen = 20
	}
	if len(text) > maxLen {
		text = text[len(text)-maxLen:]
	}

	return p.runStyle.Render("["+tail.runID+"]") + " " + p.dimStyle.Render(text)
}

// View renders the logs panel.
func (p *LogsPanel) View() string {
	var b strings.Builder

	title := "Logs"
	if p.focused {
		title = "[Logs]"
	}
	b.WriteString(p.titleStyle.Render(title))

	filterText := fmt.Sprintf(" [%s]", p.filter)
	if p.follow {
		filterText += " (follow)"
	}
	b.WriteString(p.filterStyle.Render(filterText))
	b.WriteString("\n")

	if p.ready {
		b.WriteString(p.vp.View())
	}

	borderColor := lipgloss.Color("240")
	if p.focused {
		borderColor = lipgloss.Color("63")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(p.width - 2).
		Height(p.height - 2).
		Render(b.String())
}

// EntryCount returns the total number of log entries.
func (p *LogsPanel) EntryCount() int {
	return len(p.entries)
}

// FilteredCount returns the number of entries matching the current filter.
func (p *LogsPanel) FilteredCount() int {
	return len(p.filteredEntries())
}

// CurrentFilter returns the active filter value.
func (p *LogsPanel) CurrentFilter() string {
	return p.filter
}
