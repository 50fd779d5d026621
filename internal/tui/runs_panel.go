package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunStatus is the display state of one run row.
type RunStatus string

const (
	StatusQueued  RunStatus = "queued"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// RunRow is one run's line in the runs table.
type RunRow struct {
	RunID      string
	AgentName  string
	Task       string
	Status     RunStatus
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Tokens     int64
	Err        string
}

// RunCounts holds the number of runs in each display state.
type RunCounts struct {
	Queued  int
	Running int
	Done    int
	Failed  int
}

// RunsPanel displays every run admitted this session, in admission order.
type RunsPanel struct {
	rows         []*RunRow
	cursor       int
	scrollOffset int
	spin         spinner.Model
	width        int
	height       int
	focused      bool

	// Styles
	titleStyle    lipgloss.Style
	headerStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	queuedStyle   lipgloss.Style
	runningStyle  lipgloss.Style
	doneStyle     lipgloss.Style
	failedStyle   lipgloss.Style
	idStyle       lipgloss.Style
	agentStyle    lipgloss.Style
	dimStyle      lipgloss.Style
}

// NewRunsPanel creates a new RunsPanel instance.
func NewRunsPanel() *RunsPanel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return &RunsPanel{
		rows: make([]*RunRow, 0),
		spin: sp,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Bold(true),

		selectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")),

		queuedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		idStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")),

		agentStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// FindOrCreate finds a row by run ID or appends a new one.
func (p *RunsPanel) FindOrCreate(runID string) *RunRow {
	for _, row := range p.rows {
		if row.RunID == runID {
			return row
		}
	}
	row := &RunRow{
		RunID:  runID,
		Status: StatusQueued,
	}
	p.rows = append(p.rows, row)
	return row
}

// Rows returns all rows in admission order.
func (p *RunsPanel) Rows() []*RunRow {
	return p.rows
}

// Selected returns the row under the cursor, or nil when the table is empty.
func (p *RunsPanel) Selected() *RunRow {
	if len(p.rows) == 0 {
		return nil
	}
	if p.cursor >= len(p.rows) {
		return p.rows[len(p.rows)-1]
	}
	return p.rows[p.cursor]
}

// Counts returns how many runs sit in each display state.
func (p *RunsPanel) Counts() RunCounts {
	var c RunCounts
	for _, row := range p.rows {
		switch row.Status {
		case StatusQueued:
			c.Queued++
		case StatusRunning:
			c.Running++
		case StatusDone:
			c.Done++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// SetSize updates the panel dimensions.
func (p *RunsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetFocused sets whether this panel has keyboard focus.
func (p *RunsPanel) SetFocused(focused bool) {
	p.focused = focused
}

// TickCmd returns the command that starts the spinner ticking.
func (p *RunsPanel) TickCmd() tea.Cmd {
	return p.spin.Tick
}

// UpdateSpinner advances the spinner animation.
func (p *RunsPanel) UpdateSpinner(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	p.spin, cmd = p.spin.Update(msg)
	return cmd
}

// Update handles input messages.
func (p *RunsPanel) Update(msg tea.Msg) (*RunsPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down", "j":
			if p.cursor < len(p.rows)-1 {
				p.cursor++
			}
		case "g":
			p.cursor = 0
		case "G":
			if len(p.rows) > 0 {
				p.cursor = len(p.rows) - 1
			}
		}
		p.ensureCursorVisible()
	}

	return p, nil
}

// visibleLines returns the number of run rows that fit in the panel.
func (p *RunsPanel) visibleLines() int {
	lines := p.height - 5 // Title, column header, borders
	if lines < 1 {
		lines = 1
	}
	return lines
}

// ensureCursorVisible scrolls the table so the cursor stays on screen.
func (p *RunsPanel) ensureCursorVisible() {
	visible := p.visibleLines()
	if p.cursor < p.scrollOffset {
		p.scrollOffset = p.cursor
	}
	if p.cursor >= p.scrollOffset+visible {
		p.scrollOffset = p.cursor - visible + 1
	}
	if p.scrollOffset < 0 {
		p.scrollOffset = 0
	}
}

// View renders the runs table.
func (p *RunsPanel) View() string {
	var b strings.Builder

	title := "Runs"
	if p.focused {
		title = "[Runs]"
	}
	b.WriteString(p.titleStyle.Render(title))
	b.WriteString("\n")

	if len(p.rows) == 0 {
		b.WriteString(p.dimStyle.Italic(true).Render("  No runs yet"))
	} else {
		b.WriteString(p.headerStyle.Render(fmt.Sprintf("  %-8s %-12s %-7s %6s %8s  %s",
			"RUN", "AGENT", "AGE", "TOK", "STATUS", "TASK")))
		b.WriteString("\n")

		visible := p.visibleLines()
		end := p.scrollOffset + visible
		if end > len(p.rows) {
			end = len(p.rows)
		}

		for i := p.scrollOffset; i < end; i++ {
			line := p.renderRow(p.rows[i])
			if i == p.cursor && p.focused {
				line = p.selectedStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}

		if len(p.rows) > visible {
			b.WriteString(p.dimStyle.Render(fmt.Sprintf("  [%d/%d]", end, len(p.rows))))
		}
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

// renderRow renders a single run row.
func (p *RunsPanel) renderRow(row *RunRow) string {
	icon, style := p.statusParts(row.Status)

	agent := row.AgentName
	if len(agent) > 12 {
		agent = agent[:12]
	}

	task := row.Task
	if row.Status == StatusFailed && row.Err != "" {
		task = row.Err
	}
	maxTask := p.width - 52
	if maxTask < 10 {
		maxTask = 10
	}
	if len(task) > maxTask {
		task = task[:maxTask-3] + "..."
	}

	return fmt.Sprintf("%s %s %s %-7s %6s %s  %s",
		icon,
		p.idStyle.Render(fmt.Sprintf("%-8s", row.RunID)),
		p.agentStyle.Render(fmt.Sprintf("%-12s", agent)),
		p.age(row),
		p.tokens(row),
		style.Render(fmt.Sprintf("%-8s", string(row.Status))),
		task)
}

// statusParts returns the icon and style for a run status.
func (p *RunsPanel) statusParts(status RunStatus) (string, lipgloss.Style) {
	switch status {
	case StatusRunning:
		return p.spin.View(), p.runningStyle
	case StatusDone:
		return p.doneStyle.Render("✓"), p.doneStyle
	case StatusFailed:
		return p.failedStyle.Render("✗"), p.failedStyle
	default:
		return p.queuedStyle.Render("·"), p.queuedStyle
	}
}

// age returns the displayed age of a row: time waiting for queued rows,
// elapsed run time for running rows, total run time once terminal.
func (p *RunsPanel) age(row *RunRow) string {
	switch row.Status {
	case StatusQueued:
		if row.QueuedAt.IsZero() {
			return "-"
		}
		return formatDuration(time.Since(row.QueuedAt))
	case StatusRunning:
		if row.StartedAt.IsZero() {
			return "-"
		}
		return formatDuration(time.Since(row.StartedAt))
	default:
		if row.StartedAt.IsZero() || row.FinishedAt.IsZero() {
			return "-"
		}
		return formatDuration(row.FinishedAt.Sub(row.StartedAt))
	}
}

// tokens returns the token column for a row.
func (p *RunsPanel) tokens(row *RunRow) string {
	if row.Tokens == 0 {
		return "-"
	}
	return formatNumber(row.Tokens)
}
