package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/posse/internal/events"
)

// Panel indices for focus cycling.
const (
	PanelRuns = iota
	PanelLogs
)

// BusEventMsg wraps one orchestrator bus event for delivery into the monitor.
type BusEventMsg struct {
	Event events.Event
}

// StreamChunkMsg carries a slice of streamed model output for a running run.
type StreamChunkMsg struct {
	RunID string
	Text  string
}

// MonitorDoneMsg signals that every delegation this session has returned.
type MonitorDoneMsg struct {
	Success bool
	Message string
}

// DebugLogMsg adds a debug line to the log view.
type DebugLogMsg struct {
	Message string
}

// Monitor is the main bubbletea model for the posse monitor.
type Monitor struct {
	header *Header
	runs   *RunsPanel
	logs   *LogsPanel
	stats  *StatsView
	footer *Footer
	layout *LayoutManager

	width    int
	height   int
	focused  int
	quitting bool
	done     bool
}

// NewMonitor creates a new Monitor instance.
func NewMonitor() *Monitor {
	m := &Monitor{
		header:  NewHeader(),
		runs:    NewRunsPanel(),
		logs:    NewLogsPanel(),
		stats:   NewStatsView(),
		footer:  NewFooter(),
		layout:  NewLayoutManager(80, 24),
		focused: PanelRuns,
	}
	m.runs.SetFocused(true)
	return m
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return m.runs.TickCmd()
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab", "shift+tab":
			m.cycleFocus()
		default:
			return m, m.routeKey(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout.SetSize(msg.Width, msg.Height)
		m.applySizes()

	case spinner.TickMsg:
		// The spinner tick doubles as the redraw clock for durations.
		cmds = append(cmds, m.runs.UpdateSpinner(msg))

	case BusEventMsg:
		m.handleBusEvent(msg.Event)

	case StreamChunkMsg:
		m.logs.AppendStream(msg.RunID, msg.Text)

	case MonitorDoneMsg:
		m.done = true
		m.footer.SetDone(msg.Success, msg.Message)

	case DebugLogMsg:
		m.logs.Add(LogEntry{
			Timestamp: time.Now(),
			Level:     LogLevelDebug,
			Message:   msg.Message,
		})
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "starting posse monitor..."
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.runs.View(), m.stats.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		top,
		m.logs.View(),
		m.footer.View(),
	)
}

// cycleFocus moves keyboard focus between the runs and logs panels.
func (m *Monitor) cycleFocus() {
	if m.focused == PanelRuns {
		m.focused = PanelLogs
	} else {
		m.focused = PanelRuns
	}
	m.runs.SetFocused(m.focused == PanelRuns)
	m.logs.SetFocused(m.focused == PanelLogs)
	m.footer.SetFocusedPanel(m.focused)
}

// routeKey forwards a key press to whichever panel has focus.
func (m *Monitor) routeKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focused {
	case PanelRuns:
		m.runs, cmd = m.runs.Update(msg)
	case PanelLogs:
		m.logs, cmd = m.logs.Update(msg)
	}
	return cmd
}

// applySizes distributes the terminal area across the panels.
func (m *Monitor) applySizes() {
	dims := m.layout.Calculate()
	m.header.SetWidth(m.width)
	m.runs.SetSize(dims.RunsWidth, dims.TopHeight)
	m.stats.SetSize(dims.StatsWidth, dims.TopHeight)
	m.logs.SetSize(m.width, dims.LogsHeight)
	m.footer.SetWidth(m.width)
}

// handleBusEvent routes one bus event to the panels that care about it.
func (m *Monitor) handleBusEvent(ev events.Event) {
	switch ev.Topic {
	case events.TopicTask:
		m.handleTaskEvent(ev)
	case events.TopicTool:
		m.handleToolEvent(ev)
	case events.TopicLog:
		m.logs.Add(LogEntry{
			Timestamp: ev.Timestamp,
			Level:     LogLevelInfo,
			RunID:     ev.RunID,
			Message:   ev.Message,
		})
	case events.TopicPlan:
		if ev.Plan != nil {
			m.stats.SetPlan(ev.Plan)
		}
	}
}

// handleTaskEvent updates the run table, stats, and log for one lifecycle event.
func (m *Monitor) handleTaskEvent(ev events.Event) {
	level := LogLevelInfo
	if ev.Err != "" {
		level = LogLevelError
	}
	m.logs.Add(LogEntry{
		Timestamp: ev.Timestamp,
		Level:     level,
		RunID:     ev.RunID,
		Message:   ev.Message,
	})

	row := m.runs.FindOrCreate(ev.RunID)
	if ev.AgentName != "" {
		row.AgentName = ev.AgentName
	}
	if ev.Task != "" {
		row.Task = ev.Task
	}

	switch ev.Type {
	case events.TaskQueued:
		row.Status = StatusQueued
		row.QueuedAt = ev.Timestamp

	case events.TaskStarted:
		row.Status = StatusRunning
		row.StartedAt = ev.Timestamp

	case events.TaskCompleted:
		row.Status = StatusDone
		row.FinishedAt = ev.Timestamp
		if ev.Report != nil {
			row.Tokens = ev.Report.Metrics.TokensUsed
			m.stats.Apply(ev.Report)
		}
		m.logs.ClearStream(ev.RunID)

	case events.TaskFailed:
		row.Status = StatusFailed
		row.FinishedAt = ev.Timestamp
		row.Err = ev.Err
		if ev.Report != nil {
			row.Tokens = ev.Report.Metrics.TokensUsed
			m.stats.Apply(ev.Report)
		}
		m.logs.ClearStream(ev.RunID)
	}

	counts := m.runs.Counts()
	m.footer.SetRunCounts(counts)
	m.stats.SetRunCounts(counts)
	m.header.SetActive(counts.Running)
}

// handleToolEvent turns a tool event into a log line.
func (m *Monitor) handleToolEvent(ev events.Event) {
	var level LogLevel
	var message string

	switch ev.Type {
	case events.ToolStarted:
		level = LogLevelDebug
		message = fmt.Sprintf("tool %s started", ev.Tool)
	case events.ToolCompleted:
		level = LogLevelDebug
		message = fmt.Sprintf("tool %s completed", ev.Tool)
	case events.ToolFailed:
		level = LogLevelError
		message = fmt.Sprintf("tool %s failed: %s", ev.Tool, ev.Err)
	case events.ToolDenied:
		level = LogLevelWarn
		message = fmt.Sprintf("tool %s denied: %s", ev.Tool, ev.Err)
	default:
		level = LogLevelDebug
		message = fmt.Sprintf("tool %s %s", ev.Tool, ev.Type)
	}

	m.logs.Add(LogEntry{
		Timestamp: ev.Timestamp,
		Level:     level,
		RunID:     ev.RunID,
		Message:   message,
	})
}

// Runs returns the runs panel for inspection.
func (m *Monitor) Runs() *RunsPanel {
	return m.runs
}

// Logs returns the logs panel for inspection.
func (m *Monitor) Logs() *LogsPanel {
	return m.logs
}

// Stats returns the stats view for inspection.
func (m *Monitor) Stats() *StatsView {
	return m.stats
}

// NewProgram creates a Bubbletea program running the monitor. The returned
// program receives bus events and stream chunks via Send().
func NewProgram() (*tea.Program, *Monitor) {
	m := NewMonitor()
	p := tea.NewProgram(m, tea.WithAltScreen())
	return p, m
}

// ForwardBus subscribes the program to every bus topic and forwards events
// as BusEventMsg. The returned function detaches all subscriptions.
func ForwardBus(p *tea.Program, bus *events.Bus) func() {
	topics := []events.Topic{
		events.TopicTask,
		events.TopicLog,
		events.TopicTool,
		events.TopicPlan,
	}
	cancels := make([]func(), 0, len(topics))
	for _, topic := range topics {
		cancels = append(cancels, bus.Subscribe(topic, func(ev events.Event) {
			p.Send(BusEventMsg{Event: ev})
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
