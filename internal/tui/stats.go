package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/posse/pkg/models"
)

// agentTotals accumulates per-agent numbers across finished runs.
type agentTotals struct {
	name     string
	runs     int
	failures int
	tokens   int64
}

// StatsView displays session aggregates: run counts, token and tool totals,
// batch progress, and a per-agent breakdown.
type StatsView struct {
	counts        RunCounts
	totalTokens   int64
	totalTools    int
	totalDuration time.Duration
	agents        map[string]*agentTotals
	plan          *models.Plan
	startedAt     time.Time
	width         int
	height        int

	// Styles
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	successStyle lipgloss.Style
	failStyle    lipgloss.Style
	dimStyle     lipgloss.Style
}

// NewStatsView creates a new StatsView instance.
func NewStatsView() *StatsView {
	return &StatsView{
		agents:    make(map[string]*agentTotals),
		startedAt: time.Now(),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(10),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Apply folds one terminal report into the session totals.
func (s *StatsView) Apply(report *models.SubAgentReport) {
	if report == nil {
		return
	}

	s.totalTokens += report.Metrics.TokensUsed
	s.totalTools += report.Metrics.ToolCalls
	s.totalDuration += time.Duration(report.Metrics.DurationMS) * time.Millisecond

	totals := s.agents[report.AgentName]
	if totals == nil {
		totals = &agentTotals{name: report.AgentName}
		s.agents[report.AgentName] = totals
	}
	totals.runs++
	totals.tokens += report.Metrics.TokensUsed
	if report.Status == models.ReportFailed {
		totals.failures++
	}
}

// SetRunCounts updates the live run counts.
func (s *StatsView) SetRunCounts(counts RunCounts) {
	s.counts = counts
}

// SetPlan records the latest batch plan snapshot.
func (s *StatsView) SetPlan(plan *models.Plan) {
	s.plan = plan
}

// SetSize sets the view dimensions.
func (s *StatsView) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// TotalTokens returns the tokens consumed by finished runs this session.
func (s *StatsView) TotalTokens() int64 {
	return s.totalTokens
}

// AgentCount returns how many distinct agents have finished runs.
func (s *StatsView) AgentCount() int {
	return len(s.agents)
}

// View renders the stats column.
func (s *StatsView) View() string {
	var b strings.Builder

	b.WriteString(s.headerStyle.Render("Session"))
	b.WriteString("\n")

	b.WriteString(s.renderRow("Elapsed:", s.valueStyle.Render(formatDuration(time.Since(s.startedAt)))))
	b.WriteString("\n")

	runsStr := fmt.Sprintf("%d run / %d done", s.counts.Running, s.counts.Done)
	if s.counts.Queued > 0 {
		runsStr = fmt.Sprintf("%d queued / %s", s.counts.Queued, runsStr)
	}
	b.WriteString(s.renderRow("Runs:", s.valueStyle.Render(runsStr)))
	b.WriteString("\n")
	if s.counts.Failed > 0 {
		b.WriteString(s.renderRow("Failed:", s.failStyle.Render(fmt.Sprintf("%d", s.counts.Failed))))
		b.WriteString("\n")
	}

	b.WriteString(s.renderRow("Tokens:", s.valueStyle.Render(formatNumber(s.totalTokens))))
	b.WriteString("\n")
	b.WriteString(s.renderRow("Tools:", s.valueStyle.Render(fmt.Sprintf("%d calls", s.totalTools))))
	b.WriteString("\n")
	b.WriteString(s.renderRow("Run time:", s.valueStyle.Render(formatDuration(s.totalDuration))))
	b.WriteString("\n")

	if s.plan != nil {
		b.WriteString("\n")
		b.WriteString(s.renderBatch())
		b.WriteString("\n")
	}

	if len(s.agents) > 0 {
		b.WriteString("\n")
		b.WriteString(s.headerStyle.Render("Agents"))
		b.WriteString("\n")
		for _, totals := range s.sortedAgents() {
			line := fmt.Sprintf("%-12s %2d run", totals.name, totals.runs)
			if totals.failures > 0 {
				line += s.failStyle.Render(fmt.Sprintf(" %d failed", totals.failures))
			}
			line += s.dimStyle.Render(fmt.Sprintf("  %s tok", formatNumber(totals.tokens)))
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(s.width).
		Height(s.height - 2).
		Render(b.String())
}

// renderRow renders a label-value pair.
func (s *StatsView) renderRow(label, value string) string {
	return s.labelStyle.Render(label) + " " + value
}

// renderBatch renders progress through the most recent batch plan.
func (s *StatsView) renderBatch() string {
	done := 0
	failed := 0
	for _, step := range s.plan.Steps {
		switch step.Status {
		case models.StatusCompleted:
			done++
		case models.StatusFailed:
			failed++
		}
	}

	progress := fmt.Sprintf("%d/%d steps done", done, len(s.plan.Steps))
	if failed > 0 {
		progress += s.failStyle.Render(fmt.Sprintf(", %d failed", failed))
	}
	return s.renderRow("Batch:", s.valueStyle.Render(progress)) +
		"\n" + s.dimStyle.Render("  "+s.plan.BatchID)
}

// sortedAgents returns per-agent totals ordered by tokens, heaviest first.
func (s *StatsView) sortedAgents() []*agentTotals {
	out := make([]*agentTotals, 0, len(s.agents))
	for _, totals := range s.agents {
		out = append(out, totals)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].tokens != out[j].tokens {
			return out[i].tokens > out[j].tokens
		}
		return out[i].name < out[j].name
	})
	return out
}

// formatNumber formats a number with comma separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if n < 0 {
		result = "-" + result
	}
	return result
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
