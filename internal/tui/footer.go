package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Footer renders the status bar and keyboard hints.
type Footer struct {
	message      string
	success      bool
	done         bool
	focusedPanel int
	width        int
	counts       RunCounts

	// Styles
	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		focusedPanel: PanelRuns,

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetDone marks the session as complete.
func (f *Footer) SetDone(success bool, message string) {
	f.done = true
	f.success = success
	f.message = message
}

// SetFocusedPanel sets which panel is currently focused.
func (f *Footer) SetFocusedPanel(panel int) {
	f.focusedPanel = panel
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// SetRunCounts updates the run counts for display.
func (f *Footer) SetRunCounts(counts RunCounts) {
	f.counts = counts
}

// View renders the footer.
func (f *Footer) View() string {
	var left string

	total := f.counts.Queued + f.counts.Running + f.counts.Done + f.counts.Failed
	if total > 0 {
		left = fmt.Sprintf("✓%d", f.counts.Done)
		if f.counts.Failed > 0 {
			left += f.errorStyle.Render(fmt.Sprintf(" ✗%d", f.counts.Failed))
		}
		if f.counts.Running > 0 {
			left += fmt.Sprintf(" ▶%d", f.counts.Running)
		}
		if f.counts.Queued > 0 {
			left += f.hintStyle.Render(fmt.Sprintf(" ·%d", f.counts.Queued))
		}
	}

	if f.done {
		if f.success {
			left = f.successStyle.Render("✓ " + f.message)
		} else {
			left = f.errorStyle.Render("✗ " + f.message)
		}
	}

	right := f.keyboardHints()
	sep := f.separatorStyle.Render(" │ ")

	if left != "" && right != "" {
		return left + sep + right
	} else if left != "" {
		return left
	}
	return right
}

// keyboardHints returns context-sensitive keyboard hints.
func (f *Footer) keyboardHints() string {
	if f.done {
		return f.hintStyle.Render("Press q to exit")
	}

	hints := "tab panels"

	switch f.focusedPanel {
	case PanelRuns:
		hints += " │ ↑/↓ select │ g/G jump"
	case PanelLogs:
		hints += " │ ↑/↓ scroll │ f filter │ a follow"
	}

	hints += " │ q quit"

	return f.hintStyle.Render(hints)
}

// PanelName returns the name of the given panel index.
func PanelName(panel int) string {
	switch panel {
	case PanelRuns:
		return "Runs"
	case PanelLogs:
		return "Logs"
	default:
		return fmt.Sprintf("Panel %d", panel)
	}
}
