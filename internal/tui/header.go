package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Header renders the one-line posse title bar.
type Header struct {
	width  int
	active int
}

// NewHeader creates a new Header.
func NewHeader() *Header {
	return &Header{
		width: 80,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetActive sets the number of currently running runs.
func (h *Header) SetActive(active int) {
	h.active = active
}

// View renders the header.
func (h *Header) View() string {
	// Gradient colors across the wordmark
	colors := []string{"#FF6B6B", "#FF8E53", "#FFC857", "#4ECDC4", "#45B7D1"}

	word := "posse"
	var mark string
	for i, r := range word {
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors[i%len(colors)])).
			Bold(true)
		mark += style.Render(string(r))
	}

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Render(" sub-agent monitor")

	left := " " + mark + subtitle

	var right string
	if h.active > 0 {
		right = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Render(fmt.Sprintf("%d active ", h.active))
	}

	gap := h.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	bar := left + lipgloss.NewStyle().Render(fmt.Sprintf("%*s", gap, "")) + right
	return lipgloss.NewStyle().Width(h.width).Render(bar)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 1
}
