package tui

// PanelDimensions holds calculated dimensions for each panel in the layout.
type PanelDimensions struct {
	// RunsWidth is the width of the runs table (top left).
	RunsWidth int
	// StatsWidth is the width of the stats column (top right).
	StatsWidth int
	// TopHeight is the height of the top row (runs + stats).
	TopHeight int
	// LogsHeight is the height of the log view (full width, below).
	LogsHeight int
}

// LayoutManager calculates panel dimensions based on terminal size.
type LayoutManager struct {
	// totalWidth is the terminal width.
	totalWidth int
	// totalHeight is the terminal height.
	totalHeight int
	// headerHeight is the height reserved for the title bar.
	headerHeight int
	// footerHeight is the height reserved for the footer.
	footerHeight int
}

// NewLayoutManager creates a new LayoutManager with the given terminal dimensions.
func NewLayoutManager(width, height int) *LayoutManager {
	return &LayoutManager{
		totalWidth:   width,
		totalHeight:  height,
		headerHeight: 1,
		footerHeight: 1,
	}
}

// SetSize updates the terminal dimensions.
func (l *LayoutManager) SetSize(width, height int) {
	l.totalWidth = width
	l.totalHeight = height
}

// Calculate returns the panel dimensions based on current terminal size.
// Layout: top row splits runs 65% / stats 35%, logs take the remaining rows.
func (l *LayoutManager) Calculate() PanelDimensions {
	const (
		minRunsWidth  = 40
		minStatsWidth = 26
		minTopHeight  = 8
		minLogsHeight = 6
	)

	statsWidth := int(float64(l.totalWidth) * 0.35)
	if statsWidth < minStatsWidth {
		statsWidth = minStatsWidth
	}
	runsWidth := l.totalWidth - statsWidth
	if runsWidth < minRunsWidth {
		runsWidth = minRunsWidth
		statsWidth = l.totalWidth - runsWidth
		if statsWidth < 0 {
			statsWidth = 0
		}
	}

	contentHeight := l.totalHeight - l.headerHeight - l.footerHeight
	if contentHeight < minTopHeight+minLogsHeight {
		contentHeight = minTopHeight + minLogsHeight
	}

	topHeight := int(float64(contentHeight) * 0.6)
	if topHeight < minTopHeight {
		topHeight = minTopHeight
	}
	logsHeight := contentHeight - topHeight
	if logsHeight < minLogsHeight {
		logsHeight = minLogsHeight
		topHeight = contentHeight - logsHeight
	}

	return PanelDimensions{
		RunsWidth:  runsWidth,
		StatsWidth: statsWidth,
		TopHeight:  topHeight,
		LogsHeight: logsHeight,
	}
}

// TotalWidth returns the current terminal width.
func (l *LayoutManager) TotalWidth() int {
	return l.totalWidth
}

// TotalHeight returns the current terminal height.
func (l *LayoutManager) TotalHeight() int {
	return l.totalHeight
}
