package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func entry(runID, message string) LogEntry {
	return LogEntry{
		Timestamp: time.Now(),
		Level:     LogLevelInfo,
		RunID:     runID,
		Message:   message,
	}
}

func TestLogsPanelFilterCycling(t *testing.T) {
	p := NewLogsPanel()
	p.SetSize(80, 12)
	p.SetFocused(true)

	p.Add(entry("run-a", "queued"))
	p.Add(entry("run-a", "started"))
	p.Add(entry("run-b", "queued"))
	p.Add(entry("", "session line"))

	if len(p.filterOptions) != 3 {
		t.Fatalf("expected filter options [all run-a run-b], got %v", p.filterOptions)
	}

	f := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")}

	p.Update(f)
	if p.CurrentFilter() != "run-a" {
		t.Errorf("expected filter run-a, got %s", p.CurrentFilter())
	}
	if p.FilteredCount() != 2 {
		t.Errorf("expected 2 entries for run-a, got %d", p.FilteredCount())
	}

	p.Update(f)
	if p.CurrentFilter() != "run-b" {
		t.Errorf("expected filter run-b, got %s", p.CurrentFilter())
	}

	p.Update(f)
	if p.CurrentFilter() != "all" {
		t.Errorf("expected filter to wrap to all, got %s", p.CurrentFilter())
	}
	if p.FilteredCount() != 4 {
		t.Errorf("expected all 4 entries, got %d", p.FilteredCount())
	}
}

func TestLogsPanelTrimsToMax(t *testing.T) {
	p := NewLogsPanel()
	p.SetSize(80, 12)
	p.maxEntries = 5

	for i := 0; i < 8; i++ {
		p.Add(entry("run-a", "line"))
	}

	if p.EntryCount() != 5 {
		t.Errorf("expected trim to 5 entries, got %d", p.EntryCount())
	}
}

func TestLogsPanelStreamTail(t *testing.T) {
	p := NewLogsPanel()
	p.SetSize(80, 12)

	p.AppendStream("run-a", "thinking about ")
	p.AppendStream("run-a", "the answer")
	p.AppendStream("run-b", "other run")

	tail := p.findTail("run-a")
	if tail == nil {
		t.Fatal("expected a tail for run-a")
	}
	if tail.text != "thinking about the answer" {
		t.Errorf("expected chunks to accumulate, got %q", tail.text)
	}
	if len(p.tails) != 2 {
		t.Errorf("expected 2 live tails, got %d", len(p.tails))
	}

	p.ClearStream("run-a")
	if p.findTail("run-a") != nil {
		t.Error("expected run-a tail to be cleared")
	}
	if p.findTail("run-b") == nil {
		t.Error("expected run-b tail to survive")
	}
}

func TestLogsPanelStreamTailBounded(t *testing.T) {
	p := NewLogsPanel()
	p.SetSize(80, 12)

	for i := 0; i < 100; i++ {
		p.AppendStream("run-a", "0123456789")
	}

	tail := p.findTail("run-a")
	if len(tail.text) != 512 {
		t.Errorf("expected tail capped at 512 bytes, got %d", len(tail.text))
	}
}

func TestLogsPanelFollowToggle(t *testing.T) {
	p := NewLogsPanel()
	p.SetSize(80, 12)
	p.SetFocused(true)

	if !p.follow {
		t.Fatal("expected follow on by default")
	}

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	if p.follow {
		t.Error("expected a to toggle follow off")
	}

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	if !p.follow {
		t.Error("expected G to re-enable follow")
	}

	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	if p.follow {
		t.Error("expected scrolling up to break follow")
	}
}

func TestLogsPanelRenderTailShowsLastLine(t *testing.T) {
	p := NewLogsPanel()
	p.SetSize(80, 12)

	p.AppendStream("run-a", "first line\nsecond line\nthird line")
	got := p.renderTail(p.findTail("run-a"))
	if !strings.Contains(got, "third line") {
		t.Errorf("expected last line in tail render, got %q", got)
	}
	if strings.Contains(got, "first line") {
		t.Errorf("expected earlier lines dropped from tail render, got %q", got)
	}
}
