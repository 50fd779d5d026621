package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/posse/internal/events"
	"github.com/ShayCichocki/posse/pkg/models"
)

// printEventsHeadless subscribes to the bus and prints run progress to
// stdout. The returned function detaches the subscriptions.
func printEventsHeadless(bus *events.Bus) func() {
	unsubTask := bus.Subscribe(events.TopicTask, printTaskEvent)
	unsubTool := bus.Subscribe(events.TopicTool, printToolEvent)
	unsubLog := bus.Subscribe(events.TopicLog, printLogEvent)
	unsubPlan := bus.Subscribe(events.TopicPlan, printPlanEvent)
	return func() {
		unsubTask()
		unsubTool()
		unsubLog()
		unsubPlan()
	}
}

func printTaskEvent(ev events.Event) {
	switch ev.Type {
	case events.TaskQueued:
		fmt.Printf("%s %s (agent: %s) %s\n", color.CyanString("[QUEUED]"), ev.RunID, ev.AgentName, ev.Task)
	case events.TaskStarted:
		fmt.Printf("%s %s (agent: %s)\n", color.BlueString("[STARTED]"), ev.RunID, ev.AgentName)
	case events.TaskCompleted:
		detail := ""
		if r := ev.Report; r != nil {
			detail = fmt.Sprintf(" (%s, ~%s tokens, %d tool calls)",
				formatDuration(time.Duration(r.Metrics.DurationMS)*time.Millisecond),
				formatNumber(r.Metrics.TokensUsed),
				r.Metrics.ToolCalls)
		}
		fmt.Printf("%s %s (agent: %s)%s\n", color.GreenString("[DONE]"), ev.RunID, ev.AgentName, detail)
	case events.TaskFailed:
		fmt.Printf("%s %s (agent: %s): %s\n", color.RedString("[FAILED]"), ev.RunID, ev.AgentName, ev.Err)
	}
}

func printToolEvent(ev events.Event) {
	// Successful tool traffic is too chatty for headless output; only
	// denials and failures are worth a line.
	switch ev.Type {
	case events.ToolDenied:
		fmt.Printf("%s %s: tool %s denied: %s\n", color.YellowString("[DENIED]"), ev.RunID, ev.Tool, ev.Err)
	case events.ToolFailed:
		fmt.Printf("%s %s: tool %s failed: %s\n", color.YellowString("[TOOL]"), ev.RunID, ev.Tool, ev.Err)
	}
}

func printLogEvent(ev events.Event) {
	fmt.Printf("[LOG] %s: %s\n", ev.RunID, ev.Message)
}

func printPlanEvent(ev events.Event) {
	if ev.Plan == nil {
		return
	}
	done := 0
	failed := 0
	for _, step := range ev.Plan.Steps {
		switch step.Status {
		case models.StatusCompleted:
			done++
		case models.StatusFailed:
			failed++
		}
	}
	line := fmt.Sprintf("[PLAN] batch %s: %d/%d steps done", ev.Plan.BatchID, done, len(ev.Plan.Steps))
	if failed > 0 {
		line += fmt.Sprintf(", %d failed", failed)
	}
	fmt.Println(line)
}

// printReport prints the terminal report of one run.
func printReport(report *models.SubAgentReport) {
	fmt.Println()
	switch report.Status {
	case models.ReportSuccess:
		color.Green("✓ Run %s succeeded", report.RunID)
	case models.ReportPartial:
		color.Yellow("⚠ Run %s partially succeeded", report.RunID)
	default:
		color.Red("✗ Run %s failed", report.RunID)
	}
	if report.Summary != "" {
		fmt.Printf("  %s\n", report.Summary)
	}
	fmt.Printf("  Tokens: %s  Tool calls: %d  Duration: %s\n",
		formatNumber(report.Metrics.TokensUsed),
		report.Metrics.ToolCalls,
		formatDuration(time.Duration(report.Metrics.DurationMS)*time.Millisecond))
	for _, errLine := range report.Metrics.Errors {
		fmt.Printf("  error: %s\n", errLine)
	}
	if report.Output != "" {
		fmt.Printf("\n%s\n", report.Output)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatNumber formats an integer with comma separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
