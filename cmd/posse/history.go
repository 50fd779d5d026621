package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/posse/internal/config"
	"github.com/ShayCichocki/posse/internal/state"
	"github.com/ShayCichocki/posse/pkg/models"
)

var (
	historyLimit int
	historyAgent string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `Inspect the run-history store.

Every terminal report is recorded: outcome, tokens, tool usage, and the
full output. The store lives at .posse/history.db in the project by
default; history.path in config overrides it.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show accumulated per-agent counters",
	RunE:  runHistoryAgents,
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
	historyListCmd.Flags().StringVar(&historyAgent, "agent", "", "Only list runs for this agent")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyAgentsCmd)
}

// openHistoryReadOnly resolves and opens the history database for the
// inspection commands. Missing database is not an error; the caller gets
// (nil, nil) and prints a hint instead.
func openHistoryReadOnly() (*state.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	path := cfg.History.Path
	if path == "" {
		path = state.ProjectDBPath(cwd)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return db, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	db, err := openHistoryReadOnly()
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Println("No run history yet. Run 'posse run <agent> <task>' to start.")
		return nil
	}
	defer db.Close()

	var runs []*models.SubAgentReport
	if historyAgent != "" {
		runs, err = db.ListRunsByAgent(historyAgent, historyLimit)
	} else {
		runs, err = db.ListRuns(historyLimit)
	}
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-10s %-14s %-9s %8s %9s %-14s %s\n",
		"RUN", "AGENT", "STATUS", "TOKENS", "DURATION", "FINISHED", "SUMMARY")
	for _, run := range runs {
		fmt.Printf("%-10s %-14s %s %8s %9s %-14s %s\n",
			run.RunID,
			run.AgentName,
			statusCell(run.Status),
			formatNumber(run.Metrics.TokensUsed),
			formatDuration(time.Duration(run.Metrics.DurationMS)*time.Millisecond),
			formatDuration(time.Since(run.FinishedAt))+" ago",
			truncateLine(run.Summary, 48))
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, err := openHistoryReadOnly()
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Println("No run history yet.")
		return nil
	}
	defer db.Close()

	run, err := db.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run %q: %w", args[0], err)
	}
	if run == nil {
		return fmt.Errorf("no recorded run %q (see 'posse history list')", args[0])
	}

	fmt.Printf("Run:      %s\n", run.RunID)
	fmt.Printf("Agent:    %s\n", run.AgentName)
	fmt.Printf("Status:   %s\n", run.Status)
	fmt.Printf("Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Printf("Finished: %s (%s)\n", run.FinishedAt.Format(time.RFC3339),
		formatDuration(time.Duration(run.Metrics.DurationMS)*time.Millisecond))
	fmt.Printf("Tokens:   %s\n", formatNumber(run.Metrics.TokensUsed))
	fmt.Printf("Tools:    %d calls", run.Metrics.ToolCalls)
	if len(run.Metrics.ToolsUsed) > 0 {
		fmt.Printf(" (%s)", strings.Join(run.Metrics.ToolsUsed, ", "))
	}
	fmt.Println()
	if run.Summary != "" {
		fmt.Printf("Summary:  %s\n", run.Summary)
	}
	for _, errLine := range run.Metrics.Errors {
		fmt.Printf("Error:    %s\n", errLine)
	}
	if run.Output != "" {
		fmt.Printf("\nOutput:\n%s\n", indent(run.Output, "  "))
	}
	return nil
}

func runHistoryAgents(cmd *cobra.Command, args []string) error {
	db, err := openHistoryReadOnly()
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Println("No run history yet.")
		return nil
	}
	defer db.Close()

	metrics, err := db.ListMetrics()
	if err != nil {
		return fmt.Errorf("list agent metrics: %w", err)
	}
	if len(metrics) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-14s %6s %6s %6s %10s %10s %s\n",
		"AGENT", "RUNS", "OK", "FAIL", "TOKENS", "AVG TIME", "LAST RUN")
	for _, m := range metrics {
		fmt.Printf("%-14s %6d %6d %6d %10s %10s %s ago\n",
			m.AgentName,
			m.Executions,
			m.Successes,
			m.Failures,
			formatNumber(m.TotalTokens),
			formatDuration(time.Duration(m.AvgDurationMS)*time.Millisecond),
			formatDuration(time.Since(m.LastRunAt)))
	}
	return nil
}

// statusCell renders a fixed-width colored status column.
func statusCell(status models.ReportStatus) string {
	switch status {
	case models.ReportSuccess:
		return color.GreenString("%-9s", status)
	case models.ReportPartial:
		return color.YellowString("%-9s", status)
	default:
		return color.RedString("%-9s", status)
	}
}

func truncateLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-1] + "…"
}
