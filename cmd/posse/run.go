package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/posse/internal/config"
	"github.com/ShayCichocki/posse/pkg/models"
)

var (
	runTimeout   time.Duration
	runMaxTokens int
	runPriority  int
	runHeadless  bool
	runCwd       string
	runFiles     []string
	runMeta      []string
)

var runCmd = &cobra.Command{
	Use:   "run <agent> <task...>",
	Short: "Delegate a task to a named agent",
	Long: `Delegate one task to a named agent and wait for its report.

The agent must exist in the registry (see 'posse agents list'). The run
gets its own conversation with the model and a tool filter scoped to the
agent's declared tools. Arguments after the agent name are joined into
the task text.

Examples:
  posse run general "summarize the changelog"
  posse run reviewer --file internal/api/client.go "review this file"
  posse run researcher --timeout 5m --priority 10 "find every caller of the bus"

By default a live monitor opens; --headless prints events to stdout
instead, which suits scripts and CI.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDelegate,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall-clock cap for the run (0 uses the configured default)")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "Output token cap per model call (0 uses the configured default)")
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "Queue priority; higher dequeues first")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Print events to stdout instead of opening the monitor")
	runCmd.Flags().StringVar(&runCwd, "cwd", "", "Working directory for the run (defaults to the current directory)")
	runCmd.Flags().StringArrayVar(&runFiles, "file", nil, "File the agent should consider relevant (repeatable)")
	runCmd.Flags().StringArrayVar(&runMeta, "meta", nil, "Metadata key=value surfaced to the agent (repeatable)")
}

func runDelegate(cmd *cobra.Command, args []string) (retErr error) {
	// Recover from panics and report them
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runDelegate: %v", r)
		}
	}()

	agentName := args[0]
	task := strings.Join(args[1:], " ")
	verbose := os.Getenv("POSSE_DEBUG") != ""

	if verbose {
		fmt.Println("[DEBUG] Starting runDelegate...")
		fmt.Printf("[DEBUG] Agent: %s\n", agentName)
		fmt.Printf("[DEBUG] Task: %s\n", task)
		fmt.Printf("[DEBUG] Headless: %v\n", runHeadless)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd := runCwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}
	if verbose {
		fmt.Printf("[DEBUG] Working directory: %s\n", cwd)
	}

	meta, err := parseMetaFlags(runMeta)
	if err != nil {
		return err
	}

	// Create context with cancellation for all modes
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	if verbose {
		fmt.Println("[DEBUG] Building engine...")
	}
	eng, err := buildEngine(cfg, cwd, 0)
	if err != nil {
		return err
	}
	defer eng.Close()
	if verbose {
		fmt.Println("[DEBUG] Engine ready")
	}

	req := &models.DelegationRequest{
		AgentName: agentName,
		Task:      task,
		Context: models.TaskContext{
			Files:    runFiles,
			Cwd:      cwd,
			Metadata: meta,
		},
		Options: models.DelegationOptions{
			Timeout:   runTimeout,
			MaxTokens: runMaxTokens,
			Priority:  runPriority,
		},
	}

	if runHeadless {
		return runHeadlessDelegation(ctx, eng, req)
	}

	if verbose {
		fmt.Println("[DEBUG] Starting monitor...")
	}
	return runWithTUI(ctx, eng, func(ctx context.Context) (string, error) {
		report, err := eng.orch.Delegate(ctx, req)
		if err != nil {
			return "", err
		}
		if report.Status == models.ReportFailed {
			return "", fmt.Errorf("run %s failed: %s", report.RunID, failureReason(report))
		}
		return fmt.Sprintf("Run %s finished (%s, ~%s tokens)",
			report.RunID, report.Status, formatNumber(report.Metrics.TokensUsed)), nil
	})
}

// runHeadlessDelegation executes one delegation printing events to stdout.
func runHeadlessDelegation(ctx context.Context, eng *engine, req *models.DelegationRequest) error {
	stop := printEventsHeadless(eng.bus)
	defer stop()

	fmt.Printf("Delegating to %s: %s\n\n", req.AgentName, req.Task)

	report, err := eng.orch.Delegate(ctx, req)
	if err != nil {
		return fmt.Errorf("delegation failed: %w", err)
	}

	printReport(report)
	if report.Status == models.ReportFailed {
		return fmt.Errorf("run %s failed: %s", report.RunID, failureReason(report))
	}
	return nil
}

// failureReason picks the line that best explains a failed report.
func failureReason(report *models.SubAgentReport) string {
	if len(report.Metrics.Errors) > 0 {
		return report.Metrics.Errors[len(report.Metrics.Errors)-1]
	}
	if report.Summary != "" {
		return report.Summary
	}
	return "no output produced"
}
