package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/posse/internal/config"
	"github.com/ShayCichocki/posse/pkg/models"
)

var (
	batchHeadless      bool
	batchMaxConcurrent int
)

var batchCmd = &cobra.Command{
	Use:   "batch <file.yaml>",
	Short: "Run a batch of delegations in parallel",
	Long: `Run every task in a YAML batch file in parallel, bounded by the
concurrency ceiling. Results come back in file order once all tasks
reach a terminal state.

The file is a YAML list; agent and task are required per entry:

  - agent: researcher
    task: find every caller of the event bus
    priority: 10
  - agent: reviewer
    task: review internal/api for error handling gaps
    timeout: 10m

Each entry may also set max_tokens, files, and meta. The monitor shows
the batch plan and per-run progress; --headless prints events instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&batchHeadless, "headless", false, "Print events to stdout instead of opening the monitor")
	batchCmd.Flags().IntVar(&batchMaxConcurrent, "max-concurrent", 0, "Concurrency ceiling for this batch (0 uses the configured default)")
}

// batchEntry is one task in a batch file. Timeout is a duration string
// ("5m", "1h30m") because YAML has no native duration type.
type batchEntry struct {
	Agent     string            `yaml:"agent"`
	Task      string            `yaml:"task"`
	Priority  int               `yaml:"priority,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty"`
	MaxTokens int               `yaml:"max_tokens,omitempty"`
	Files     []string          `yaml:"files,omitempty"`
	Meta      map[string]string `yaml:"meta,omitempty"`
}

// loadBatchFile parses a batch file into delegation requests.
func loadBatchFile(path, cwd string) ([]*models.DelegationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var entries []batchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("batch file %s contains no tasks", path)
	}

	reqs := make([]*models.DelegationRequest, 0, len(entries))
	for i, entry := range entries {
		if entry.Agent == "" {
			return nil, fmt.Errorf("batch entry %d: missing agent", i+1)
		}
		if entry.Task == "" {
			return nil, fmt.Errorf("batch entry %d: missing task", i+1)
		}

		var timeout time.Duration
		if entry.Timeout != "" {
			timeout, err = time.ParseDuration(entry.Timeout)
			if err != nil {
				return nil, fmt.Errorf("batch entry %d: invalid timeout %q: %w", i+1, entry.Timeout, err)
			}
		}

		reqs = append(reqs, &models.DelegationRequest{
			AgentName: entry.Agent,
			Task:      entry.Task,
			Context: models.TaskContext{
				Files:    entry.Files,
				Cwd:      cwd,
				Metadata: entry.Meta,
			},
			Options: models.DelegationOptions{
				Timeout:   timeout,
				MaxTokens: entry.MaxTokens,
				Priority:  entry.Priority,
			},
		})
	}
	return reqs, nil
}

func runBatch(cmd *cobra.Command, args []string) (retErr error) {
	// Recover from panics and report them
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runBatch: %v", r)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	reqs, err := loadBatchFile(args[0], cwd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	eng, err := buildEngine(cfg, cwd, batchMaxConcurrent)
	if err != nil {
		return err
	}
	defer eng.Close()

	if batchHeadless {
		return runHeadlessBatch(ctx, eng, reqs)
	}

	return runWithTUI(ctx, eng, func(ctx context.Context) (string, error) {
		reports, err := eng.orch.DelegateParallel(ctx, reqs)
		if err != nil {
			return "", err
		}
		succeeded, partial, failed := tallyReports(reports)
		if failed > 0 {
			return "", fmt.Errorf("batch finished: %d succeeded, %d partial, %d failed",
				succeeded, partial, failed)
		}
		return fmt.Sprintf("Batch finished: %d succeeded, %d partial", succeeded, partial), nil
	})
}

// runHeadlessBatch executes the batch printing events to stdout.
func runHeadlessBatch(ctx context.Context, eng *engine, reqs []*models.DelegationRequest) error {
	stop := printEventsHeadless(eng.bus)
	defer stop()

	fmt.Printf("Running batch of %d tasks\n\n", len(reqs))

	reports, err := eng.orch.DelegateParallel(ctx, reqs)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	fmt.Println()
	var totalTokens int64
	for _, report := range reports {
		totalTokens += report.Metrics.TokensUsed
		printReport(report)
	}

	succeeded, partial, failed := tallyReports(reports)
	fmt.Printf("\nBatch finished: %d succeeded, %d partial, %d failed (~%s tokens)\n",
		succeeded, partial, failed, formatNumber(totalTokens))
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(reports))
	}
	return nil
}

// tallyReports counts terminal statuses across a batch.
func tallyReports(reports []*models.SubAgentReport) (succeeded, partial, failed int) {
	for _, report := range reports {
		switch report.Status {
		case models.ReportSuccess:
			succeeded++
		case models.ReportPartial:
			partial++
		default:
			failed++
		}
	}
	return succeeded, partial, failed
}
