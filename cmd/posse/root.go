package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "posse",
	Short: "Sub-agent orchestration engine",
	Long: `Posse delegates tasks to named sub-agents and runs them in parallel
under a shared concurrency ceiling.

Agents are defined as markdown files with YAML frontmatter, discovered from
~/.config/posse/agents (user scope) and .posse/agents (project scope).
Each run gets its own conversation with the model, a tool filter scoped to
the agent's declared tools, and a terminal report recorded to run history.

Core capabilities:
- Delegates tasks to named agents, single or batched
- Caps concurrent runs and orders the backlog by priority
- Confines tool use to each agent's declared allowlist
- Records every run's outcome, tokens, and tool usage
- Live terminal monitor, or headless event stream for scripts`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
