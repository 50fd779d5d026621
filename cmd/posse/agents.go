package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/posse/internal/agent"
	"github.com/ShayCichocki/posse/internal/config"
	"github.com/ShayCichocki/posse/pkg/models"
)

var agentsWatch bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect the agent registry",
	Long: `Inspect the agent definitions posse can delegate to.

Definitions are markdown files with YAML frontmatter, discovered from the
user scope (~/.config/posse/agents) and the project scope (.posse/agents).
A project definition wins any name collision with a user one. Files that
fail to parse or validate are reported and skipped; they never block the
rest of the catalog.`,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered agent",
	RunE:  runAgentsList,
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one agent definition in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsShow,
}

var agentsReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rescan definition directories and report the result",
	RunE:  runAgentsReload,
}

func init() {
	agentsListCmd.Flags().BoolVar(&agentsWatch, "watch", false, "Keep watching the definition directories and reprint on change")
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsShowCmd)
	agentsCmd.AddCommand(agentsReloadCmd)
}

// loadRegistry builds a registry from config for the inspection commands.
func loadRegistry() (*agent.Registry, *config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, "", fmt.Errorf("get working directory: %w", err)
	}
	return buildRegistry(cfg, cwd), cfg, cwd, nil
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	registry, cfg, cwd, err := loadRegistry()
	if err != nil {
		return err
	}

	printAgentTable(registry)

	if !agentsWatch {
		return nil
	}

	// Keep the watcher attached and reprint the catalog after each reload.
	userDir := cfg.Agents.UserDir
	if userDir == "" {
		userDir, _ = agent.UserAgentsDir()
	}
	projectDir := cfg.Agents.ProjectDir
	if projectDir == "" {
		projectDir = agent.ProjectAgentsDir(cwd)
	}

	watcher, err := agent.NewWatcher(registry, userDir, projectDir)
	if err != nil {
		return fmt.Errorf("watch definition directories: %w", err)
	}
	defer watcher.Close()

	fmt.Println("\nWatching for definition changes (ctrl-c to stop)...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-watcher.Notify():
			fmt.Println()
			printAgentTable(registry)
			fmt.Println("\nWatching for definition changes (ctrl-c to stop)...")
		case <-sigCh:
			fmt.Println()
			return nil
		}
	}
}

// printAgentTable prints the catalog with per-file load errors underneath.
func printAgentTable(registry *agent.Registry) {
	defs := registry.ListAll()
	fmt.Printf("%-16s %-8s %-10s %-22s %s\n", "NAME", "SCOPE", "STATUS", "TOOLS", "DESCRIPTION")
	for _, def := range defs {
		// Pad before colorizing so ANSI codes don't skew the column width.
		status := color.GreenString("%-10s", "enabled")
		if !def.Enabled {
			status = color.New(color.Faint).Sprintf("%-10s", "disabled")
		}
		fmt.Printf("%-16s %-8s %s %-22s %s\n",
			def.Name, def.Scope, status, toolsLabel(def), def.Description)
	}
	fmt.Printf("\n%d agents\n", len(defs))

	if errs := registry.LoadErrors(); len(errs) > 0 {
		fmt.Println()
		color.Yellow("%d definition file(s) failed to load:", len(errs))
		for _, loadErr := range errs {
			fmt.Printf("  %v\n", loadErr)
		}
	}
}

func runAgentsShow(cmd *cobra.Command, args []string) error {
	registry, _, _, err := loadRegistry()
	if err != nil {
		return err
	}

	def, ok := registry.Get(args[0])
	if !ok {
		return fmt.Errorf("no agent named %q (see 'posse agents list')", args[0])
	}

	fmt.Printf("Name:        %s\n", def.Name)
	fmt.Printf("Description: %s\n", def.Description)
	fmt.Printf("Scope:       %s\n", def.Scope)
	fmt.Printf("Enabled:     %t\n", def.Enabled)
	fmt.Printf("Tools:       %s\n", toolsLabel(def))
	if def.Model != "" {
		fmt.Printf("Model:       %s\n", def.Model)
	}
	if def.MaxIterations > 0 {
		fmt.Printf("Iterations:  %d\n", def.MaxIterations)
	}
	if def.Temperature != nil {
		fmt.Printf("Temperature: %.2f\n", *def.Temperature)
	}
	if def.Author != "" {
		fmt.Printf("Author:      %s\n", def.Author)
	}
	if def.Version != "" {
		fmt.Printf("Version:     %s\n", def.Version)
	}
	if len(def.Tags) > 0 {
		fmt.Printf("Tags:        %s\n", strings.Join(def.Tags, ", "))
	}
	if def.SourcePath != "" {
		fmt.Printf("Source:      %s\n", def.SourcePath)
	}
	fmt.Printf("\nSystem prompt:\n%s\n", indent(def.SystemPrompt, "  "))
	return nil
}

func runAgentsReload(cmd *cobra.Command, args []string) error {
	registry, _, _, err := loadRegistry()
	if err != nil {
		return err
	}

	// NewRegistry already scanned once; reload again so the command always
	// reflects the directories as they are right now.
	registry.Reload()

	errs := registry.LoadErrors()
	fmt.Printf("Reloaded: %d agents, %d load errors\n", registry.Len(), len(errs))
	for _, loadErr := range errs {
		fmt.Printf("  %v\n", loadErr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d definition file(s) failed to load", len(errs))
	}
	return nil
}

func toolsLabel(def *models.AgentDefinition) string {
	if !def.ToolsRestricted() {
		return "(all)"
	}
	if len(def.Tools) == 0 {
		return "(none)"
	}
	return strings.Join(def.Tools, ",")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
