package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a posse project",
	Long: `Initialize a directory for use with posse.

This command sets up everything needed to delegate tasks:
  - Creates the .posse directory structure
  - Seeds .posse/agents/ with a starter agent definition
  - Creates a .posse.yaml configuration template
  - Adds posse entries to .gitignore when the directory is a git repo

The directory argument is optional and defaults to the current directory.

Examples:
  posse init              # Initialize current directory
  posse init ./myproject  # Initialize specific directory
  posse init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing posse in %s...\n\n", absPath)

	posseDir := filepath.Join(absPath, ".posse")
	if _, err := os.Stat(posseDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	agentsDir := filepath.Join(posseDir, "agents")
	if err := os.MkdirAll(agentsDir, 0755); err != nil {
		return fmt.Errorf("creating .posse/agents directory: %w", err)
	}
	logsDir := filepath.Join(posseDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating .posse/logs directory: %w", err)
	}
	printStatus("✓", "Created .posse directory structure", color.FgGreen)

	created, err := createStarterAgent(agentsDir)
	if err != nil {
		return fmt.Errorf("creating starter agent: %w", err)
	}
	if created {
		printStatus("✓", "Seeded .posse/agents/reviewer.md", color.FgGreen)
	} else {
		printStatus("✓", "Starter agent already present", color.FgGreen)
	}

	created, err = createProjectConfig(absPath)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if created {
		printStatus("✓", "Created .posse.yaml template", color.FgGreen)
	} else {
		printStatus("✓", ".posse.yaml already present", color.FgGreen)
	}

	// Only touch .gitignore when the project actually is a git repo;
	// posse itself has no git dependency.
	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with posse entries", color.FgGreen)
	}

	fmt.Printf("\n%s posse initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if apiKey == "" {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. List available agents:")
	fmt.Println("     posse agents list")
	fmt.Println()
	fmt.Println("  3. Delegate a task:")
	fmt.Println("     posse run reviewer \"review the diff in my working tree\"")
	fmt.Println()
	fmt.Println("  4. Learn more:")
	fmt.Println("     posse --help")

	return nil
}

// starterAgentDefinition is the reviewer agent seeded by init. It shows off
// frontmatter, the tool whitelist, and the body-as-system-prompt layout.
const starterAgentDefinition = `---
name: reviewer
description: Reviews code for correctness, clarity, and missing error handling
tools:
  - read_file
  - list_dir
  - grep
  - glob
---
You are a careful code reviewer. Read the files the task points you at and
report findings ordered by severity.

For each finding give the file, line, what is wrong, and a concrete fix.
Call out missing error handling, races, and unclear naming. If the code is
fine, say so briefly instead of inventing problems.

You have read-only access; do not attempt to modify files.
`

// createStarterAgent writes the starter definition unless one exists.
func createStarterAgent(agentsDir string) (bool, error) {
	path := filepath.Join(agentsDir, "reviewer.md")
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(starterAgentDefinition), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// createProjectConfig creates the .posse.yaml template unless one exists.
func createProjectConfig(repoPath string) (bool, error) {
	configPath := filepath.Join(repoPath, ".posse.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}

	template := `# Posse project configuration
# This file overrides defaults from ~/.config/posse/config.yaml

# model: claude-sonnet-4-20250514
# max_concurrent: 4
# default_timeout: 10m
# max_iterations: 10
# max_tokens: 8192

# protected_agents:
#   - deployer

# agents:
#   project_dir: .posse/agents

# history:
#   enabled: true
#   path: .posse/history.db
`

	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// updateGitignore adds posse entries to .gitignore if not present.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	posseEntries := []string{
		".posse/history.db*",
		".posse/logs/",
	}

	needsUpdate := false
	for _, entry := range posseEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# posse\n")
	for _, entry := range posseEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
