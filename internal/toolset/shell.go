package toolset

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts shell execution so tests can fake the bash tool.
type CommandRunner interface {
	// RunShell executes a shell command through "sh -c" in workDir and
	// returns combined stdout/stderr output.
	RunShell(ctx context.Context, workDir string, command string) ([]byte, error)
}

// ShellRunner implements CommandRunner using os/exec.
type ShellRunner struct{}

// NewShellRunner creates a ShellRunner.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// RunShell executes a shell command and returns combined output.
func (r *ShellRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// Verify ShellRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ShellRunner)(nil)
