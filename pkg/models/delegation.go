package models

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// TaskContext carries optional execution context for a delegation.
type TaskContext struct {
	// Files are paths the agent should consider relevant.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
	// Cwd is the working directory for the run; empty means the process cwd.
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	// Metadata is free-form key/value context surfaced to the agent.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DelegationOptions carries optional per-request tuning.
type DelegationOptions struct {
	// Timeout is the wall-clock cap for the run; 0 means the configured default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxTokens caps output tokens per model call; 0 means the configured default.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// Priority orders queued tasks; higher dequeues first, ties break by
	// submission order. Zero is the neutral default.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Parallel marks the request as part of a batch. Informational; the
	// orchestrator sets it on batch submission.
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// DelegationRequest asks a named agent to execute one task. A request is
// consumed exactly once; submitting the same request twice is a contract
// violation surfaced as an error by the orchestrator.
type DelegationRequest struct {
	// AgentName is the target agent.
	AgentName string `json:"agent_name" yaml:"agent"`
	// Task is the work description handed to the agent.
	Task string `json:"task" yaml:"task"`
	// Context is optional execution context.
	Context TaskContext `json:"context,omitempty" yaml:"context,omitempty"`
	// Options is optional per-request tuning.
	Options DelegationOptions `json:"options,omitempty" yaml:"options,omitempty"`

	// consumed flips when the orchestrator accepts the request.
	consumed atomic.Bool
}

// Validate checks the request contract. Violations are the only condition
// under which the public delegation surface returns an error instead of a
// terminal report.
func (r *DelegationRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("nil delegation request")
	}
	if r.AgentName == "" {
		return fmt.Errorf("delegation request missing agent name")
	}
	if strings.TrimSpace(r.Task) == "" {
		return fmt.Errorf("delegation request missing task")
	}
	if r.Options.Timeout < 0 {
		return fmt.Errorf("delegation request timeout must not be negative, got %v", r.Options.Timeout)
	}
	return nil
}

// Consume marks the request as accepted. It returns false if the request
// was already consumed.
func (r *DelegationRequest) Consume() bool {
	return r.consumed.CompareAndSwap(false, true)
}

// Consumed reports whether the request has been accepted already.
func (r *DelegationRequest) Consumed() bool {
	return r.consumed.Load()
}
