package models

import "fmt"

// DefinitionScope identifies where an agent definition was loaded from.
type DefinitionScope string

const (
	// ScopeBuiltin indicates a definition compiled into the binary.
	ScopeBuiltin DefinitionScope = "builtin"
	// ScopeUser indicates a definition from the user config directory.
	ScopeUser DefinitionScope = "user"
	// ScopeProject indicates a definition from the project's .posse/agents directory.
	ScopeProject DefinitionScope = "project"
)

// AgentStatus represents the lifecycle state of a single delegated run.
type AgentStatus string

const (
	// StatusIdle indicates the run is queued and has not started.
	StatusIdle AgentStatus = "idle"
	// StatusRunning indicates the run is actively executing.
	StatusRunning AgentStatus = "running"
	// StatusCompleted indicates the run finished and produced a report.
	StatusCompleted AgentStatus = "completed"
	// StatusFailed indicates the run finished unsuccessfully.
	StatusFailed AgentStatus = "failed"
)

// allowedTransitions is the legal state-machine edge set.
// Terminal states have no outgoing edges and never revert.
var allowedTransitions = map[AgentStatus]map[AgentStatus]struct{}{
	StatusIdle: {
		StatusRunning: {},
	},
	StatusRunning: {
		StatusCompleted: {},
		StatusFailed:    {},
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal returns true if the status is a final state.
func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal
// state-machine transition.
func (s AgentStatus) CanTransition(next AgentStatus) bool {
	targets, ok := allowedTransitions[s]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// ValidateTransition returns a descriptive error when the transition from s
// to next is not legal.
func (s AgentStatus) ValidateTransition(next AgentStatus) error {
	if !s.Valid() {
		return fmt.Errorf("unknown status %q", s)
	}
	if !next.Valid() {
		return fmt.Errorf("unknown status %q", next)
	}
	if !s.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s", s, next)
	}
	return nil
}

// AgentDefinition is a named, independently configured prompt-and-tool
// profile. Definitions are immutable once constructed; a catalog reload
// replaces the whole set rather than patching entries in place.
type AgentDefinition struct {
	// Name uniquely identifies the agent within its scope.
	Name string `json:"name" yaml:"name"`
	// Description is a short statement of what the agent is for.
	Description string `json:"description" yaml:"description"`
	// Model is an optional model hint; empty means the configured default.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Tools is the tool whitelist. A nil slice allows every tool; an
	// explicit empty slice allows none. Entries may be tool names or
	// category shorthands (read, edit, exec).
	Tools []string `json:"tools,omitempty" yaml:"tools"`
	// Enabled gates whether the agent accepts delegations.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// MaxIterations caps the runner loop; 0 means the configured default.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	// Temperature overrides model sampling; nil means the provider default.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// SystemPrompt is the agent's system prompt (the definition file body).
	SystemPrompt string `json:"system_prompt" yaml:"-"`
	// Author is optional provenance metadata.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`
	// Version is optional provenance metadata.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// Tags are optional free-form labels.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Override must be true for this definition to replace a protected name.
	Override bool `json:"override,omitempty" yaml:"override,omitempty"`
	// Scope records where the definition was loaded from.
	Scope DefinitionScope `json:"scope" yaml:"-"`
	// SourcePath is the file the definition was parsed from, if any.
	SourcePath string `json:"source_path,omitempty" yaml:"-"`
}

// Validate checks the fields Discovery requires. A definition failing
// validation is rejected as a load error for its file only.
func (d *AgentDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("missing required field: name")
	}
	if d.Description == "" {
		return fmt.Errorf("missing required field: description")
	}
	if d.SystemPrompt == "" {
		return fmt.Errorf("missing required field: system prompt body")
	}
	return nil
}

// ToolsRestricted returns true when the definition carries an explicit
// whitelist (including the explicit empty list, which allows nothing).
func (d *AgentDefinition) ToolsRestricted() bool {
	return d.Tools != nil
}

// Clone returns a deep copy so catalog consumers can never alias the
// registry's slices.
func (d *AgentDefinition) Clone() *AgentDefinition {
	if d == nil {
		return nil
	}
	out := *d
	if d.Tools != nil {
		out.Tools = append([]string(nil), d.Tools...)
	}
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	if d.Temperature != nil {
		t := *d.Temperature
		out.Temperature = &t
	}
	return &out
}
