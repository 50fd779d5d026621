package agent

import (
	"errors"
	"fmt"
)

// Common errors for agent resolution.
var (
	// ErrAgentNotFound indicates no definition exists for the requested name.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentDisabled indicates the definition exists but is switched off.
	ErrAgentDisabled = errors.New("agent disabled")
	// ErrProtectedName indicates a definition tried to claim a reserved name
	// without setting the override flag.
	ErrProtectedName = errors.New("agent name is protected")
)

// DefinitionLoadError records a single definition file that failed to load.
// Load errors are isolated: one bad file never aborts discovery of the rest.
type DefinitionLoadError struct {
	// Path is the file that failed.
	Path string
	// Scope is where the file was found (user or project).
	Scope string
	// Err is the underlying parse or validation failure.
	Err error
}

// Error implements the error interface.
func (e *DefinitionLoadError) Error() string {
	return fmt.Sprintf("load agent definition %s (%s scope): %v", e.Path, e.Scope, e.Err)
}

// Unwrap returns the underlying error.
func (e *DefinitionLoadError) Unwrap() error {
	return e.Err
}
