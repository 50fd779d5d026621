package runner

import (
	"errors"
	"fmt"
)

// Common errors surfaced inside run reports.
var (
	// ErrToolNotPermitted indicates a run tried to invoke a tool outside its
	// definition's whitelist.
	ErrToolNotPermitted = errors.New("tool not permitted")
	// ErrRunTimeout indicates a run was cancelled because its deadline
	// passed.
	ErrRunTimeout = errors.New("run timed out")
	// ErrMaxIterations indicates the tool loop hit its iteration bound
	// before the agent finished.
	ErrMaxIterations = errors.New("max iterations reached")
)

// CollaboratorError wraps a failure from an external collaborator, the model
// API in practice. Runs surface these in their report errors; they only
// become a Go error when the request itself was malformed.
type CollaboratorError struct {
	// Op names the call that failed.
	Op string
	// Attempts is how many tries were made including retries.
	Attempts int
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
