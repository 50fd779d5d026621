package models

import "time"

// ReportStatus is the terminal outcome classification of a run.
type ReportStatus string

const (
	// ReportSuccess indicates the run produced output with no recorded errors.
	ReportSuccess ReportStatus = "success"
	// ReportPartial indicates the run produced output but recorded errors
	// (for example a denied tool call).
	ReportPartial ReportStatus = "partial"
	// ReportFailed indicates the run produced no usable result.
	ReportFailed ReportStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportSuccess, ReportPartial, ReportFailed:
		return true
	default:
		return false
	}
}

// RunMetrics are the per-run measurements carried by a report.
type RunMetrics struct {
	// TokensUsed is total input plus output tokens across all model calls.
	TokensUsed int64 `json:"tokens_used"`
	// DurationMS is wall-clock run time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// ToolCalls counts every attempted tool invocation, permitted or not.
	ToolCalls int `json:"tool_calls"`
	// ToolsUsed lists the distinct tools the run actually executed, sorted.
	// Denied calls count in ToolCalls but never appear here.
	ToolsUsed []string `json:"tools_used,omitempty"`
	// Errors lists run-level error descriptions in occurrence order.
	Errors []string `json:"errors,omitempty"`
}

// SubAgentReport is the terminal record of one delegated run. Exactly one
// report is produced per DelegationRequest; it is immutable thereafter.
type SubAgentReport struct {
	// RunID is the unique identifier assigned at submission.
	RunID string `json:"run_id"`
	// AgentName is the agent the task was delegated to.
	AgentName string `json:"agent_name"`
	// Status is the terminal outcome.
	Status ReportStatus `json:"status"`
	// Output is the full output text produced by the run.
	Output string `json:"output,omitempty"`
	// Summary is a condensed description of the outcome.
	Summary string `json:"summary,omitempty"`
	// Metrics are the per-run measurements.
	Metrics RunMetrics `json:"metrics"`
	// StartedAt is when execution began (not when the task was queued).
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the terminal status was reached.
	FinishedAt time.Time `json:"finished_at"`
}

// DeriveStatus classifies a finished run from its observable outcome.
// A fatal condition (timeout, cancellation, unrecovered collaborator
// failure) forces failed regardless of partial output; the output is still
// preserved on the report. Otherwise recorded errors with surviving output
// degrade to partial, and only a clean run with output is a success.
func DeriveStatus(output string, errCount int, fatal bool) ReportStatus {
	switch {
	case fatal:
		return ReportFailed
	case output == "":
		return ReportFailed
	case errCount > 0:
		return ReportPartial
	default:
		return ReportSuccess
	}
}
