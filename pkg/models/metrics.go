package models

import "time"

// AgentMetrics accumulates per-agent-name counters across runs. Entries are
// mutated only by the orchestrator after each terminal report, serialized
// per agent name.
type AgentMetrics struct {
	// AgentName is the agent these counters belong to.
	AgentName string `json:"agent_name"`
	// Executions counts terminal reports observed for this agent.
	Executions int `json:"executions"`
	// Successes counts reports with status success.
	Successes int `json:"successes"`
	// Failures counts reports with status failed. Partial reports count as
	// neither success nor failure.
	Failures int `json:"failures"`
	// TotalDurationMS is the summed wall-clock time of all runs.
	TotalDurationMS int64 `json:"total_duration_ms"`
	// AvgDurationMS is TotalDurationMS over Executions.
	AvgDurationMS int64 `json:"avg_duration_ms"`
	// TotalTokens is the summed token usage of all runs.
	TotalTokens int64 `json:"total_tokens"`
	// AvgTokens is TotalTokens over Executions.
	AvgTokens int64 `json:"avg_tokens"`
	// LastRunAt is the finish time of the most recent run.
	LastRunAt time.Time `json:"last_run_at"`
}

// Apply folds one terminal report into the counters. Callers serialize
// Apply per agent name; the method itself does no locking.
func (m *AgentMetrics) Apply(report *SubAgentReport) {
	m.Executions++
	switch report.Status {
	case ReportSuccess:
		m.Successes++
	case ReportFailed:
		m.Failures++
	}
	m.TotalDurationMS += report.Metrics.DurationMS
	m.TotalTokens += report.Metrics.TokensUsed
	m.AvgDurationMS = m.TotalDurationMS / int64(m.Executions)
	m.AvgTokens = m.TotalTokens / int64(m.Executions)
	if report.FinishedAt.After(m.LastRunAt) {
		m.LastRunAt = report.FinishedAt
	}
}

// Clone returns a copy safe to hand outside the metrics book.
func (m *AgentMetrics) Clone() *AgentMetrics {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}
