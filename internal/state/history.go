package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/posse/pkg/models"
)

// Run history operations. The runs table is append-only: terminal reports
// are inserted once and never updated.

// RecordRun persists one terminal report.
func (db *DB) RecordRun(report *models.SubAgentReport) error {
	toolsJSON, err := json.Marshal(report.Metrics.ToolsUsed)
	if err != nil {
		return fmt.Errorf("marshal tools used: %w", err)
	}
	errorsJSON, err := json.Marshal(report.Metrics.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO runs (run_id, agent_name, status, summary, output, tokens_used, duration_ms, tool_calls, tools_used, errors, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.AgentName, string(report.Status), report.Summary, report.Output,
		report.Metrics.TokensUsed, report.Metrics.DurationMS, report.Metrics.ToolCalls,
		string(toolsJSON), string(errorsJSON), formatTime(report.StartedAt), formatTime(report.FinishedAt))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if no such run exists.
func (db *DB) GetRun(runID string) (*models.SubAgentReport, error) {
	row := db.QueryRow(`
		SELECT run_id, agent_name, status, summary, output, tokens_used, duration_ms, tool_calls, tools_used, errors, started_at, finished_at
		FROM runs WHERE run_id = ?
	`, runID)

	report, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return report, nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns
// every recorded run.
func (db *DB) ListRuns(limit int) ([]*models.SubAgentReport, error) {
	return db.listRuns(`
		SELECT run_id, agent_name, status, summary, output, tokens_used, duration_ms, tool_calls, tools_used, errors, started_at, finished_at
		FROM runs ORDER BY finished_at DESC
	`, nil, limit)
}

// ListRunsByAgent returns the most recent runs for one agent, newest first.
func (db *DB) ListRunsByAgent(agentName string, limit int) ([]*models.SubAgentReport, error) {
	return db.listRuns(`
		SELECT run_id, agent_name, status, summary, output, tokens_used, duration_ms, tool_calls, tools_used, errors, started_at, finished_at
		FROM runs WHERE agent_name = ? ORDER BY finished_at DESC
	`, []any{agentName}, limit)
}

func (db *DB) listRuns(query string, args []any, limit int) ([]*models.SubAgentReport, error) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var reports []*models.SubAgentReport
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.SubAgentReport, error) {
	var report models.SubAgentReport
	var status, toolsJSON, errorsJSON, startedAt, finishedAt string
	err := row.Scan(&report.RunID, &report.AgentName, &status, &report.Summary, &report.Output,
		&report.Metrics.TokensUsed, &report.Metrics.DurationMS, &report.Metrics.ToolCalls,
		&toolsJSON, &errorsJSON, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	report.Status = models.ReportStatus(status)
	if err := json.Unmarshal([]byte(toolsJSON), &report.Metrics.ToolsUsed); err != nil {
		return nil, fmt.Errorf("unmarshal tools used: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &report.Metrics.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	report.StartedAt, _ = parseTime(startedAt)
	report.FinishedAt, _ = parseTime(finishedAt)
	return &report, nil
}

// Agent metrics operations. The agent_metrics table holds one snapshot row
// per agent name, replaced after each terminal report.

// UpsertMetrics stores the current cumulative counters for an agent.
func (db *DB) UpsertMetrics(m *models.AgentMetrics) error {
	var lastRunAt any
	if !m.LastRunAt.IsZero() {
		lastRunAt = formatTime(m.LastRunAt)
	}

	_, err := db.Exec(`
		INSERT INTO agent_metrics (agent_name, executions, successes, failures, total_duration_ms, avg_duration_ms, total_tokens, avg_tokens, last_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_name) DO UPDATE SET
			executions = excluded.executions,
			successes = excluded.successes,
			failures = excluded.failures,
			total_duration_ms = excluded.total_duration_ms,
			avg_duration_ms = excluded.avg_duration_ms,
			total_tokens = excluded.total_tokens,
			avg_tokens = excluded.avg_tokens,
			last_run_at = excluded.last_run_at
	`, m.AgentName, m.Executions, m.Successes, m.Failures,
		m.TotalDurationMS, m.AvgDurationMS, m.TotalTokens, m.AvgTokens, lastRunAt)
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}

// GetMetrics retrieves the stored counters for an agent. Returns nil if the
// agent has no recorded runs.
func (db *DB) GetMetrics(agentName string) (*models.AgentMetrics, error) {
	row := db.QueryRow(`
		SELECT agent_name, executions, successes, failures, total_duration_ms, avg_duration_ms, total_tokens, avg_tokens, last_run_at
		FROM agent_metrics WHERE agent_name = ?
	`, agentName)

	m, err := scanMetrics(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	return m, nil
}

// ListMetrics returns stored counters for every agent, ordered by name.
func (db *DB) ListMetrics() ([]*models.AgentMetrics, error) {
	rows, err := db.Query(`
		SELECT agent_name, executions, successes, failures, total_duration_ms, avg_duration_ms, total_tokens, avg_tokens, last_run_at
		FROM agent_metrics ORDER BY agent_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var all []*models.AgentMetrics
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		all = append(all, m)
	}
	return all, rows.Err()
}

func scanMetrics(row rowScanner) (*models.AgentMetrics, error) {
	var m models.AgentMetrics
	var lastRunAt sql.NullString
	err := row.Scan(&m.AgentName, &m.Executions, &m.Successes, &m.Failures,
		&m.TotalDurationMS, &m.AvgDurationMS, &m.TotalTokens, &m.AvgTokens, &lastRunAt)
	if err != nil {
		return nil, err
	}
	if lastRunAt.Valid {
		m.LastRunAt, _ = parseTime(lastRunAt.String)
	}
	return &m, nil
}
