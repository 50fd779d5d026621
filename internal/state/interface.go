// Package state provides SQLite-based run history for posse.
package state

import (
	"io"

	"github.com/ShayCichocki/posse/pkg/models"
)

// RunStore handles run history persistence operations.
type RunStore interface {
	RecordRun(report *models.SubAgentReport) error
	GetRun(runID string) (*models.SubAgentReport, error)
	ListRuns(limit int) ([]*models.SubAgentReport, error)
	ListRunsByAgent(agentName string, limit int) ([]*models.SubAgentReport, error)
}

// MetricsStore handles per-agent cumulative counter persistence.
type MetricsStore interface {
	UpsertMetrics(m *models.AgentMetrics) error
	GetMetrics(agentName string) (*models.AgentMetrics, error)
	ListMetrics() ([]*models.AgentMetrics, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore defines the interface for run history persistence.
// This interface allows the orchestrator to work with any history backend
// without depending on the concrete SQLite implementation.
// It composes focused sub-interfaces for better modularity.
type HistoryStore interface {
	io.Closer
	Migrator
	RunStore
	MetricsStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ MetricsStore = (*DB)(nil)
)
