package orchestrator

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/posse/pkg/models"
)

// metricsBook accumulates per-agent-name counters across terminal reports.
// One mutex serializes all updates, so concurrent completions for the same
// agent never lose increments.
type metricsBook struct {
	mu      sync.Mutex
	byAgent map[string]*models.AgentMetrics
}

func newMetricsBook() *metricsBook {
	return &metricsBook{byAgent: make(map[string]*models.AgentMetrics)}
}

// apply folds one terminal report into the agent's counters and returns a
// snapshot of the updated entry.
func (b *metricsBook) apply(report *models.SubAgentReport) *models.AgentMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.byAgent[report.AgentName]
	if !ok {
		entry = &models.AgentMetrics{AgentName: report.AgentName}
		b.byAgent[report.AgentName] = entry
	}
	entry.Apply(report)
	return entry.Clone()
}

// get returns a snapshot of one agent's counters, or nil if the agent has
// no recorded runs.
func (b *metricsBook) get(agentName string) *models.AgentMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byAgent[agentName].Clone()
}

// all returns snapshots for every agent, sorted by name.
func (b *metricsBook) all() []*models.AgentMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*models.AgentMetrics, 0, len(b.byAgent))
	for _, entry := range b.byAgent {
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentName < out[j].AgentName })
	return out
}
