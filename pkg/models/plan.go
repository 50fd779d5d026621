package models

import "time"

// PlanStep is one task within a published batch plan.
type PlanStep struct {
	// RunID is the identifier of the delegated run.
	RunID string `json:"run_id"`
	// AgentName is the agent the step is delegated to.
	AgentName string `json:"agent_name"`
	// Task is a short description of the step's work.
	Task string `json:"task"`
	// Status is the step's current lifecycle state.
	Status AgentStatus `json:"status"`
}

// Plan is the orchestrator's published view of a batch. Observers receive
// it over the plan topic; the recorder deep-copies on capture so later
// mutation of a published plan never corrupts the cached snapshot.
type Plan struct {
	// BatchID identifies the batch this plan describes.
	BatchID string `json:"batch_id"`
	// CreatedAt is when the batch was admitted.
	CreatedAt time.Time `json:"created_at"`
	// Steps are the batch's tasks in submission order.
	Steps []PlanStep `json:"steps"`
	// Annotations carries optional free-form plan metadata.
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Clone returns a deep copy with no shared slices or maps.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{
		BatchID:   p.BatchID,
		CreatedAt: p.CreatedAt,
	}
	if p.Steps != nil {
		out.Steps = append([]PlanStep(nil), p.Steps...)
	}
	if p.Annotations != nil {
		out.Annotations = make(map[string]string, len(p.Annotations))
		for k, v := range p.Annotations {
			out.Annotations[k] = v
		}
	}
	return out
}
