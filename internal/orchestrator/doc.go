// Package orchestrator coordinates delegation of tasks to named agents.
//
// The orchestrator package provides functionality for:
//   - Delegation: routing a task to a named agent and returning its report
//   - Batch execution: running many delegations under a concurrency ceiling
//   - Metrics: cumulative per-agent counters updated after each terminal run
//
// Single and batch submissions share one dispatcher, so the concurrency
// ceiling holds across everything in flight. Queued work dequeues by
// priority, ties broken by submission order, and every admitted request
// resolves to exactly one terminal report. Lifecycle events go out on the
// event bus as each run moves through queued, started, and done.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.RequiredConfig{
//		Resolver: registry,
//		Client:   client,
//		Invoker:  executor,
//	}, orchestrator.WithMaxConcurrent(4))
//	defer orch.Close()
//	report, err := orch.Delegate(ctx, req)
package orchestrator
