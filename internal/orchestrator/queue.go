package orchestrator

import (
	"context"

	"github.com/ShayCichocki/posse/pkg/models"
)

// submission is one admitted delegation waiting for, or occupying, a worker
// slot. The request has already been validated and consumed at admission.
type submission struct {
	runID string
	req   *models.DelegationRequest
	// ctx is the submitting caller's context; cancelling it cancels this
	// run only.
	ctx context.Context
	// priority orders the queue, higher first.
	priority int
	// seq breaks priority ties in submission order.
	seq uint64
	// resultCh receives the terminal report, exactly once.
	resultCh chan *models.SubAgentReport
	// batch is set for DelegateParallel submissions, nil for singles.
	batch *batchState
	// step is this submission's index within the batch plan.
	step int
}

// pendingQueue is a container/heap ordering submissions by priority
// descending, then submission sequence ascending.
type pendingQueue []*submission

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) {
	*q = append(*q, x.(*submission))
}

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	sub := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return sub
}
