// Package orchestrator coordinates delegation of tasks to named agents.
// It runs Runners under a concurrency ceiling, aggregates reports, updates
// per-agent metrics, and publishes lifecycle events.
package orchestrator

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/posse/internal/events"
	"github.com/ShayCichocki/posse/internal/runner"
	"github.com/ShayCichocki/posse/internal/state"
	"github.com/ShayCichocki/posse/pkg/models"
)

// ErrClosed is returned by submissions made after Close.
var ErrClosed = errors.New("orchestrator closed")

// Orchestrator accepts single or batched delegation requests and drives them
// to terminal reports. A dispatcher goroutine hands queued submissions to
// worker goroutines, never more than the configured ceiling at once; tasks
// beyond the ceiling wait in a priority queue. Every admitted request yields
// exactly one terminal report, even across Close.
type Orchestrator struct {
	runner  *runner.Runner
	bus     *events.Bus
	ownsBus bool
	history state.HistoryStore
	logger  *DebugLogger
	metrics *metricsBook

	maxConcurrent int

	// mu protects queue, seq, and closed.
	mu     sync.Mutex
	queue  pendingQueue
	seq    uint64
	closed bool

	// submitCh wakes the dispatcher when work is queued.
	submitCh chan struct{}
	// doneCh signals a worker slot has freed up.
	doneCh chan struct{}
	// stopCh tells the dispatcher to drain and exit.
	stopCh chan struct{}
	// wg tracks the dispatcher and all workers.
	wg sync.WaitGroup
}

// New creates an Orchestrator and starts its dispatcher.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	options := &orchestratorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	maxConcurrent := options.maxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}

	bus := options.bus
	ownsBus := false
	if bus == nil {
		bus = events.NewBus()
		ownsBus = true
	}

	logger := options.logger
	if logger == nil {
		logger = NopLogger()
	}

	run := runner.New(runner.Config{
		Resolver:       req.Resolver,
		Client:         req.Client,
		Invoker:        req.Invoker,
		Bus:            bus,
		DefaultTimeout: options.defaultTimeout,
		MaxRetries:     options.maxRetries,
		RetryBaseDelay: options.retryBaseDelay,
	})
	if options.onStream != nil {
		run.SetStreamHandler(options.onStream)
	}

	o := &Orchestrator{
		runner:        run,
		bus:           bus,
		ownsBus:       ownsBus,
		history:       options.history,
		logger:        logger,
		metrics:       newMetricsBook(),
		maxConcurrent: maxConcurrent,
		submitCh:      make(chan struct{}, 1),
		doneCh:        make(chan struct{}, maxConcurrent),
		stopCh:        make(chan struct{}),
	}

	o.wg.Add(1)
	go o.dispatch()

	return o
}

// Bus returns the event bus lifecycle events are published to.
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

// Delegate submits one request and blocks until its terminal report. The
// error return is reserved for contract violations (invalid or reused
// request, closed orchestrator); every admitted request yields a report.
// A cancelled context produces a failed report, not an error.
func (o *Orchestrator) Delegate(ctx context.Context, req *models.DelegationRequest) (*models.SubAgentReport, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.Consume() {
		return nil, fmt.Errorf("delegation request for agent %q already consumed", req.AgentName)
	}

	sub := o.newSubmission(ctx, req, nil, 0)
	o.announce(sub)
	o.enqueue(sub)
	return <-sub.resultCh, nil
}

// DelegateParallel submits a batch and blocks until every task has reached a
// terminal status. Reports come back in submission order regardless of
// completion order; one task's failure never aborts its siblings. Admission
// is all or nothing: if any request fails validation or was already
// consumed, no task from the batch runs.
func (o *Orchestrator) DelegateParallel(ctx context.Context, reqs []*models.DelegationRequest) ([]*models.SubAgentReport, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	// Validate everything before consuming anything, so a malformed request
	// cannot strand its siblings half-admitted.
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("batch request %d: %w", i, err)
		}
	}
	for i, req := range reqs {
		if !req.Consume() {
			return nil, fmt.Errorf("batch request %d: delegation request for agent %q already consumed", i, req.AgentName)
		}
	}

	batch := &batchState{
		plan: &models.Plan{
			BatchID:   uuid.New().String()[:8],
			CreatedAt: time.Now(),
			Steps:     make([]models.PlanStep, len(reqs)),
		},
	}

	subs := make([]*submission, len(reqs))
	for i, req := range reqs {
		req.Options.Parallel = true
		sub := o.newSubmission(ctx, req, batch, i)
		subs[i] = sub
		batch.plan.Steps[i] = models.PlanStep{
			RunID:     sub.runID,
			AgentName: req.AgentName,
			Task:      summarizeTask(req.Task),
			Status:    models.StatusIdle,
		}
	}

	o.logger.Log("[orchestrator] batch %s admitted: %d tasks, ceiling %d",
		batch.plan.BatchID, len(subs), o.maxConcurrent)
	o.publishPlan(batch)
	for _, sub := range subs {
		o.announce(sub)
		o.enqueue(sub)
	}

	reports := make([]*models.SubAgentReport, len(subs))
	for i, sub := range subs {
		reports[i] = <-sub.resultCh
	}
	return reports, nil
}

// Metrics returns cumulative counters for one agent, or nil if the agent
// has no recorded runs.
func (o *Orchestrator) Metrics(agentName string) *models.AgentMetrics {
	return o.metrics.get(agentName)
}

// AllMetrics returns cumulative counters for every agent, sorted by name.
func (o *Orchestrator) AllMetrics() []*models.AgentMetrics {
	return o.metrics.all()
}

// Close stops accepting submissions, waits for queued and running tasks to
// reach terminal reports, and releases the dispatcher. Idempotent.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	close(o.stopCh)
	o.wg.Wait()

	if o.ownsBus {
		o.bus.Close()
	}
	return nil
}

func (o *Orchestrator) checkOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	return nil
}

// newSubmission assigns a run ID and queue sequence to a consumed request.
func (o *Orchestrator) newSubmission(ctx context.Context, req *models.DelegationRequest, batch *batchState, step int) *submission {
	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.mu.Unlock()

	return &submission{
		runID:    uuid.New().String()[:8],
		req:      req,
		ctx:      ctx,
		priority: req.Options.Priority,
		seq:      seq,
		resultCh: make(chan *models.SubAgentReport, 1),
		batch:    batch,
		step:     step,
	}
}

// announce publishes the queued event for an admitted submission.
func (o *Orchestrator) announce(sub *submission) {
	o.publishTask(events.Event{
		Type:      events.TaskQueued,
		RunID:     sub.runID,
		AgentName: sub.req.AgentName,
		Task:      summarizeTask(sub.req.Task),
		Message:   fmt.Sprintf("task queued for %s", sub.req.AgentName),
	})
}

// enqueue inserts an admitted submission and wakes the dispatcher. If Close
// won the race and the dispatcher is draining or gone, the submission is
// still owed a terminal report, so it fails in place instead of queueing.
func (o *Orchestrator) enqueue(sub *submission) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.abort(sub, "orchestrator closed before the task could run")
		return
	}
	heap.Push(&o.queue, sub)
	o.mu.Unlock()

	select {
	case o.submitCh <- struct{}{}:
	default:
	}
}

// nextPending pops the highest-priority queued submission, or nil.
func (o *Orchestrator) nextPending() *submission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.queue.Len() == 0 {
		return nil
	}
	return heap.Pop(&o.queue).(*submission)
}

func (o *Orchestrator) queueLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.Len()
}

// dispatch is the scheduling loop. It keeps at most maxConcurrent workers
// running and, once told to stop, drains everything already queued before
// exiting.
func (o *Orchestrator) dispatch() {
	defer o.wg.Done()

	inflight := 0
	draining := false
	stopCh := o.stopCh

	for {
		for inflight < o.maxConcurrent {
			sub := o.nextPending()
			if sub == nil {
				break
			}
			inflight++
			o.wg.Add(1)
			go o.execute(sub)
		}

		if draining && inflight == 0 && o.queueLen() == 0 {
			return
		}

		select {
		case <-o.submitCh:
		case <-o.doneCh:
			inflight--
		case <-stopCh:
			draining = true
			// Disable this case so the closed channel cannot spin the loop.
			stopCh = nil
		}
	}
}

// execute runs one submission to its terminal report on a worker goroutine.
func (o *Orchestrator) execute(sub *submission) {
	defer o.wg.Done()

	o.setStepStatus(sub, models.StatusRunning)
	o.publishTask(events.Event{
		Type:      events.TaskStarted,
		RunID:     sub.runID,
		AgentName: sub.req.AgentName,
		Message:   fmt.Sprintf("task started on %s", sub.req.AgentName),
	})
	o.logger.Log("[orchestrator] run %s started (agent %s)", sub.runID, sub.req.AgentName)

	report := o.runner.Execute(sub.ctx, sub.runID, sub.req)
	o.finish(sub, report)
	o.doneCh <- struct{}{}
}

// abort delivers a terminal failed report for an admitted submission that
// never reached a worker.
func (o *Orchestrator) abort(sub *submission, reason string) {
	now := time.Now()
	o.finish(sub, &models.SubAgentReport{
		RunID:     sub.runID,
		AgentName: sub.req.AgentName,
		Status:    models.ReportFailed,
		Summary:   reason,
		Metrics: models.RunMetrics{
			Errors: []string{reason},
		},
		StartedAt:  now,
		FinishedAt: now,
	})
}

// finish performs the bookkeeping every terminal report gets: plan update,
// metrics, history, the terminal event, and delivery to the waiting caller.
func (o *Orchestrator) finish(sub *submission, report *models.SubAgentReport) {
	snapshot := o.metrics.apply(report)
	o.recordHistory(report, snapshot)

	terminal := events.Event{
		RunID:     sub.runID,
		AgentName: sub.req.AgentName,
		Report:    report,
	}
	if report.Status == models.ReportFailed {
		o.setStepStatus(sub, models.StatusFailed)
		terminal.Type = events.TaskFailed
		terminal.Message = fmt.Sprintf("task failed on %s", sub.req.AgentName)
		if len(report.Metrics.Errors) > 0 {
			terminal.Err = report.Metrics.Errors[0]
		}
	} else {
		o.setStepStatus(sub, models.StatusCompleted)
		terminal.Type = events.TaskCompleted
		terminal.Message = fmt.Sprintf("task completed on %s (%s)", sub.req.AgentName, report.Status)
	}
	o.publishTask(terminal)
	o.logger.Log("[orchestrator] run %s finished with status %s", sub.runID, report.Status)

	sub.resultCh <- report
}

func (o *Orchestrator) publishTask(event events.Event) {
	event.Topic = events.TopicTask
	o.bus.Publish(event)
}

// recordHistory persists the report and metric snapshot. Persistence
// failures are logged, never surfaced into the run.
func (o *Orchestrator) recordHistory(report *models.SubAgentReport, metrics *models.AgentMetrics) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordRun(report); err != nil {
		log.Printf("[orchestrator] failed to record run %s: %v", report.RunID, err)
	}
	if err := o.history.UpsertMetrics(metrics); err != nil {
		log.Printf("[orchestrator] failed to record metrics for %s: %v", report.AgentName, err)
	}
}

// batchState tracks the published plan for one DelegateParallel call.
type batchState struct {
	mu   sync.Mutex
	plan *models.Plan
}

// setStepStatus updates the submission's plan step and republishes the plan
// snapshot. No-op for single delegations.
func (o *Orchestrator) setStepStatus(sub *submission, status models.AgentStatus) {
	if sub.batch == nil {
		return
	}
	sub.batch.mu.Lock()
	sub.batch.plan.Steps[sub.step].Status = status
	sub.batch.mu.Unlock()
	o.publishPlan(sub.batch)
}

func (o *Orchestrator) publishPlan(batch *batchState) {
	batch.mu.Lock()
	snapshot := batch.plan.Clone()
	batch.mu.Unlock()

	o.bus.Publish(events.Event{
		Topic: events.TopicPlan,
		Type:  events.PlanCaptured,
		Plan:  snapshot,
	})
}

// summarizeTask condenses a task description for its plan step.
func summarizeTask(task string) string {
	for i, r := range task {
		if r == '\n' {
			task = task[:i]
			break
		}
	}
	if len(task) > 120 {
		return task[:120] + "..."
	}
	return task
}
