// Package runner executes a single delegation end to end: it resolves the
// agent definition, drives the model/tool iteration loop under the
// definition's whitelist, and synthesizes exactly one report per request.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/posse/internal/agent"
	"github.com/ShayCichocki/posse/internal/events"
	"github.com/ShayCichocki/posse/internal/toolset"
	"github.com/ShayCichocki/posse/pkg/models"
)

const (
	// defaultMaxTokens caps a single model response.
	defaultMaxTokens = 8192
	// defaultMaxRetries bounds model call retries per turn.
	defaultMaxRetries = 2
	// defaultRetryBaseDelay is the base for exponential retry backoff.
	defaultRetryBaseDelay = 2 * time.Second
)

// Resolver looks up agent definitions by name. *agent.Registry satisfies it.
type Resolver interface {
	Get(name string) (*models.AgentDefinition, bool)
}

// Config configures a Runner.
type Config struct {
	// Resolver provides agent definitions.
	Resolver Resolver
	// Client talks to the model.
	Client ModelClient
	// Invoker executes tool calls.
	Invoker toolset.Invoker
	// Bus receives tool events, may be nil.
	Bus *events.Bus
	// DefaultTimeout bounds runs whose request sets none, 0 for unbounded.
	DefaultTimeout time.Duration
	// MaxRetries is the model call retry bound per turn (0 = default).
	MaxRetries int
	// RetryBaseDelay is the backoff base between retries (0 = default).
	RetryBaseDelay time.Duration
}

// Runner executes delegations one at a time. It is safe for concurrent use;
// every Run call is independent.
type Runner struct {
	resolver       Resolver
	client         ModelClient
	invoker        toolset.Invoker
	bus            *events.Bus
	defaultTimeout time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	onStream       func(runID, chunk string)
}

// New creates a runner.
func New(cfg Config) *Runner {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay == 0 {
		baseDelay = defaultRetryBaseDelay
	}
	return &Runner{
		resolver:       cfg.Resolver,
		client:         cfg.Client,
		invoker:        cfg.Invoker,
		bus:            cfg.Bus,
		defaultTimeout: cfg.DefaultTimeout,
		maxRetries:     maxRetries,
		retryBaseDelay: baseDelay,
	}
}

// SetStreamHandler registers a callback for text chunks as the model streams
// them. When set, runs use the client's streaming call.
func (r *Runner) SetStreamHandler(fn func(runID, chunk string)) {
	r.onStream = fn
}

// Run executes one delegation under a fresh run ID.
func (r *Runner) Run(ctx context.Context, req *models.DelegationRequest) (*models.SubAgentReport, error) {
	return r.RunWithID(ctx, uuid.New().String()[:8], req)
}

// RunWithID executes one delegation. Expected domain failures (unknown
// agent, disabled agent, tool denials, timeouts, collaborator errors) are
// reported in-band on the returned report; the error return is reserved for
// malformed requests.
func (r *Runner) RunWithID(ctx context.Context, runID string, req *models.DelegationRequest) (*models.SubAgentReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.Consume() {
		return nil, fmt.Errorf("delegation request for agent %q already consumed", req.AgentName)
	}
	return r.Execute(ctx, runID, req), nil
}

// Execute drives an already admitted request to its terminal report. The
// caller has validated and consumed the request; every call produces exactly
// one report, never an error. The orchestrator admits at submission and
// executes here once a worker slot frees up.
func (r *Runner) Execute(ctx context.Context, runID string, req *models.DelegationRequest) *models.SubAgentReport {
	started := time.Now()

	def, ok := r.resolver.Get(req.AgentName)
	if !ok {
		return r.failedReport(runID, req.AgentName, started,
			fmt.Sprintf("%v: %s", agent.ErrAgentNotFound, req.AgentName))
	}
	if !def.Enabled {
		return r.failedReport(runID, req.AgentName, started,
			fmt.Sprintf("%v: %s", agent.ErrAgentDisabled, req.AgentName))
	}

	filter, err := toolset.NewFilter(def.Tools)
	if err != nil {
		// Definitions are validated at load, a bad whitelist here means the
		// definition bypassed discovery.
		return r.failedReport(runID, def.Name, started,
			fmt.Sprintf("invalid tool whitelist: %v", err))
	}

	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run := &runState{
		id:      runID,
		def:     def,
		filter:  filter,
		started: started,
		timeout: timeout,
		used:    make(map[string]struct{}),
	}
	r.iterate(ctx, run, req)
	return run.report()
}

// runState accumulates everything one run produces.
type runState struct {
	id      string
	def     *models.AgentDefinition
	filter  *toolset.Filter
	started time.Time
	timeout time.Duration

	output    string
	tokens    int64
	toolCalls int
	used      map[string]struct{}
	errs      []string
	fatal     bool
}

func (s *runState) fail(msg string) {
	s.errs = append(s.errs, msg)
	s.fatal = true
}

func (s *runState) report() *models.SubAgentReport {
	toolsUsed := make([]string, 0, len(s.used))
	for name := range s.used {
		toolsUsed = append(toolsUsed, name)
	}
	sort.Strings(toolsUsed)

	finished := time.Now()
	return &models.SubAgentReport{
		RunID:     s.id,
		AgentName: s.def.Name,
		Status:    models.DeriveStatus(s.output, len(s.errs), s.fatal),
		Output:    s.output,
		Summary:   summarize(s.output),
		Metrics: models.RunMetrics{
			TokensUsed: s.tokens,
			DurationMS: finished.Sub(s.started).Milliseconds(),
			ToolCalls:  s.toolCalls,
			ToolsUsed:  toolsUsed,
			Errors:     s.errs,
		},
		StartedAt:  s.started,
		FinishedAt: finished,
	}
}

// iterate drives the model/tool loop until the agent finishes, the iteration
// bound is hit, or the context is done.
func (r *Runner) iterate(ctx context.Context, run *runState, req *models.DelegationRequest) {
	maxIterations := run.def.MaxIterations
	if maxIterations <= 0 {
		maxIterations = agent.DefaultMaxIterations
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	tools := toolset.FilteredCatalog(run.filter)
	messages := []models.Message{{
		Role:    models.RoleUser,
		Content: buildUserPrompt(req),
	}}

	for iteration := 0; iteration < maxIterations; iteration++ {
		if r.ctxDone(ctx, run) {
			return
		}
		r.publishLog(run.id, run.def.Name, fmt.Sprintf("iteration %d of %d", iteration+1, maxIterations))

		resp, err := r.callModel(ctx, run.id, ModelRequest{
			Model:        run.def.Model,
			SystemPrompt: run.def.SystemPrompt,
			Messages:     messages,
			Tools:        tools,
			MaxTokens:    maxTokens,
			Temperature:  run.def.Temperature,
		})
		if err != nil {
			if r.ctxDone(ctx, run) {
				return
			}
			run.fail(err.Error())
			return
		}

		run.tokens += resp.TokensIn + resp.TokensOut
		if resp.Content != "" {
			run.output = resp.Content
		}

		if resp.StopReason == StopMaxTokens {
			run.errs = append(run.errs, "response truncated at max_tokens")
		}
		if len(resp.ToolCalls) == 0 {
			return
		}

		results := make([]models.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			result, stop := r.invokeTool(ctx, run, call)
			if stop {
				return
			}
			results = append(results, result)
		}

		messages = append(messages,
			models.Message{Role: models.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls},
			models.Message{Role: models.RoleUser, ToolResults: results},
		)
	}

	run.errs = append(run.errs, fmt.Sprintf("%v (%d)", ErrMaxIterations, maxIterations))
}

// invokeTool runs one tool call under the whitelist. The returned stop flag
// is set when the run must end because the context is done.
func (r *Runner) invokeTool(ctx context.Context, run *runState, call models.ToolCall) (models.ToolResult, bool) {
	run.toolCalls++

	if !run.filter.Allows(call.Name) {
		reason := fmt.Sprintf("%v: %s", ErrToolNotPermitted, call.Name)
		run.errs = append(run.errs, reason)
		r.publishTool(events.Event{
			Type: events.ToolDenied, RunID: run.id, AgentName: run.def.Name,
			Tool: call.Name, Err: "not in this agent's whitelist",
		})
		return models.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("tool %s is not permitted for this agent", call.Name),
			IsError:    true,
		}, false
	}

	r.publishTool(events.Event{
		Type: events.ToolStarted, RunID: run.id, AgentName: run.def.Name, Tool: call.Name,
	})

	result, err := r.invoker.Invoke(ctx, call.Name, call.Input)
	if err != nil {
		if ctx.Err() != nil {
			r.ctxDone(ctx, run)
			return models.ToolResult{}, true
		}
		// The model asked for something the executor cannot dispatch. Feed
		// the failure back instead of killing the run.
		r.publishTool(events.Event{
			Type: events.ToolFailed, RunID: run.id, AgentName: run.def.Name,
			Tool: call.Name, Err: err.Error(),
		})
		return models.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}, false
	}

	run.used[call.Name] = struct{}{}
	if result.IsError {
		r.publishTool(events.Event{
			Type: events.ToolFailed, RunID: run.id, AgentName: run.def.Name,
			Tool: call.Name, Err: firstLine(result.Content),
		})
	} else {
		r.publishTool(events.Event{
			Type: events.ToolCompleted, RunID: run.id, AgentName: run.def.Name, Tool: call.Name,
		})
	}

	return models.ToolResult{ToolCallID: call.ID, Content: result.Content, IsError: result.IsError}, false
}

// callModel makes one model call with retry and exponential backoff.
func (r *Runner) callModel(ctx context.Context, runID string, req ModelRequest) (*ModelResponse, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryBaseDelay * time.Duration(1<<uint(attempt-1))
			log.Printf("[runner] model call retry %d for run %s, waiting %v", attempt, runID, delay)
			r.publishLog(runID, "", fmt.Sprintf("model call retry %d, waiting %v", attempt, delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		attempts++

		var resp *ModelResponse
		var err error
		if r.onStream != nil {
			resp, err = r.client.Stream(ctx, req, func(chunk string) { r.onStream(runID, chunk) })
		} else {
			resp, err = r.client.Chat(ctx, req)
		}
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Printf("[runner] model call failed for run %s (attempt %d): %v", runID, attempts, err)
	}
	return nil, &CollaboratorError{Op: "model call", Attempts: attempts, Err: lastErr}
}

// ctxDone records the cancellation reason when the context is finished.
func (r *Runner) ctxDone(ctx context.Context, run *runState) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	if !run.fatal {
		if errors.Is(err, context.DeadlineExceeded) {
			run.fail(fmt.Sprintf("%v after %s", ErrRunTimeout, run.timeout))
		} else {
			run.fail("run cancelled")
		}
	}
	return true
}

func (r *Runner) publishTool(event events.Event) {
	if r.bus == nil {
		return
	}
	event.Topic = events.TopicTool
	r.bus.Publish(event)
}

func (r *Runner) publishLog(runID, agentName, message string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Topic:     events.TopicLog,
		Type:      events.LogLine,
		RunID:     runID,
		AgentName: agentName,
		Message:   message,
	})
}

// failedReport synthesizes the terminal report for runs that never started
// an iteration loop.
func (r *Runner) failedReport(runID, agentName string, started time.Time, reason string) *models.SubAgentReport {
	finished := time.Now()
	return &models.SubAgentReport{
		RunID:     runID,
		AgentName: agentName,
		Status:    models.ReportFailed,
		Metrics: models.RunMetrics{
			DurationMS: finished.Sub(started).Milliseconds(),
			Errors:     []string{reason},
		},
		StartedAt:  started,
		FinishedAt: finished,
	}
}

// buildUserPrompt renders the task and its context into the opening message.
func buildUserPrompt(req *models.DelegationRequest) string {
	var sb strings.Builder
	sb.WriteString(req.Task)

	if req.Context.Cwd != "" {
		sb.WriteString("\n\nWorking directory: ")
		sb.WriteString(req.Context.Cwd)
	}
	if len(req.Context.Files) > 0 {
		sb.WriteString("\n\nRelevant files:\n")
		for _, file := range req.Context.Files {
			sb.WriteString(fmt.Sprintf("- %s\n", file))
		}
	}
	if len(req.Context.Metadata) > 0 {
		keys := make([]string, 0, len(req.Context.Metadata))
		for key := range req.Context.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		sb.WriteString("\nAdditional context:\n")
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", key, req.Context.Metadata[key]))
		}
	}

	return sb.String()
}

// summarize produces the report summary from the final output.
func summarize(output string) string {
	line := firstLine(output)
	if len(line) > 200 {
		return line[:200] + "..."
	}
	return line
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
