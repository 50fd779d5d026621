package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/posse/internal/events"
	"github.com/ShayCichocki/posse/pkg/models"
)

type fakeResolver map[string]*models.AgentDefinition

func (r fakeResolver) Get(name string) (*models.AgentDefinition, bool) {
	def, ok := r[name]
	return def, ok
}

type clientStep struct {
	resp *ModelResponse
	err  error
}

// scriptedClient replays a fixed sequence of responses and records every
// request it receives.
type scriptedClient struct {
	mu       sync.Mutex
	steps    []clientStep
	requests []ModelRequest
	streamed bool
}

func (c *scriptedClient) next(req ModelRequest) (*ModelResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.steps) == 0 {
		return nil, fmt.Errorf("script exhausted after %d calls", len(c.requests)-1)
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	return step.resp, step.err
}

func (c *scriptedClient) Chat(_ context.Context, req ModelRequest) (*ModelResponse, error) {
	return c.next(req)
}

func (c *scriptedClient) Stream(_ context.Context, req ModelRequest, onChunk func(string)) (*ModelResponse, error) {
	c.mu.Lock()
	c.streamed = true
	c.mu.Unlock()
	resp, err := c.next(req)
	if err == nil && resp.Content != "" && onChunk != nil {
		half := len(resp.Content) / 2
		onChunk(resp.Content[:half])
		onChunk(resp.Content[half:])
	}
	return resp, err
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// blockingClient waits for the context to expire on every call.
type blockingClient struct{}

func (blockingClient) Chat(ctx context.Context, _ ModelRequest) (*ModelResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingClient) Stream(ctx context.Context, _ ModelRequest, _ func(string)) (*ModelResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeInvoker returns canned results per tool name and records invocations.
type fakeInvoker struct {
	mu      sync.Mutex
	results map[string]*models.ToolResult
	err     error
	invoked []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, _ map[string]any) (*models.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.invoked = append(f.invoked, name)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		if result, ok := f.results[name]; ok {
			return result, nil
		}
	}
	return &models.ToolResult{Content: "ok"}, nil
}

func (f *fakeInvoker) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invoked...)
}

// blockingInvoker waits for the context to expire on every call.
type blockingInvoker struct{}

func (blockingInvoker) Invoke(ctx context.Context, _ string, _ map[string]any) (*models.ToolResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testDef(name string, tools []string) *models.AgentDefinition {
	return &models.AgentDefinition{
		Name:          name,
		Description:   "test agent",
		Model:         "claude-sonnet-4-5",
		SystemPrompt:  "You are " + name + ".",
		Enabled:       true,
		MaxIterations: 3,
		Tools:         tools,
	}
}

func textResponse(content string) *ModelResponse {
	return &ModelResponse{Content: content, StopReason: StopEndTurn, TokensIn: 10, TokensOut: 20}
}

func toolResponse(content string, calls ...models.ToolCall) *ModelResponse {
	return &ModelResponse{Content: content, ToolCalls: calls, StopReason: StopToolUse, TokensIn: 10, TokensOut: 20}
}

func collectToolEvents(bus *events.Bus) *[]events.Event {
	var got []events.Event
	bus.Subscribe(events.TopicTool, func(e events.Event) {
		got = append(got, e)
	})
	return &got
}

func TestRunner_SingleTurnSuccess(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: textResponse("All checks passed.\nNo issues found.")},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  &fakeInvoker{},
	})

	req := &models.DelegationRequest{
		AgentName: "reviewer",
		Task:      "review the diff",
		Context: models.TaskContext{
			Cwd:      "/tmp/project",
			Files:    []string{"main.go"},
			Metadata: map[string]string{"branch": "feature/login"},
		},
	}
	report, err := r.RunWithID(context.Background(), "run-1", req)
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	if report.Status != models.ReportSuccess {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportSuccess)
	}
	if report.RunID != "run-1" {
		t.Errorf("RunID = %q, want %q", report.RunID, "run-1")
	}
	if report.AgentName != "reviewer" {
		t.Errorf("AgentName = %q, want %q", report.AgentName, "reviewer")
	}
	if report.Output != "All checks passed.\nNo issues found." {
		t.Errorf("Output = %q", report.Output)
	}
	if report.Summary != "All checks passed." {
		t.Errorf("Summary = %q, want first line of output", report.Summary)
	}
	if report.Metrics.TokensUsed != 30 {
		t.Errorf("TokensUsed = %d, want 30", report.Metrics.TokensUsed)
	}
	if report.Metrics.ToolCalls != 0 || len(report.Metrics.Errors) != 0 {
		t.Errorf("ToolCalls = %d, Errors = %v, want clean run", report.Metrics.ToolCalls, report.Metrics.Errors)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("FinishedAt precedes StartedAt")
	}

	if client.calls() != 1 {
		t.Fatalf("client calls = %d, want 1", client.calls())
	}
	sent := client.requests[0]
	if sent.Model != "claude-sonnet-4-5" {
		t.Errorf("request Model = %q", sent.Model)
	}
	if sent.SystemPrompt != "You are reviewer." {
		t.Errorf("request SystemPrompt = %q", sent.SystemPrompt)
	}
	if len(sent.Messages) != 1 {
		t.Fatalf("request Messages = %d, want 1", len(sent.Messages))
	}
	prompt := sent.Messages[0].Content
	for _, want := range []string{"review the diff", "/tmp/project", "main.go", "branch: feature/login"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if len(sent.Tools) == 0 {
		t.Error("nil whitelist should offer the full tool catalog")
	}
}

func TestRunner_ToolLoop(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("", models.ToolCall{ID: "call-1", Name: "read_file", Input: map[string]any{"path": "main.go"}})},
		{resp: textResponse("The file defines main().")},
	}}
	invoker := &fakeInvoker{results: map[string]*models.ToolResult{
		"read_file": {Content: "package main"},
	}}
	bus := events.NewBus()
	defer bus.Close()
	toolEvents := collectToolEvents(bus)

	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  invoker,
		Bus:      bus,
	})
	report, err := r.RunWithID(context.Background(), "run-2", &models.DelegationRequest{AgentName: "reviewer", Task: "describe main.go"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	if report.Status != models.ReportSuccess {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportSuccess)
	}
	if report.Metrics.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", report.Metrics.ToolCalls)
	}
	if len(report.Metrics.ToolsUsed) != 1 || report.Metrics.ToolsUsed[0] != "read_file" {
		t.Errorf("ToolsUsed = %v, want [read_file]", report.Metrics.ToolsUsed)
	}
	if got := invoker.invocations(); len(got) != 1 || got[0] != "read_file" {
		t.Errorf("invoked = %v, want [read_file]", got)
	}

	if client.calls() != 2 {
		t.Fatalf("client calls = %d, want 2", client.calls())
	}
	second := client.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("second request Messages = %d, want 3", len(second.Messages))
	}
	results := second.Messages[2].ToolResults
	if len(results) != 1 || results[0].ToolCallID != "call-1" {
		t.Fatalf("tool results = %+v, want one result for call-1", results)
	}
	if results[0].IsError || results[0].Content != "package main" {
		t.Errorf("tool result = %+v, want clean content", results[0])
	}

	if len(*toolEvents) != 2 {
		t.Fatalf("tool events = %d, want started and completed", len(*toolEvents))
	}
	if (*toolEvents)[0].Type != events.ToolStarted || (*toolEvents)[1].Type != events.ToolCompleted {
		t.Errorf("event types = %q, %q", (*toolEvents)[0].Type, (*toolEvents)[1].Type)
	}
}

func TestRunner_DeniedToolDegradesToPartial(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("", models.ToolCall{ID: "call-1", Name: "write_file", Input: map[string]any{"path": "out.txt"}})},
		{resp: textResponse("Could not write the file, summarizing instead.")},
	}}
	invoker := &fakeInvoker{}
	bus := events.NewBus()
	defer bus.Close()
	toolEvents := collectToolEvents(bus)

	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", []string{"read_file"})},
		Client:   client,
		Invoker:  invoker,
		Bus:      bus,
	})
	report, err := r.RunWithID(context.Background(), "run-3", &models.DelegationRequest{AgentName: "reviewer", Task: "write a summary file"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	if report.Status != models.ReportPartial {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportPartial)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "tool not permitted: write_file") {
		t.Errorf("Errors = %v, want a tool not permitted entry", report.Metrics.Errors)
	}
	if report.Metrics.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1 (denied attempts still count)", report.Metrics.ToolCalls)
	}
	if len(report.Metrics.ToolsUsed) != 0 {
		t.Errorf("ToolsUsed = %v, want empty", report.Metrics.ToolsUsed)
	}
	if got := invoker.invocations(); len(got) != 0 {
		t.Errorf("invoked = %v, denied call must never reach the executor", got)
	}

	second := client.requests[1]
	results := second.Messages[2].ToolResults
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("tool results = %+v, want one error result fed back", results)
	}
	if len(*toolEvents) != 1 || (*toolEvents)[0].Type != events.ToolDenied {
		t.Fatalf("tool events = %+v, want a single denied event", *toolEvents)
	}
}

func TestRunner_DeniedToolWithoutOutputFails(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("", models.ToolCall{ID: "call-1", Name: "bash", Input: map[string]any{"command": "rm -rf /"}})},
		{resp: &ModelResponse{StopReason: StopEndTurn}},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", []string{})},
		Client:   client,
		Invoker:  &fakeInvoker{},
	})
	report, err := r.RunWithID(context.Background(), "run-4", &models.DelegationRequest{AgentName: "reviewer", Task: "clean up"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportFailed {
		t.Errorf("Status = %q, want %q when no output survives", report.Status, models.ReportFailed)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "tool not permitted") {
		t.Errorf("Errors = %v", report.Metrics.Errors)
	}
}

func TestRunner_ToolErrorResultKeepsRunAlive(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("", models.ToolCall{ID: "call-1", Name: "read_file", Input: map[string]any{"path": "gone.go"}})},
		{resp: textResponse("The file does not exist.")},
	}}
	invoker := &fakeInvoker{results: map[string]*models.ToolResult{
		"read_file": {Content: "read file gone.go: no such file", IsError: true},
	}}
	bus := events.NewBus()
	defer bus.Close()
	toolEvents := collectToolEvents(bus)

	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  invoker,
		Bus:      bus,
	})
	report, err := r.RunWithID(context.Background(), "run-5", &models.DelegationRequest{AgentName: "reviewer", Task: "read gone.go"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	// A failed tool is the model's problem to react to, not a run error.
	if report.Status != models.ReportSuccess {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportSuccess)
	}
	if len(report.Metrics.Errors) != 0 {
		t.Errorf("Errors = %v, want none", report.Metrics.Errors)
	}
	if len(report.Metrics.ToolsUsed) != 1 || report.Metrics.ToolsUsed[0] != "read_file" {
		t.Errorf("ToolsUsed = %v, executed-but-failed tools still count", report.Metrics.ToolsUsed)
	}
	if len(*toolEvents) != 2 || (*toolEvents)[1].Type != events.ToolFailed {
		t.Fatalf("tool events = %+v, want started then failed", *toolEvents)
	}
}

func TestRunner_UnknownToolFedBack(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("", models.ToolCall{ID: "call-1", Name: "teleport", Input: nil})},
		{resp: textResponse("That tool is unavailable.")},
	}}
	invoker := &fakeInvoker{err: fmt.Errorf("unknown tool %q", "teleport")}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  invoker,
	})
	report, err := r.RunWithID(context.Background(), "run-6", &models.DelegationRequest{AgentName: "reviewer", Task: "teleport somewhere"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportSuccess {
		t.Errorf("Status = %q, want run to survive an undispatchable tool", report.Status)
	}
	results := client.requests[1].Messages[2].ToolResults
	if len(results) != 1 || !results[0].IsError || !strings.Contains(results[0].Content, "unknown tool") {
		t.Errorf("tool results = %+v, want the dispatch failure fed back", results)
	}
}

func TestRunner_TimeoutPreservesPartialOutput(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("Partial analysis so far.", models.ToolCall{ID: "call-1", Name: "read_file", Input: map[string]any{"path": "main.go"}})},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  blockingInvoker{},
	})
	req := &models.DelegationRequest{
		AgentName: "reviewer",
		Task:      "analyze",
		Options:   models.DelegationOptions{Timeout: 40 * time.Millisecond},
	}
	report, err := r.RunWithID(context.Background(), "run-7", req)
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	if report.Status != models.ReportFailed {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportFailed)
	}
	if report.Output != "Partial analysis so far." {
		t.Errorf("Output = %q, partial output must survive the timeout", report.Output)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "run timed out") {
		t.Errorf("Errors = %v, want a timeout entry", report.Metrics.Errors)
	}
}

func TestRunner_TimeoutDuringModelCall(t *testing.T) {
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   blockingClient{},
		Invoker:  &fakeInvoker{},
	})
	req := &models.DelegationRequest{
		AgentName: "reviewer",
		Task:      "analyze",
		Options:   models.DelegationOptions{Timeout: 30 * time.Millisecond},
	}
	report, err := r.RunWithID(context.Background(), "run-8", req)
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportFailed {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportFailed)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "run timed out") {
		t.Errorf("Errors = %v, want a timeout entry", report.Metrics.Errors)
	}
}

func TestRunner_CancellationIsNotATimeout(t *testing.T) {
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   blockingClient{},
		Invoker:  &fakeInvoker{},
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	report, err := r.RunWithID(ctx, "run-9", &models.DelegationRequest{AgentName: "reviewer", Task: "analyze"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportFailed {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportFailed)
	}
	if len(report.Metrics.Errors) != 1 || report.Metrics.Errors[0] != "run cancelled" {
		t.Errorf("Errors = %v, want [run cancelled]", report.Metrics.Errors)
	}
}

func TestRunner_ModelRetryThenSuccess(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{err: fmt.Errorf("upstream 529")},
		{resp: textResponse("Recovered.")},
	}}
	r := New(Config{
		Resolver:       fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:         client,
		Invoker:        &fakeInvoker{},
		RetryBaseDelay: time.Millisecond,
	})
	report, err := r.RunWithID(context.Background(), "run-10", &models.DelegationRequest{AgentName: "reviewer", Task: "analyze"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportSuccess {
		t.Errorf("Status = %q, want %q after a successful retry", report.Status, models.ReportSuccess)
	}
	if client.calls() != 2 {
		t.Errorf("client calls = %d, want 2", client.calls())
	}
}

func TestRunner_ModelFailureExhaustsRetries(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{err: fmt.Errorf("upstream 500")},
		{err: fmt.Errorf("upstream 500")},
	}}
	r := New(Config{
		Resolver:       fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:         client,
		Invoker:        &fakeInvoker{},
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	})
	report, err := r.RunWithID(context.Background(), "run-11", &models.DelegationRequest{AgentName: "reviewer", Task: "analyze"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportFailed {
		t.Errorf("Status = %q, want %q", report.Status, models.ReportFailed)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "model call failed after 2 attempts") {
		t.Errorf("Errors = %v, want an exhausted-retries entry", report.Metrics.Errors)
	}
}

func TestRunner_MaxIterationsExhausted(t *testing.T) {
	def := testDef("reviewer", nil)
	def.MaxIterations = 2
	call := models.ToolCall{ID: "call-1", Name: "read_file", Input: map[string]any{"path": "main.go"}}
	client := &scriptedClient{steps: []clientStep{
		{resp: toolResponse("Still reading.", call)},
		{resp: toolResponse("Still reading.", call)},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": def},
		Client:   client,
		Invoker:  &fakeInvoker{},
	})
	report, err := r.RunWithID(context.Background(), "run-12", &models.DelegationRequest{AgentName: "reviewer", Task: "analyze"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	if report.Status != models.ReportPartial {
		t.Errorf("Status = %q, want %q (output exists alongside the bound error)", report.Status, models.ReportPartial)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "max iterations reached (2)") {
		t.Errorf("Errors = %v, want a max iterations entry", report.Metrics.Errors)
	}
	if report.Metrics.ToolCalls != 2 {
		t.Errorf("ToolCalls = %d, want 2", report.Metrics.ToolCalls)
	}
	if client.calls() != 2 {
		t.Errorf("client calls = %d, want 2", client.calls())
	}
}

func TestRunner_ResolutionFailures(t *testing.T) {
	disabled := testDef("archivist", nil)
	disabled.Enabled = false
	resolver := fakeResolver{"archivist": disabled}

	tests := []struct {
		name      string
		agentName string
		wantErr   string
	}{
		{name: "unknown agent", agentName: "ghost", wantErr: "agent not found"},
		{name: "disabled agent", agentName: "archivist", wantErr: "agent disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{Resolver: resolver, Client: &scriptedClient{}, Invoker: &fakeInvoker{}})
			report, err := r.RunWithID(context.Background(), "run-13", &models.DelegationRequest{AgentName: tt.agentName, Task: "do work"})
			if err != nil {
				t.Fatalf("RunWithID() error = %v, resolution failures must report in-band", err)
			}
			if report.Status != models.ReportFailed {
				t.Errorf("Status = %q, want %q", report.Status, models.ReportFailed)
			}
			if report.AgentName != tt.agentName {
				t.Errorf("AgentName = %q, want %q", report.AgentName, tt.agentName)
			}
			if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], tt.wantErr) {
				t.Errorf("Errors = %v, want entry containing %q", report.Metrics.Errors, tt.wantErr)
			}
		})
	}
}

func TestRunner_RequestContractViolations(t *testing.T) {
	consumed := &models.DelegationRequest{AgentName: "reviewer", Task: "t"}
	consumed.Consume()

	tests := []struct {
		name string
		req  *models.DelegationRequest
	}{
		{name: "nil request", req: nil},
		{name: "missing task", req: &models.DelegationRequest{AgentName: "reviewer"}},
		{name: "negative timeout", req: &models.DelegationRequest{AgentName: "reviewer", Task: "t", Options: models.DelegationOptions{Timeout: -time.Second}}},
		{name: "already consumed", req: consumed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{
				Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
				Client:   &scriptedClient{steps: []clientStep{{resp: textResponse("ok")}}},
				Invoker:  &fakeInvoker{},
			})
			report, err := r.RunWithID(context.Background(), "run-14", tt.req)
			if err == nil {
				t.Fatal("RunWithID() error = nil, want contract violation")
			}
			if report != nil {
				t.Errorf("report = %+v, want nil on contract violation", report)
			}
		})
	}
}

func TestRunner_ExactlyOneReportPerRequest(t *testing.T) {
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   &scriptedClient{steps: []clientStep{{resp: textResponse("done")}}},
		Invoker:  &fakeInvoker{},
	})
	req := &models.DelegationRequest{AgentName: "reviewer", Task: "t"}

	first, err := r.RunWithID(context.Background(), "run-15", req)
	if err != nil || first == nil {
		t.Fatalf("first RunWithID() = %v, %v", first, err)
	}
	second, err := r.RunWithID(context.Background(), "run-16", req)
	if err == nil || second != nil {
		t.Fatalf("second RunWithID() = %v, %v, want rejection of the consumed request", second, err)
	}
}

func TestRunner_TruncatedResponseDegrades(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: &ModelResponse{Content: "Partial answer", StopReason: StopMaxTokens, TokensIn: 10, TokensOut: 20}},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  &fakeInvoker{},
	})
	report, err := r.RunWithID(context.Background(), "run-17", &models.DelegationRequest{AgentName: "reviewer", Task: "t"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if report.Status != models.ReportPartial {
		t.Errorf("Status = %q, want %q for a truncated response", report.Status, models.ReportPartial)
	}
	if len(report.Metrics.Errors) != 1 || !strings.Contains(report.Metrics.Errors[0], "max_tokens") {
		t.Errorf("Errors = %v", report.Metrics.Errors)
	}
}

func TestRunner_StreamHandler(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: textResponse("Hello world")},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reviewer": testDef("reviewer", nil)},
		Client:   client,
		Invoker:  &fakeInvoker{},
	})

	var mu sync.Mutex
	var chunks []string
	r.SetStreamHandler(func(runID, chunk string) {
		mu.Lock()
		defer mu.Unlock()
		chunks = append(chunks, chunk)
	})

	report, err := r.RunWithID(context.Background(), "run-18", &models.DelegationRequest{AgentName: "reviewer", Task: "t"})
	if err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}
	if !client.streamed {
		t.Error("client Chat used, want Stream when a handler is set")
	}
	if report.Output != "Hello world" {
		t.Errorf("Output = %q", report.Output)
	}
	mu.Lock()
	joined := strings.Join(chunks, "")
	mu.Unlock()
	if joined != "Hello world" {
		t.Errorf("streamed chunks = %q, want full output", joined)
	}
}

func TestRunner_WhitelistNarrowsCatalog(t *testing.T) {
	client := &scriptedClient{steps: []clientStep{
		{resp: textResponse("done")},
	}}
	r := New(Config{
		Resolver: fakeResolver{"reader": testDef("reader", []string{"read_file", "grep"})},
		Client:   client,
		Invoker:  &fakeInvoker{},
	})
	if _, err := r.RunWithID(context.Background(), "run-19", &models.DelegationRequest{AgentName: "reader", Task: "t"}); err != nil {
		t.Fatalf("RunWithID() error = %v", err)
	}

	sent := client.requests[0]
	if len(sent.Tools) != 2 {
		t.Fatalf("tools offered = %d, want 2", len(sent.Tools))
	}
	names := []string{sent.Tools[0].Name, sent.Tools[1].Name}
	for _, name := range names {
		if name != "read_file" && name != "grep" {
			t.Errorf("unexpected tool offered: %q", name)
		}
	}
}

var _ ModelClient = (*scriptedClient)(nil)
var _ ModelClient = blockingClient{}
