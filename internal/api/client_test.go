package api

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/posse/pkg/models"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{
		APIKey: "test-key-123",
		Model:  "claude-sonnet-4-5-20250929",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_5_20250929 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_5_20250929)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClient_WithEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-test-key")

	if _, err := NewClient(ClientConfig{}); err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewClient(ClientConfig{})
	if err == nil {
		t.Fatal("NewClient should fail without API key")
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_5_20250929 {
		t.Errorf("default model = %q", client.Model())
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		name  string
		model anthropic.Model
		want  anthropic.Model
	}{
		{
			name:  "sonnet 4.5",
			model: anthropic.ModelClaudeSonnet4_5_20250929,
			want:  "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		},
		{
			name:  "haiku 3.5",
			model: anthropic.ModelClaude3_5Haiku20241022,
			want:  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		},
		{
			name:  "already bedrock format",
			model: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
			want:  "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		},
		{
			name:  "unknown model passes through",
			model: "custom-model",
			want:  "custom-model",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateModelForBedrock(tt.model); got != tt.want {
				t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestResolveModel(t *testing.T) {
	client := &Client{model: anthropic.ModelClaudeSonnet4_5_20250929}

	if got := client.resolveModel(""); got != anthropic.ModelClaudeSonnet4_5_20250929 {
		t.Errorf("empty hint = %q, want the default", got)
	}
	if got := client.resolveModel("claude-haiku-4-5-20251001"); got != "claude-haiku-4-5-20251001" {
		t.Errorf("hint = %q, want the hint verbatim", got)
	}

	client.bedrock = true
	if got := client.resolveModel(string(anthropic.ModelClaude3_5Haiku20241022)); got != "us.anthropic.claude-3-5-haiku-20241022-v1:0" {
		t.Errorf("bedrock hint = %q, want translated", got)
	}
}

func TestToMessageParams(t *testing.T) {
	params := toMessageParams([]models.Message{
		{Role: models.RoleUser, Content: "review this"},
		{Role: models.RoleAssistant, Content: "checking", ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "read_file", Input: map[string]any{"path": "main.go"}},
		}},
		{Role: models.RoleUser, ToolResults: []models.ToolResult{
			{ToolCallID: "call-1", Content: "package main"},
		}},
		{Role: models.RoleUser}, // empty turns are dropped
	})

	if len(params) != 3 {
		t.Fatalf("got %d message params, want 3", len(params))
	}
	wantRoles := []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
	}
	wantBlocks := []int{1, 2, 1}
	for i, param := range params {
		if param.Role != wantRoles[i] {
			t.Errorf("params[%d].Role = %q, want %q", i, param.Role, wantRoles[i])
		}
		if len(param.Content) != wantBlocks[i] {
			t.Errorf("params[%d] has %d blocks, want %d", i, len(param.Content), wantBlocks[i])
		}
	}
}

func TestToToolParams(t *testing.T) {
	params := toToolParams([]models.ToolDef{
		{
			Name:        "grep",
			Description: "Search file contents",
			Properties: map[string]any{
				"pattern": map[string]any{"type": "string"},
			},
			Required: []string{"pattern"},
		},
	})

	if len(params) != 1 {
		t.Fatalf("got %d tool params, want 1", len(params))
	}
	tool := params[0].OfTool
	if tool == nil {
		t.Fatal("OfTool is nil")
	}
	if tool.Name != "grep" {
		t.Errorf("Name = %q, want grep", tool.Name)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "pattern" {
		t.Errorf("Required = %v", tool.InputSchema.Required)
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 75)

	input, output := tracker.Total()
	if input != 300 || output != 125 {
		t.Errorf("Total() = %d, %d, want 300, 125", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tracker.Calls())
	}
	if tracker.Cost() <= 0 {
		t.Errorf("Cost() = %f, want positive", tracker.Cost())
	}

	tracker.Reset()
	input, output = tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 {
		t.Errorf("after Reset: %d, %d, %d calls", input, output, tracker.Calls())
	}
}
