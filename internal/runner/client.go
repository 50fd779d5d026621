package runner

import (
	"context"

	"github.com/ShayCichocki/posse/pkg/models"
)

// Stop reasons a ModelClient reports.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// ModelRequest is one conversational turn sent to the model.
type ModelRequest struct {
	// Model is the model identifier, empty for the client's default.
	Model string
	// SystemPrompt is the agent definition's system prompt.
	SystemPrompt string
	// Messages is the conversation so far.
	Messages []models.Message
	// Tools is the schema set the model may call.
	Tools []models.ToolDef
	// MaxTokens caps the response size, 0 for the client's default.
	MaxTokens int
	// Temperature overrides sampling temperature when non-nil.
	Temperature *float64
}

// ModelResponse is the model's reply to one request.
type ModelResponse struct {
	// Content is the concatenated text output of the turn.
	Content string
	// ToolCalls are the tool invocations the model requested, in order.
	ToolCalls []models.ToolCall
	// StopReason is why the turn ended (end_turn, tool_use, max_tokens).
	StopReason string
	// TokensIn and TokensOut are the usage numbers for this turn.
	TokensIn  int64
	TokensOut int64
}

// ModelClient abstracts the model provider. The production implementation
// lives in internal/api; tests script this interface directly.
type ModelClient interface {
	// Chat sends one turn and blocks until the full response is available.
	Chat(ctx context.Context, req ModelRequest) (*ModelResponse, error)
	// Stream sends one turn and invokes onChunk for each text fragment as
	// it arrives, then returns the assembled response.
	Stream(ctx context.Context, req ModelRequest, onChunk func(chunk string)) (*ModelResponse, error)
}
