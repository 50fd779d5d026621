package models

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message from the delegating side.
	RoleUser Role = "user"
	// RoleAssistant is a message from the model.
	RoleAssistant Role = "assistant"
)

// Message is one turn in a model conversation. The engine speaks these
// neutral types; the provider adapter converts them to SDK params.
type Message struct {
	// Role is the message author.
	Role Role `json:"role"`
	// Content is the text content, empty when the turn is tool traffic only.
	Content string `json:"content,omitempty"`
	// ToolCalls are tool invocations requested by an assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolResults are results answering a prior assistant turn's calls.
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	// ID correlates the call with its result.
	ID string `json:"id"`
	// Name is the tool to invoke.
	Name string `json:"name"`
	// Input is the decoded argument object.
	Input map[string]any `json:"input,omitempty"`
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	// ToolCallID correlates back to the originating call.
	ToolCallID string `json:"tool_call_id"`
	// Content is the textual result handed back to the model.
	Content string `json:"content"`
	// IsError marks the result as a failure description.
	IsError bool `json:"is_error,omitempty"`
}

// ToolDef describes one tool to the model: name, purpose, and a JSON-schema
// style parameter object.
type ToolDef struct {
	// Name is the canonical tool name.
	Name string `json:"name"`
	// Description tells the model what the tool does.
	Description string `json:"description"`
	// Properties is the JSON-schema properties object for the input.
	Properties map[string]any `json:"properties"`
	// Required lists the property names the model must supply.
	Required []string `json:"required,omitempty"`
}
