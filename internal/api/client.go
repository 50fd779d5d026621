// Package api provides the Anthropic-backed model client posse agents run
// against, plus the circuit breaker that guards it.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/posse/internal/runner"
	"github.com/ShayCichocki/posse/pkg/models"
)

// defaultMaxTokens caps a single response when the request leaves it unset.
const defaultMaxTokens = 8192

// Client implements the model invocation surface on the Anthropic SDK with
// token tracking. It is safe for concurrent use.
type Client struct {
	inner   anthropic.Client
	model   anthropic.Model
	bedrock bool
	tracker *TokenTracker
}

var _ runner.ModelClient = (*Client)(nil)

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the default model identifier; empty selects Sonnet.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &Client{
		inner:   anthropic.NewClient(opts...),
		model:   model,
		bedrock: cfg.UseAWSBedrock,
		tracker: NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock
// inference profile format (us.anthropic.{model}-v1:0).
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}

	// Not in the map: might already be Bedrock format or a custom model.
	return model
}

// Model returns the configured default model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// resolveModel picks the per-request model hint over the default, translating
// for Bedrock when needed.
func (c *Client) resolveModel(hint string) anthropic.Model {
	if hint == "" {
		return c.model
	}
	model := anthropic.Model(hint)
	if c.bedrock && !strings.HasPrefix(hint, "us.anthropic") {
		model = translateModelForBedrock(model)
	}
	return model
}

// Chat sends one turn and blocks until the full response is available.
func (c *Client) Chat(ctx context.Context, req runner.ModelRequest) (*runner.ModelResponse, error) {
	resp, err := c.inner.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}
	return c.parseMessage(resp)
}

// Stream sends one turn and invokes onChunk for each text fragment as it
// arrives, then returns the assembled response.
func (c *Client) Stream(ctx context.Context, req runner.ModelRequest, onChunk func(chunk string)) (*runner.ModelResponse, error) {
	stream := c.inner.Messages.NewStreaming(ctx, c.buildParams(req))

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream event: %w", err)
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if onChunk != nil && deltaVariant.Text != "" {
					onChunk(deltaVariant.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("streaming call failed: %w", err)
	}

	return c.parseMessage(&message)
}

func (c *Client) buildParams(req runner.ModelRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.resolveModel(req.Model),
		MaxTokens: maxTokens,
		Messages:  toMessageParams(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

// parseMessage converts an SDK message into the neutral response type and
// records its token usage.
func (c *Client) parseMessage(msg *anthropic.Message) (*runner.ModelResponse, error) {
	resp := &runner.ModelResponse{
		StopReason: string(msg.StopReason),
		TokensIn:   msg.Usage.InputTokens,
		TokensOut:  msg.Usage.OutputTokens,
	}
	c.tracker.Add(msg.Usage.InputTokens, msg.Usage.OutputTokens)

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			call := models.ToolCall{
				ID:   variant.ID,
				Name: variant.Name,
			}
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &call.Input); err != nil {
					return nil, fmt.Errorf("decode input for tool %s: %w", variant.Name, err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, call)
		}
	}
	return resp, nil
}

// toMessageParams converts neutral conversation turns to SDK params. Tool
// traffic keeps its correlation IDs so the API can pair calls with results.
func toMessageParams(messages []models.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Input, call.Name))
		}
		for _, result := range msg.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(result.ToolCallID, result.Content, result.IsError))
		}
		if len(blocks) == 0 {
			continue
		}
		if msg.Role == models.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(blocks...))
		} else {
			params = append(params, anthropic.NewUserMessage(blocks...))
		}
	}
	return params
}

// toToolParams converts neutral tool schemas to SDK tool params.
func toToolParams(tools []models.ToolDef) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		params[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Properties,
					Required:   tool.Required,
				},
			},
		}
	}
	return params
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}

// Cost estimates the cost in USD based on current Claude pricing.
// This uses approximate pricing and should be updated as pricing changes.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Sonnet pricing: $3/1M input, $15/1M output (approximate)
	inputCost := float64(t.inputTok) / 1_000_000 * 3.0
	outputCost := float64(t.outputTok) / 1_000_000 * 15.0
	return inputCost + outputCost
}
