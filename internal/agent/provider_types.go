package agent

import (
	"context"
	"encoding/json"

	"github.com/sagehq/sage/pkg/models"
	"github.com/sagehq/sage/pkg/proto"
)

// LLMProvider defines the interface for Large Language Model backends.
//
// Implementations of this interface handle the specifics of communicating with
// different LLM APIs (Anthropic, OpenAI, Google, etc.) while presenting a
// unified streaming interface to the agent loop.
//
// Implementations must be safe for concurrent use. Multiple goroutines may
// call Complete() simultaneously for different requests.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []Model

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Model specifies which LLM model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt that sets the assistant's behavior.
	System string `json:"system,omitempty"`

	// Messages contains the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools defines available tools/functions the LLM can request to execute.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the maximum length of the generated response.
	// If 0 or negative, the provider's default is used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// EnableThinking enables extended thinking mode for supported models.
	EnableThinking bool `json:"enable_thinking,omitempty"`

	// ThinkingBudgetTokens sets the token budget for extended thinking.
	// Only used when EnableThinking is true.
	ThinkingBudgetTokens int `json:"thinking_budget_tokens,omitempty"`
}

// CompletionMessage represents a single message in a conversation handed to
// an LLMProvider. Role values: "user", "assistant", "system", "tool".
type CompletionMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// CompletionChunk represents a single chunk in a streaming LLM response.
//
// Chunks are delivered through channels as the LLM generates its response.
// Each chunk may contain partial text, a complete tool call, a thinking
// fragment, a done signal, or an error.
type CompletionChunk struct {
	// Text contains partial response text, streamed incrementally.
	Text string `json:"text,omitempty"`

	// ToolCall contains a complete tool execution request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done is true when the stream has completed successfully.
	Done bool `json:"done,omitempty"`

	// Error contains any error that occurred; streaming is terminated.
	Error error `json:"-"`

	// Thinking contains reasoning text when extended thinking is enabled.
	Thinking string `json:"thinking,omitempty"`

	// ThinkingStart signals the beginning of a thinking block.
	ThinkingStart bool `json:"thinking_start,omitempty"`

	// ThinkingEnd signals the end of a thinking block.
	ThinkingEnd bool `json:"thinking_end,omitempty"`

	// InputTokens is the number of input tokens consumed by this request.
	// Only populated on the final chunk.
	InputTokens int `json:"input_tokens,omitempty"`

	// OutputTokens is the number of output tokens generated by this response.
	// Only populated on the final chunk.
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Model describes an available LLM model and its capabilities.
type Model struct {
	// ID is the API identifier for the model (e.g. "claude-sonnet-4-20250514").
	ID string `json:"id"`

	// Name is the human-readable model name.
	Name string `json:"name"`

	// ContextSize is the maximum token context window.
	ContextSize int `json:"context_size"`

	// SupportsVision indicates if the model can process images.
	SupportsVision bool `json:"supports_vision"`
}

// Tool defines the interface for executable agent tools.
//
// Implementing a Tool:
//
//	type Calculator struct{}
//
//	func (c *Calculator) Name() string { return "calculator" }
//	func (c *Calculator) Description() string { return "Performs calculations" }
//	func (c *Calculator) Schema() json.RawMessage {
//	    return json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}}}`)
//	}
//	func (c *Calculator) RiskLevel() proto.RiskLevel { return proto.RiskLevel_RISK_LEVEL_LOW }
//	func (c *Calculator) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
//	    ...
//	}
type Tool interface {
	// Name returns the tool name for LLM function calling. Must be a valid
	// function name (alphanumeric, underscores).
	Name() string

	// Description returns a natural-language description of what the tool
	// does, used by the LLM to decide when to invoke it.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// RiskLevel classifies how destructive this tool's default action is.
	// ApprovalChecker uses it as the fallback decision (allow low, ask
	// medium, deny high/critical) when no allow/deny/require_approval rule
	// already resolved the call.
	RiskLevel() proto.RiskLevel

	// Execute runs the tool with the given JSON parameters, matching Schema().
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution.
//
// Results are sent back to the LLM, which uses them to formulate its final
// response. Errors are communicated via ToolResult with IsError=true so the
// LLM can handle failures gracefully rather than aborting the turn.
type ToolResult struct {
	// Content is the tool's output (text, JSON, etc.)
	Content string `json:"content"`

	// IsError indicates this result represents an error condition.
	IsError bool `json:"is_error,omitempty"`

	// Artifacts contains any files/media produced by the tool. These are
	// converted to message attachments when sent to channels.
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Metadata carries structured detail alongside Content: error_kind on
	// failures, violation_type for sandbox rejections, truncated for
	// oversized output. Propagated into models.ToolResult.Metadata when the
	// loop persists the result.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Artifact represents a file or media produced by a tool execution.
type Artifact struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ToolEventStore persists tool calls and results for audit, replay, and
// analytics. Optional: a nil store means tool events are not persisted
// separately from messages.
type ToolEventStore interface {
	AddToolCall(ctx context.Context, sessionID, messageID string, call *models.ToolCall) error
	AddToolResult(ctx context.Context, sessionID, messageID string, call *models.ToolCall, result *models.ToolResult) error
}

// ResponseChunk represents a streaming response chunk from the agent loop.
// Each chunk may carry text, tool results, tool events, runtime events, or
// an error; consumers should switch on the populated fields.
type ResponseChunk struct {
	Text          string               `json:"text,omitempty"`
	Thinking      string               `json:"thinking,omitempty"`
	ThinkingStart bool                 `json:"thinking_start,omitempty"`
	ThinkingEnd   bool                 `json:"thinking_end,omitempty"`
	ToolResult    *models.ToolResult   `json:"tool_result,omitempty"`
	ToolEvent     *models.ToolEvent    `json:"tool_event,omitempty"`
	Event         *models.RuntimeEvent `json:"event,omitempty"`
	Error         error                `json:"-"`

	// Artifacts contains any files/media produced by tool executions during
	// this chunk. These should be converted to message attachments when
	// sending to channels.
	Artifacts []Artifact `json:"artifacts,omitempty"`
}
