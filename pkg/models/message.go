package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in a session's ordered conversation.
type Message struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`

	// BranchID identifies the conversation branch this message belongs to.
	// Empty for sessions that do not use branch-aware storage.
	BranchID string `json:"branch_id,omitempty"`

	// SequenceNum orders messages within a branch; assigned by the branch store.
	SequenceNum int64 `json:"sequence_num,omitempty"`
}

// Attachment represents a file or media attachment.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // image, audio, video, document
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`

	// Attachments carries files/media a tool produced, rendered as message
	// attachments alongside the tool result.
	Attachments []Attachment `json:"attachments,omitempty"`

	// ExecutionTimeMS is how long the tool took to run, when measured by
	// the caller. Zero means unmeasured, not "instant".
	ExecutionTimeMS int64 `json:"execution_time_ms,omitempty"`

	// Metadata carries structured, tool-specific detail alongside Content:
	// error_kind on failures (see the error taxonomy), violation_type for
	// sandbox rejections, truncated for oversized output, and any
	// tool-defined keys. Never required for correctness of the loop itself.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionStatus tracks the lifecycle of an agent run bound to a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// TokenUsage tracks cumulative token consumption for a session. Callers
// should only ever add to these counters; they must never decrease.
type TokenUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Cached int64 `json:"cached"`
}

// Total returns the sum of all tracked token categories.
func (u TokenUsage) Total() int64 {
	return u.Input + u.Output + u.Cached
}

// Add accumulates another usage reading into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.Cached += other.Cached
}

// Session represents one agent task's persistent state: the unit of
// persistence and resume (spec §3).
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`

	// WorkingDirectory is the workspace the agent loop executed tools
	// against for this session.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Provider and Model identify which LLM client and model served this
	// session's turns. Model may change across a run if the fallback chain
	// advanced to a different entry; this records the session's current one.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// TokenUsage is the running total of tokens consumed by this session.
	TokenUsage TokenUsage `json:"token_usage,omitempty"`

	// Status reflects whether the session's agent run is still active.
	Status SessionStatus `json:"status,omitempty"`
}
