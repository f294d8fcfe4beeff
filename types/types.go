// Package types defines the canonical message and tool types shared by the
// testing framework. These are the wire shapes exchanged with a generation
// backend and recorded by harnesses; every other package consumes them.
package types

import (
	"encoding/json"
	"time"
)

// Message represents a single message in a conversation.
// This is the canonical message type used throughout the framework.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant", "tool"
	Content string `json:"content"` // Message content

	// Tool invocations (for assistant messages that call tools)
	ToolCalls []MessageToolCall `json:"tool_calls,omitempty"`

	// Tool result (for tool role messages)
	ToolResult *MessageToolResult `json:"tool_result,omitempty"`

	// Metadata for observability and post-hoc assertions
	Timestamp time.Time      `json:"timestamp,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// MessageToolCall represents a request to call a tool within a Message.
// The Args field contains the JSON-encoded arguments for the tool.
type MessageToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// MessageToolResult represents the result of a tool execution in a Message.
// When embedded in Message, the Message.Role should be "tool".
type MessageToolResult struct {
	ID        string `json:"id"`   // References the MessageToolCall.ID that triggered this result
	Name      string `json:"name"` // Tool name that was executed
	Content   string `json:"content"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// ToolCallRecord captures one tool invocation for eval and trace consumers.
type ToolCallRecord struct {
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ToolStats tracks tool usage statistics across a run.
type ToolStats struct {
	TotalCalls int            `json:"total_calls"`
	ByTool     map[string]int `json:"by_tool"`
}

// Sample pairs an input with a generated output, optionally scored.
// Statistical runners and human evaluation both consume this shape.
type Sample struct {
	Input  string   `json:"input"`
	Output string   `json:"output"`
	Score  *float64 `json:"score,omitempty"`
}
