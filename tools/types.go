// Package tools provides the tool registry and chain validation machinery
// used when testing tool-using agent pipelines.
//
// This package implements:
//   - Tool descriptor registry with JSON Schema validation
//   - Static chain compatibility checking (output schema vs. input schema)
//   - Chain execution with per-step input/output validation
//   - Descriptor loading from YAML/JSON files
//
// Business failures (schema mismatches, handler-reported errors) are result
// values, never Go errors; raised errors denote infrastructure failure.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes a tool. Validation failures must be reported through
// ToolResult.Success=false and ToolResult.Error; a returned error denotes
// infrastructure failure, not business failure.
type Handler func(ctx context.Context, args json.RawMessage) (*ToolResult, error)

// ToolDescriptor represents a normalized tool definition.
// InputSchema and OutputSchema are JSON Schema Draft-07 documents.
type ToolDescriptor struct {
	Name         string          `json:"name" yaml:"name"`
	Description  string          `json:"description" yaml:"description"`
	InputSchema  json.RawMessage `json:"input_schema" yaml:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema" yaml:"output_schema"`
	TimeoutMs    int             `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`

	// Handler is the execution function. Descriptors loaded from files have
	// no handler until one is attached via Registry.Bind.
	Handler Handler `json:"-" yaml:"-"`
}

// ToolResult represents the result of a tool execution.
// Exactly one of Data/Error is populated when Success is true/false.
type ToolResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OkResult builds a successful ToolResult from any JSON-marshalable value.
func OkResult(data any) (*ToolResult, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &ToolResult{Success: true, Data: raw}, nil
}

// FailResult builds a failed ToolResult with the given business error.
func FailResult(format string, args ...any) *ToolResult {
	return &ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ValidationError represents a tool validation failure.
type ValidationError struct {
	Type   string `json:"type"` // "args_invalid" | "result_invalid" | "schema_invalid"
	Tool   string `json:"tool"`
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s validation error (%s): %s", e.Tool, e.Type, e.Detail)
}

// Incompatibility describes one static mismatch between adjacent chain tools:
// a required field of the downstream input schema that nothing in the
// upstream output schema satisfies.
type Incompatibility struct {
	Index        int    `json:"index"` // position of the upstream tool in the chain
	FromTool     string `json:"from_tool"`
	ToTool       string `json:"to_tool"`
	MissingField string `json:"missing_field"`
}

// String renders the incompatibility for diagnostics.
func (i Incompatibility) String() string {
	return fmt.Sprintf("%s -> %s: downstream requires field %q not produced upstream",
		i.FromTool, i.ToTool, i.MissingField)
}

// FieldTransform declares that an upstream output field satisfies a
// differently named downstream input field.
type FieldTransform struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ChainStep records one executed step of a chain.
type ChainStep struct {
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output,omitempty"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// ChainResult is the outcome of ExecuteChain. Steps always holds every step
// executed so far, including the failing one, so partial results survive for
// diagnosis.
type ChainResult struct {
	Success     bool            `json:"success"`
	Steps       []ChainStep     `json:"steps"`
	FinalOutput json.RawMessage `json:"final_output,omitempty"`
	Error       string          `json:"error,omitempty"`
}
