// Package providers defines the generation-service contract consumed by the
// testing framework and the deterministic substitute client used in tests.
//
// A production backend and the MockProvider are interchangeable behind the
// Provider interface: harnesses, statistical runners, and golden-set runners
// depend only on this contract and never on a concrete backend.
package providers

import (
	"context"
	"time"

	"github.com/AltairaLabs/EvalKit/types"
)

// GenerateConfig carries optional generation parameters.
type GenerateConfig struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	Seed        *int    `json:"seed,omitempty"`
}

// ChatRequest represents a request to a chat provider.
type ChatRequest struct {
	System      string          `json:"system"`
	Messages    []types.Message `json:"messages"`
	Temperature float32         `json:"temperature"`
	TopP        float32         `json:"top_p"`
	MaxTokens   int             `json:"max_tokens"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// ChatResponse represents a response from a chat provider.
type ChatResponse struct {
	Content   string                  `json:"content"`
	ToolCalls []types.MessageToolCall `json:"tool_calls,omitempty"`
	Latency   time.Duration           `json:"latency"`
}

// Provider interface defines the contract for generation backends.
// All calls take a context so blocking operations stay cancellable.
type Provider interface {
	ID() string

	// Generate produces text for a single prompt.
	Generate(ctx context.Context, prompt string, cfg *GenerateConfig) (string, error)

	// Chat produces a response for an ordered message history.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Close cleans up provider resources.
	Close() error
}
