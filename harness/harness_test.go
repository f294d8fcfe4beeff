package harness

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/EvalKit/providers"
	"github.com/AltairaLabs/EvalKit/tools"
)

// summarizer is a small agent: one provider call, one tool call.
func summarizerFactory(provider providers.Provider, registry *tools.Registry) Agent {
	return AgentFunc(func(ctx context.Context, input string) (string, error) {
		summary, err := provider.Generate(ctx, "Summarize: "+input, nil)
		if err != nil {
			return "", err
		}
		result, err := registry.Execute(ctx, "store", json.RawMessage(`{"text": `+strconv(summary)+`}`))
		if err != nil {
			return "", err
		}
		if !result.Success {
			return "", errors.New(result.Error)
		}
		return summary, nil
	})
}

func strconv(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func storeTool() *tools.ToolDescriptor {
	return &tools.ToolDescriptor{
		Name:         "store",
		Description:  "stores a summary",
		InputSchema:  json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}}, "required": ["text"]}`),
		OutputSchema: json.RawMessage(`{"type": "object", "properties": {"stored": {"type": "boolean"}}}`),
		Handler: func(_ context.Context, _ json.RawMessage) (*tools.ToolResult, error) {
			return tools.OkResult(map[string]bool{"stored": true})
		},
	}
}

func TestExecuteSuccess(t *testing.T) {
	h, err := New(summarizerFactory, WithTools(storeTool()))
	require.NoError(t, err)
	h.Provider().SetResponse("Summarize", "a short summary")

	result := h.Execute(context.Background(), "a very long document")

	assert.True(t, result.Success)
	assert.Equal(t, "a short summary", result.Output)
	assert.Equal(t, 1, result.ProviderCalls)
	assert.NotEmpty(t, result.RunID)

	// Trace holds the agent call plus the tracked tool call
	h.Recorder().RequireCallOrder(t, []string{"agent", "store"})
	h.Recorder().RequireCalledTimes(t, "store", 1)
	h.Recorder().RequireCalledWith(t, "a short summary")
}

func TestExecuteReportsToolStats(t *testing.T) {
	h, err := New(summarizerFactory, WithTools(storeTool()))
	require.NoError(t, err)
	h.Provider().SetResponse("Summarize", "a short summary")

	result := h.Execute(context.Background(), "a very long document")
	require.True(t, result.Success)

	require.NotNil(t, result.ToolStats)
	assert.Equal(t, 2, result.ToolStats.TotalCalls) // agent + store
	assert.Equal(t, 1, result.ToolStats.ByTool["store"])
	assert.Equal(t, 1, result.ToolStats.ByTool["agent"])
}

func TestExecuteMissingFixtureFails(t *testing.T) {
	h, err := New(summarizerFactory, WithTools(storeTool()))
	require.NoError(t, err)
	// No fixtures registered: the provider call must fail loudly

	result := h.Execute(context.Background(), "anything")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unregistered call")
	// Partial trace still present: the agent call event was recorded
	require.NotEmpty(t, result.Events)
}

func TestExecuteAgentErrorCaptured(t *testing.T) {
	h, err := New(func(providers.Provider, *tools.Registry) Agent {
		return AgentFunc(func(context.Context, string) (string, error) {
			return "", errors.New("agent exploded")
		})
	})
	require.NoError(t, err)

	result := h.Execute(context.Background(), "in")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "agent exploded")
}

func TestExecuteAgentPanicCaptured(t *testing.T) {
	h, err := New(func(providers.Provider, *tools.Registry) Agent {
		return AgentFunc(func(context.Context, string) (string, error) {
			panic("nil map write")
		})
	})
	require.NoError(t, err)

	result := h.Execute(context.Background(), "in")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "agent panicked")
}

func TestExecuteCountsProviderCallsPerRun(t *testing.T) {
	h, err := New(func(p providers.Provider, _ *tools.Registry) Agent {
		return AgentFunc(func(ctx context.Context, input string) (string, error) {
			_, _ = p.Generate(ctx, "first "+input, nil)
			return p.Generate(ctx, "second "+input, nil)
		})
	})
	require.NoError(t, err)
	h.Provider().SetResponse("", "ok")

	first := h.Execute(context.Background(), "x")
	second := h.Execute(context.Background(), "y")

	assert.Equal(t, 2, first.ProviderCalls)
	assert.Equal(t, 2, second.ProviderCalls)
}

func TestWithProviderOption(t *testing.T) {
	custom := providers.NewMockProvider("custom")
	custom.SetResponse("", "canned")

	h, err := New(func(p providers.Provider, _ *tools.Registry) Agent {
		return AgentFunc(func(ctx context.Context, input string) (string, error) {
			return p.Generate(ctx, input, nil)
		})
	}, WithProvider(custom))
	require.NoError(t, err)

	result := h.Execute(context.Background(), "hello")
	assert.True(t, result.Success)
	assert.Equal(t, "canned", result.Output)
	assert.Same(t, custom, h.Provider())
}
