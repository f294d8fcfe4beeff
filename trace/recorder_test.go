package trace

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/EvalKit/tools"
)

func TestAppendAndEvents(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "agent", json.RawMessage(`{"q": "hi"}`))
	r.Append(EventResult, "agent", json.RawMessage(`{"a": "hello"}`))

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventCall, events[0].Type)
	assert.Equal(t, EventResult, events[1].Type)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.False(t, events[1].Timestamp.Before(events[0].Timestamp))
}

func TestEventsReturnsCopy(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "agent", nil)

	events := r.Events()
	events[0].Actor = "mutated"
	assert.Equal(t, "agent", r.Events()[0].Actor)
}

func TestWrapHandlerRecordsCallAndResult(t *testing.T) {
	r := NewRecorder()
	handler := r.WrapHandler("search", func(_ context.Context, args json.RawMessage) (*tools.ToolResult, error) {
		return &tools.ToolResult{Success: true, Data: json.RawMessage(`{"hits": 3}`)}, nil
	})

	_, err := handler(context.Background(), json.RawMessage(`{"q": "go"}`))
	require.NoError(t, err)

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventCall, events[0].Type)
	assert.Equal(t, "search", events[0].Actor)
	assert.Equal(t, EventResult, events[1].Type)
}

func TestWrapHandlerRecordsHandoff(t *testing.T) {
	r := NewRecorder()
	handler := r.WrapHandler("triage", func(_ context.Context, _ json.RawMessage) (*tools.ToolResult, error) {
		return &tools.ToolResult{Success: true, Data: json.RawMessage(`{"handoff_to": "billing", "note": "invoice"}`)}, nil
	})

	_, err := handler(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventHandoff, events[2].Type)
	assert.Contains(t, string(events[2].Payload), "billing")
}

func TestWrapHandlerTargetFieldAlsoHandsOff(t *testing.T) {
	r := NewRecorder()
	handler := r.WrapHandler("router", func(_ context.Context, _ json.RawMessage) (*tools.ToolResult, error) {
		return &tools.ToolResult{Success: true, Data: json.RawMessage(`{"target": "support"}`)}, nil
	})

	_, err := handler(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Len(t, r.Events(), 3)
}

func TestWrapHandlerRecordsErrors(t *testing.T) {
	r := NewRecorder()
	handler := r.WrapHandler("flaky", func(_ context.Context, _ json.RawMessage) (*tools.ToolResult, error) {
		return nil, errors.New("timeout")
	})

	_, err := handler(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)

	events := r.Events()
	require.Len(t, events, 2)
	assert.Contains(t, string(events[1].Payload), "timeout")
}

func TestWrapToolDoesNotModifyOriginal(t *testing.T) {
	r := NewRecorder()
	original := &tools.ToolDescriptor{
		Name: "echo",
		Handler: func(_ context.Context, args json.RawMessage) (*tools.ToolResult, error) {
			return &tools.ToolResult{Success: true, Data: args}, nil
		},
	}
	wrapped := r.WrapTool(original)

	_, err := wrapped.Handler(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	// Original handler untouched: calling it records nothing new
	_, err = original.Handler(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRecord(t *testing.T) {
	r := NewRecorder()
	out, err := r.Record("agent", "question", func() (string, error) {
		return "answer", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	events := r.Events()
	require.Len(t, events, 2)
	assert.Contains(t, string(events[0].Payload), "question")
	assert.Contains(t, string(events[1].Payload), "answer")
}

func TestAssertCalledWith(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "a", json.RawMessage(`{"query": "weather in Lisbon"}`))

	assert.NoError(t, r.AssertCalledWith("Lisbon"))
	assert.Error(t, r.AssertCalledWith("Porto"))
}

func TestAssertCallOrder(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "fetch", nil)
	r.Append(EventResult, "fetch", nil)
	r.Append(EventCall, "parse", nil)
	r.Append(EventCall, "save", nil)

	assert.NoError(t, r.AssertCallOrder([]string{"fetch", "parse", "save"}))
	assert.NoError(t, r.AssertCallOrder([]string{"fetch", "save"}))
	assert.Error(t, r.AssertCallOrder([]string{"save", "fetch"}))
}

func TestAssertCalledTimes(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "a", nil)
	r.Append(EventCall, "a", nil)
	r.Append(EventResult, "a", nil) // results don't count
	r.Append(EventCall, "b", nil)

	assert.NoError(t, r.AssertCalledTimes("a", 2))
	assert.NoError(t, r.AssertCalledTimes("b", 1))
	assert.Error(t, r.AssertCalledTimes("a", 3))
}

func TestCallRecordsPairCallsWithResults(t *testing.T) {
	r := NewRecorder()
	handler := r.WrapHandler("search", func(_ context.Context, _ json.RawMessage) (*tools.ToolResult, error) {
		return &tools.ToolResult{Success: true, Data: json.RawMessage(`{"hits": 3}`)}, nil
	})
	flaky := r.WrapHandler("flaky", func(_ context.Context, _ json.RawMessage) (*tools.ToolResult, error) {
		return nil, errors.New("timeout")
	})

	_, err := handler(context.Background(), json.RawMessage(`{"q": "go"}`))
	require.NoError(t, err)
	_, err = flaky(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)

	records := r.CallRecords()
	require.Len(t, records, 2)

	assert.Equal(t, "search", records[0].Name)
	assert.JSONEq(t, `{"q": "go"}`, string(records[0].Args))
	assert.JSONEq(t, `{"hits": 3}`, string(records[0].Result))
	assert.Empty(t, records[0].Error)
	assert.False(t, records[0].Timestamp.IsZero())

	assert.Equal(t, "flaky", records[1].Name)
	assert.Equal(t, "timeout", records[1].Error)
	assert.Empty(t, records[1].Result)
}

func TestCallRecordsOpenCallHasNoResult(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "pending", json.RawMessage(`{"q": 1}`))

	records := r.CallRecords()
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Result)
	assert.Empty(t, records[0].Error)
}

func TestStatsCountsCallsByActor(t *testing.T) {
	r := NewRecorder()
	r.Append(EventCall, "search", nil)
	r.Append(EventResult, "search", nil) // results don't count
	r.Append(EventCall, "search", nil)
	r.Append(EventCall, "store", nil)

	stats := r.Stats()
	assert.Equal(t, 3, stats.TotalCalls)
	assert.Equal(t, 2, stats.ByTool["search"])
	assert.Equal(t, 1, stats.ByTool["store"])
}

func TestConcurrentAppends(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Append(EventCall, "worker", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
