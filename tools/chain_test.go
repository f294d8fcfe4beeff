package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// objectSchema builds a simple draft-07 object schema for tests.
func objectSchema(properties map[string]string, required ...string) json.RawMessage {
	props := make(map[string]any, len(properties))
	for name, typ := range properties {
		props[name] = map[string]any{"type": typ}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, _ := json.Marshal(doc)
	return raw
}

func echoHandler(_ context.Context, args json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Success: true, Data: args}, nil
}

func registerTool(t *testing.T, r *Registry, name string, in, out json.RawMessage, h Handler) {
	t.Helper()
	require.NoError(t, r.Register(&ToolDescriptor{
		Name:         name,
		Description:  name + " test tool",
		InputSchema:  in,
		OutputSchema: out,
		Handler:      h,
	}))
}

func TestValidateChainMissingField(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "A",
		objectSchema(map[string]string{"q": "string"}),
		objectSchema(map[string]string{"x": "string"}),
		echoHandler)
	registerTool(t, r, "B",
		objectSchema(map[string]string{"x": "string", "y": "number"}, "x", "y"),
		objectSchema(map[string]string{"z": "string"}),
		echoHandler)

	cv := NewChainValidator(r)
	incompatibilities, err := cv.ValidateChain([]string{"A", "B"})
	require.NoError(t, err)

	require.Len(t, incompatibilities, 1)
	assert.Equal(t, 0, incompatibilities[0].Index)
	assert.Equal(t, "A", incompatibilities[0].FromTool)
	assert.Equal(t, "B", incompatibilities[0].ToTool)
	assert.Equal(t, "y", incompatibilities[0].MissingField)
}

func TestValidateChainReportsFailureRegardlessOfLaterTools(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "X",
		objectSchema(nil),
		objectSchema(map[string]string{"a": "string"}),
		echoHandler)
	registerTool(t, r, "Y",
		objectSchema(map[string]string{"a": "string", "b": "string"}, "b"),
		objectSchema(map[string]string{"c": "string"}),
		echoHandler)
	registerTool(t, r, "Z",
		objectSchema(map[string]string{"c": "string"}, "c"),
		objectSchema(map[string]string{"d": "string"}),
		echoHandler)

	cv := NewChainValidator(r)
	incompatibilities, err := cv.ValidateChain([]string{"X", "Y", "Z"})
	require.NoError(t, err)

	require.Len(t, incompatibilities, 1)
	assert.Equal(t, 0, incompatibilities[0].Index)
	assert.Equal(t, "b", incompatibilities[0].MissingField)
}

func TestValidateChainCompatible(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "fetch",
		objectSchema(map[string]string{"url": "string"}, "url"),
		objectSchema(map[string]string{"body": "string"}),
		echoHandler)
	registerTool(t, r, "parse",
		objectSchema(map[string]string{"body": "string"}, "body"),
		objectSchema(map[string]string{"title": "string"}),
		echoHandler)

	cv := NewChainValidator(r)
	incompatibilities, err := cv.ValidateChain([]string{"fetch", "parse"})
	require.NoError(t, err)
	assert.Empty(t, incompatibilities)
}

func TestValidateChainDeclaredTransform(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "A",
		objectSchema(nil),
		objectSchema(map[string]string{"text": "string"}),
		echoHandler)
	registerTool(t, r, "B",
		objectSchema(map[string]string{"content": "string"}, "content"),
		objectSchema(map[string]string{"out": "string"}),
		echoHandler)

	cv := NewChainValidator(r)
	incompatibilities, err := cv.ValidateChain([]string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, incompatibilities, 1)

	cv.DeclareTransform("A", "B", FieldTransform{From: "text", To: "content"})
	incompatibilities, err = cv.ValidateChain([]string{"A", "B"})
	require.NoError(t, err)
	assert.Empty(t, incompatibilities)
}

func TestValidateChainUnknownTool(t *testing.T) {
	cv := NewChainValidator(NewRegistry())
	_, err := cv.ValidateChain([]string{"ghost", "also-ghost"})
	assert.Error(t, err)
}

func TestExecuteChainFeedsOutputForward(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "double",
		objectSchema(map[string]string{"n": "number"}, "n"),
		objectSchema(map[string]string{"n": "number"}, "n"),
		func(_ context.Context, args json.RawMessage) (*ToolResult, error) {
			var in struct {
				N float64 `json:"n"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return OkResult(map[string]float64{"n": in.N * 2})
		})

	cv := NewChainValidator(r)
	result, err := cv.ExecuteChain(context.Background(), []string{"double", "double"}, json.RawMessage(`{"n": 3}`))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Steps, 2)

	var out struct {
		N float64 `json:"n"`
	}
	require.NoError(t, json.Unmarshal(result.FinalOutput, &out))
	assert.Equal(t, 12.0, out.N)
}

func TestExecuteChainPreservesPartialSteps(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "fetch",
		objectSchema(map[string]string{"url": "string"}, "url"),
		objectSchema(map[string]string{"body": "string"}, "body"),
		func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return OkResult(map[string]string{"body": "payload"})
		})
	registerTool(t, r, "transform",
		objectSchema(map[string]string{"body": "string"}, "body"),
		objectSchema(map[string]string{"body": "string"}, "body"),
		func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return nil, errors.New("boom")
		})
	registerTool(t, r, "save",
		objectSchema(map[string]string{"body": "string"}, "body"),
		objectSchema(map[string]string{"ok": "boolean"}),
		echoHandler)

	cv := NewChainValidator(r)
	result, err := cv.ExecuteChain(context.Background(), []string{"fetch", "transform", "save"}, json.RawMessage(`{"url": "http://example.com"}`))
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Success)
	assert.False(t, result.Steps[1].Success)
	assert.Contains(t, result.Steps[1].Error, "boom")
}

func TestExecuteChainInvalidInput(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "strict",
		objectSchema(map[string]string{"x": "string"}, "x"),
		objectSchema(nil),
		echoHandler)

	cv := NewChainValidator(r)
	result, err := cv.ExecuteChain(context.Background(), []string{"strict"}, json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Error, "invalid input for strict")
}

func TestExecuteChainInvalidOutput(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "liar",
		objectSchema(nil),
		objectSchema(map[string]string{"count": "number"}, "count"),
		func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return OkResult(map[string]string{"count": "not a number"})
		})

	cv := NewChainValidator(r)
	result, err := cv.ExecuteChain(context.Background(), []string{"liar"}, json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Error, "invalid output from liar")
}

func TestExecuteChainStaticIncompatibility(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "A",
		objectSchema(nil),
		objectSchema(map[string]string{"x": "string"}),
		echoHandler)
	registerTool(t, r, "B",
		objectSchema(map[string]string{"y": "string"}, "y"),
		objectSchema(nil),
		echoHandler)

	cv := NewChainValidator(r)
	result, err := cv.ExecuteChain(context.Background(), []string{"A", "B"}, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Steps)
	assert.Contains(t, result.Error, "statically incompatible")
}

func TestExecuteChainBusinessFailureHalts(t *testing.T) {
	r := NewRegistry()
	registerTool(t, r, "validator",
		objectSchema(nil),
		objectSchema(nil),
		func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return FailResult("input rejected: %s", "too short"), nil
		})

	cv := NewChainValidator(r)
	result, err := cv.ExecuteChain(context.Background(), []string{"validator"}, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "input rejected")
}
