package tools

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgsValid(t *testing.T) {
	sv := NewSchemaValidator()
	descriptor := &ToolDescriptor{
		Name:         "weather",
		InputSchema:  objectSchema(map[string]string{"city": "string"}, "city"),
		OutputSchema: objectSchema(nil),
	}

	err := sv.ValidateArgs(descriptor, json.RawMessage(`{"city": "Lisbon"}`))
	assert.NoError(t, err)
}

func TestValidateArgsInvalid(t *testing.T) {
	sv := NewSchemaValidator()
	descriptor := &ToolDescriptor{
		Name:         "weather",
		InputSchema:  objectSchema(map[string]string{"city": "string"}, "city"),
		OutputSchema: objectSchema(nil),
	}

	err := sv.ValidateArgs(descriptor, json.RawMessage(`{"city": 42}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "args_invalid", validationErr.Type)
	assert.Equal(t, "weather", validationErr.Tool)
}

func TestValidateResultInvalid(t *testing.T) {
	sv := NewSchemaValidator()
	descriptor := &ToolDescriptor{
		Name:         "weather",
		InputSchema:  objectSchema(nil),
		OutputSchema: objectSchema(map[string]string{"temp": "number"}, "temp"),
	}

	err := sv.ValidateResult(descriptor, json.RawMessage(`{"temp": "warm"}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "result_invalid", validationErr.Type)
}

func TestSchemaCaching(t *testing.T) {
	sv := NewSchemaValidator()
	descriptor := &ToolDescriptor{
		Name:         "cached",
		InputSchema:  objectSchema(map[string]string{"a": "string"}),
		OutputSchema: objectSchema(nil),
	}

	require.NoError(t, sv.ValidateArgs(descriptor, json.RawMessage(`{"a": "x"}`)))
	require.NoError(t, sv.ValidateArgs(descriptor, json.RawMessage(`{"a": "y"}`)))
	assert.Len(t, sv.cache, 1)
}

func TestCompileCheck(t *testing.T) {
	sv := NewSchemaValidator()

	good := &ToolDescriptor{
		Name:         "good",
		InputSchema:  objectSchema(nil),
		OutputSchema: objectSchema(nil),
	}
	assert.NoError(t, sv.CompileCheck(good))

	bad := &ToolDescriptor{
		Name:         "bad",
		InputSchema:  json.RawMessage(`{"type":`),
		OutputSchema: objectSchema(nil),
	}
	err := sv.CompileCheck(bad)
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "schema_invalid", validationErr.Type)
}
