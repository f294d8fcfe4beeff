package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator handles JSON schema validation for tool inputs and outputs.
// Compiled schemas are cached by document text. Safe for concurrent use.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// ValidateArgs validates tool arguments against the input schema.
// Structural failures come back as *ValidationError.
func (sv *SchemaValidator) ValidateArgs(descriptor *ToolDescriptor, args json.RawMessage) error {
	schema, err := sv.getSchema(string(descriptor.InputSchema))
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %s: %w", descriptor.Name, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", descriptor.Name, err)
	}

	if !result.Valid() {
		return &ValidationError{
			Type:   "args_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("argument validation failed: %v", describeErrors(result)),
		}
	}

	return nil
}

// ValidateResult validates a tool result against the output schema.
func (sv *SchemaValidator) ValidateResult(descriptor *ToolDescriptor, result json.RawMessage) error {
	schema, err := sv.getSchema(string(descriptor.OutputSchema))
	if err != nil {
		return fmt.Errorf("invalid output schema for tool %s: %w", descriptor.Name, err)
	}

	validationResult, err := schema.Validate(gojsonschema.NewBytesLoader(result))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", descriptor.Name, err)
	}

	if !validationResult.Valid() {
		return &ValidationError{
			Type:   "result_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("result validation failed: %v", describeErrors(validationResult)),
		}
	}

	return nil
}

// CompileCheck compiles both schemas of a descriptor, surfacing malformed
// schema documents at registration time instead of first execution.
func (sv *SchemaValidator) CompileCheck(descriptor *ToolDescriptor) error {
	if _, err := sv.getSchema(string(descriptor.InputSchema)); err != nil {
		return &ValidationError{
			Type:   "schema_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("input schema does not compile: %v", err),
		}
	}
	if _, err := sv.getSchema(string(descriptor.OutputSchema)); err != nil {
		return &ValidationError{
			Type:   "schema_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("output schema does not compile: %v", err),
		}
	}
	return nil
}

// getSchema retrieves or compiles a JSON schema.
func (sv *SchemaValidator) getSchema(schemaJSON string) (*gojsonschema.Schema, error) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if schema, exists := sv.cache[schemaJSON]; exists {
		return schema, nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}

	sv.cache[schemaJSON] = schema
	return schema, nil
}

// describeErrors flattens gojsonschema result errors into strings.
func describeErrors(result *gojsonschema.Result) []string {
	errors := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errors[i] = desc.String()
	}
	return errors
}
