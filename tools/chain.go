package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AltairaLabs/EvalKit/logger"
)

// schemaDoc is the minimal parsed view of a JSON schema needed for static
// chain compatibility checking. Runtime validation still goes through the
// full gojsonschema validator; this structural view is deliberately
// independent of any validation library.
type schemaDoc struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

// ChainValidator checks and executes ordered tool chains against a registry.
type ChainValidator struct {
	registry   *Registry
	transforms map[string][]FieldTransform // key: "from>to" tool pair
}

// NewChainValidator creates a chain validator over the given registry.
func NewChainValidator(registry *Registry) *ChainValidator {
	return &ChainValidator{
		registry:   registry,
		transforms: make(map[string][]FieldTransform),
	}
}

// DeclareTransform records that fromTool's output field transform.From
// satisfies toTool's input field transform.To during compatibility checks.
func (cv *ChainValidator) DeclareTransform(fromTool, toTool string, transform FieldTransform) {
	key := pairKey(fromTool, toTool)
	cv.transforms[key] = append(cv.transforms[key], transform)
}

// ValidateChain checks every adjacent pair of the named chain: each field the
// downstream input schema marks required must exist among the upstream
// output schema's properties (directly or via a declared transform).
// Incompatibilities are data, never errors; the returned error is reserved
// for unknown tools and unparsable schemas.
func (cv *ChainValidator) ValidateChain(names []string) ([]Incompatibility, error) {
	var incompatibilities []Incompatibility

	for i := 0; i+1 < len(names); i++ {
		upstream, err := cv.registry.Get(names[i])
		if err != nil {
			return nil, err
		}
		downstream, err := cv.registry.Get(names[i+1])
		if err != nil {
			return nil, err
		}

		outDoc, err := parseSchemaDoc(upstream.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("cannot parse output schema of %s: %w", upstream.Name, err)
		}
		inDoc, err := parseSchemaDoc(downstream.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("cannot parse input schema of %s: %w", downstream.Name, err)
		}

		satisfied := make(map[string]bool, len(outDoc.Properties))
		for field := range outDoc.Properties {
			satisfied[field] = true
		}
		for _, transform := range cv.transforms[pairKey(upstream.Name, downstream.Name)] {
			if satisfied[transform.From] {
				satisfied[transform.To] = true
			}
		}

		for _, required := range inDoc.Required {
			if !satisfied[required] {
				incompatibilities = append(incompatibilities, Incompatibility{
					Index:        i,
					FromTool:     upstream.Name,
					ToTool:       downstream.Name,
					MissingField: required,
				})
			}
		}
	}

	return incompatibilities, nil
}

// ExecuteChain re-validates the static chain, then executes each tool in
// order: the current value is validated against the tool's input schema,
// the tool runs, its raw result is validated against the output schema, and
// the validated output feeds forward as the next input.
//
// Any failure halts the chain but the steps gathered so far are always
// preserved in the result for diagnosis.
func (cv *ChainValidator) ExecuteChain(ctx context.Context, names []string, initialInput json.RawMessage) (*ChainResult, error) {
	incompatibilities, err := cv.ValidateChain(names)
	if err != nil {
		return nil, err
	}
	if len(incompatibilities) > 0 {
		return &ChainResult{
			Success: false,
			Error:   fmt.Sprintf("chain is statically incompatible: %v", incompatibilities),
		}, nil
	}

	result := &ChainResult{Success: true}
	current := initialInput

	for _, name := range names {
		descriptor, err := cv.registry.Get(name)
		if err != nil {
			return nil, err
		}
		if descriptor.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler bound", name)
		}

		step := ChainStep{Tool: name, Input: current}

		if err := cv.registry.Validator().ValidateArgs(descriptor, current); err != nil {
			step.Error = fmt.Sprintf("invalid input for %s: %v", name, err)
			result.Steps = append(result.Steps, step)
			result.Success = false
			result.Error = step.Error
			return result, nil
		}

		start := time.Now()
		toolResult, err := descriptor.Handler(ctx, current)
		step.LatencyMs = time.Since(start).Milliseconds()

		if err != nil {
			// Infrastructure failure short-circuits the chain; partial
			// step list is preserved.
			step.Error = fmt.Sprintf("execution failed: %v", err)
			result.Steps = append(result.Steps, step)
			result.Success = false
			result.Error = step.Error
			logger.ToolExecution(name, false, step.LatencyMs, "error", err.Error())
			return result, nil
		}

		if !toolResult.Success {
			step.Error = toolResult.Error
			result.Steps = append(result.Steps, step)
			result.Success = false
			result.Error = fmt.Sprintf("tool %s reported failure: %s", name, toolResult.Error)
			return result, nil
		}

		if err := cv.registry.Validator().ValidateResult(descriptor, toolResult.Data); err != nil {
			step.Error = fmt.Sprintf("invalid output from %s: %v", name, err)
			result.Steps = append(result.Steps, step)
			result.Success = false
			result.Error = step.Error
			return result, nil
		}

		step.Success = true
		step.Output = toolResult.Data
		result.Steps = append(result.Steps, step)
		logger.ToolExecution(name, true, step.LatencyMs)

		current = toolResult.Data
	}

	result.FinalOutput = current
	return result, nil
}

// parseSchemaDoc extracts properties and required fields from a schema.
func parseSchemaDoc(schema json.RawMessage) (*schemaDoc, error) {
	var doc schemaDoc
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func pairKey(from, to string) string {
	return from + ">" + to
}
