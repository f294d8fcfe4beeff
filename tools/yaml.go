package tools

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a tool descriptor from YAML. Schema fields accept
// either a JSON string (block scalar) or a native YAML mapping, which is
// converted to its JSON form.
func (d *ToolDescriptor) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name         string    `yaml:"name"`
		Description  string    `yaml:"description"`
		InputSchema  yaml.Node `yaml:"input_schema"`
		OutputSchema yaml.Node `yaml:"output_schema"`
		TimeoutMs    int       `yaml:"timeout_ms"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	inputSchema, err := schemaNodeToJSON(&raw.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: input_schema: %w", raw.Name, err)
	}
	outputSchema, err := schemaNodeToJSON(&raw.OutputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: output_schema: %w", raw.Name, err)
	}

	d.Name = raw.Name
	d.Description = raw.Description
	d.InputSchema = inputSchema
	d.OutputSchema = outputSchema
	d.TimeoutMs = raw.TimeoutMs
	return nil
}

// schemaNodeToJSON converts a YAML schema node to a JSON document.
func schemaNodeToJSON(node *yaml.Node) (json.RawMessage, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind == yaml.ScalarNode {
		// Already JSON text
		return json.RawMessage(node.Value), nil
	}
	var value any
	if err := node.Decode(&value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
