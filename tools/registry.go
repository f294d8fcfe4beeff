package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
)

// Registry manages tool descriptors and executes individual tools with
// schema validation on both sides of the call.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*ToolDescriptor
	validator *SchemaValidator
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]*ToolDescriptor),
		validator: NewSchemaValidator(),
	}
}

// Register adds a tool descriptor to the registry.
// Both schemas must compile; malformed schemas are rejected here so they
// cannot surface later as confusing mid-chain failures.
func (r *Registry) Register(descriptor *ToolDescriptor) error {
	if descriptor.Name == "" {
		return fmt.Errorf("cannot register tool with empty name")
	}
	if err := r.validator.CompileCheck(descriptor); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[descriptor.Name] = descriptor
	return nil
}

// Bind attaches a handler to an already registered descriptor.
// Descriptors loaded from files arrive without handlers.
func (r *Registry) Bind(name string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	descriptor, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("unknown tool: %q", name)
	}
	descriptor.Handler = handler
	return nil
}

// Get returns the descriptor for the given tool name.
func (r *Registry) Get(name string) (*ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptor, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %q", name)
	}
	return descriptor, nil
}

// Has returns true when a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the sorted names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validator exposes the registry's schema validator for chain execution.
func (r *Registry) Validator() *SchemaValidator {
	return r.validator
}

// Execute runs a single tool: validates args against the input schema,
// invokes the handler, and validates successful results against the output
// schema. Validation failures are returned as failed ToolResults; a non-nil
// error means infrastructure failure (missing handler, handler panic path).
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	descriptor, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if descriptor.Handler == nil {
		return nil, fmt.Errorf("tool %q has no handler bound", name)
	}

	if err := r.validator.ValidateArgs(descriptor, args); err != nil {
		return &ToolResult{Success: false, Error: err.Error()}, nil
	}

	if descriptor.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(descriptor.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	result, err := descriptor.Handler(ctx, args)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("tool %s execution failed: %w", name, err)
	}

	logger.ToolExecution(name, result.Success, latency)
	metrics.RecordToolCall(name, result.Success)

	if result.Success {
		if err := r.validator.ValidateResult(descriptor, result.Data); err != nil {
			return &ToolResult{Success: false, Error: err.Error()}, nil
		}
	}

	return result, nil
}

// descriptorFile is the on-disk shape for tool descriptor files.
type descriptorFile struct {
	Tools []*ToolDescriptor `json:"tools" yaml:"tools"`
}

// LoadFile reads tool descriptors from a YAML (or JSON) file and registers
// each one. Handlers must be bound separately.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read tool file %s: %w", path, err)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse tool file %s: %w", path, err)
	}

	for _, descriptor := range file.Tools {
		if err := r.Register(descriptor); err != nil {
			return fmt.Errorf("failed to register tool from %s: %w", path, err)
		}
	}

	return nil
}
