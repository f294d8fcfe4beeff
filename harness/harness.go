// Package harness composes the substitute client, tracked tools, and an
// agent under test into repeatable executions with assertable traces.
//
// A Harness runs a single agent; a Coordinator routes messages between
// several agents, each isolated behind its own substitute client, with a
// hard iteration bound so message cycles terminate instead of hanging.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
	"github.com/AltairaLabs/EvalKit/providers"
	"github.com/AltairaLabs/EvalKit/tools"
	"github.com/AltairaLabs/EvalKit/trace"
	"github.com/AltairaLabs/EvalKit/types"
)

// Agent is the unit under test: one invocation over one input.
type Agent interface {
	Run(ctx context.Context, input string) (string, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context, input string) (string, error)

// Run implements Agent.
func (f AgentFunc) Run(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// AgentFactory builds the agent under test from its collaborators.
// The provider is always the harness's substitute client.
type AgentFactory func(provider providers.Provider, registry *tools.Registry) Agent

// RunResult captures one harness execution. ToolStats counts call events by
// actor over the whole trace, the agent invocation included.
type RunResult struct {
	RunID         string           `json:"run_id"`
	Success       bool             `json:"success"`
	Output        string           `json:"output,omitempty"`
	Error         string           `json:"error,omitempty"`
	Duration      time.Duration    `json:"duration"`
	Events        []trace.Event    `json:"events"`
	ProviderCalls int              `json:"provider_calls"`
	ToolStats     *types.ToolStats `json:"tool_stats"`
}

// Harness wires a substitute client, tracked tools, and an agent factory.
type Harness struct {
	provider *providers.MockProvider
	registry *tools.Registry
	recorder *trace.Recorder
	factory  AgentFactory
}

// Option configures a Harness.
type Option func(*Harness) error

// WithProvider substitutes a pre-configured mock provider.
func WithProvider(provider *providers.MockProvider) Option {
	return func(h *Harness) error {
		h.provider = provider
		return nil
	}
}

// WithTools registers tool descriptors, wrapping each handler so its
// invocations land in the harness trace.
func WithTools(descriptors ...*tools.ToolDescriptor) Option {
	return func(h *Harness) error {
		for _, descriptor := range descriptors {
			if err := h.registry.Register(h.recorder.WrapTool(descriptor)); err != nil {
				return err
			}
		}
		return nil
	}
}

// New creates a Harness around the given agent factory.
func New(factory AgentFactory, opts ...Option) (*Harness, error) {
	h := &Harness{
		provider: providers.NewMockProvider("harness-mock"),
		registry: tools.NewRegistry(),
		recorder: trace.NewRecorder(),
		factory:  factory,
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Provider returns the substitute client for fixture registration.
func (h *Harness) Provider() *providers.MockProvider { return h.provider }

// Registry returns the tool registry backing this harness.
func (h *Harness) Registry() *tools.Registry { return h.registry }

// Recorder returns the trace recorder for post-hoc assertions.
func (h *Harness) Recorder() *trace.Recorder { return h.recorder }

// Execute runs the agent once and captures success/failure, elapsed time,
// the full event trace, and the substitute-client call count. Agent panics
// and errors are converted into failed results with the partial trace
// attached; execution is never silently swallowed.
func (h *Harness) Execute(ctx context.Context, input string) *RunResult {
	result := &RunResult{RunID: uuid.NewString()}
	callsBefore := h.provider.CallCount()
	start := time.Now()

	output, err := h.runAgent(ctx, input)

	result.Duration = time.Since(start)
	result.Events = h.recorder.Events()
	result.ProviderCalls = h.provider.CallCount() - callsBefore
	result.ToolStats = h.recorder.Stats()
	metrics.RecordHarnessRun(err == nil, result.Duration.Seconds())

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		logger.Debug("harness run failed", "run_id", result.RunID, "error", err)
		return result
	}

	result.Success = true
	result.Output = output
	logger.Debug("harness run complete",
		"run_id", result.RunID,
		"provider_calls", result.ProviderCalls,
		"events", len(result.Events))
	return result
}

// runAgent builds and invokes the agent, converting panics to errors so a
// crashing agent still yields a diagnosable result.
func (h *Harness) runAgent(ctx context.Context, input string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	agent := h.factory(h.provider, h.registry)
	return h.recorder.Record("agent", input, func() (string, error) {
		return agent.Run(ctx, input)
	})
}
