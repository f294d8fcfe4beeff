package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/EvalKit/logger"
	"github.com/AltairaLabs/EvalKit/providers"
	"github.com/AltairaLabs/EvalKit/trace"
)

// Message is one routed message between agents in a workflow.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Processed bool      `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageLog is the shared, ordered message log for one workflow run.
// Append is the only mutation; the log is owned by a single Coordinator.
type MessageLog struct {
	mu       sync.Mutex
	messages []*Message
}

// Append adds a pending message to the log and returns it.
func (l *MessageLog) Append(from, to, content string) *Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := &Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: time.Now(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

// Pending returns the messages not yet delivered, in log order.
func (l *MessageLog) Pending() []*Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var pending []*Message
	for _, msg := range l.messages {
		if !msg.Processed {
			pending = append(pending, msg)
		}
	}
	return pending
}

// All returns a snapshot of every message in log order.
func (l *MessageLog) All() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := make([]Message, len(l.messages))
	for i, msg := range l.messages {
		all[i] = *msg
	}
	return all
}

// markProcessed flags a message as delivered.
func (l *MessageLog) markProcessed(msg *Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg.Processed = true
}

// RoutingRule decides whether an agent output travels down a channel.
// A nil rule routes everything.
type RoutingRule func(content string) bool

// Channel declares a directed communication path between two agents.
type Channel struct {
	From  string
	To    string
	Route RoutingRule
}

// agentEntry pairs a registered agent with its isolated substitute client.
type agentEntry struct {
	agent    Agent
	provider *providers.MockProvider
}

// WorkflowResult captures one multi-agent workflow execution.
type WorkflowResult struct {
	Completed    bool                `json:"completed"`
	LimitReached bool                `json:"limit_reached"`
	Iterations   int                 `json:"iterations"`
	Messages     []Message           `json:"messages"`
	Outputs      map[string][]string `json:"outputs"`
	Error        string              `json:"error,omitempty"`
	Events       []trace.Event       `json:"events"`
}

// Coordinator orchestrates several agents, each with its own substitute
// client so one agent's scripted responses never leak to another.
type Coordinator struct {
	agents   map[string]*agentEntry
	channels []Channel
	log      *MessageLog
	recorder *trace.Recorder
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		agents:   make(map[string]*agentEntry),
		log:      &MessageLog{},
		recorder: trace.NewRecorder(),
	}
}

// RegisterAgent adds an agent under the given name. The factory receives a
// fresh substitute client dedicated to this agent; the client is returned
// so the test can register fixtures on it.
func (c *Coordinator) RegisterAgent(name string, factory func(provider *providers.MockProvider) Agent) *providers.MockProvider {
	provider := providers.NewMockProvider(name + "-mock")
	c.agents[name] = &agentEntry{
		agent:    factory(provider),
		provider: provider,
	}
	return provider
}

// AddChannel declares a directed channel with an optional routing rule.
func (c *Coordinator) AddChannel(from, to string, rule RoutingRule) {
	c.channels = append(c.channels, Channel{From: from, To: to, Route: rule})
}

// Recorder returns the shared trace recorder for the coordinator.
func (c *Coordinator) Recorder() *trace.Recorder { return c.recorder }

// Log returns the shared message log.
func (c *Coordinator) Log() *MessageLog { return c.log }

// ExecuteWorkflow runs the start agent with the input, then repeatedly
// drains pending messages until none remain or maxIterations is hit. The
// iteration cap is a required cancellation bound: agent-to-agent message
// generation can cycle indefinitely, and hitting the cap is reported as a
// failed-but-complete result, never a hang.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, startAgent, input string, maxIterations int) (*WorkflowResult, error) {
	if maxIterations <= 0 {
		return nil, fmt.Errorf("maxIterations must be positive, got %d", maxIterations)
	}
	if _, ok := c.agents[startAgent]; !ok {
		return nil, fmt.Errorf("unknown start agent: %q", startAgent)
	}

	result := &WorkflowResult{Outputs: make(map[string][]string)}

	if err := c.invoke(ctx, startAgent, input, result); err != nil {
		return c.finish(result, err), nil
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		pending := c.log.Pending()
		if len(pending) == 0 {
			result.Completed = true
			result.Iterations = iteration
			return c.finish(result, nil), nil
		}
		result.Iterations = iteration + 1

		for _, msg := range pending {
			if err := ctx.Err(); err != nil {
				return c.finish(result, err), nil
			}
			c.log.markProcessed(msg)
			if err := c.invoke(ctx, msg.To, msg.Content, result); err != nil {
				return c.finish(result, err), nil
			}
		}
	}

	if len(c.log.Pending()) == 0 {
		result.Completed = true
		return c.finish(result, nil), nil
	}

	result.LimitReached = true
	logger.Warn("workflow iteration cap reached",
		"max_iterations", maxIterations,
		"pending", len(c.log.Pending()))
	return c.finish(result, nil), nil
}

// invoke runs one agent on one input, records its output, and routes the
// output over matching channels.
func (c *Coordinator) invoke(ctx context.Context, name, input string, result *WorkflowResult) error {
	entry, ok := c.agents[name]
	if !ok {
		return fmt.Errorf("message routed to unknown agent %q", name)
	}

	output, err := c.recorder.Record(name, input, func() (string, error) {
		return entry.agent.Run(ctx, input)
	})
	if err != nil {
		return fmt.Errorf("agent %s failed: %w", name, err)
	}
	result.Outputs[name] = append(result.Outputs[name], output)

	for _, channel := range c.channels {
		if channel.From != name {
			continue
		}
		if channel.Route == nil || channel.Route(output) {
			c.log.Append(name, channel.To, output)
		}
	}
	return nil
}

// finish snapshots the log and trace into the result.
func (c *Coordinator) finish(result *WorkflowResult, err error) *WorkflowResult {
	if err != nil {
		result.Error = err.Error()
		result.Completed = false
	}
	result.Messages = c.log.All()
	result.Events = c.recorder.Events()
	return result
}
