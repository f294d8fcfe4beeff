package providers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
)

// MatchFunc decides whether a registered response applies to a prompt.
type MatchFunc func(prompt string) bool

// registration pairs a matcher with its canned response.
// Lookup is first-match over insertion order.
type registration struct {
	pattern  string
	match    MatchFunc
	response string
}

// ResponseGenerator produces scripted responses call by call.
// Returning ok=false signals the script is exhausted.
type ResponseGenerator func(call int, prompt string) (response string, ok bool)

// MockProvider is a deterministic substitute for a generation backend.
//
// Responses come from pattern registrations (first-match over insertion
// order) or from a scripted ResponseGenerator for multi-turn sequences.
// Calls that match nothing fail with a *FixtureError; there is no silent
// default, so missing fixtures surface as test failures, not false passes.
//
// All calls are appended to an immutable call record for post-hoc
// assertions. MockProvider is safe for concurrent use.
type MockProvider struct {
	mu            sync.Mutex
	id            string
	registrations []registration
	generator     ResponseGenerator
	calls         []string
	callCount     int
}

// NewMockProvider creates a substitute client with the given ID.
func NewMockProvider(id string) *MockProvider {
	return &MockProvider{id: id}
}

// ID returns the provider ID.
func (m *MockProvider) ID() string { return m.id }

// SetResponse registers a canned response for prompts containing pattern.
// Registrations are consulted in insertion order; the first match wins.
func (m *MockProvider) SetResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = append(m.registrations, registration{
		pattern:  pattern,
		response: response,
	})
}

// SetMatcher registers a canned response guarded by an arbitrary predicate.
// The pattern string is only used for diagnostics; match decides applicability.
func (m *MockProvider) SetMatcher(pattern string, match MatchFunc, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = append(m.registrations, registration{
		pattern:  pattern,
		match:    match,
		response: response,
	})
}

// SetGenerator switches the provider into scripted mode: fn is invoked on
// every call with the zero-based call index and the prompt. Pattern
// registrations are ignored while a generator is set.
func (m *MockProvider) SetGenerator(fn ResponseGenerator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generator = fn
}

// QueueResponses is a convenience wrapper around SetGenerator that scripts a
// fixed sequence of responses. Calls beyond the sequence fail with a
// *FixtureError marked Exhausted.
func (m *MockProvider) QueueResponses(responses ...string) {
	queued := make([]string, len(responses))
	copy(queued, responses)
	m.SetGenerator(func(call int, _ string) (string, bool) {
		if call >= len(queued) {
			return "", false
		}
		return queued[call], true
	})
}

// Generate returns the first registered response whose pattern matches the
// prompt. In scripted mode it delegates to the generator instead. Unmatched
// calls return a *FixtureError identifying the prompt.
func (m *MockProvider) Generate(ctx context.Context, prompt string, _ *GenerateConfig) (response string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() { metrics.RecordProviderRequest(m.id, err == nil) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, prompt)
	call := m.callCount
	m.callCount++

	logger.ProviderCall(m.id, len(prompt), "call", call)

	if m.generator != nil {
		response, ok := m.generator(call, prompt)
		if !ok {
			return "", &FixtureError{Provider: m.id, Prompt: prompt, Exhausted: true}
		}
		return response, nil
	}

	for _, reg := range m.registrations {
		if reg.matches(prompt) {
			return reg.response, nil
		}
	}

	return "", &FixtureError{Provider: m.id, Prompt: prompt}
}

// Chat delegates to Generate using the content of the final message.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	start := time.Now()
	content, err := m.Generate(ctx, prompt, nil)
	if err != nil {
		return ChatResponse{}, err
	}

	return ChatResponse{
		Content: content,
		Latency: time.Since(start),
	}, nil
}

// Calls returns a copy of the ordered prompts sent to this provider.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of calls made to this provider.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears registrations, the generator, and the call record.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = nil
	m.generator = nil
	m.calls = nil
	m.callCount = 0
}

// Close is a no-op for the mock provider.
func (m *MockProvider) Close() error { return nil }

// matches reports whether the registration applies to the prompt.
// A nil MatchFunc falls back to substring matching on the pattern.
func (r *registration) matches(prompt string) bool {
	if r.match != nil {
		return r.match(prompt)
	}
	return strings.Contains(prompt, r.pattern)
}

// Ensure MockProvider satisfies the Provider contract.
var _ Provider = (*MockProvider)(nil)
