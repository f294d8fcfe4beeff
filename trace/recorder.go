// Package trace records ordered execution events for a single test run and
// exposes assertions over the recorded sequence.
//
// A Recorder wraps a component's invocation boundary transparently: a call
// event before delegation, a result event after, and a handoff event when
// the result structurally resembles a transfer of control to another actor.
// Events are append-only and exclusively owned by one run; appends are the
// only mutation, so a single mutex around the slice is the entire
// concurrency story.
package trace

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AltairaLabs/EvalKit/tools"
	"github.com/AltairaLabs/EvalKit/types"
)

// EventType classifies a recorded event.
type EventType string

const (
	// EventCall marks entry into a wrapped component.
	EventCall EventType = "call"
	// EventResult marks a wrapped component returning.
	EventResult EventType = "result"
	// EventHandoff marks a result that transfers control to another actor.
	EventHandoff EventType = "handoff"
)

// handoffKeys are the payload fields recognized as naming a target actor.
var handoffKeys = []string{"handoff_to", "target"}

// Event is one recorded execution event.
type Event struct {
	Type      EventType       `json:"type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Recorder is an append-only event log for one test run.
// Safe for concurrent appends; reads return copies.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append records an event with the current timestamp.
func (r *Recorder) Append(eventType EventType, actor string, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		Type:      eventType,
		Actor:     actor,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// Events returns a copy of all recorded events in append order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]Event, len(r.events))
	copy(events, r.events)
	return events
}

// Calls returns only the call events, in order.
func (r *Recorder) Calls() []Event {
	var calls []Event
	for _, event := range r.Events() {
		if event.Type == EventCall {
			calls = append(calls, event)
		}
	}
	return calls
}

// CallRecords projects the trace into per-call records, pairing each call
// event with the result that followed it. A result payload of the form
// {"error": ...} lands in the record's Error field; anything else is the
// Result. Calls still awaiting a result keep both fields empty.
func (r *Recorder) CallRecords() []types.ToolCallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]types.ToolCallRecord, 0, len(r.events)/2)
	pending := make(map[string][]int)
	for _, event := range r.events {
		switch event.Type {
		case EventCall:
			pending[event.Actor] = append(pending[event.Actor], len(records))
			records = append(records, types.ToolCallRecord{
				Name:      event.Actor,
				Args:      event.Payload,
				Timestamp: event.Timestamp,
			})
		case EventResult:
			open := pending[event.Actor]
			if len(open) == 0 {
				continue
			}
			idx := open[0]
			pending[event.Actor] = open[1:]

			var failure struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(event.Payload, &failure) == nil && failure.Error != "" {
				records[idx].Error = failure.Error
			} else {
				records[idx].Result = event.Payload
			}
		}
	}
	return records
}

// Stats aggregates the trace's call events into per-actor counts.
func (r *Recorder) Stats() *types.ToolStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &types.ToolStats{ByTool: make(map[string]int)}
	for _, event := range r.events {
		if event.Type == EventCall {
			stats.TotalCalls++
			stats.ByTool[event.Actor]++
		}
	}
	return stats
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WrapHandler wraps a tool handler so every invocation appends call/result
// events (and a handoff event when the result names a target actor) under
// the given actor name.
func (r *Recorder) WrapHandler(actor string, handler tools.Handler) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (*tools.ToolResult, error) {
		r.Append(EventCall, actor, args)

		result, err := handler(ctx, args)
		if err != nil {
			r.Append(EventResult, actor, mustMarshal(map[string]string{"error": err.Error()}))
			return result, err
		}

		r.Append(EventResult, actor, result.Data)
		if target, ok := handoffTarget(result.Data); ok {
			r.Append(EventHandoff, actor, mustMarshal(map[string]string{"to": target}))
		}

		return result, nil
	}
}

// WrapTool returns a copy of the descriptor whose handler records events
// under the tool's name. The original descriptor is not modified.
func (r *Recorder) WrapTool(descriptor *tools.ToolDescriptor) *tools.ToolDescriptor {
	wrapped := *descriptor
	wrapped.Handler = r.WrapHandler(descriptor.Name, descriptor.Handler)
	return &wrapped
}

// Record runs fn under the given actor name, appending call and result
// events around it. The input and output strings become the payloads.
func (r *Recorder) Record(actor, input string, fn func() (string, error)) (string, error) {
	r.Append(EventCall, actor, mustMarshal(map[string]string{"input": input}))
	output, err := fn()
	if err != nil {
		r.Append(EventResult, actor, mustMarshal(map[string]string{"error": err.Error()}))
		return output, err
	}
	r.Append(EventResult, actor, mustMarshal(map[string]string{"output": output}))
	return output, nil
}

// handoffTarget reports whether a result payload names a target actor.
func handoffTarget(payload json.RawMessage) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", false
	}
	for _, key := range handoffKeys {
		if raw, ok := fields[key]; ok {
			var target string
			if err := json.Unmarshal(raw, &target); err == nil && target != "" {
				return target, true
			}
		}
	}
	return "", false
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
