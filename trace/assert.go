package trace

import (
	"fmt"
	"strings"
	"testing"
)

// AssertCalledWith reports whether any call event's payload contains the
// given pattern. Returns nil on success; assertion failures are values so
// suites can branch on them without exception-style handling.
func (r *Recorder) AssertCalledWith(pattern string) error {
	for _, event := range r.Calls() {
		if strings.Contains(string(event.Payload), pattern) {
			return nil
		}
	}
	return fmt.Errorf("no call event payload contains %q", pattern)
}

// AssertCallOrder checks that the expected actor names appear as a
// subsequence of the recorded call events, in order.
func (r *Recorder) AssertCallOrder(expected []string) error {
	calls := r.Calls()
	i := 0
	for _, event := range calls {
		if i < len(expected) && event.Actor == expected[i] {
			i++
		}
	}
	if i != len(expected) {
		actors := make([]string, len(calls))
		for j, event := range calls {
			actors[j] = event.Actor
		}
		return fmt.Errorf("expected call order %v not found; recorded calls: %v", expected, actors)
	}
	return nil
}

// AssertCalledTimes checks that the named actor has exactly n call events.
func (r *Recorder) AssertCalledTimes(actor string, n int) error {
	count := 0
	for _, event := range r.Calls() {
		if event.Actor == actor {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("actor %q called %d times, expected %d", actor, count, n)
	}
	return nil
}

// RequireCalledWith is a testing helper over AssertCalledWith.
func (r *Recorder) RequireCalledWith(t testing.TB, pattern string) {
	t.Helper()
	if err := r.AssertCalledWith(pattern); err != nil {
		t.Fatal(err)
	}
}

// RequireCallOrder is a testing helper over AssertCallOrder.
func (r *Recorder) RequireCallOrder(t testing.TB, expected []string) {
	t.Helper()
	if err := r.AssertCallOrder(expected); err != nil {
		t.Fatal(err)
	}
}

// RequireCalledTimes is a testing helper over AssertCalledTimes.
func (r *Recorder) RequireCalledTimes(t testing.TB, actor string, n int) {
	t.Helper()
	if err := r.AssertCalledTimes(actor, n); err != nil {
		t.Fatal(err)
	}
}
