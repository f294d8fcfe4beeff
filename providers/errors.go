package providers

import "fmt"

// FixtureError reports a substitute-client call with no registered fixture.
// It always names the offending prompt so a missing fixture surfaces as a
// test failure rather than a silent default response.
type FixtureError struct {
	Provider  string // provider ID
	Prompt    string // the prompt that matched nothing
	Exhausted bool   // true when a scripted generator ran out of responses
}

// Error implements the error interface.
func (e *FixtureError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("provider %s: unexpected call, response generator exhausted (prompt: %q)", e.Provider, e.Prompt)
	}
	return fmt.Sprintf("provider %s: unregistered call, no fixture matches prompt %q", e.Provider, e.Prompt)
}
