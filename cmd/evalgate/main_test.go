package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingSuite = `name: support-bot
fixtures:
  - pattern: "refund"
    response: "Refunds are processed within 14 days of the request."
  - pattern: "hours"
    response: "We are open 9am to 5pm on weekdays."
golden:
  cases:
    - id: refund-window
      input: "what is the refund policy?"
      contains: ["14 days"]
    - id: opening-hours
      input: "what are your hours?"
      pattern: '\d+am'
gates:
  min_length: {chars: 10, severity: blocker}
  no_error_markers: {severity: critical}
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunSuitePasses(t *testing.T) {
	suite, err := loadSuite(writeSuite(t, passingSuite))
	require.NoError(t, err)

	var out bytes.Buffer
	success, err := runSuite(context.Background(), suite, "text", &out)
	require.NoError(t, err)

	assert.True(t, success)
	assert.Contains(t, out.String(), "PASS  refund-window")
	assert.Contains(t, out.String(), "suite passed")
}

func TestRunSuiteGateFailure(t *testing.T) {
	content := `name: short-output
fixtures:
  - pattern: "greet"
    response: "Hi"
golden:
  cases:
    - id: greeting
      input: "greet the user"
gates:
  min_length: {chars: 50, severity: blocker}
`
	suite, err := loadSuite(writeSuite(t, content))
	require.NoError(t, err)

	var out bytes.Buffer
	success, err := runSuite(context.Background(), suite, "text", &out)
	require.NoError(t, err)

	assert.False(t, success)
	assert.Contains(t, out.String(), "FAIL  greeting")
	assert.Contains(t, out.String(), "gate min_length (blocker)")
}

func TestRunSuiteWarningGateDoesNotFail(t *testing.T) {
	content := `name: advisory
fixtures:
  - pattern: "greet"
    response: "Hello, welcome to support."
golden:
  cases:
    - id: greeting
      input: "greet the user"
gates:
  max_length: {chars: 5, severity: warning}
`
	suite, err := loadSuite(writeSuite(t, content))
	require.NoError(t, err)

	var out bytes.Buffer
	success, err := runSuite(context.Background(), suite, "text", &out)
	require.NoError(t, err)
	assert.True(t, success, "warning gates are advisory")
}

func TestRunSuiteMissingFixtureFailsCase(t *testing.T) {
	content := `name: incomplete
fixtures:
  - pattern: "known"
    response: "A long enough canned answer."
golden:
  cases:
    - id: unknown-case
      input: "nothing matches this"
    - id: known-case
      input: "known question"
`
	suite, err := loadSuite(writeSuite(t, content))
	require.NoError(t, err)

	var out bytes.Buffer
	success, err := runSuite(context.Background(), suite, "text", &out)
	require.NoError(t, err)

	assert.False(t, success)
	assert.Contains(t, out.String(), "FAIL  unknown-case")
	assert.Contains(t, out.String(), "PASS  known-case")
}

func TestRunSuiteJSONFormat(t *testing.T) {
	suite, err := loadSuite(writeSuite(t, passingSuite))
	require.NoError(t, err)

	var out bytes.Buffer
	success, err := runSuite(context.Background(), suite, "json", &out)
	require.NoError(t, err)
	assert.True(t, success)

	var report suiteReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "support-bot", report.Suite)
	assert.True(t, report.Success)
	assert.Len(t, report.Cases, 2)
}

func TestLoadSuiteValidation(t *testing.T) {
	_, err := loadSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadSuite(writeSuite(t, "name: empty\n"))
	assert.Error(t, err, "no golden cases")

	_, err = loadSuite(writeSuite(t, "golden:\n  cases:\n    - input: x\n"))
	assert.Error(t, err, "case without id")
}

func TestServeMetricsLifecycle(t *testing.T) {
	// Empty address is a no-op; shutdown must be safe to call.
	shutdown := serveMetrics("")
	shutdown()

	// A real listener starts and stops cleanly.
	shutdown = serveMetrics("127.0.0.1:0")
	time.Sleep(50 * time.Millisecond)
	shutdown()
}
