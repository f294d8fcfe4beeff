package evals

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/EvalKit/providers"
)

func TestGoldenRunAllRules(t *testing.T) {
	mock := providers.NewMockProvider("mock")
	mock.SetResponse("refund", "Refunds are processed within 14 days.")
	mock.SetResponse("greeting", "Hello there!")

	set := &GoldenSet{
		Name: "support",
		Cases: []GoldenCase{
			{ID: "refund-window", Input: "refund policy?", Contains: []string{"14 days"}, Pattern: `\d+ days`},
			{ID: "greeting-exact", Input: "greeting", Expected: "Hello there!"},
		},
	}

	report, err := NewGoldenRunner(mock).Run(context.Background(), set)
	require.NoError(t, err)

	assert.True(t, report.Success)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Passed)
	assert.True(t, report.Results[1].Passed)
}

func TestGoldenFailuresAreCollected(t *testing.T) {
	mock := providers.NewMockProvider("mock")
	mock.SetResponse("refund", "We do not discuss that.")

	set := &GoldenSet{
		Cases: []GoldenCase{
			{ID: "refund-window", Input: "refund policy?", Contains: []string{"14 days"}, Pattern: `\d+ days`},
		},
	}

	report, err := NewGoldenRunner(mock).Run(context.Background(), set)
	require.NoError(t, err)

	assert.False(t, report.Success)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Passed)
	assert.Len(t, report.Results[0].Failures, 2)
}

func TestGoldenProviderErrorFailsCaseNotRun(t *testing.T) {
	mock := providers.NewMockProvider("mock")
	mock.SetResponse("known", "fine")

	set := &GoldenSet{
		Cases: []GoldenCase{
			{ID: "unknown", Input: "no fixture for this"},
			{ID: "known", Input: "known", Expected: "fine"},
		},
	}

	report, err := NewGoldenRunner(mock).Run(context.Background(), set)
	require.NoError(t, err)

	assert.False(t, report.Success)
	require.Len(t, report.Results, 2)
	assert.False(t, report.Results[0].Passed)
	assert.Contains(t, report.Results[0].Failures[0], "generation failed")
	assert.True(t, report.Results[1].Passed)
}

func TestGoldenMinScoreRule(t *testing.T) {
	mock := providers.NewMockProvider("mock")
	mock.SetResponse("refund", "Refunds take 14 days.")

	evaluator, err := NewEvaluator(KeywordCoverageMetric([]string{"14 days", "receipt"}, 0.5))
	require.NoError(t, err)

	strict := 0.9
	lenient := 0.4
	set := &GoldenSet{
		Cases: []GoldenCase{
			{ID: "strict", Input: "refund policy", MinScore: &strict},
			{ID: "lenient", Input: "refund policy", MinScore: &lenient},
		},
	}

	report, err := NewGoldenRunner(mock, WithEvaluator(evaluator)).Run(context.Background(), set)
	require.NoError(t, err)

	assert.False(t, report.Results[0].Passed)
	assert.Contains(t, report.Results[0].Failures[0], "below minimum")
	assert.True(t, report.Results[1].Passed)

	// Without an evaluator, min_score cases fail loudly.
	bare, err := NewGoldenRunner(mock).Run(context.Background(), set)
	require.NoError(t, err)
	assert.Contains(t, bare.Results[0].Failures[0], "no evaluator")
}

func TestGoldenEmptySet(t *testing.T) {
	mock := providers.NewMockProvider("mock")
	_, err := NewGoldenRunner(mock).Run(context.Background(), &GoldenSet{})
	assert.Error(t, err)
	_, err = NewGoldenRunner(mock).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadGoldenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.yaml")
	content := `name: support
cases:
  - id: refund-window
    input: "refund policy?"
    contains: ["14 days"]
  - id: greeting
    input: greeting
    expected: "Hello there!"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	set, err := LoadGoldenSet(path)
	require.NoError(t, err)
	assert.Equal(t, "support", set.Name)
	require.Len(t, set.Cases, 2)
	assert.Equal(t, []string{"14 days"}, set.Cases[0].Contains)
}

func TestLoadGoldenSetRequiresIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases:\n  - input: x\n"), 0o600))

	_, err := LoadGoldenSet(path)
	assert.Error(t, err)
}
