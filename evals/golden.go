package evals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/EvalKit/providers"
)

// GoldenCase is one curated regression case: an input plus validation rules
// for the generated output. Any combination of rules may be set; all set
// rules must hold for the case to pass.
type GoldenCase struct {
	ID       string   `json:"id" yaml:"id"`
	Input    string   `json:"input" yaml:"input"`
	Expected string   `json:"expected,omitempty" yaml:"expected,omitempty"` // exact match
	Contains []string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"` // regex

	// MinScore requires the runner's evaluator to score the output at or
	// above this value. Needs a runner built WithEvaluator.
	MinScore *float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`
}

// GoldenSet is a named list of golden cases.
type GoldenSet struct {
	Name  string       `json:"name,omitempty" yaml:"name,omitempty"`
	Cases []GoldenCase `json:"cases" yaml:"cases"`
}

// LoadGoldenSet reads a golden set from a YAML file.
func LoadGoldenSet(path string) (*GoldenSet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read golden set %s: %w", path, err)
	}
	var set GoldenSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse golden set %s: %w", path, err)
	}
	for i, c := range set.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("golden set %s: case %d has no id", path, i)
		}
	}
	return &set, nil
}

// GoldenCaseResult is the outcome of one golden case.
type GoldenCaseResult struct {
	ID       string   `json:"id"`
	Passed   bool     `json:"passed"`
	Output   string   `json:"output,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// GoldenReport is the aggregate outcome of a golden-set run.
// Success is the CI exit surface: callers map false to a non-zero exit.
type GoldenReport struct {
	Success bool               `json:"success"`
	Results []GoldenCaseResult `json:"results"`
}

// GoldenRunner executes golden cases against a generation provider.
// The provider may be a production backend or the substitute client.
type GoldenRunner struct {
	provider  providers.Provider
	evaluator *Evaluator
}

// GoldenOption configures a GoldenRunner.
type GoldenOption func(*GoldenRunner)

// WithEvaluator attaches a metric evaluator so cases can set MinScore.
func WithEvaluator(evaluator *Evaluator) GoldenOption {
	return func(gr *GoldenRunner) { gr.evaluator = evaluator }
}

// NewGoldenRunner creates a runner over the given provider.
func NewGoldenRunner(provider providers.Provider, opts ...GoldenOption) *GoldenRunner {
	gr := &GoldenRunner{provider: provider}
	for _, opt := range opts {
		opt(gr)
	}
	return gr
}

// Run generates output for every case and applies its validation rules.
// Provider failures (including fixture errors) fail the case, not the run:
// the report always covers every case.
func (gr *GoldenRunner) Run(ctx context.Context, set *GoldenSet) (*GoldenReport, error) {
	if set == nil || len(set.Cases) == 0 {
		return nil, fmt.Errorf("golden set is empty")
	}

	report := &GoldenReport{Success: true}
	for _, goldenCase := range set.Cases {
		result := gr.runCase(ctx, goldenCase)
		if !result.Passed {
			report.Success = false
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

// runCase executes one case.
func (gr *GoldenRunner) runCase(ctx context.Context, goldenCase GoldenCase) GoldenCaseResult {
	result := GoldenCaseResult{ID: goldenCase.ID, Passed: true}

	output, err := gr.provider.Generate(ctx, goldenCase.Input, nil)
	if err != nil {
		result.Passed = false
		result.Failures = append(result.Failures, fmt.Sprintf("generation failed: %v", err))
		return result
	}
	result.Output = output

	if goldenCase.Expected != "" && output != goldenCase.Expected {
		result.Passed = false
		result.Failures = append(result.Failures,
			fmt.Sprintf("expected exact output %q, got %q", goldenCase.Expected, output))
	}
	for _, substr := range goldenCase.Contains {
		if !strings.Contains(output, substr) {
			result.Passed = false
			result.Failures = append(result.Failures, fmt.Sprintf("output missing %q", substr))
		}
	}
	if goldenCase.Pattern != "" {
		re, err := regexp.Compile(goldenCase.Pattern)
		if err != nil {
			result.Passed = false
			result.Failures = append(result.Failures, fmt.Sprintf("invalid pattern %q: %v", goldenCase.Pattern, err))
		} else if !re.MatchString(output) {
			result.Passed = false
			result.Failures = append(result.Failures, fmt.Sprintf("output does not match %q", goldenCase.Pattern))
		}
	}
	if goldenCase.MinScore != nil {
		gr.checkMinScore(ctx, goldenCase, &result)
	}

	return result
}

// checkMinScore applies the evaluator-backed score rule.
func (gr *GoldenRunner) checkMinScore(ctx context.Context, goldenCase GoldenCase, result *GoldenCaseResult) {
	if gr.evaluator == nil {
		result.Passed = false
		result.Failures = append(result.Failures, "min_score set but runner has no evaluator")
		return
	}
	report, err := gr.evaluator.Evaluate(ctx, goldenCase.Input, result.Output)
	if err != nil {
		result.Passed = false
		result.Failures = append(result.Failures, fmt.Sprintf("evaluation failed: %v", err))
		return
	}
	if report.OverallScore < *goldenCase.MinScore {
		result.Passed = false
		result.Failures = append(result.Failures,
			fmt.Sprintf("overall score %.3f below minimum %.3f", report.OverallScore, *goldenCase.MinScore))
	}
}
