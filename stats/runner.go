package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
	"github.com/AltairaLabs/EvalKit/types"
)

// Sampler produces one generation for an input. Callers typically close over
// a provider; non-determinism lives behind this function.
type Sampler func(ctx context.Context, input string) (string, error)

// Scorer maps one (input, output) pair to a quality score in [0, 1].
type Scorer func(input, output string) float64

// Config controls a statistical test run.
type Config struct {
	Name            string  `json:"name,omitempty" yaml:"name,omitempty"` // label for reports and metrics
	SampleSize      int     `json:"sample_size" yaml:"sample_size"`
	ConfidenceLevel float64 `json:"confidence_level" yaml:"confidence_level"` // default 0.95
	Threshold       float64 `json:"threshold" yaml:"threshold"`               // required mean score
	Concurrency     int     `json:"concurrency" yaml:"concurrency"`           // default 1
}

// DefaultConfig returns a config suitable for CI runs.
func DefaultConfig() Config {
	return Config{SampleSize: 20, ConfidenceLevel: 0.95, Threshold: 0.7, Concurrency: 4}
}

func (c *Config) validate() error {
	if c.SampleSize < 2 {
		return fmt.Errorf("sample size %d too small, need at least 2", c.SampleSize)
	}
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = 0.95
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level %g outside (0, 1)", c.ConfidenceLevel)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %g outside [0, 1]", c.Threshold)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return nil
}

// Result is the aggregate outcome of one statistical test.
// PassesThreshold is a point verdict on the observed mean; Significant says
// whether the one-sided t-test rejects "mean <= threshold" at p < 0.05.
type Result struct {
	Name            string         `json:"name,omitempty"`
	Samples         []types.Sample `json:"samples"`
	Mean            float64        `json:"mean"`
	StdDev          float64        `json:"std_dev"`
	CILow           float64        `json:"ci_low"`
	CIHigh          float64        `json:"ci_high"`
	TStat           float64        `json:"t_stat"`
	PValue          float64        `json:"p_value"`
	PassesThreshold bool           `json:"passes_threshold"`
	Significant     bool           `json:"significant"`
	Duration        time.Duration  `json:"duration_ns"`
}

// significanceLevel is the fixed alpha for pass/fail significance calls.
const significanceLevel = 0.05

// RunStatisticalTest draws cfg.SampleSize generations for the input, scores
// each, and summarizes. Samples are kept in issuance order regardless of
// completion order. A sampler error aborts the run; scoring failures do not
// exist by construction, scores are plain values.
func RunStatisticalTest(ctx context.Context, input string, sample Sampler, score Scorer, cfg Config) (*Result, error) {
	if sample == nil || score == nil {
		return nil, fmt.Errorf("sampler and scorer are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	samples := make([]types.Sample, cfg.SampleSize)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i := 0; i < cfg.SampleSize; i++ {
		i := i
		g.Go(func() error {
			output, err := sample(gctx, input)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			s := score(input, output)
			mu.Lock()
			samples[i] = types.Sample{Input: input, Output: output, Score: &s}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = *s.Score
	}

	result := &Result{Name: cfg.Name, Samples: samples, Duration: time.Since(start)}
	summary, err := Describe(scores)
	if err != nil {
		return nil, err
	}
	result.Mean = summary.Mean
	result.StdDev = summary.StdDev

	result.CILow, result.CIHigh, err = ConfidenceInterval(scores, cfg.ConfidenceLevel)
	if err != nil {
		return nil, err
	}

	ttest, err := OneSampleTTest(scores, cfg.Threshold)
	if err != nil {
		return nil, err
	}
	result.TStat = ttest.TStat
	result.PValue = ttest.PValue
	result.PassesThreshold = result.Mean >= cfg.Threshold
	result.Significant = ttest.PValue < significanceLevel

	experiment := cfg.Name
	if experiment == "" {
		experiment = "statistical_test"
	}
	metrics.RecordSamples(experiment, cfg.SampleSize)
	logger.Info("statistical test complete",
		"samples", cfg.SampleSize,
		"mean", result.Mean,
		"std_dev", result.StdDev,
		"p_value", result.PValue,
		"passes", result.PassesThreshold)

	return result, nil
}

// Comparison is the outcome of a two-prompt comparison.
type Comparison struct {
	A              *Result `json:"a"`
	B              *Result `json:"b"`
	TStat          float64 `json:"t_stat"`
	PValue         float64 `json:"p_value"`
	EffectSize     float64 `json:"effect_size"`
	EffectLabel    string  `json:"effect_label"`
	Significant    bool    `json:"significant"`
	Recommendation string  `json:"recommendation"`
}

// ComparePrompts runs the same statistical test for two inputs and compares
// the score distributions with a Welch t-test and Cohen's d.
func ComparePrompts(ctx context.Context, inputA, inputB string, sample Sampler, score Scorer, cfg Config) (*Comparison, error) {
	resultA, err := RunStatisticalTest(ctx, inputA, sample, score, cfg)
	if err != nil {
		return nil, fmt.Errorf("variant A: %w", err)
	}
	resultB, err := RunStatisticalTest(ctx, inputB, sample, score, cfg)
	if err != nil {
		return nil, fmt.Errorf("variant B: %w", err)
	}

	scoresA := extractScores(resultA.Samples)
	scoresB := extractScores(resultB.Samples)

	cmp := &Comparison{A: resultA, B: resultB}
	ttest, err := WelchTTest(scoresA, scoresB)
	if err != nil {
		return nil, err
	}
	cmp.TStat = ttest.TStat
	cmp.PValue = ttest.PValue
	cmp.Significant = ttest.PValue < significanceLevel

	cmp.EffectSize, err = CohenD(scoresA, scoresB)
	if err != nil {
		return nil, err
	}
	cmp.EffectLabel = EffectSizeLabel(cmp.EffectSize)
	cmp.Recommendation = recommend(cmp)

	return cmp, nil
}

// recommend renders the comparison verdict as advice.
func recommend(cmp *Comparison) string {
	if !cmp.Significant {
		return fmt.Sprintf("no significant difference (p=%.3f); keep either variant", cmp.PValue)
	}
	winner, loser := "A", "B"
	if cmp.B.Mean > cmp.A.Mean {
		winner, loser = "B", "A"
	}
	if cmp.EffectLabel == "negligible" {
		// Statistically detectable but practically irrelevant; a large
		// enough sample makes any nonzero difference significant.
		return fmt.Sprintf("variant %s is significantly better than %s (p=%.3f) but the effect is negligible; adopting it is unlikely to matter",
			winner, loser, cmp.PValue)
	}
	return fmt.Sprintf("variant %s outperforms %s (p=%.3f, %s effect)",
		winner, loser, cmp.PValue, cmp.EffectLabel)
}

func extractScores(samples []types.Sample) []float64 {
	scores := make([]float64, len(samples))
	for i, s := range samples {
		if s.Score != nil {
			scores[i] = *s.Score
		}
	}
	return scores
}
