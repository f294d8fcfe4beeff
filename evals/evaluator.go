// Package evals provides quality measurement for generated output: scored
// metrics with per-metric thresholds, severity-tagged quality gates, and
// golden-set regression runs.
//
// Quality failures are result values, never errors: a metric under its
// threshold or a failed gate comes back in the report so suites can assert
// on it directly.
package evals

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
)

// Metric is one scoring function with its own pass threshold.
// Calculate must be a pure function of (input, output): no shared mutable
// state, so metrics can run in any order or concurrently.
type Metric struct {
	Name        string
	Description string
	Threshold   float64 // minimum passing score, in [0, 1]
	Calculate   func(input, output string) (score float64, details map[string]any)
}

// MetricResult is the outcome of one metric over one (input, output) pair.
// Passed derives from the metric's own threshold, not a global one.
type MetricResult struct {
	Name      string         `json:"name"`
	Score     float64        `json:"score"`
	Threshold float64        `json:"threshold"`
	Passed    bool           `json:"passed"`
	Details   map[string]any `json:"details,omitempty"`
}

// Report aggregates all metric results for one evaluation.
type Report struct {
	Results      []MetricResult `json:"results"`
	OverallScore float64        `json:"overall_score"` // arithmetic mean across metrics
	Passed       bool           `json:"passed"`        // true iff every metric passed
}

// Evaluator holds a mutable-but-finite set of metrics.
type Evaluator struct {
	mu      sync.RWMutex
	metrics []Metric
}

// NewEvaluator creates an evaluator with the given metrics.
func NewEvaluator(metrics ...Metric) (*Evaluator, error) {
	e := &Evaluator{}
	for _, metric := range metrics {
		if err := e.AddMetric(metric); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddMetric registers a metric. Names must be unique and thresholds in [0, 1].
func (e *Evaluator) AddMetric(metric Metric) error {
	if metric.Name == "" {
		return fmt.Errorf("metric name must not be empty")
	}
	if metric.Calculate == nil {
		return fmt.Errorf("metric %s has no calculate function", metric.Name)
	}
	if metric.Threshold < 0 || metric.Threshold > 1 {
		return fmt.Errorf("metric %s threshold %g outside [0, 1]", metric.Name, metric.Threshold)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.metrics {
		if existing.Name == metric.Name {
			return fmt.Errorf("metric %s already registered", metric.Name)
		}
	}
	e.metrics = append(e.metrics, metric)
	return nil
}

// RemoveMetric drops the named metric. Unknown names are a no-op.
func (e *Evaluator) RemoveMetric(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, metric := range e.metrics {
		if metric.Name == name {
			e.metrics = append(e.metrics[:i], e.metrics[i+1:]...)
			return
		}
	}
}

// Metrics returns the registered metric names in registration order.
func (e *Evaluator) Metrics() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.metrics))
	for i, metric := range e.metrics {
		names[i] = metric.Name
	}
	return names
}

// Evaluate runs every metric against the (input, output) pair. Metrics run
// concurrently; results keep registration order. Scores are clamped to
// [0, 1] before threshold comparison.
func (e *Evaluator) Evaluate(ctx context.Context, input, output string) (*Report, error) {
	e.mu.RLock()
	snapshot := make([]Metric, len(e.metrics))
	copy(snapshot, e.metrics)
	e.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil, fmt.Errorf("no metrics registered")
	}

	results := make([]MetricResult, len(snapshot))
	g, _ := errgroup.WithContext(ctx)
	for i, metric := range snapshot {
		i, metric := i, metric
		g.Go(func() error {
			score, details := metric.Calculate(input, output)
			score = clamp01(score)
			results[i] = MetricResult{
				Name:      metric.Name,
				Score:     score,
				Threshold: metric.Threshold,
				Passed:    score >= metric.Threshold,
				Details:   details,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Results: results, Passed: true}
	sum := 0.0
	for _, result := range results {
		sum += result.Score
		if !result.Passed {
			report.Passed = false
		}
		logger.EvalOutcome(result.Name, result.Passed, result.Score)
		metrics.RecordMetricResult(result.Name, result.Score, result.Passed)
	}
	report.OverallScore = sum / float64(len(results))

	return report, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
