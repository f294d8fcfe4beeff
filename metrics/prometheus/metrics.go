// Package prometheus provides Prometheus metrics for test-suite runs:
// evaluation scores, gate verdicts, sampling volume, and backend call
// latency.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evalkit"

var (
	// metricScore is a gauge of the latest score per evaluation metric.
	metricScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_score",
			Help:      "Latest score per evaluation metric",
		},
		[]string{"metric"},
	)

	// metricResultsTotal is a counter of metric evaluations.
	metricResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_results_total",
			Help:      "Total number of metric evaluations",
		},
		[]string{"metric", "status"}, // status: passed, failed
	)

	// gateChecksTotal is a counter of gate check outcomes.
	gateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_checks_total",
			Help:      "Total number of gate checks",
		},
		[]string{"gate", "severity", "status"}, // status: passed, failed
	)

	// gateRunsTotal is a counter of full gate-runner verdicts.
	gateRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_runs_total",
			Help:      "Total number of gate runner verdicts",
		},
		[]string{"status"}, // status: passed, failed
	)

	// samplesTotal is a counter of statistical samples drawn.
	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Total number of statistical samples drawn",
		},
		[]string{"experiment"},
	)

	// harnessRunDuration is a histogram of single-agent harness run duration.
	harnessRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "harness_run_duration_seconds",
			Help:      "Duration of harness runs in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"}, // status: success, error
	)

	// providerRequestsTotal is a counter of generation backend calls.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of generation backend calls",
		},
		[]string{"provider", "status"}, // status: success, error
	)

	// toolCallsTotal is a counter of tool executions.
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success, error
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		metricScore,
		metricResultsTotal,
		gateChecksTotal,
		gateRunsTotal,
		samplesTotal,
		harnessRunDuration,
		providerRequestsTotal,
		toolCallsTotal,
	}
)

// RecordMetricResult records one metric evaluation.
func RecordMetricResult(metric string, score float64, passed bool) {
	metricScore.WithLabelValues(metric).Set(score)
	metricResultsTotal.WithLabelValues(metric, passFailStatus(passed)).Inc()
}

// RecordGateCheck records one gate check outcome.
func RecordGateCheck(gate, severity string, passed bool) {
	gateChecksTotal.WithLabelValues(gate, severity, passFailStatus(passed)).Inc()
}

// RecordGateRun records a full gate-runner verdict.
func RecordGateRun(passed bool) {
	gateRunsTotal.WithLabelValues(passFailStatus(passed)).Inc()
}

// RecordSamples records samples drawn for an experiment or statistical test.
func RecordSamples(experiment string, n int) {
	if n > 0 {
		samplesTotal.WithLabelValues(experiment).Add(float64(n))
	}
}

// RecordHarnessRun records a single-agent harness run.
func RecordHarnessRun(success bool, durationSeconds float64) {
	harnessRunDuration.WithLabelValues(successErrorStatus(success)).Observe(durationSeconds)
}

// RecordProviderRequest records a generation backend call.
func RecordProviderRequest(provider string, success bool) {
	providerRequestsTotal.WithLabelValues(provider, successErrorStatus(success)).Inc()
}

// RecordToolCall records a tool execution.
func RecordToolCall(tool string, success bool) {
	toolCallsTotal.WithLabelValues(tool, successErrorStatus(success)).Inc()
}

func passFailStatus(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func successErrorStatus(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
