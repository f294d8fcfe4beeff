package evals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
)

// Severity classifies how a failed gate affects the overall verdict.
type Severity string

const (
	// SeverityBlocker gates fail the run when they fail.
	SeverityBlocker Severity = "blocker"
	// SeverityCritical gates fail the run when they fail.
	SeverityCritical Severity = "critical"
	// SeverityWarning gates are advisory; their failures never flip the verdict.
	SeverityWarning Severity = "warning"
)

// GateCheck inspects an output and reports pass/fail with a message.
type GateCheck func(output string) (passed bool, message string)

// Gate is a named boolean check with a severity.
type Gate struct {
	Name     string
	Severity Severity
	Check    GateCheck
}

// GateResult is the outcome of one gate over one output.
type GateResult struct {
	Gate     string   `json:"gate"`
	Severity Severity `json:"severity"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message,omitempty"`
}

// SeverityCount summarizes gate outcomes for one severity.
type SeverityCount struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// GateReport is the aggregate verdict over all gates.
// Passed is false iff at least one blocker or critical gate failed.
type GateReport struct {
	Passed  bool                       `json:"passed"`
	Results []GateResult               `json:"results"`
	Counts  map[Severity]SeverityCount `json:"counts"`
}

// FailedGates returns the names of failed gates, optionally filtered to the
// severities that affect the verdict.
func (r *GateReport) FailedGates(verdictOnly bool) []string {
	var failed []string
	for _, result := range r.Results {
		if result.Passed {
			continue
		}
		if verdictOnly && result.Severity == SeverityWarning {
			continue
		}
		failed = append(failed, result.Gate)
	}
	return failed
}

// GateRunner runs an ordered list of gates against a single output.
type GateRunner struct {
	gates []Gate
}

// NewGateRunner creates a runner over the given gates, kept in order.
func NewGateRunner(gates ...Gate) *GateRunner {
	return &GateRunner{gates: gates}
}

// Add appends a gate to the end of the run order.
func (gr *GateRunner) Add(gate Gate) {
	gr.gates = append(gr.gates, gate)
}

// Run evaluates every gate in order. A check that panics is treated as a
// failed check, never propagated: gate evaluation always completes and
// produces a report.
func (gr *GateRunner) Run(output string) *GateReport {
	report := &GateReport{
		Passed: true,
		Counts: make(map[Severity]SeverityCount),
	}

	for _, gate := range gr.gates {
		passed, message := runCheck(gate, output)

		result := GateResult{
			Gate:     gate.Name,
			Severity: gate.Severity,
			Passed:   passed,
			Message:  message,
		}
		report.Results = append(report.Results, result)

		count := report.Counts[gate.Severity]
		count.Total++
		if !passed {
			count.Failed++
			if gate.Severity == SeverityBlocker || gate.Severity == SeverityCritical {
				report.Passed = false
			}
		}
		report.Counts[gate.Severity] = count

		logger.EvalOutcome(gate.Name, passed, boolScore(passed), "severity", string(gate.Severity))
		metrics.RecordGateCheck(gate.Name, string(gate.Severity), passed)
	}
	metrics.RecordGateRun(report.Passed)

	return report
}

// runCheck executes one gate check with panic recovery.
func runCheck(gate Gate, output string) (passed bool, message string) {
	defer func() {
		if r := recover(); r != nil {
			passed = false
			message = fmt.Sprintf("check panicked: %v", r)
		}
	}()
	return gate.Check(output)
}

func boolScore(passed bool) float64 {
	if passed {
		return 1
	}
	return 0
}

// MinLengthGate fails when the output is shorter than min characters.
func MinLengthGate(min int, severity Severity) Gate {
	return Gate{
		Name:     "min_length",
		Severity: severity,
		Check: func(output string) (bool, string) {
			if len(output) < min {
				return false, fmt.Sprintf("output length %d below minimum %d", len(output), min)
			}
			return true, ""
		},
	}
}

// MaxLengthGate fails when the output exceeds max characters.
func MaxLengthGate(max int, severity Severity) Gate {
	return Gate{
		Name:     "max_length",
		Severity: severity,
		Check: func(output string) (bool, string) {
			if len(output) > max {
				return false, fmt.Sprintf("output length %d above maximum %d", len(output), max)
			}
			return true, ""
		},
	}
}

// defaultErrorMarkers are substrings that indicate a degenerate generation.
var defaultErrorMarkers = []string{"ERROR", "I cannot", "As an AI"}

// NoErrorMarkersGate fails when the output contains any of the given
// markers. With no markers it checks a default set.
func NoErrorMarkersGate(severity Severity, markers ...string) Gate {
	if len(markers) == 0 {
		markers = defaultErrorMarkers
	}
	return Gate{
		Name:     "no_error_markers",
		Severity: severity,
		Check: func(output string) (bool, string) {
			if output == "" {
				return false, "output is empty"
			}
			for _, marker := range markers {
				if strings.Contains(output, marker) {
					return false, fmt.Sprintf("output contains error marker %q", marker)
				}
			}
			return true, ""
		},
	}
}

// RegexGate fails when the output does not match the pattern.
// The pattern is compiled once at construction; a bad pattern yields a gate
// that always fails with the compile error.
func RegexGate(name, pattern string, severity Severity) Gate {
	re, err := regexp.Compile(pattern)
	return Gate{
		Name:     name,
		Severity: severity,
		Check: func(output string) (bool, string) {
			if err != nil {
				return false, fmt.Sprintf("invalid pattern %q: %v", pattern, err)
			}
			if !re.MatchString(output) {
				return false, fmt.Sprintf("output does not match %q", pattern)
			}
			return true, ""
		},
	}
}
