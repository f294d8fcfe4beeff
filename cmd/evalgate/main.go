// Command evalgate runs a quality-gate suite in CI.
//
// A suite file bundles substitute-client fixtures, golden regression cases,
// and gate configuration. Every case is generated against the fixtures and
// checked against its validation rules and the gate set; any golden failure
// or blocker/critical gate failure exits non-zero.
//
// Usage:
//
//	evalgate -suite suite.yaml
//	evalgate -suite suite.yaml -format json
//	evalgate -suite suite.yaml -metrics :9090
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/EvalKit/evals"
	"github.com/AltairaLabs/EvalKit/logger"
	metrics "github.com/AltairaLabs/EvalKit/metrics/prometheus"
	"github.com/AltairaLabs/EvalKit/providers"
)

// lengthGateSpec configures a length gate.
type lengthGateSpec struct {
	Chars    int            `yaml:"chars"`
	Severity evals.Severity `yaml:"severity"`
}

// markerGateSpec configures the error-marker gate.
type markerGateSpec struct {
	Severity evals.Severity `yaml:"severity"`
	Markers  []string       `yaml:"markers,omitempty"`
}

// patternGateSpec configures one regex gate.
type patternGateSpec struct {
	Name     string         `yaml:"name"`
	Pattern  string         `yaml:"pattern"`
	Severity evals.Severity `yaml:"severity"`
}

// gatesSpec is the gate section of a suite file.
type gatesSpec struct {
	MinLength      *lengthGateSpec   `yaml:"min_length,omitempty"`
	MaxLength      *lengthGateSpec   `yaml:"max_length,omitempty"`
	NoErrorMarkers *markerGateSpec   `yaml:"no_error_markers,omitempty"`
	Patterns       []patternGateSpec `yaml:"patterns,omitempty"`
}

// suiteSpec is the on-disk shape of a gate suite.
type suiteSpec struct {
	Name     string              `yaml:"name"`
	Fixtures []providers.Fixture `yaml:"fixtures"`
	Golden   evals.GoldenSet     `yaml:"golden"`
	Gates    gatesSpec           `yaml:"gates"`
}

// caseReport is the per-case outcome in the machine-readable report.
type caseReport struct {
	ID       string             `json:"id"`
	Passed   bool               `json:"passed"`
	Failures []string           `json:"failures,omitempty"`
	Gates    []evals.GateResult `json:"gates,omitempty"`
}

// suiteReport is the full run outcome.
type suiteReport struct {
	Suite   string       `json:"suite"`
	Success bool         `json:"success"`
	Cases   []caseReport `json:"cases"`
}

func loadSuite(path string) (*suiteSpec, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}
	var suite suiteSpec
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}
	if len(suite.Golden.Cases) == 0 {
		return nil, fmt.Errorf("suite %s has no golden cases", path)
	}
	for i, goldenCase := range suite.Golden.Cases {
		if goldenCase.ID == "" {
			return nil, fmt.Errorf("suite %s: case %d has no id", path, i)
		}
	}
	return &suite, nil
}

// buildGates converts the suite gate section into a runner.
func buildGates(spec gatesSpec) *evals.GateRunner {
	runner := evals.NewGateRunner()
	if spec.MinLength != nil {
		runner.Add(evals.MinLengthGate(spec.MinLength.Chars, spec.MinLength.Severity))
	}
	if spec.MaxLength != nil {
		runner.Add(evals.MaxLengthGate(spec.MaxLength.Chars, spec.MaxLength.Severity))
	}
	if spec.NoErrorMarkers != nil {
		runner.Add(evals.NoErrorMarkersGate(spec.NoErrorMarkers.Severity, spec.NoErrorMarkers.Markers...))
	}
	for _, pattern := range spec.Patterns {
		runner.Add(evals.RegexGate(pattern.Name, pattern.Pattern, pattern.Severity))
	}
	return runner
}

// runSuite executes the suite and renders the report to out.
func runSuite(ctx context.Context, suite *suiteSpec, format string, out io.Writer) (bool, error) {
	provider := providers.NewMockProvider("evalgate")
	for _, fixture := range suite.Fixtures {
		if fixture.Pattern == "" {
			return false, fmt.Errorf("fixture with empty pattern")
		}
		provider.SetResponse(fixture.Pattern, fixture.Response)
	}

	goldenReport, err := evals.NewGoldenRunner(provider).Run(ctx, &suite.Golden)
	if err != nil {
		return false, err
	}

	gates := buildGates(suite.Gates)
	report := suiteReport{Suite: suite.Name, Success: true}
	for _, caseResult := range goldenReport.Results {
		entry := caseReport{
			ID:       caseResult.ID,
			Passed:   caseResult.Passed,
			Failures: caseResult.Failures,
		}
		if caseResult.Output != "" || caseResult.Passed {
			gateReport := gates.Run(caseResult.Output)
			entry.Gates = gateReport.Results
			if !gateReport.Passed {
				entry.Passed = false
				for _, name := range gateReport.FailedGates(true) {
					entry.Failures = append(entry.Failures, fmt.Sprintf("gate %s failed", name))
				}
			}
		}
		if !entry.Passed {
			report.Success = false
		}
		report.Cases = append(report.Cases, entry)
	}

	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return false, err
		}
		return report.Success, nil
	}

	printText(out, &report)
	return report.Success, nil
}

func printText(out io.Writer, report *suiteReport) {
	for _, entry := range report.Cases {
		status := "PASS"
		if !entry.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%s  %s\n", status, entry.ID)
		for _, failure := range entry.Failures {
			fmt.Fprintf(out, "      %s\n", failure)
		}
		for _, gate := range entry.Gates {
			if !gate.Passed {
				fmt.Fprintf(out, "      gate %s (%s): %s\n", gate.Gate, gate.Severity, gate.Message)
			}
		}
	}
	verdict := "suite passed"
	if !report.Success {
		verdict = "suite failed"
	}
	fmt.Fprintf(out, "\n%s: %s (%d cases)\n", report.Suite, verdict, len(report.Cases))
}

// serveMetrics starts a Prometheus exporter on addr and returns a shutdown
// function. An empty addr is a no-op with a no-op shutdown.
func serveMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	exporter := metrics.NewExporter(addr)
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics exporter failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			logger.Warn("metrics exporter shutdown failed", "error", err)
		}
	}
}

func main() {
	suitePath := flag.String("suite", "suite.yaml", "path to the gate suite file")
	format := flag.String("format", "text", "report format: text or json")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address while the suite runs")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logger.SetVerbose(true)
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}
	os.Exit(run(*suitePath, *format, *metricsAddr))
}

// run drives the suite so main can os.Exit after deferred cleanup runs.
func run(suitePath, format, metricsAddr string) int {
	shutdown := serveMetrics(metricsAddr)
	defer shutdown()

	suite, err := loadSuite(suitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evalgate: %v\n", err)
		return 2
	}

	success, err := runSuite(context.Background(), suite, format, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evalgate: %v\n", err)
		return 2
	}
	if !success {
		return 1
	}
	return 0
}
