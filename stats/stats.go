// Package stats runs repeated-sample statistical tests over non-deterministic
// generation: descriptive statistics, one-sample threshold tests, and
// two-sample prompt comparisons with effect sizes.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Summary holds descriptive statistics for one sample of scores.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // sample standard deviation (n-1)
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe computes descriptive statistics. An empty sample is an error.
func Describe(scores []float64) (Summary, error) {
	if len(scores) == 0 {
		return Summary{}, fmt.Errorf("no scores to describe")
	}

	s := Summary{N: len(scores), Min: scores[0], Max: scores[0]}
	sum := 0.0
	for _, v := range scores {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = sum / float64(s.N)

	if s.N > 1 {
		ss := 0.0
		for _, v := range scores {
			d := v - s.Mean
			ss += d * d
		}
		s.StdDev = math.Sqrt(ss / float64(s.N-1))
	}
	return s, nil
}

// ConfidenceInterval returns the normal-approximation interval around the
// sample mean at the given confidence level (e.g. 0.95). With zero variance
// the interval degenerates to [mean, mean].
func ConfidenceInterval(scores []float64, level float64) (low, high float64, err error) {
	if level <= 0 || level >= 1 {
		return 0, 0, fmt.Errorf("confidence level %g outside (0, 1)", level)
	}
	s, err := Describe(scores)
	if err != nil {
		return 0, 0, err
	}
	if s.StdDev == 0 {
		return s.Mean, s.Mean, nil
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	z := normal.Quantile(1 - (1-level)/2)
	margin := z * s.StdDev / math.Sqrt(float64(s.N))
	return s.Mean - margin, s.Mean + margin, nil
}

// TTestResult is the outcome of a t-test.
type TTestResult struct {
	TStat    float64 `json:"t_stat"`
	DF       float64 `json:"df"`
	PValue   float64 `json:"p_value"`
	MeanDiff float64 `json:"mean_diff"`
}

// OneSampleTTest tests whether the sample mean exceeds the threshold.
// The p-value is one-sided upper: small p means the mean is credibly above
// the threshold. Requires at least two scores. With zero variance p is 0
// when the mean beats the threshold and 1 otherwise.
func OneSampleTTest(scores []float64, threshold float64) (TTestResult, error) {
	s, err := Describe(scores)
	if err != nil {
		return TTestResult{}, err
	}
	if s.N < 2 {
		return TTestResult{}, fmt.Errorf("one-sample t-test needs at least 2 scores, got %d", s.N)
	}

	result := TTestResult{DF: float64(s.N - 1), MeanDiff: s.Mean - threshold}
	if s.StdDev == 0 {
		if s.Mean > threshold {
			result.TStat = math.Inf(1)
			result.PValue = 0
		} else {
			result.TStat = math.Inf(-1)
			result.PValue = 1
		}
		return result, nil
	}

	result.TStat = result.MeanDiff / (s.StdDev / math.Sqrt(float64(s.N)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: result.DF}
	result.PValue = 1 - dist.CDF(result.TStat)
	return result, nil
}

// WelchTTest compares two independent samples without assuming equal
// variance, with Welch-Satterthwaite degrees of freedom. The p-value is
// two-sided. Requires at least two scores per sample. When both samples
// have zero variance p is 0 for different means and 1 for equal means.
func WelchTTest(a, b []float64) (TTestResult, error) {
	sa, err := Describe(a)
	if err != nil {
		return TTestResult{}, fmt.Errorf("first sample: %w", err)
	}
	sb, err := Describe(b)
	if err != nil {
		return TTestResult{}, fmt.Errorf("second sample: %w", err)
	}
	if sa.N < 2 || sb.N < 2 {
		return TTestResult{}, fmt.Errorf("welch t-test needs at least 2 scores per sample, got %d and %d", sa.N, sb.N)
	}

	result := TTestResult{MeanDiff: sa.Mean - sb.Mean}

	va := sa.StdDev * sa.StdDev / float64(sa.N)
	vb := sb.StdDev * sb.StdDev / float64(sb.N)
	se := math.Sqrt(va + vb)
	if se == 0 {
		result.DF = float64(sa.N + sb.N - 2)
		if result.MeanDiff == 0 {
			result.PValue = 1
		} else {
			result.TStat = math.Inf(sign(result.MeanDiff))
			result.PValue = 0
		}
		return result, nil
	}

	result.TStat = result.MeanDiff / se
	result.DF = (va + vb) * (va + vb) /
		(va*va/float64(sa.N-1) + vb*vb/float64(sb.N-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: result.DF}
	result.PValue = 2 * (1 - dist.CDF(math.Abs(result.TStat)))
	return result, nil
}

// CohenD computes the standardized mean difference using the pooled
// standard deviation. Zero pooled deviation yields 0.
func CohenD(a, b []float64) (float64, error) {
	sa, err := Describe(a)
	if err != nil {
		return 0, fmt.Errorf("first sample: %w", err)
	}
	sb, err := Describe(b)
	if err != nil {
		return 0, fmt.Errorf("second sample: %w", err)
	}
	if sa.N < 2 || sb.N < 2 {
		return 0, fmt.Errorf("effect size needs at least 2 scores per sample, got %d and %d", sa.N, sb.N)
	}

	pooled := math.Sqrt((float64(sa.N-1)*sa.StdDev*sa.StdDev + float64(sb.N-1)*sb.StdDev*sb.StdDev) /
		float64(sa.N+sb.N-2))
	if pooled == 0 {
		return 0, nil
	}
	return (sa.Mean - sb.Mean) / pooled, nil
}

// EffectSizeLabel buckets an absolute Cohen's d into the conventional
// interpretation bands.
func EffectSizeLabel(d float64) string {
	switch abs := math.Abs(d); {
	case abs < 0.2:
		return "negligible"
	case abs < 0.5:
		return "small"
	case abs < 0.8:
		return "medium"
	default:
		return "large"
	}
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
