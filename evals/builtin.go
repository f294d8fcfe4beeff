package evals

import (
	"strings"
)

// NonEmptyMetric scores 1 when the output has non-whitespace content.
func NonEmptyMetric() Metric {
	return Metric{
		Name:        "non_empty",
		Description: "output has non-whitespace content",
		Threshold:   1.0,
		Calculate: func(_, output string) (float64, map[string]any) {
			if strings.TrimSpace(output) == "" {
				return 0, nil
			}
			return 1, nil
		},
	}
}

// KeywordCoverageMetric scores the fraction of keywords present in the
// output (case-insensitive).
func KeywordCoverageMetric(keywords []string, threshold float64) Metric {
	return Metric{
		Name:        "keyword_coverage",
		Description: "fraction of expected keywords present in the output",
		Threshold:   threshold,
		Calculate: func(_, output string) (float64, map[string]any) {
			if len(keywords) == 0 {
				return 1, nil
			}
			lower := strings.ToLower(output)
			var missing []string
			found := 0
			for _, keyword := range keywords {
				if strings.Contains(lower, strings.ToLower(keyword)) {
					found++
				} else {
					missing = append(missing, keyword)
				}
			}
			details := map[string]any{"found": found, "total": len(keywords)}
			if len(missing) > 0 {
				details["missing"] = missing
			}
			return float64(found) / float64(len(keywords)), details
		},
	}
}

// LengthRatioMetric scores how close the output length is to the target
// band [minChars, maxChars]: 1 inside the band, decaying linearly to 0 at
// zero length or twice the maximum.
func LengthRatioMetric(minChars, maxChars int, threshold float64) Metric {
	return Metric{
		Name:        "length_ratio",
		Description: "output length sits within the target band",
		Threshold:   threshold,
		Calculate: func(_, output string) (float64, map[string]any) {
			n := len(output)
			details := map[string]any{"length": n, "min": minChars, "max": maxChars}
			switch {
			case n >= minChars && n <= maxChars:
				return 1, details
			case n < minChars:
				if minChars == 0 {
					return 1, details
				}
				return float64(n) / float64(minChars), details
			default:
				overflow := float64(n-maxChars) / float64(maxChars)
				if overflow >= 1 {
					return 0, details
				}
				return 1 - overflow, details
			}
		},
	}
}
