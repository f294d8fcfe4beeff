package raters

import (
	"fmt"
	"sort"
)

// Reliability is the inter-rater agreement outcome for one criterion.
type Reliability struct {
	Criterion      string  `json:"criterion"`
	Tasks          int     `json:"tasks"` // tasks with >=2 completed evaluations
	Observed       float64 `json:"observed_agreement"`
	Expected       float64 `json:"expected_agreement"`
	Kappa          float64 `json:"kappa"`
	Interpretation string  `json:"interpretation"`
}

// InterRaterReliability computes Cohen's kappa for one criterion over every
// task with at least two submitted evaluations. Observed agreement is the
// fraction of rating pairs that match exactly; expected agreement comes
// from the empirical rating distribution across all considered ratings.
func (m *Manager) InterRaterReliability(criterion string) (*Reliability, error) {
	if !m.hasCriterion(criterion) {
		return nil, fmt.Errorf("unknown criterion %s", criterion)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		pairsTotal  int
		pairsAgree  int
		ratingCount = make(map[float64]int)
		totalRating int
		tasks       int
	)
	for _, task := range m.tasks {
		if len(task.Evaluations) < 2 {
			continue
		}
		ratings := make([]float64, 0, len(task.Evaluations))
		for _, evaluation := range task.Evaluations {
			rating, ok := evaluation.Ratings[criterion]
			if !ok {
				continue
			}
			ratings = append(ratings, rating)
		}
		if len(ratings) < 2 {
			continue
		}
		tasks++
		for _, rating := range ratings {
			ratingCount[rating]++
			totalRating++
		}
		for i := 0; i < len(ratings); i++ {
			for j := i + 1; j < len(ratings); j++ {
				pairsTotal++
				if ratings[i] == ratings[j] {
					pairsAgree++
				}
			}
		}
	}
	if tasks == 0 {
		return nil, fmt.Errorf("no tasks with at least 2 evaluations for criterion %s", criterion)
	}

	observed := float64(pairsAgree) / float64(pairsTotal)
	expected := 0.0
	for _, count := range ratingCount {
		p := float64(count) / float64(totalRating)
		expected += p * p
	}

	r := &Reliability{
		Criterion: criterion,
		Tasks:     tasks,
		Observed:  observed,
		Expected:  expected,
	}
	if expected >= 1 {
		// Everyone used a single rating value: perfect agreement with no
		// room for chance correction.
		r.Kappa = 1
	} else {
		r.Kappa = (observed - expected) / (1 - expected)
	}
	r.Interpretation = InterpretKappa(r.Kappa)
	return r, nil
}

// InterpretKappa buckets a kappa value into the Landis-Koch bands.
func InterpretKappa(kappa float64) string {
	switch {
	case kappa < 0:
		return "poor"
	case kappa < 0.2:
		return "slight"
	case kappa < 0.4:
		return "fair"
	case kappa < 0.6:
		return "moderate"
	case kappa < 0.8:
		return "substantial"
	default:
		return "almost-perfect"
	}
}

// ReliabilityReport computes reliability for every criterion that has
// enough overlapping evaluations, sorted by criterion name. Criteria
// without overlap are skipped rather than failing the report.
func (m *Manager) ReliabilityReport() []Reliability {
	names := make([]string, 0, len(m.criteria))
	for _, criterion := range m.criteria {
		names = append(names, criterion.Name)
	}
	sort.Strings(names)

	var out []Reliability
	for _, name := range names {
		r, err := m.InterRaterReliability(name)
		if err != nil {
			continue
		}
		out = append(out, *r)
	}
	return out
}
