package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/EvalKit/logger"
)

// inputPlaceholder marks where a variant template receives the case input.
const inputPlaceholder = "{{input}}"

// Variant is one named arm of an experiment: a generation template plus
// optional backend configuration passed through to the sampler.
type Variant struct {
	Name     string         `json:"name" yaml:"name"`
	Template string         `json:"template" yaml:"template"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Prompt renders the template for a case input. Templates reference the
// input via {{input}}; a template without the placeholder gets the input
// appended.
func (v Variant) Prompt(input string) string {
	if strings.Contains(v.Template, inputPlaceholder) {
		return strings.ReplaceAll(v.Template, inputPlaceholder, input)
	}
	if v.Template == "" {
		return input
	}
	return v.Template + "\n\n" + input
}

// TestCase is one shared input evaluated under every variant.
type TestCase struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Input string `json:"input" yaml:"input"`
}

// WeightedScorer is one evaluator with its relative weight in the combined
// score. Weights need not sum to 1; they are normalized at scoring time.
type WeightedScorer struct {
	Name   string
	Weight float64
	Score  Scorer
}

// VariantSampler produces one generation for a variant's rendered prompt.
// The variant is passed so samplers can honor per-variant configuration.
type VariantSampler func(ctx context.Context, variant Variant, prompt string) (string, error)

// Experiment evaluates N variants against a shared case set.
type Experiment struct {
	variants       []Variant
	cases          []TestCase
	scorers        []WeightedScorer
	samplesPerCase int
	concurrency    int
}

// ExperimentOption configures an experiment.
type ExperimentOption func(*Experiment)

// WithSamplesPerCase sets how many generations each (variant, case) pair
// draws. Defaults to 5.
func WithSamplesPerCase(n int) ExperimentOption {
	return func(e *Experiment) { e.samplesPerCase = n }
}

// WithConcurrency bounds in-flight generations per variant. Defaults to 4.
func WithConcurrency(n int) ExperimentOption {
	return func(e *Experiment) { e.concurrency = n }
}

// NewExperiment creates an experiment. At least two variants, one case, and
// one scorer are required, and every variant needs at least two total
// samples for the pairwise tests to be defined.
func NewExperiment(variants []Variant, cases []TestCase, scorers []WeightedScorer, opts ...ExperimentOption) (*Experiment, error) {
	e := &Experiment{
		variants:       variants,
		cases:          cases,
		scorers:        scorers,
		samplesPerCase: 5,
		concurrency:    4,
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(e.variants) < 2 {
		return nil, fmt.Errorf("experiment needs at least 2 variants, got %d", len(e.variants))
	}
	seen := make(map[string]bool, len(e.variants))
	for _, v := range e.variants {
		if v.Name == "" {
			return nil, fmt.Errorf("variant name must not be empty")
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("duplicate variant name %s", v.Name)
		}
		seen[v.Name] = true
	}
	if len(e.cases) == 0 {
		return nil, fmt.Errorf("experiment needs at least 1 test case")
	}
	if len(e.scorers) == 0 {
		return nil, fmt.Errorf("experiment needs at least 1 scorer")
	}
	for _, s := range e.scorers {
		if s.Score == nil {
			return nil, fmt.Errorf("scorer %s has no score function", s.Name)
		}
		if s.Weight <= 0 {
			return nil, fmt.Errorf("scorer %s weight %g must be positive", s.Name, s.Weight)
		}
	}
	if e.samplesPerCase < 1 {
		return nil, fmt.Errorf("samples per case %d must be at least 1", e.samplesPerCase)
	}
	if len(e.cases)*e.samplesPerCase < 2 {
		return nil, fmt.Errorf("need at least 2 samples per variant, got %d", len(e.cases)*e.samplesPerCase)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e, nil
}

// VariantSummary is one variant's aggregate outcome.
type VariantSummary struct {
	Name    string    `json:"name"`
	Rank    int       `json:"rank"` // 1 is best
	Scores  []float64 `json:"scores"`
	Summary Summary   `json:"summary"`
}

// PairwiseComparison is one variant-pair statistical comparison.
type PairwiseComparison struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	TStat       float64 `json:"t_stat"`
	PValue      float64 `json:"p_value"`
	EffectSize  float64 `json:"effect_size"`
	EffectLabel string  `json:"effect_label"`
	Significant bool    `json:"significant"`
}

// ExperimentReport ranks all variants and reports every pairwise comparison.
// Winner is the top-ranked variant by mean; WinnerCaveat is set when no
// pairwise comparison reached significance, meaning the ranking is noise.
type ExperimentReport struct {
	Variants     []VariantSummary     `json:"variants"` // sorted by rank
	Pairwise     []PairwiseComparison `json:"pairwise"`
	Winner       string               `json:"winner"`
	WinnerCaveat string               `json:"winner_caveat,omitempty"`
}

// Run samples every (variant, case) pair samplesPerCase times, scores each
// generation with the weighted scorer set, and compares all variant pairs.
// Scores keep issuance order within each variant.
func (e *Experiment) Run(ctx context.Context, sample VariantSampler) (*ExperimentReport, error) {
	if sample == nil {
		return nil, fmt.Errorf("sampler is required")
	}

	scoresByVariant := make(map[string][]float64, len(e.variants))
	for _, variant := range e.variants {
		scores, err := e.runVariant(ctx, variant, sample)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.Name, err)
		}
		scoresByVariant[variant.Name] = scores
	}

	report := &ExperimentReport{}
	for _, variant := range e.variants {
		scores := scoresByVariant[variant.Name]
		summary, err := Describe(scores)
		if err != nil {
			return nil, err
		}
		report.Variants = append(report.Variants, VariantSummary{
			Name:    variant.Name,
			Scores:  scores,
			Summary: summary,
		})
	}

	// Stable sort keeps declaration order for exact mean ties.
	sort.SliceStable(report.Variants, func(i, j int) bool {
		return report.Variants[i].Summary.Mean > report.Variants[j].Summary.Mean
	})
	for i := range report.Variants {
		report.Variants[i].Rank = i + 1
	}
	report.Winner = report.Variants[0].Name

	anySignificant := false
	for i := 0; i < len(e.variants); i++ {
		for j := i + 1; j < len(e.variants); j++ {
			a, b := e.variants[i].Name, e.variants[j].Name
			cmp, err := comparePair(a, b, scoresByVariant[a], scoresByVariant[b])
			if err != nil {
				return nil, err
			}
			if cmp.Significant {
				anySignificant = true
			}
			report.Pairwise = append(report.Pairwise, cmp)
		}
	}
	if !anySignificant {
		report.WinnerCaveat = "no pairwise comparison reached significance; the ranking may be noise"
	}

	logger.Info("experiment complete",
		"variants", len(e.variants),
		"winner", report.Winner,
		"significant", anySignificant)

	return report, nil
}

// runVariant draws all samples for one variant, issuance order preserved.
func (e *Experiment) runVariant(ctx context.Context, variant Variant, sample VariantSampler) ([]float64, error) {
	total := len(e.cases) * e.samplesPerCase
	scores := make([]float64, total)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for c, testCase := range e.cases {
		c, testCase := c, testCase
		for s := 0; s < e.samplesPerCase; s++ {
			s := s
			idx := c*e.samplesPerCase + s
			input := testCase.Input
			prompt := variant.Prompt(input)
			g.Go(func() error {
				output, err := sample(gctx, variant, prompt)
				if err != nil {
					return fmt.Errorf("case %d sample %d: %w", c, s, err)
				}
				combined := e.combinedScore(input, output)
				mu.Lock()
				scores[idx] = combined
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// combinedScore is the weight-normalized mean of all scorers.
func (e *Experiment) combinedScore(input, output string) float64 {
	total, weighted := 0.0, 0.0
	for _, scorer := range e.scorers {
		total += scorer.Weight
		weighted += scorer.Weight * scorer.Score(input, output)
	}
	return weighted / total
}

func comparePair(nameA, nameB string, a, b []float64) (PairwiseComparison, error) {
	ttest, err := WelchTTest(a, b)
	if err != nil {
		return PairwiseComparison{}, fmt.Errorf("%s vs %s: %w", nameA, nameB, err)
	}
	d, err := CohenD(a, b)
	if err != nil {
		return PairwiseComparison{}, fmt.Errorf("%s vs %s: %w", nameA, nameB, err)
	}
	return PairwiseComparison{
		A:           nameA,
		B:           nameB,
		TStat:       ttest.TStat,
		PValue:      ttest.PValue,
		EffectSize:  d,
		EffectLabel: EffectSizeLabel(d),
		Significant: ttest.PValue < significanceLevel,
	}, nil
}
