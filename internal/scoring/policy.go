package scoring

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nao1215/pageaudit/internal/model"
)

// Policy errors returned by Validate.
var (
	// ErrUnknownRule is returned when the deduction table names a rule that does not exist.
	ErrUnknownRule = errors.New("unknown rule in deduction table")

	// ErrInvalidDeduction is returned when a deduction is outside [0,100].
	ErrInvalidDeduction = errors.New("deduction must be between 0 and 100")

	// ErrInvalidWeights is returned when a weight is negative or all weights are zero.
	ErrInvalidWeights = errors.New("weights must be non-negative and not all zero")
)

// Weights controls how the overall score combines the dimension scores.
type Weights struct {
	SEO       int `yaml:"seo" json:"seo"`
	Content   int `yaml:"content" json:"content"`
	Structure int `yaml:"structure" json:"structure"`
}

// DefaultWeights weighs SEO slightly above content and structure.
var DefaultWeights = Weights{SEO: 40, Content: 30, Structure: 30}

// Sum returns the total weight.
func (w Weights) Sum() int {
	return w.SEO + w.Content + w.Structure
}

// Policy is the tunable part of scoring: how many points each rule costs,
// how dimensions are combined, and which issues produce recommendations.
type Policy struct {
	// Deductions maps rule IDs to the points deducted when the rule fails.
	Deductions map[string]int

	// Weights combines dimension scores into the overall score.
	Weights Weights

	// RecommendationThreshold is the least serious severity that still
	// produces a recommendation.
	RecommendationThreshold model.Severity
}

// defaultDeductions is the built-in deduction table.
var defaultDeductions = map[string]int{
	RuleTitleMissing:            25,
	RuleTitleTooShort:           10,
	RuleTitleTooLong:            5,
	RuleMetaDescriptionMissing:  20,
	RuleMetaDescriptionTooShort: 8,
	RuleMetaDescriptionTooLong:  5,
	RuleNoIndex:                 30,
	RuleCanonicalMissing:        5,
	RuleLangMissing:             3,
	RuleOpenGraphMissing:        3,
	RuleContentVeryThin:         40,
	RuleContentThin:             15,
	RuleImagesMissingAlt:        10,
	RuleNoInternalLinks:         5,
	RuleLowMainContent:          5,
	RuleHeadingsMissing:         40,
	RuleH1Missing:               25,
	RuleMultipleH1:              10,
	RuleHeadingLevelsSkipped:    10,
	RuleViewportMissing:         15,
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		Deductions:              maps.Clone(defaultDeductions),
		Weights:                 DefaultWeights,
		RecommendationThreshold: model.SeverityWarning,
	}
}

// WithDeductions returns a copy of p with the given per-rule deductions
// replacing the existing ones. Rules not mentioned keep their value.
func (p Policy) WithDeductions(overrides map[string]int) Policy {
	out := p
	out.Deductions = maps.Clone(p.Deductions)
	if out.Deductions == nil {
		out.Deductions = make(map[string]int, len(overrides))
	}
	for id, points := range overrides {
		out.Deductions[id] = points
	}
	return out
}

// Deduction returns the points deducted for rule id. Unknown rules cost nothing.
func (p Policy) Deduction(id string) int {
	return p.Deductions[id]
}

// Validate checks the policy against a rule set.
func (p Policy) Validate(rules []Rule) error {
	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		known[r.ID] = true
	}

	// Sorted for a deterministic error message.
	for _, id := range slices.Sorted(maps.Keys(p.Deductions)) {
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrUnknownRule, id)
		}
		if points := p.Deductions[id]; points < 0 || points > model.MaxScore {
			return fmt.Errorf("%w: %s=%d", ErrInvalidDeduction, id, points)
		}
	}

	w := p.Weights
	if w.SEO < 0 || w.Content < 0 || w.Structure < 0 || w.Sum() == 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
	}

	if p.RecommendationThreshold < model.SeverityError || p.RecommendationThreshold > model.SeverityInfo {
		return fmt.Errorf("invalid recommendation threshold: %d", p.RecommendationThreshold)
	}

	return nil
}

// Overall combines dimension scores into the overall score using integer
// weighted averaging, rounded half up. It is a pure function of its inputs.
func Overall(seo, content, structure int, w Weights) int {
	total := w.Sum()
	if total <= 0 {
		return 0
	}
	weighted := seo*w.SEO + content*w.Content + structure*w.Structure
	return model.ClampScore((weighted + total/2) / total)
}
