package scoring

import (
	"fmt"
	"log/slog"

	"github.com/nao1215/pageaudit/internal/model"
)

// InvariantViolation reports scores that break the scoring contract.
// It indicates a bug in the engine or its policy, never a page problem.
type InvariantViolation struct {
	Detail string
}

// Error implements the error interface.
func (e *InvariantViolation) Error() string {
	return "scoring invariant violated: " + e.Detail
}

// Result is the outcome of scoring one page.
type Result struct {
	SEOScore       int
	ContentScore   int
	StructureScore int
	OverallScore   int

	// Issues is sorted by severity; Recommendations by priority.
	Issues          []model.Issue
	Recommendations []model.Recommendation

	// FailedRules lists the IDs of violated rules in evaluation order.
	FailedRules []string

	// RuleErrors lists rules that could not be evaluated. Such rules
	// neither deduct points nor emit issues.
	RuleErrors []string
}

// Engine evaluates a rule set against extracted signals.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	rules  []Rule
	policy Policy
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the rule set.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithPolicy replaces the default policy.
func WithPolicy(policy Policy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine. It fails if the policy does not fit the rule set.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		rules:  DefaultRules(),
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.policy.Validate(e.rules); err != nil {
		return nil, fmt.Errorf("invalid scoring policy: %w", err)
	}

	return e, nil
}

// Rules returns the rule set in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Score evaluates every rule against data.
//
// Every rule runs, in order, regardless of whether earlier rules failed.
// The returned error is non-nil only for an *InvariantViolation.
func (e *Engine) Score(data *model.SeoData) (*Result, error) {
	if data == nil {
		data = &model.SeoData{}
	}

	deductions := map[model.IssueType]int{}
	result := &Result{
		Issues:          []model.Issue{},
		Recommendations: []model.Recommendation{},
	}
	seen := make(map[[2]string]bool)

	for _, rule := range e.rules {
		failed, err := evaluate(rule, data)
		if err != nil {
			e.logger.Error("rule evaluation failed", "rule", rule.ID, "error", err)
			result.RuleErrors = append(result.RuleErrors, rule.ID)
			continue
		}
		if !failed {
			continue
		}

		result.FailedRules = append(result.FailedRules, rule.ID)
		deductions[rule.Type] += e.policy.Deduction(rule.ID)
		result.Issues = append(result.Issues, model.Issue{
			Rule:           rule.ID,
			Severity:       rule.Severity,
			Type:           rule.Type,
			Message:        rule.Message,
			Recommendation: rule.Hint,
		})

		if !rule.Severity.AtLeast(e.policy.RecommendationThreshold) || rule.Action == "" {
			continue
		}
		key := [2]string{rule.Category, rule.Action}
		if seen[key] {
			continue
		}
		seen[key] = true
		result.Recommendations = append(result.Recommendations, model.Recommendation{
			Priority: rule.Priority,
			Category: rule.Category,
			Action:   rule.Action,
		})
	}

	result.SEOScore = model.ClampScore(model.MaxScore - deductions[model.IssueTypeSEO])
	result.ContentScore = model.ClampScore(model.MaxScore - deductions[model.IssueTypeContent])
	result.StructureScore = model.ClampScore(model.MaxScore - deductions[model.IssueTypeStructure])
	result.OverallScore = Overall(result.SEOScore, result.ContentScore, result.StructureScore, e.policy.Weights)

	model.SortIssues(result.Issues)
	model.SortRecommendations(result.Recommendations)

	if err := e.Verify(result); err != nil {
		return nil, err
	}

	return result, nil
}

// Verify checks a result against the scoring contract: every score is in
// [0,100] and the overall score matches a fresh recombination of the
// dimension scores.
func (e *Engine) Verify(r *Result) error {
	audit := model.PageAudit{
		SEOScore:        r.SEOScore,
		ContentScore:    r.ContentScore,
		StructureScore:  r.StructureScore,
		OverallScore:    r.OverallScore,
		Issues:          r.Issues,
		Recommendations: r.Recommendations,
	}
	if err := audit.Validate(); err != nil {
		return &InvariantViolation{Detail: err.Error()}
	}

	if want := Overall(r.SEOScore, r.ContentScore, r.StructureScore, e.policy.Weights); want != r.OverallScore {
		return &InvariantViolation{
			Detail: fmt.Sprintf("overall score %d does not match recombined %d", r.OverallScore, want),
		}
	}

	return nil
}

// evaluate runs one rule, turning a panic into an error so a broken rule
// cannot stop the remaining rules from running.
func evaluate(rule Rule, data *model.SeoData) (failed bool, err error) {
	if rule.Fails == nil {
		return false, fmt.Errorf("rule %s has no check", rule.ID)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, r)
		}
	}()
	return rule.Fails(data), nil
}
