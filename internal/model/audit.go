package model

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// MinScore and MaxScore bound every score.
const (
	MinScore = 0
	MaxScore = 100
)

// PageAudit is the persisted result of auditing one URL.
// A PageAudit is created once by the auditor and never modified afterwards;
// auditing the same URL again produces a new record.
type PageAudit struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// PageURL is the audited URL as requested.
	PageURL string `json:"page_url"`

	// AuditDate is when the record was created.
	AuditDate time.Time `json:"audit_date"`

	// SEOScore, ContentScore and StructureScore are the dimension scores (0-100).
	SEOScore       int `json:"seo_score"`
	ContentScore   int `json:"content_score"`
	StructureScore int `json:"structure_score"`

	// OverallScore combines the three dimension scores (0-100).
	OverallScore int `json:"overall_score"`

	// Issues is sorted by severity, errors first.
	Issues []Issue `json:"issues"`

	// Recommendations is sorted by priority, high first.
	Recommendations []Recommendation `json:"recommendations"`

	// RawData holds the extracted signals the scores were computed from.
	RawData SeoData `json:"raw_data"`
}

// Issue is a problem found on a page.
type Issue struct {
	// Rule is the identifier of the rule that produced the issue.
	Rule string `json:"rule,omitempty"`

	Severity Severity  `json:"severity"`
	Type     IssueType `json:"type"`
	Message  string    `json:"message"`

	// Recommendation is an optional short hint on how to fix the issue.
	Recommendation string `json:"recommendation,omitempty"`
}

// Recommendation is a suggested fix.
type Recommendation struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Action   string   `json:"action"`
}

// Band returns the band of the overall score.
func (a *PageAudit) Band() ScoreBand {
	return BandForScore(a.OverallScore)
}

// Scores returns the four scores in SEO, Content, Structure, Overall order.
func (a *PageAudit) Scores() [4]int {
	return [4]int{a.SEOScore, a.ContentScore, a.StructureScore, a.OverallScore}
}

// CountBySeverity returns the number of issues with the given severity.
func (a *PageAudit) CountBySeverity(severity Severity) int {
	count := 0
	for _, issue := range a.Issues {
		if issue.Severity == severity {
			count++
		}
	}
	return count
}

// ErrScoreOutOfRange is returned by Validate when a score is outside [0,100].
var ErrScoreOutOfRange = errors.New("score out of range")

// ErrUnsorted is returned by Validate when issues or recommendations are not ordered.
var ErrUnsorted = errors.New("unsorted audit entries")

// Validate checks the structural invariants of a record: all scores are in
// range, issues are ordered by severity and recommendations by priority.
func (a *PageAudit) Validate() error {
	names := [4]string{"seo", "content", "structure", "overall"}
	for i, score := range a.Scores() {
		if score < MinScore || score > MaxScore {
			return fmt.Errorf("%w: %s score %d", ErrScoreOutOfRange, names[i], score)
		}
	}
	if !slices.IsSortedFunc(a.Issues, compareIssues) {
		return fmt.Errorf("%w: issues not ordered by severity", ErrUnsorted)
	}
	if !slices.IsSortedFunc(a.Recommendations, compareRecommendations) {
		return fmt.Errorf("%w: recommendations not ordered by priority", ErrUnsorted)
	}
	return nil
}

// SortIssues orders issues by severity rank. The sort is stable, so issues
// of the same severity keep the order their rules produced them in.
func SortIssues(issues []Issue) {
	slices.SortStableFunc(issues, compareIssues)
}

// SortRecommendations orders recommendations by priority rank, stably.
func SortRecommendations(recs []Recommendation) {
	slices.SortStableFunc(recs, compareRecommendations)
}

func compareIssues(a, b Issue) int {
	return a.Severity.Rank() - b.Severity.Rank()
}

func compareRecommendations(a, b Recommendation) int {
	return a.Priority.Rank() - b.Priority.Rank()
}

// ClampScore limits score to [MinScore, MaxScore].
func ClampScore(score int) int {
	return max(MinScore, min(MaxScore, score))
}
