package stats

import (
	"github.com/nao1215/pageaudit/internal/model"
)

// Direction summarizes how the overall score changed between two audits.
type Direction string

// Direction values.
const (
	DirectionImproved  Direction = "improved"
	DirectionDeclined  Direction = "declined"
	DirectionUnchanged Direction = "unchanged"
)

// Comparison describes the change between two audits of the same page.
type Comparison struct {
	PageURL string `json:"page_url"`
	OlderID string `json:"older_id"`
	NewerID string `json:"newer_id"`

	// Deltas are newer minus older.
	SEODelta       int `json:"seo_delta"`
	ContentDelta   int `json:"content_delta"`
	StructureDelta int `json:"structure_delta"`
	OverallDelta   int `json:"overall_delta"`

	Direction Direction `json:"direction"`

	// NewIssues appear only in the newer audit; ResolvedIssues only in the older.
	NewIssues      []model.Issue `json:"new_issues"`
	ResolvedIssues []model.Issue `json:"resolved_issues"`
}

// Compare reports what changed from older to newer.
func Compare(older, newer *model.PageAudit) Comparison {
	c := Comparison{
		PageURL:        newer.PageURL,
		OlderID:        older.ID,
		NewerID:        newer.ID,
		SEODelta:       newer.SEOScore - older.SEOScore,
		ContentDelta:   newer.ContentScore - older.ContentScore,
		StructureDelta: newer.StructureScore - older.StructureScore,
		OverallDelta:   newer.OverallScore - older.OverallScore,
		NewIssues:      diffIssues(newer.Issues, older.Issues),
		ResolvedIssues: diffIssues(older.Issues, newer.Issues),
	}

	switch {
	case c.OverallDelta > 0:
		c.Direction = DirectionImproved
	case c.OverallDelta < 0:
		c.Direction = DirectionDeclined
	default:
		c.Direction = DirectionUnchanged
	}

	return c
}

// diffIssues returns the issues in a that have no counterpart in b.
func diffIssues(a, b []model.Issue) []model.Issue {
	present := make(map[string]bool, len(b))
	for _, issue := range b {
		present[issueKey(issue)] = true
	}

	out := make([]model.Issue, 0)
	for _, issue := range a {
		if !present[issueKey(issue)] {
			out = append(out, issue)
		}
	}
	return out
}

// issueKey identifies an issue across audits. Records written without a
// rule ID fall back to type and message.
func issueKey(issue model.Issue) string {
	if issue.Rule != "" {
		return issue.Rule
	}
	return string(issue.Type) + ":" + issue.Message
}
