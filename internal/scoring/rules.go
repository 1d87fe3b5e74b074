package scoring

import (
	"strings"

	"github.com/nao1215/pageaudit/internal/model"
)

// Ideal length bands, in characters.
const (
	TitleMinLength           = 50
	TitleMaxLength           = 60
	MetaDescriptionMinLength = 150
	MetaDescriptionMaxLength = 160
)

// Word count thresholds for the content dimension.
const (
	VeryThinContentWords = 100
	ThinContentWords     = 300

	// MainContentMinRatio is the minimum share (percent) of visible words
	// expected inside the main content block.
	MainContentMinRatio = 20
)

// Rule identifiers. They key the deduction table and are stored on issues.
const (
	RuleTitleMissing            = "title_missing"
	RuleTitleTooShort           = "title_too_short"
	RuleTitleTooLong            = "title_too_long"
	RuleMetaDescriptionMissing  = "meta_description_missing"
	RuleMetaDescriptionTooShort = "meta_description_too_short"
	RuleMetaDescriptionTooLong  = "meta_description_too_long"
	RuleNoIndex                 = "noindex"
	RuleCanonicalMissing        = "canonical_missing"
	RuleLangMissing             = "lang_missing"
	RuleOpenGraphMissing        = "open_graph_missing"
	RuleContentVeryThin         = "content_very_thin"
	RuleContentThin             = "content_thin"
	RuleImagesMissingAlt        = "images_missing_alt"
	RuleNoInternalLinks         = "no_internal_links"
	RuleLowMainContent          = "low_main_content"
	RuleHeadingsMissing         = "headings_missing"
	RuleH1Missing               = "h1_missing"
	RuleMultipleH1              = "multiple_h1"
	RuleHeadingLevelsSkipped    = "heading_levels_skipped"
	RuleViewportMissing         = "viewport_missing"
)

// Rule is one check in the rule set.
//
// Fails inspects the signals and reports whether the rule is violated. A
// violated rule deducts its policy points from its dimension and emits an
// Issue; when its severity reaches the policy threshold it also emits a
// Recommendation.
type Rule struct {
	ID       string
	Type     model.IssueType
	Severity model.Severity
	Message  string

	// Hint is attached to the issue as a short fix suggestion.
	Hint string

	Priority model.Priority
	Category string
	Action   string

	Fails func(d *model.SeoData) bool
}

// DefaultRules returns the built-in rule set in evaluation order.
// Within each dimension the order here is the order issues are reported in.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, 20)
	rules = append(rules, seoRules()...)
	rules = append(rules, contentRules()...)
	rules = append(rules, structureRules()...)
	return rules
}

func seoRules() []Rule {
	return []Rule{
		{
			ID:       RuleTitleMissing,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityError,
			Message:  "title missing",
			Hint:     "add a descriptive <title> element",
			Priority: model.PriorityHigh,
			Category: "title",
			Action:   "add a title of 50-60 chars",
			Fails: func(d *model.SeoData) bool {
				return d.Title == nil
			},
		},
		{
			ID:       RuleTitleTooShort,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityWarning,
			Message:  "title too short",
			Hint:     "titles between 50 and 60 characters display fully in search results",
			Priority: model.PriorityHigh,
			Category: "title",
			Action:   "lengthen title to 50-60 chars",
			Fails: func(d *model.SeoData) bool {
				return d.TitleLength != nil && *d.TitleLength < TitleMinLength
			},
		},
		{
			ID:       RuleTitleTooLong,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityWarning,
			Message:  "title too long",
			Hint:     "search engines truncate titles longer than 60 characters",
			Priority: model.PriorityMedium,
			Category: "title",
			Action:   "shorten title to 50-60 chars",
			Fails: func(d *model.SeoData) bool {
				return d.TitleLength != nil && *d.TitleLength > TitleMaxLength
			},
		},
		{
			ID:       RuleMetaDescriptionMissing,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityError,
			Message:  "meta description missing",
			Hint:     `add <meta name="description"> summarizing the page`,
			Priority: model.PriorityHigh,
			Category: "meta description",
			Action:   "add a meta description of 150-160 chars",
			Fails: func(d *model.SeoData) bool {
				return d.MetaDescription == nil
			},
		},
		{
			ID:       RuleMetaDescriptionTooShort,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityWarning,
			Message:  "meta description too short",
			Hint:     "descriptions between 150 and 160 characters make the best snippets",
			Priority: model.PriorityMedium,
			Category: "meta description",
			Action:   "lengthen meta description to 150-160 chars",
			Fails: func(d *model.SeoData) bool {
				return d.MetaDescriptionLength != nil && *d.MetaDescriptionLength < MetaDescriptionMinLength
			},
		},
		{
			ID:       RuleMetaDescriptionTooLong,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityWarning,
			Message:  "meta description too long",
			Hint:     "search engines truncate descriptions longer than 160 characters",
			Priority: model.PriorityLow,
			Category: "meta description",
			Action:   "shorten meta description to 150-160 chars",
			Fails: func(d *model.SeoData) bool {
				return d.MetaDescriptionLength != nil && *d.MetaDescriptionLength > MetaDescriptionMaxLength
			},
		},
		{
			ID:       RuleNoIndex,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityError,
			Message:  "page is marked noindex",
			Hint:     "remove noindex from the robots meta tag if the page should rank",
			Priority: model.PriorityHigh,
			Category: "indexing",
			Action:   "remove noindex from robots meta tag",
			Fails: func(d *model.SeoData) bool {
				return d.Robots != nil && strings.Contains(*d.Robots, "noindex")
			},
		},
		{
			ID:       RuleCanonicalMissing,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityInfo,
			Message:  "canonical link missing",
			Hint:     `add <link rel="canonical"> to consolidate duplicate URLs`,
			Priority: model.PriorityLow,
			Category: "indexing",
			Action:   "add a canonical link",
			Fails: func(d *model.SeoData) bool {
				return d.Canonical == nil
			},
		},
		{
			ID:       RuleLangMissing,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityInfo,
			Message:  "html lang attribute missing",
			Hint:     `declare the page language, e.g. <html lang="en">`,
			Priority: model.PriorityLow,
			Category: "language",
			Action:   "set the lang attribute on <html>",
			Fails: func(d *model.SeoData) bool {
				return d.Lang == nil
			},
		},
		{
			ID:       RuleOpenGraphMissing,
			Type:     model.IssueTypeSEO,
			Severity: model.SeverityInfo,
			Message:  "open graph tags missing",
			Hint:     "og:title and og:description control social sharing previews",
			Priority: model.PriorityLow,
			Category: "social",
			Action:   "add og:title and og:description",
			Fails: func(d *model.SeoData) bool {
				return d.OpenGraph == nil || d.OpenGraph.Title == nil || d.OpenGraph.Description == nil
			},
		},
	}
}

func contentRules() []Rule {
	return []Rule{
		{
			ID:       RuleContentVeryThin,
			Type:     model.IssueTypeContent,
			Severity: model.SeverityError,
			Message:  "content very thin",
			Hint:     "pages with fewer than 100 words rarely rank",
			Priority: model.PriorityHigh,
			Category: "content",
			Action:   "expand page content to at least 300 words",
			Fails: func(d *model.SeoData) bool {
				return model.Deref(d.WordCount, 0) < VeryThinContentWords
			},
		},
		{
			ID:       RuleContentThin,
			Type:     model.IssueTypeContent,
			Severity: model.SeverityWarning,
			Message:  "content thin",
			Hint:     "aim for at least 300 words of useful copy",
			Priority: model.PriorityMedium,
			Category: "content",
			Action:   "expand page content to at least 300 words",
			Fails: func(d *model.SeoData) bool {
				words := model.Deref(d.WordCount, 0)
				return words >= VeryThinContentWords && words < ThinContentWords
			},
		},
		{
			ID:       RuleImagesMissingAlt,
			Type:     model.IssueTypeContent,
			Severity: model.SeverityWarning,
			Message:  "images missing alt text",
			Hint:     "alt text describes images to screen readers and search engines",
			Priority: model.PriorityMedium,
			Category: "images",
			Action:   "add alt text to all images",
			Fails: func(d *model.SeoData) bool {
				return d.Images != nil && d.Images.MissingAlt > 0
			},
		},
		{
			ID:       RuleNoInternalLinks,
			Type:     model.IssueTypeContent,
			Severity: model.SeverityInfo,
			Message:  "no internal links",
			Hint:     "link to related pages on the same site",
			Priority: model.PriorityLow,
			Category: "links",
			Action:   "add internal links to related pages",
			Fails: func(d *model.SeoData) bool {
				return d.Links == nil || d.Links.Internal == 0
			},
		},
		{
			ID:       RuleLowMainContent,
			Type:     model.IssueTypeContent,
			Severity: model.SeverityInfo,
			Message:  "main content is a small share of the page",
			Hint:     "navigation and boilerplate dominate the visible text",
			Priority: model.PriorityLow,
			Category: "content",
			Action:   "reduce boilerplate around the main content",
			Fails: func(d *model.SeoData) bool {
				if d.MainContentWordCount == nil || d.WordCount == nil || *d.WordCount == 0 {
					return false
				}
				return *d.MainContentWordCount*100 < *d.WordCount*MainContentMinRatio
			},
		},
	}
}

func structureRules() []Rule {
	return []Rule{
		{
			ID:       RuleHeadingsMissing,
			Type:     model.IssueTypeStructure,
			Severity: model.SeverityError,
			Message:  "no headings",
			Hint:     "structure the page with an H1 and section headings",
			Priority: model.PriorityHigh,
			Category: "headings",
			Action:   "add an H1 and section headings",
			Fails: func(d *model.SeoData) bool {
				return d.Headings.Total() == 0
			},
		},
		{
			ID:       RuleH1Missing,
			Type:     model.IssueTypeStructure,
			Severity: model.SeverityError,
			Message:  "H1 heading missing",
			Hint:     "every page should have exactly one H1",
			Priority: model.PriorityHigh,
			Category: "headings",
			Action:   "add exactly one H1 heading",
			Fails: func(d *model.SeoData) bool {
				return d.Headings.Total() > 0 && d.Headings.Count(1) == 0
			},
		},
		{
			ID:       RuleMultipleH1,
			Type:     model.IssueTypeStructure,
			Severity: model.SeverityWarning,
			Message:  "multiple H1 headings",
			Hint:     "every page should have exactly one H1",
			Priority: model.PriorityMedium,
			Category: "headings",
			Action:   "keep a single H1 heading",
			Fails: func(d *model.SeoData) bool {
				return d.Headings.Count(1) > 1
			},
		},
		{
			ID:       RuleHeadingLevelsSkipped,
			Type:     model.IssueTypeStructure,
			Severity: model.SeverityWarning,
			Message:  "heading levels skipped",
			Hint:     "do not jump from H2 to H4; nest headings one level at a time",
			Priority: model.PriorityMedium,
			Category: "headings",
			Action:   "nest headings without skipping levels",
			Fails: func(d *model.SeoData) bool {
				return len(d.Headings.SkippedLevels()) > 0
			},
		},
		{
			ID:       RuleViewportMissing,
			Type:     model.IssueTypeStructure,
			Severity: model.SeverityWarning,
			Message:  "viewport meta tag missing",
			Hint:     "without a viewport the page renders poorly on mobile",
			Priority: model.PriorityMedium,
			Category: "mobile",
			Action:   `add <meta name="viewport" content="width=device-width, initial-scale=1">`,
			Fails: func(d *model.SeoData) bool {
				return !model.Deref(d.HasViewport, false)
			},
		},
	}
}
