package model

// SeoData holds the signals extracted from one fetched page.
//
// Every signal is optional: a nil pointer means the extractor could not
// determine it (missing element, non-HTML body, malformed markup). Rules
// treat absence explicitly instead of guessing a zero value.
type SeoData struct {
	// === Response ===

	// StatusCode is the HTTP status returned for the page.
	StatusCode int `json:"status_code"`

	// ContentType is the media type of the response, e.g. "text/html".
	ContentType string `json:"content_type,omitempty"`

	// FinalURL is the URL after redirects.
	FinalURL string `json:"final_url,omitempty"`

	// ResponseTimeMS is the fetch duration in milliseconds.
	ResponseTimeMS int64 `json:"response_time_ms"`

	// ContentHash is the SHA-256 of the fetched body.
	ContentHash string `json:"content_hash,omitempty"`

	// === Head ===

	// Title is the text of the first <title> element.
	Title *string `json:"title,omitempty"`

	// TitleLength is the length of Title in characters (runes).
	TitleLength *int `json:"title_length,omitempty"`

	// MetaDescription is the content of <meta name="description">.
	MetaDescription *string `json:"meta_description,omitempty"`

	// MetaDescriptionLength is the length of MetaDescription in characters.
	MetaDescriptionLength *int `json:"meta_description_length,omitempty"`

	// Canonical is the href of <link rel="canonical">, resolved against the page URL.
	Canonical *string `json:"canonical,omitempty"`

	// Lang is the lang attribute of the <html> element.
	Lang *string `json:"lang,omitempty"`

	// HasViewport reports whether a <meta name="viewport"> element was found.
	HasViewport *bool `json:"has_viewport,omitempty"`

	// Robots is the content of <meta name="robots">, followed by any
	// X-Robots-Tag response header.
	Robots *string `json:"robots,omitempty"`

	// OpenGraph holds og:* properties when at least one was present.
	OpenGraph *OpenGraph `json:"open_graph,omitempty"`

	// === Body ===

	// Headings counts headings per level and records their order.
	Headings *HeadingStats `json:"headings,omitempty"`

	// WordCount is the number of words in the visible body text.
	WordCount *int `json:"word_count,omitempty"`

	// MainContentWordCount is the number of words in the main article
	// content as determined by readability analysis.
	MainContentWordCount *int `json:"main_content_word_count,omitempty"`

	// ParagraphCount is the number of non-empty <p> elements.
	ParagraphCount *int `json:"paragraph_count,omitempty"`

	// Images summarizes <img> elements.
	Images *ImageStats `json:"images,omitempty"`

	// Links summarizes <a href> elements.
	Links *LinkStats `json:"links,omitempty"`

	// ParseWarnings records recoverable extraction problems.
	ParseWarnings []string `json:"parse_warnings,omitempty"`
}

// OpenGraph holds the Open Graph properties used for social sharing previews.
type OpenGraph struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// HeadingStats describes the heading structure of a page.
type HeadingStats struct {
	// Counts holds the number of headings per level; index 0 is H1.
	Counts [6]int `json:"counts"`

	// Order lists heading levels (1-6) in document order.
	Order []int `json:"order,omitempty"`
}

// Count returns the number of headings of the given level (1-6).
func (h *HeadingStats) Count(level int) int {
	if h == nil || level < 1 || level > 6 {
		return 0
	}
	return h.Counts[level-1]
}

// Total returns the number of headings on the page.
func (h *HeadingStats) Total() int {
	if h == nil {
		return 0
	}
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// SkippedLevels returns each pair (from, to) where a heading jumps more than
// one level deeper than the previous heading, e.g. H2 followed by H4.
// The first heading is not checked; a missing H1 is reported separately.
func (h *HeadingStats) SkippedLevels() [][2]int {
	if h == nil {
		return nil
	}
	var skips [][2]int
	prev := 0
	for _, level := range h.Order {
		if prev != 0 && level > prev+1 {
			skips = append(skips, [2]int{prev, level})
		}
		prev = level
	}
	return skips
}

// ImageStats summarizes the images on a page.
type ImageStats struct {
	Total      int `json:"total"`
	MissingAlt int `json:"missing_alt"`
}

// LinkStats summarizes the hyperlinks on a page.
type LinkStats struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	NoFollow int `json:"nofollow"`
}

// Ptr returns a pointer to v. It is used to fill optional SeoData fields.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value p points to, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
