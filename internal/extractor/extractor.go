package extractor

import (
	"bytes"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/pageaudit/internal/model"
)

// Extractor turns fetched pages into SeoData.
// It is safe for concurrent use.
type Extractor struct {
	// mainContent enables readability analysis for MainContentWordCount.
	mainContent bool

	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMainContent enables or disables readability analysis.
// Enabled by default.
func WithMainContent(enabled bool) Option {
	return func(e *Extractor) {
		e.mainContent = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		mainContent: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract analyzes page and returns its signals.
//
// The returned SeoData is never nil. When part of the analysis fails the
// error is a *ParseError and the data holds whatever could be extracted;
// callers may continue with it.
func (e *Extractor) Extract(page *model.FetchedPage) (*model.SeoData, error) {
	data := &model.SeoData{
		StatusCode:     page.StatusCode,
		ContentType:    page.MediaType(),
		FinalURL:       page.EffectiveURL(),
		ResponseTimeMS: page.ResponseTime.Milliseconds(),
		ContentHash:    page.Hash,
	}

	var warnings []string
	warn := func(msg string) {
		warnings = append(warnings, msg)
	}

	if page.Truncated {
		warn("body truncated at size limit")
	}

	if !page.IsHTML() {
		warn("content type " + data.ContentType + " is not HTML")
		return finish(page, data, warnings, nil)
	}

	body, err := decode(page.Body, page.ContentType)
	if err != nil {
		warn("charset decoding failed, assuming UTF-8")
		body = page.Body
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		warn("HTML could not be parsed")
		return finish(page, data, warnings, err)
	}

	base, err := url.Parse(page.EffectiveURL())
	if err != nil {
		warn("page URL could not be parsed")
		base = nil
	}

	extractHead(doc, base, data)
	mergeRobotsHeader(page, data)
	extractHeadings(doc, data)
	extractImages(doc, data)
	extractLinks(doc, base, data)

	if e.mainContent && base != nil {
		count, err := mainContentWords(body, base)
		if err != nil {
			e.logger.Debug("readability analysis failed", "url", page.URL, "error", err)
			warn("main content could not be determined")
		} else {
			data.MainContentWordCount = model.Ptr(count)
		}
	}

	// Must run last: it removes non-visible elements from the document.
	extractText(doc, data)

	return finish(page, data, warnings, nil)
}

// mergeRobotsHeader appends the X-Robots-Tag header to the robots
// directives, so a noindex sent by the server is seen like a meta tag.
func mergeRobotsHeader(page *model.FetchedPage, data *model.SeoData) {
	header := strings.ToLower(strings.TrimSpace(page.GetHeader("X-Robots-Tag")))
	if header == "" {
		return
	}
	if data.Robots == nil {
		data.Robots = model.Ptr(header)
		return
	}
	data.Robots = model.Ptr(*data.Robots + ", " + header)
}

func finish(page *model.FetchedPage, data *model.SeoData, warnings []string, err error) (*model.SeoData, error) {
	if len(warnings) == 0 {
		return data, nil
	}
	data.ParseWarnings = warnings
	return data, &ParseError{URL: page.URL, Warnings: warnings, Err: err}
}

// decode converts body to UTF-8 using the declared or sniffed charset.
func decode(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// documentTitle returns the first title element outside inline SVG, where
// title only labels a graphic.
func documentTitle(doc *goquery.Document) *goquery.Selection {
	return doc.Find("title").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest("svg").Length() == 0
	}).First()
}

func extractHead(doc *goquery.Document, base *url.URL, data *model.SeoData) {
	if title := strings.TrimSpace(documentTitle(doc).Text()); title != "" {
		title = collapseSpace(title)
		data.Title = model.Ptr(title)
		data.TitleLength = model.Ptr(utf8.RuneCountInString(title))
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		data.Lang = model.Ptr(strings.TrimSpace(lang))
	}

	hasViewport := false
	og := &model.OpenGraph{}
	foundOG := false

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := collapseSpace(strings.TrimSpace(s.AttrOr("content", "")))

		switch strings.ToLower(s.AttrOr("name", "")) {
		case "description":
			if data.MetaDescription == nil && content != "" {
				data.MetaDescription = model.Ptr(content)
				data.MetaDescriptionLength = model.Ptr(utf8.RuneCountInString(content))
			}
		case "viewport":
			hasViewport = true
		case "robots":
			if data.Robots == nil && content != "" {
				data.Robots = model.Ptr(strings.ToLower(content))
			}
		}

		if content == "" {
			return
		}
		switch strings.ToLower(s.AttrOr("property", "")) {
		case "og:title":
			og.Title = model.Ptr(content)
			foundOG = true
		case "og:description":
			og.Description = model.Ptr(content)
			foundOG = true
		case "og:image":
			og.Image = model.Ptr(resolve(base, content))
			foundOG = true
		}
	})

	data.HasViewport = model.Ptr(hasViewport)
	if foundOG {
		data.OpenGraph = og
	}

	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "canonical" {
				data.Canonical = model.Ptr(resolve(base, s.AttrOr("href", "")))
				return false
			}
		}
		return true
	})
}

func extractHeadings(doc *goquery.Document, data *model.SeoData) {
	stats := &model.HeadingStats{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		level := int(name[1] - '0')
		stats.Counts[level-1]++
		stats.Order = append(stats.Order, level)
	})
	data.Headings = stats
}

func extractImages(doc *goquery.Document, data *model.SeoData) {
	stats := &model.ImageStats{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		stats.Total++
		// alt="" marks a decorative image and is valid.
		if _, ok := s.Attr("alt"); !ok {
			stats.MissingAlt++
		}
	})
	data.Images = stats
}

func extractLinks(doc *goquery.Document, base *url.URL, data *model.SeoData) {
	stats := &model.LinkStats{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(lower, "javascript:") ||
			strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") {
			return
		}

		if isInternal(base, href) {
			stats.Internal++
		} else {
			stats.External++
		}

		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "nofollow" {
				stats.NoFollow++
				break
			}
		}
	})
	data.Links = stats
}

func extractText(doc *goquery.Document, data *model.SeoData) {
	doc.Find("script, style, noscript, template, svg").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return
	}
	data.WordCount = model.Ptr(countWords(body.Text()))

	paragraphs := 0
	body.Find("p").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			paragraphs++
		}
	})
	data.ParagraphCount = model.Ptr(paragraphs)
}

func mainContentWords(body []byte, base *url.URL) (int, error) {
	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil {
		return 0, err
	}
	return countWords(article.TextContent), nil
}

// isInternal reports whether href points to the same host as base.
// A leading "www." is ignored on both sides.
func isInternal(base *url.URL, href string) bool {
	if base == nil {
		return false
	}
	u, err := base.Parse(href)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return trimWWW(u.Hostname()) == trimWWW(base.Hostname())
}

func trimWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
