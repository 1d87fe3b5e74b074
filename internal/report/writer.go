package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// Writer renders audit data in one output format.
type Writer interface {
	// WriteAudit renders a single audit with its issues and recommendations.
	WriteAudit(audit *model.PageAudit) (int, error)

	// WriteHistory renders a list of audits, newest first.
	WriteHistory(audits []*model.PageAudit) (int, error)

	// WriteStats renders an aggregated summary.
	WriteStats(summary stats.Summary) (int, error)

	// WriteComparison renders the change between two audits.
	WriteComparison(c stats.Comparison) (int, error)

	// WriteBatch renders the outcome of a batch run.
	WriteBatch(snap batch.Snapshot) (int, error)
}

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown}

// ParseFormat parses a format name. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "simple":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or markdown)", s)
	}
}

// NewWriter returns the writer for format.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// MultiWriter writes to multiple Writers.
// It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAudit writes the audit to all Writers.
func (m *MultiWriter) WriteAudit(audit *model.PageAudit) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteAudit(audit) })
}

// WriteHistory writes the history to all Writers.
func (m *MultiWriter) WriteHistory(audits []*model.PageAudit) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHistory(audits) })
}

// WriteStats writes the summary to all Writers.
func (m *MultiWriter) WriteStats(summary stats.Summary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteStats(summary) })
}

// WriteComparison writes the comparison to all Writers.
func (m *MultiWriter) WriteComparison(c stats.Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(c) })
}

// WriteBatch writes the batch outcome to all Writers.
func (m *MultiWriter) WriteBatch(snap batch.Snapshot) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteBatch(snap) })
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const dateLayout = "2006-01-02 15:04:05 MST"

var titleCaser = cases.Title(language.English)

// label turns an identifier such as "meta description" or "seo" into a
// display label.
func label(s string) string {
	if strings.EqualFold(s, "seo") {
		return "SEO"
	}
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// orDash returns "-" for empty strings.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// trendArrow returns a symbol for a trend.
func trendArrow(t stats.Trend) string {
	switch t {
	case stats.TrendUp:
		return "↑"
	case stats.TrendDown:
		return "↓"
	default:
		return "→"
	}
}

// signed formats a delta with an explicit sign.
func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
