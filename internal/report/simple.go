package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds issue hints and extracted signals to audit output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteAudit outputs a single audit.
func (w *SimpleWriter) WriteAudit(audit *model.PageAudit) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "PAGE AUDIT")

	fmt.Fprintf(&sb, "URL:        %s\n", audit.PageURL)
	fmt.Fprintf(&sb, "Audit ID:   %s\n", audit.ID)
	fmt.Fprintf(&sb, "Audit Date: %s\n", audit.AuditDate.Format(dateLayout))
	sb.WriteString("\n")

	sb.WriteString("SCORES\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	writeScoreLine(&sb, "SEO", audit.SEOScore)
	writeScoreLine(&sb, "Content", audit.ContentScore)
	writeScoreLine(&sb, "Structure", audit.StructureScore)
	writeScoreLine(&sb, "Overall", audit.OverallScore)
	sb.WriteString("\n")

	w.writeIssues(&sb, audit.Issues)
	writeRecommendations(&sb, audit.Recommendations)

	if w.verbose {
		writeSignals(&sb, &audit.RawData)
	}

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeIssues(sb *strings.Builder, issues []model.Issue) {
	fmt.Fprintf(sb, "ISSUES (%d)\n", len(issues))
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")

	if len(issues) == 0 {
		sb.WriteString("No issues found.\n\n")
		return
	}

	for _, issue := range issues {
		fmt.Fprintf(sb, "[%-7s] %-9s %s\n",
			strings.ToUpper(issue.Severity.String()),
			label(string(issue.Type)),
			issue.Message,
		)
		if w.verbose && issue.Recommendation != "" {
			fmt.Fprintf(sb, "           Hint: %s\n", issue.Recommendation)
		}
	}
	sb.WriteString("\n")
}

func writeRecommendations(sb *strings.Builder, recs []model.Recommendation) {
	fmt.Fprintf(sb, "RECOMMENDATIONS (%d)\n", len(recs))
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")

	if len(recs) == 0 {
		sb.WriteString("Nothing to do.\n\n")
		return
	}

	for i, rec := range recs {
		fmt.Fprintf(sb, "%2d. [%s] %s: %s\n", i+1, rec.Priority, label(rec.Category), rec.Action)
	}
	sb.WriteString("\n")
}

func writeSignals(sb *strings.Builder, data *model.SeoData) {
	sb.WriteString("SIGNALS\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "HTTP Status:      %d\n", data.StatusCode)
	fmt.Fprintf(sb, "Response Time:    %dms\n", data.ResponseTimeMS)
	fmt.Fprintf(sb, "Title:            %s\n", orDash(model.Deref(data.Title, "")))
	fmt.Fprintf(sb, "Meta Description: %s\n", orDash(truncateString(model.Deref(data.MetaDescription, ""), 60)))
	fmt.Fprintf(sb, "Canonical:        %s\n", orDash(model.Deref(data.Canonical, "")))
	fmt.Fprintf(sb, "Word Count:       %d\n", model.Deref(data.WordCount, 0))
	fmt.Fprintf(sb, "Headings:         H1=%d H2=%d H3=%d\n",
		data.Headings.Count(1), data.Headings.Count(2), data.Headings.Count(3))
	for _, warning := range data.ParseWarnings {
		fmt.Fprintf(sb, "Warning:          %s\n", warning)
	}
	sb.WriteString("\n")
}

// WriteHistory outputs a table of audits.
func (w *SimpleWriter) WriteHistory(audits []*model.PageAudit) (int, error) {
	var sb strings.Builder

	if len(audits) == 0 {
		sb.WriteString("No audits found.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-36s  %-19s  %3s  %3s  %3s  %3s  %s\n",
		"ID", "DATE", "SEO", "CON", "STR", "ALL", "URL")
	for _, a := range audits {
		fmt.Fprintf(&sb, "%-36s  %-19s  %3d  %3d  %3d  %3d  %s\n",
			a.ID,
			a.AuditDate.Format("2006-01-02 15:04:05"),
			a.SEOScore, a.ContentScore, a.StructureScore, a.OverallScore,
			a.PageURL,
		)
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteStats outputs an aggregated summary.
func (w *SimpleWriter) WriteStats(summary stats.Summary) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "AUDIT STATISTICS")

	fmt.Fprintf(&sb, "%-18s %d\n", "Audits:", summary.Total)
	fmt.Fprintf(&sb, "%-18s %.1f\n", "Average SEO:", summary.AvgSEO)
	fmt.Fprintf(&sb, "%-18s %.1f\n", "Average Content:", summary.AvgContent)
	fmt.Fprintf(&sb, "%-18s %.1f\n", "Average Structure:", summary.AvgStructure)
	fmt.Fprintf(&sb, "%-18s %.1f\n", "Average Overall:", summary.AvgOverall)
	fmt.Fprintf(&sb, "%-18s %s %s (recent %.1f vs older %.1f)\n", "Trend:",
		trendArrow(summary.Trend), summary.Trend, summary.RecentAverage, summary.OlderAverage)
	sb.WriteString("\n")

	for _, band := range model.Bands {
		fmt.Fprintf(&sb, "%-9s %d\n", label(string(band))+":", summary.Bands[band])
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteComparison outputs the change between two audits.
func (w *SimpleWriter) WriteComparison(c stats.Comparison) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "AUDIT COMPARISON")

	fmt.Fprintf(&sb, "URL:   %s\n", c.PageURL)
	fmt.Fprintf(&sb, "Older: %s\n", c.OlderID)
	fmt.Fprintf(&sb, "Newer: %s\n\n", c.NewerID)

	fmt.Fprintf(&sb, "SEO:       %s\n", signed(c.SEODelta))
	fmt.Fprintf(&sb, "Content:   %s\n", signed(c.ContentDelta))
	fmt.Fprintf(&sb, "Structure: %s\n", signed(c.StructureDelta))
	fmt.Fprintf(&sb, "Overall:   %s (%s)\n\n", signed(c.OverallDelta), c.Direction)

	fmt.Fprintf(&sb, "New issues (%d):\n", len(c.NewIssues))
	for _, issue := range c.NewIssues {
		fmt.Fprintf(&sb, "  + [%s] %s\n", issue.Severity, issue.Message)
	}
	fmt.Fprintf(&sb, "Resolved issues (%d):\n", len(c.ResolvedIssues))
	for _, issue := range c.ResolvedIssues {
		fmt.Fprintf(&sb, "  - [%s] %s\n", issue.Severity, issue.Message)
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs the outcome of a batch run.
func (w *SimpleWriter) WriteBatch(snap batch.Snapshot) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "BATCH AUDIT")

	fmt.Fprintf(&sb, "State:     %s\n", snap.State)
	fmt.Fprintf(&sb, "Progress:  %d/%d\n", snap.Progress, snap.Total)
	fmt.Fprintf(&sb, "Succeeded: %d\n", snap.Succeeded())
	fmt.Fprintf(&sb, "Failed:    %d\n", snap.Failed())
	if snap.Cancelled {
		fmt.Fprintf(&sb, "Skipped:   %d (cancelled)\n", snap.Total-snap.Progress)
	}
	sb.WriteString("\n")

	for _, r := range snap.Results {
		if r.Success {
			fmt.Fprintf(&sb, "  OK    %3d  %s\n", model.Deref(r.OverallScore, 0), r.URL)
		} else {
			fmt.Fprintf(&sb, "  FAIL       %s: %s\n", r.URL, r.Error)
		}
	}

	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := max(0, (70-len(title))/2)
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeScoreLine(sb *strings.Builder, name string, score int) {
	filled := score / 5
	fmt.Fprintf(sb, "%-10s %3d  [%s%s] %s\n",
		name, score,
		strings.Repeat("#", filled),
		strings.Repeat(".", 20-filled),
		model.BandForScore(score),
	)
}
