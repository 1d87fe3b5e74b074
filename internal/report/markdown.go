package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// MarkdownWriter outputs reports in Markdown format for documentation
// and sharing. Distributions are drawn as mermaid pie charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteAudit outputs a single audit.
func (w *MarkdownWriter) WriteAudit(audit *model.PageAudit) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Page Audit Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + audit.PageURL + "`"},
			{"Audit ID", "`" + audit.ID + "`"},
			{"Audit Date", audit.AuditDate.Format(dateLayout)},
			{"Band", bandBadge(audit.Band())},
		},
	})
	md.PlainText("")

	md.H2("Scores")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Dimension", "Score", "Band"},
		Rows: [][]string{
			scoreRow("SEO", audit.SEOScore),
			scoreRow("Content", audit.ContentScore),
			scoreRow("Structure", audit.StructureScore),
			scoreRow("**Overall**", audit.OverallScore),
		},
	})
	md.PlainText("")
	w.writeAuditAlert(md, audit)

	w.writeIssues(md, audit)
	w.writeRecommendations(md, audit.Recommendations)
	w.writeSignals(md, &audit.RawData)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeAuditAlert writes an alert matching the overall band.
func (w *MarkdownWriter) writeAuditAlert(md *markdown.Markdown, audit *model.PageAudit) {
	errCount := audit.CountBySeverity(model.SeverityError)
	switch audit.Band() {
	case model.BandCritical:
		md.Cautionf("Overall score %d is critical. %d error(s) need immediate attention.", audit.OverallScore, errCount)
	case model.BandPoor:
		md.Warningf("Overall score %d is poor. %d error(s) found.", audit.OverallScore, errCount)
	case model.BandFair:
		md.Importantf("Overall score %d is fair. Address the recommendations below to improve it.", audit.OverallScore)
	default:
		if len(audit.Issues) > 0 {
			md.Note("The page is in good shape. Only minor issues remain.")
		} else {
			md.Tip("No issues detected.")
		}
	}
	md.PlainText("")
}

// writeIssues writes issues grouped by severity.
func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, audit *model.PageAudit) {
	md.H2("Issues")
	md.PlainText("")

	if len(audit.Issues) == 0 {
		md.PlainText("No issues found.")
		md.PlainText("")
		return
	}

	w.writeIssuePieChart(md, audit)

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityError, "### 🔴 Errors"},
		{model.SeverityWarning, "### 🟡 Warnings"},
		{model.SeverityInfo, "### 🔵 Info"},
	}

	for _, sev := range severities {
		var rows [][]string
		for _, issue := range audit.Issues {
			if issue.Severity != sev.level {
				continue
			}
			rows = append(rows, []string{
				label(string(issue.Type)),
				issue.Message,
				truncateString(orDash(issue.Recommendation), 80),
			})
		}
		if len(rows) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Type", "Issue", "Hint"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeIssuePieChart writes a mermaid pie chart of issues by severity.
func (w *MarkdownWriter) writeIssuePieChart(md *markdown.Markdown, audit *model.PageAudit) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issues by Severity"),
		piechart.WithShowData(true),
	)

	for _, sev := range []model.Severity{model.SeverityError, model.SeverityWarning, model.SeverityInfo} {
		if n := audit.CountBySeverity(sev); n > 0 {
			chart.LabelAndIntValue(label(sev.String()), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeRecommendations writes recommendations in priority order.
func (w *MarkdownWriter) writeRecommendations(md *markdown.Markdown, recs []model.Recommendation) {
	md.H2("Recommendations")
	md.PlainText("")

	if len(recs) == 0 {
		md.PlainText("Nothing to do.")
		md.PlainText("")
		return
	}

	items := make([]string, len(recs))
	for i, rec := range recs {
		items[i] = fmt.Sprintf("**%s** %s: %s", label(rec.Priority.String()), label(rec.Category), rec.Action)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeSignals writes the extracted signals in a collapsed section.
func (w *MarkdownWriter) writeSignals(md *markdown.Markdown, data *model.SeoData) {
	md.H2("Signals")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Signal", "Value"},
		Rows: [][]string{
			{"HTTP Status", strconv.Itoa(data.StatusCode)},
			{"Content Type", orDash(data.ContentType)},
			{"Response Time", fmt.Sprintf("%d ms", data.ResponseTimeMS)},
			{"Title", orDash(model.Deref(data.Title, ""))},
			{"Title Length", strconv.Itoa(model.Deref(data.TitleLength, 0))},
			{"Meta Description Length", strconv.Itoa(model.Deref(data.MetaDescriptionLength, 0))},
			{"Canonical", orDash(model.Deref(data.Canonical, ""))},
			{"Language", orDash(model.Deref(data.Lang, ""))},
			{"Word Count", strconv.Itoa(model.Deref(data.WordCount, 0))},
			{"H1 / H2 / H3", fmt.Sprintf("%d / %d / %d", data.Headings.Count(1), data.Headings.Count(2), data.Headings.Count(3))},
		},
	})
	md.PlainText("")

	for _, warning := range data.ParseWarnings {
		md.Details("Parse warning", warning)
	}
	if len(data.ParseWarnings) > 0 {
		md.PlainText("")
	}
}

// WriteHistory outputs a table of audits.
func (w *MarkdownWriter) WriteHistory(audits []*model.PageAudit) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Audit History")
	md.PlainText("")

	if len(audits) == 0 {
		md.PlainText("No audits found.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(audits))
	for i, a := range audits {
		rows[i] = []string{
			a.AuditDate.Format("2006-01-02 15:04"),
			"`" + truncateString(a.PageURL, 60) + "`",
			strconv.Itoa(a.SEOScore),
			strconv.Itoa(a.ContentScore),
			strconv.Itoa(a.StructureScore),
			strconv.Itoa(a.OverallScore),
			"`" + a.ID + "`",
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Date", "URL", "SEO", "Content", "Structure", "Overall", "ID"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteStats outputs an aggregated summary.
func (w *MarkdownWriter) WriteStats(summary stats.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Audit Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Audits", strconv.Itoa(summary.Total)},
			{"Average SEO", fmt.Sprintf("%.1f", summary.AvgSEO)},
			{"Average Content", fmt.Sprintf("%.1f", summary.AvgContent)},
			{"Average Structure", fmt.Sprintf("%.1f", summary.AvgStructure)},
			{"Average Overall", fmt.Sprintf("%.1f", summary.AvgOverall)},
			{"Trend", fmt.Sprintf("%s %s", trendArrow(summary.Trend), label(string(summary.Trend)))},
		},
	})
	md.PlainText("")

	if summary.Total > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Score Bands"),
			piechart.WithShowData(true),
		)
		for _, band := range model.Bands {
			if n := summary.Bands[band]; n > 0 {
				chart.LabelAndIntValue(label(string(band)), uint64(n))
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch summary.Trend {
	case stats.TrendUp:
		md.Tip("Scores are improving.")
	case stats.TrendDown:
		md.Warningf("Scores dropped from %.1f to %.1f on average.", summary.OlderAverage, summary.RecentAverage)
	default:
		md.Note("Scores are stable.")
	}
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteComparison outputs the change between two audits.
func (w *MarkdownWriter) WriteComparison(c stats.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Audit Comparison")
	md.PlainText("")
	md.PlainTextf("`%s`: `%s` → `%s`", c.PageURL, c.OlderID, c.NewerID)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Dimension", "Change"},
		Rows: [][]string{
			{"SEO", signed(c.SEODelta)},
			{"Content", signed(c.ContentDelta)},
			{"Structure", signed(c.StructureDelta)},
			{"**Overall**", "**" + signed(c.OverallDelta) + "**"},
		},
	})
	md.PlainText("")

	md.H2("New Issues")
	md.PlainText("")
	writeIssueList(md, c.NewIssues, "No new issues.")

	md.H2("Resolved Issues")
	md.PlainText("")
	writeIssueList(md, c.ResolvedIssues, "No resolved issues.")

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func writeIssueList(md *markdown.Markdown, issues []model.Issue, empty string) {
	if len(issues) == 0 {
		md.PlainText(empty)
		md.PlainText("")
		return
	}
	items := make([]string, len(issues))
	for i, issue := range issues {
		items[i] = fmt.Sprintf("**%s** %s", label(issue.Severity.String()), issue.Message)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// WriteBatch outputs the outcome of a batch run.
func (w *MarkdownWriter) WriteBatch(snap batch.Snapshot) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Batch Audit Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"State", label(snap.State.String())},
			{"Progress", fmt.Sprintf("%d / %d", snap.Progress, snap.Total)},
			{"Succeeded", strconv.Itoa(snap.Succeeded())},
			{"Failed", strconv.Itoa(snap.Failed())},
		},
	})
	md.PlainText("")

	if snap.Cancelled {
		md.Warningf("Batch cancelled. %d target(s) were not audited.", snap.Total-snap.Progress)
		md.PlainText("")
	}

	if len(snap.Results) > 0 {
		rows := make([][]string, len(snap.Results))
		for i, r := range snap.Results {
			score, status := "-", "✅"
			if r.Success {
				score = strconv.Itoa(model.Deref(r.OverallScore, 0))
			} else {
				status = "❌ " + truncateString(r.Error, 60)
			}
			rows[i] = []string{r.TargetID, "`" + r.URL + "`", score, status}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Target", "URL", "Overall", "Status"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pageaudit](https://github.com/nao1215/pageaudit)*")
}

func scoreRow(name string, score int) []string {
	return []string{name, strconv.Itoa(score), bandBadge(model.BandForScore(score))}
}

func bandBadge(b model.ScoreBand) string {
	switch b {
	case model.BandGood:
		return "🟢 Good"
	case model.BandFair:
		return "🟡 Fair"
	case model.BandPoor:
		return "🟠 Poor"
	default:
		return "🔴 Critical"
	}
}
