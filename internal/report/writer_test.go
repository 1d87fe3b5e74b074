package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// createTestAudit creates an audit with sample data for testing.
func createTestAudit() *model.PageAudit {
	return &model.PageAudit{
		ID:             "0b9f6c1e-7d1a-4c55-9d7e-4e3f0c7d2a11",
		PageURL:        "https://example.com/pricing",
		AuditDate:      time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		SEOScore:       72,
		ContentScore:   85,
		StructureScore: 40,
		OverallScore:   66,
		Issues: []model.Issue{
			{Rule: "h1_missing", Severity: model.SeverityError, Type: model.IssueTypeStructure, Message: "H1 heading missing", Recommendation: "every page should have exactly one H1"},
			{Rule: "title_too_short", Severity: model.SeverityWarning, Type: model.IssueTypeSEO, Message: "title too short"},
			{Rule: "canonical_missing", Severity: model.SeverityInfo, Type: model.IssueTypeSEO, Message: "canonical link missing"},
		},
		Recommendations: []model.Recommendation{
			{Priority: model.PriorityHigh, Category: "headings", Action: "add exactly one H1 heading"},
			{Priority: model.PriorityHigh, Category: "title", Action: "lengthen title to 50-60 chars"},
		},
		RawData: model.SeoData{
			StatusCode:    200,
			ContentType:   "text/html",
			Title:         model.Ptr("Pricing"),
			TitleLength:   model.Ptr(7),
			WordCount:     model.Ptr(420),
			ParseWarnings: []string{"body truncated at size limit"},
		},
	}
}

func createTestSnapshot() batch.Snapshot {
	return batch.Snapshot{
		State:     batch.StateCancelled,
		Total:     3,
		Progress:  2,
		Cancelled: true,
		Results: []model.BatchAuditResult{
			{TargetID: "target-1", URL: "https://a.example/", Success: true, AuditID: "a1", OverallScore: model.Ptr(88)},
			{TargetID: "target-2", URL: "https://b.example/", Success: false, Error: "fetch https://b.example/: network"},
		},
	}
}

func createTestSummary() stats.Summary {
	return stats.Summary{
		Total:         4,
		AvgSEO:        80,
		AvgContent:    70,
		AvgStructure:  60,
		AvgOverall:    71.5,
		Trend:         stats.TrendUp,
		RecentAverage: 80,
		OlderAverage:  63,
		Bands: map[model.ScoreBand]int{
			model.BandGood: 2, model.BandFair: 1, model.BandPoor: 1,
		},
	}
}

func createTestComparison() stats.Comparison {
	return stats.Comparison{
		PageURL:        "https://example.com/",
		OlderID:        "old",
		NewerID:        "new",
		SEODelta:       10,
		OverallDelta:   -3,
		Direction:      stats.DirectionDeclined,
		NewIssues:      []model.Issue{{Severity: model.SeverityWarning, Message: "multiple H1 headings"}},
		ResolvedIssues: []model.Issue{},
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes audit scores, issues and recommendations", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).WriteAudit(createTestAudit())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"PAGE AUDIT",
			"https://example.com/pricing",
			"Overall     66",
			"[ERROR  ] Structure H1 heading missing",
			"1. [high] Headings: add exactly one H1 heading",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "SIGNALS") {
			t.Error("signals are shown only in verbose mode")
		}
	})

	t.Run("verbose output includes hints and signals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).WriteAudit(createTestAudit()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Hint: every page should have exactly one H1") {
			t.Error("expected issue hint")
		}
		if !strings.Contains(output, "Warning:          body truncated at size limit") {
			t.Error("expected parse warning")
		}
	})

	t.Run("writes history rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteHistory([]*model.PageAudit{createTestAudit()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "0b9f6c1e-7d1a-4c55-9d7e-4e3f0c7d2a11") {
			t.Error("expected audit id in history")
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf).WriteHistory(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No audits found.") {
			t.Error("expected empty history message")
		}
	})

	t.Run("writes stats, comparison and batch", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.WriteStats(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := w.WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := w.WriteBatch(createTestSnapshot()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"Trend:             ↑ up",
			"Good:     2",
			"Overall:   -3 (declined)",
			"+ [warning] multiple H1 headings",
			"Progress:  2/3",
			"Skipped:   1 (cancelled)",
			"FAIL       https://b.example/",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("audit round trips through JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteAudit(createTestAudit()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.PageAudit
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.OverallScore != 66 || len(decoded.Issues) != 3 {
			t.Errorf("unexpected decoded audit %+v", decoded)
		}
		if decoded.Issues[0].Severity != model.SeverityError {
			t.Error("expected severity to decode from its name")
		}
		if !strings.Contains(buf.String(), `"severity":"error"`) {
			t.Error("expected severity encoded as a string")
		}
	})

	t.Run("history wraps audits with a count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteHistory(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != `{"count":0,"audits":[]}` {
			t.Errorf("unexpected output %s", got)
		}
	})

	t.Run("pretty print indents output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteStats(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"trend\": \"up\"") {
			t.Errorf("expected indented output, got %s", buf.String())
		}
	})

	t.Run("batch snapshot encodes state by name", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteBatch(createTestSnapshot()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, `"state":"cancelled"`) || !strings.Contains(output, `"progress":2`) {
			t.Errorf("unexpected output %s", output)
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes audit with chart and alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteAudit(createTestAudit()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Page Audit Report",
			"## Scores",
			"```mermaid",
			"Issues by Severity",
			"### 🔴 Errors",
			"[!IMPORTANT]",
			"**High** Headings: add exactly one H1 heading",
			"Parse warning",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes stats with band chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteStats(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "Score Bands") || !strings.Contains(output, "[!TIP]") {
			t.Errorf("unexpected output\n%s", output)
		}
	})

	t.Run("writes batch with cancellation warning", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteBatch(createTestSnapshot()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!WARNING]") || !strings.Contains(output, "target-2") {
			t.Errorf("unexpected output\n%s", output)
		}
	})

	t.Run("writes history and comparison", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)
		if _, err := w.WriteHistory([]*model.PageAudit{createTestAudit()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := w.WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "# Audit History") || !strings.Contains(output, "No resolved issues.") {
			t.Errorf("unexpected output\n%s", output)
		}
	})
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	n, err := m.WriteAudit(createTestAudit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("expected total bytes %d, got %d", text.Len()+js.Len(), n)
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

// TestParseFormat tests format parsing.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"yaml", "", true},
	}

	for _, tc := range testCases {
		t.Run("parses "+tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
			if !tc.wantErr {
				if _, err := NewWriter(got, &bytes.Buffer{}); err != nil {
					t.Errorf("NewWriter failed: %v", err)
				}
			}
		})
	}
}

// TestLabel tests display label casing.
func TestLabel(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"seo":              "SEO",
		"meta description": "Meta Description",
		"structure":        "Structure",
		"invalid_url":      "Invalid Url",
	}
	for input, expected := range testCases {
		if got := label(input); got != expected {
			t.Errorf("label(%q) = %q, expected %q", input, got, expected)
		}
	}
}
