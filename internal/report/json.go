package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// JSONWriter outputs reports in JSON format for tool integration.
// The encoded shapes match the HTTP API responses.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// HistoryReport is the JSON shape of an audit list.
type HistoryReport struct {
	Count  int                `json:"count"`
	Audits []*model.PageAudit `json:"audits"`
}

// NewHistoryReport wraps audits, replacing nil with an empty list.
func NewHistoryReport(audits []*model.PageAudit) HistoryReport {
	if audits == nil {
		audits = []*model.PageAudit{}
	}
	return HistoryReport{Count: len(audits), Audits: audits}
}

// WriteAudit outputs a single audit.
func (w *JSONWriter) WriteAudit(audit *model.PageAudit) (int, error) {
	return w.writeJSON(audit)
}

// WriteHistory outputs a list of audits.
func (w *JSONWriter) WriteHistory(audits []*model.PageAudit) (int, error) {
	return w.writeJSON(NewHistoryReport(audits))
}

// WriteStats outputs an aggregated summary.
func (w *JSONWriter) WriteStats(summary stats.Summary) (int, error) {
	return w.writeJSON(summary)
}

// WriteComparison outputs the change between two audits.
func (w *JSONWriter) WriteComparison(c stats.Comparison) (int, error) {
	return w.writeJSON(c)
}

// WriteBatch outputs the outcome of a batch run.
func (w *JSONWriter) WriteBatch(snap batch.Snapshot) (int, error) {
	return w.writeJSON(snap)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output.
	data = append(data, '\n')

	return w.output.Write(data)
}
