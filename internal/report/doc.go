// Package report renders audits, audit history, statistics and batch
// results.
//
// Three formats are available:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with tables and mermaid charts for sharing
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
