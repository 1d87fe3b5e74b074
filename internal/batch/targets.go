package batch

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/pageaudit/internal/model"
)

// ParseTargets reads one target per line: a URL, optionally followed by a
// tab and a title. Blank lines and lines starting with '#' are skipped.
// IDs are left empty for Start to fill in. Duplicate URLs are kept; each
// becomes its own audit.
func ParseTargets(r io.Reader) ([]model.BatchTarget, error) {
	var targets []model.BatchTarget

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pageURL, title, _ := strings.Cut(line, "\t")
		pageURL = strings.TrimSpace(pageURL)
		if pageURL == "" {
			return nil, fmt.Errorf("line %d: missing url", lineNo)
		}
		targets = append(targets, model.BatchTarget{
			URL:   pageURL,
			Title: strings.TrimSpace(title),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}

	return targets, nil
}

// TargetsFromURLs builds targets from plain URLs.
func TargetsFromURLs(urls []string) []model.BatchTarget {
	targets := make([]model.BatchTarget, 0, len(urls))
	for _, u := range urls {
		targets = append(targets, model.BatchTarget{URL: u})
	}
	return targets
}
