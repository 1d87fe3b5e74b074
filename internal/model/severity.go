package model

import (
	"fmt"
	"strings"
)

// Severity represents how serious an audit issue is.
//
// The numeric value doubles as the sort rank: lower values sort first, so
// errors are listed before warnings and warnings before informational issues.
type Severity int

const (
	// SeverityError indicates a problem that materially hurts the page.
	// Examples: missing title, missing H1, page marked noindex.
	SeverityError Severity = iota

	// SeverityWarning indicates a problem that should be fixed but does not
	// break the page. Examples: title outside the ideal length band.
	SeverityWarning

	// SeverityInfo indicates an optional improvement.
	// Examples: missing canonical link, missing Open Graph tags.
	SeverityInfo
)

// String returns the wire representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Rank returns the sort rank of the severity. Lower ranks sort first.
func (s Severity) Rank() int {
	return int(s)
}

// AtLeast reports whether s is as serious as or more serious than other.
func (s Severity) AtLeast(other Severity) bool {
	return s <= other
}

// MarshalText implements encoding.TextMarshaler so severities are stored
// and served as "error", "warning" and "info".
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityError || s > SeverityInfo {
		return nil, fmt.Errorf("invalid severity: %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a string into a Severity. Matching is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warning":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// IssueType names the scoring dimension an issue belongs to.
type IssueType string

const (
	// IssueTypeSEO covers search-engine signals such as title and meta description.
	IssueTypeSEO IssueType = "seo"
	// IssueTypeContent covers the body copy: word counts, images, links.
	IssueTypeContent IssueType = "content"
	// IssueTypeStructure covers document structure: headings, viewport.
	IssueTypeStructure IssueType = "structure"
)

// Valid reports whether t is one of the known issue types.
func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeSEO, IssueTypeContent, IssueTypeStructure:
		return true
	default:
		return false
	}
}

// Priority represents how urgent a recommendation is.
// As with Severity, the numeric value is the sort rank.
type Priority int

const (
	// PriorityHigh should be acted on first.
	PriorityHigh Priority = iota
	// PriorityMedium should be scheduled.
	PriorityMedium
	// PriorityLow is nice to have.
	PriorityLow
)

// String returns the wire representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Rank returns the sort rank of the priority. Lower ranks sort first.
func (p Priority) Rank() int {
	return int(p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if p < PriorityHigh || p > PriorityLow {
		return nil, fmt.Errorf("invalid priority: %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority converts a string into a Priority. Matching is case-insensitive.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// ScoreBand is the qualitative bucket a 0-100 score falls into.
type ScoreBand string

const (
	// BandGood is a score of 80 or more.
	BandGood ScoreBand = "good"
	// BandFair is a score from 60 to 79.
	BandFair ScoreBand = "fair"
	// BandPoor is a score from 40 to 59.
	BandPoor ScoreBand = "poor"
	// BandCritical is a score below 40.
	BandCritical ScoreBand = "critical"
)

// Bands lists every band from best to worst.
var Bands = []ScoreBand{BandGood, BandFair, BandPoor, BandCritical}

// BandForScore classifies a score into its band.
func BandForScore(score int) ScoreBand {
	switch {
	case score >= 80:
		return BandGood
	case score >= 60:
		return BandFair
	case score >= 40:
		return BandPoor
	default:
		return BandCritical
	}
}
