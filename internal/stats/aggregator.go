package stats

import (
	"slices"

	"github.com/nao1215/pageaudit/internal/model"
)

// DefaultTrendThreshold is the minimum difference, in overall score points,
// between the recent and older halves of the window for a trend to be up
// or down.
const DefaultTrendThreshold = 5.0

// Trend classifies how the average overall score moved.
type Trend string

// Trend values.
const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Summary aggregates a window of audit records.
type Summary struct {
	Total int `json:"total"`

	AvgSEO       float64 `json:"avg_seo"`
	AvgContent   float64 `json:"avg_content"`
	AvgStructure float64 `json:"avg_structure"`
	AvgOverall   float64 `json:"avg_overall"`

	Trend Trend `json:"trend"`

	// RecentAverage and OlderAverage are the average overall scores of the
	// newer and older halves of the window. Both are zero with fewer than
	// two records.
	RecentAverage float64 `json:"recent_average"`
	OlderAverage  float64 `json:"older_average"`

	// Bands counts records per overall score band.
	Bands map[model.ScoreBand]int `json:"bands"`
}

// Aggregator computes summaries.
type Aggregator struct {
	threshold float64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTrendThreshold sets the trend threshold. Negative values are ignored.
func WithTrendThreshold(points float64) Option {
	return func(a *Aggregator) {
		if points >= 0 {
			a.threshold = points
		}
	}
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{threshold: DefaultTrendThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the trend threshold.
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Compute summarizes records using the default threshold.
func Compute(records []*model.PageAudit) Summary {
	return New().Compute(records)
}

// Compute summarizes records.
//
// Records are ordered newest first before splitting; the more recent half
// is the first n/2 records and the older half the rest, so an odd middle
// record counts as older. The trend is up or down only when the halves
// differ by more than the threshold.
func (a *Aggregator) Compute(records []*model.PageAudit) Summary {
	window := make([]*model.PageAudit, 0, len(records))
	for _, r := range records {
		if r != nil {
			window = append(window, r)
		}
	}
	slices.SortStableFunc(window, func(x, y *model.PageAudit) int {
		return y.AuditDate.Compare(x.AuditDate)
	})

	s := Summary{
		Total: len(window),
		Trend: TrendStable,
		Bands: make(map[model.ScoreBand]int, len(model.Bands)),
	}
	for _, b := range model.Bands {
		s.Bands[b] = 0
	}
	if len(window) == 0 {
		return s
	}

	var seo, content, structure, overall int
	for _, r := range window {
		seo += r.SEOScore
		content += r.ContentScore
		structure += r.StructureScore
		overall += r.OverallScore
		s.Bands[r.Band()]++
	}
	n := float64(len(window))
	s.AvgSEO = float64(seo) / n
	s.AvgContent = float64(content) / n
	s.AvgStructure = float64(structure) / n
	s.AvgOverall = float64(overall) / n

	if len(window) < 2 {
		return s
	}

	half := len(window) / 2
	s.RecentAverage = averageOverall(window[:half])
	s.OlderAverage = averageOverall(window[half:])
	s.Trend = classify(s.RecentAverage-s.OlderAverage, a.threshold)

	return s
}

func averageOverall(records []*model.PageAudit) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.OverallScore
	}
	return float64(sum) / float64(len(records))
}

func classify(diff, threshold float64) Trend {
	switch {
	case diff > threshold:
		return TrendUp
	case diff < -threshold:
		return TrendDown
	default:
		return TrendStable
	}
}
