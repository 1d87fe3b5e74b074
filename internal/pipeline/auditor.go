package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/pageaudit/internal/extractor"
	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/scoring"
)

// Auditor audits single pages: fetch, extract, score, persist.
// It is safe for concurrent use.
type Auditor struct {
	fetcher   fetcher.Fetcher
	extractor *extractor.Extractor
	engine    *scoring.Engine
	store     Store
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger

	pipeline *Pipeline
}

// AuditorOption configures an Auditor.
type AuditorOption func(*Auditor)

// WithExtractor replaces the default extractor.
func WithExtractor(e *extractor.Extractor) AuditorOption {
	return func(a *Auditor) {
		a.extractor = e
	}
}

// WithEngine replaces the default scoring engine.
func WithEngine(engine *scoring.Engine) AuditorOption {
	return func(a *Auditor) {
		a.engine = engine
	}
}

// WithIDGenerator sets the function that generates record IDs.
func WithIDGenerator(newID func() string) AuditorOption {
	return func(a *Auditor) {
		a.newID = newID
	}
}

// WithClock sets the function that stamps audit dates.
func WithClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) {
		a.now = now
	}
}

// WithAuditorLogger sets a custom logger for the auditor and its steps.
func WithAuditorLogger(logger *slog.Logger) AuditorOption {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuditor creates an Auditor that fetches with f and stores records in store.
func NewAuditor(f fetcher.Fetcher, store Store, opts ...AuditorOption) (*Auditor, error) {
	if f == nil {
		return nil, fmt.Errorf("auditor requires a fetcher")
	}
	if store == nil {
		return nil, fmt.Errorf("auditor requires a store")
	}

	a := &Auditor{
		fetcher: f,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.extractor == nil {
		a.extractor = extractor.New(extractor.WithLogger(a.logger))
	}
	if a.engine == nil {
		engine, err := scoring.New(scoring.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.engine = engine
	}

	a.pipeline = New(WithLogger(a.logger))
	a.pipeline.AddSteps(
		NewFetchStep(a.fetcher),
		NewExtractStep(a.extractor, a.logger),
		NewScoreStep(a.engine),
		NewPersistStep(a.store, a.newID, a.now),
	)

	return a, nil
}

// Steps returns the step names in execution order.
func (a *Auditor) Steps() []string {
	return a.pipeline.StepNames()
}

// Audit audits one page and returns the stored record.
//
// Every call produces a new record; earlier audits of the same URL are
// neither read nor changed. On failure nothing is stored and the error is
// an *AuditError naming the failed stage.
func (a *Auditor) Audit(ctx context.Context, rawURL string) (*model.PageAudit, error) {
	pageURL, err := fetcher.NormalizeURL(rawURL)
	if err != nil {
		return nil, &AuditError{
			URL:   rawURL,
			Stage: StageFetch,
			Err:   &fetcher.FetchError{URL: rawURL, Reason: fetcher.ReasonInvalidURL, Err: err},
		}
	}

	start := time.Now()
	state := NewState(pageURL)
	if err := a.pipeline.Execute(ctx, state); err != nil {
		return nil, err
	}
	if state.Audit == nil {
		return nil, &AuditError{URL: pageURL, Stage: StagePersist, Err: errNilAudit}
	}

	a.logger.Info("audit completed",
		"url", pageURL,
		"id", state.Audit.ID,
		"overall", state.Audit.OverallScore,
		"issues", len(state.Audit.Issues),
		"elapsed", time.Since(start),
	)

	return state.Audit, nil
}
