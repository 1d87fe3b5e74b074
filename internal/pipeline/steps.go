package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pageaudit/internal/extractor"
	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/scoring"
)

// Store is the write side of the audit record store.
type Store interface {
	// Insert appends a record. It must never overwrite an existing one.
	Insert(ctx context.Context, audit *model.PageAudit) error
}

// FetchStep downloads the page.
type FetchStep struct {
	fetcher fetcher.Fetcher
}

// NewFetchStep creates a fetch step.
func NewFetchStep(f fetcher.Fetcher) *FetchStep {
	return &FetchStep{fetcher: f}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return StageFetch
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, state *State) error {
	page, err := s.fetcher.Fetch(ctx, state.URL)
	if err != nil {
		return err
	}
	state.Page = page
	return nil
}

// ExtractStep turns the fetched page into signals.
//
// A *extractor.ParseError is not fatal: the step logs it and continues
// with whatever signals could be extracted.
type ExtractStep struct {
	extractor *extractor.Extractor
	logger    *slog.Logger
}

// NewExtractStep creates an extract step.
func NewExtractStep(e *extractor.Extractor, logger *slog.Logger) *ExtractStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStep{extractor: e, logger: logger}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return StageExtract
}

// Do executes the extract step.
func (s *ExtractStep) Do(_ context.Context, state *State) error {
	if state.Page == nil {
		return errors.New("no fetched page")
	}

	data, err := s.extractor.Extract(state.Page)
	if err != nil {
		var pe *extractor.ParseError
		if !errors.As(err, &pe) {
			return err
		}
		s.logger.Warn("page partially parsed",
			"url", state.URL,
			"warnings", pe.Warnings,
		)
	}

	state.Signals = data
	return nil
}

// ScoreStep evaluates the rule set against the signals.
type ScoreStep struct {
	engine *scoring.Engine
}

// NewScoreStep creates a score step.
func NewScoreStep(engine *scoring.Engine) *ScoreStep {
	return &ScoreStep{engine: engine}
}

// Name returns the step name.
func (s *ScoreStep) Name() string {
	return StageScore
}

// Do executes the score step.
func (s *ScoreStep) Do(_ context.Context, state *State) error {
	if state.Signals == nil {
		return errors.New("no extracted signals")
	}

	result, err := s.engine.Score(state.Signals)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

// PersistStep builds the audit record and appends it to the store.
// It must be the last step.
type PersistStep struct {
	store Store
	newID func() string
	now   func() time.Time
}

// NewPersistStep creates a persist step. IDs are random UUIDs and audit
// dates come from the wall clock unless overridden.
func NewPersistStep(store Store, newID func() string, now func() time.Time) *PersistStep {
	if newID == nil {
		newID = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &PersistStep{store: store, newID: newID, now: now}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return StagePersist
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, state *State) error {
	if state.Result == nil || state.Signals == nil {
		return errors.New("no score to persist")
	}

	r := state.Result
	audit := &model.PageAudit{
		ID:              s.newID(),
		PageURL:         state.URL,
		AuditDate:       s.now().UTC(),
		SEOScore:        r.SEOScore,
		ContentScore:    r.ContentScore,
		StructureScore:  r.StructureScore,
		OverallScore:    r.OverallScore,
		Issues:          r.Issues,
		Recommendations: r.Recommendations,
		RawData:         *state.Signals,
	}

	if err := audit.Validate(); err != nil {
		return &scoring.InvariantViolation{Detail: err.Error()}
	}

	if err := s.store.Insert(ctx, audit); err != nil {
		return &PersistenceError{AuditID: audit.ID, Err: err}
	}

	state.Audit = audit
	return nil
}

// ensure the steps satisfy Step.
var (
	_ Step = (*FetchStep)(nil)
	_ Step = (*ExtractStep)(nil)
	_ Step = (*ScoreStep)(nil)
	_ Step = (*PersistStep)(nil)
)

// errNilAudit is returned if a pipeline finishes without producing a record.
var errNilAudit = errors.New("pipeline finished without a record")
