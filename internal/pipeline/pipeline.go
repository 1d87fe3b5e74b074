package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/scoring"
)

// State carries one audit through the pipeline. Each step fills in the
// fields that later steps need.
type State struct {
	// URL is the normalized page URL being audited.
	URL string

	// Page is set by the fetch step.
	Page *model.FetchedPage

	// Signals is set by the extract step.
	Signals *model.SeoData

	// Result is set by the score step.
	Result *scoring.Result

	// Audit is set by the persist step once the record is stored.
	Audit *model.PageAudit

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string
}

// NewState creates the state for auditing pageURL.
func NewState(pageURL string) *State {
	return &State{
		URL:            pageURL,
		PerformedSteps: make([]string, 0, 4),
	}
}

// Step is one stage of an audit.
type Step interface {
	// Do executes the step. A returned error stops the pipeline.
	Do(ctx context.Context, state *State) error

	// Name returns the step's name. It is used as the failure stage in
	// AuditError.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stops at the first failure.
//
// Cancellation is checked before each step, never during one. A failing
// step's error is returned wrapped in an *AuditError naming the step.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("audit cancelled",
				"step", step.Name(),
				"url", state.URL,
				"reason", ctx.Err(),
			)
			return &AuditError{URL: state.URL, Stage: step.Name(), Err: ctx.Err()}
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", state.URL,
		)

		if err := step.Do(ctx, state); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", state.URL,
				"error", err,
			)
			return &AuditError{URL: state.URL, Stage: step.Name(), Err: err}
		}

		state.PerformedSteps = append(state.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
