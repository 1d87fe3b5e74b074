package batch

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/pageaudit/internal/model"
)

const (
	// DefaultConcurrency is the default number of audits in flight at once.
	DefaultConcurrency = 2

	// DefaultDelay is the default minimum time between two dispatches.
	DefaultDelay = time.Second
)

// Auditor audits a single page. *pipeline.Auditor satisfies it.
type Auditor interface {
	Audit(ctx context.Context, pageURL string) (*model.PageAudit, error)
}

// Observer receives a snapshot after every state change of a run.
// Observers are called synchronously, one event at a time and in order.
// They must not block.
type Observer func(Snapshot)

// Orchestrator starts batch runs.
type Orchestrator struct {
	auditor     Auditor
	concurrency int
	delay       time.Duration
	observers   []Observer
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the maximum number of audits in flight.
// Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithDelay sets the minimum time between two dispatches.
// Zero disables the delay; negative values are ignored.
func WithDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithObserver registers an observer for every run.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an Orchestrator around auditor.
func NewOrchestrator(auditor Auditor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		auditor:     auditor,
		concurrency: DefaultConcurrency,
		delay:       DefaultDelay,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Concurrency returns the configured concurrency limit.
func (o *Orchestrator) Concurrency() int {
	return o.concurrency
}

// Start begins auditing targets and returns the running batch.
//
// Targets without an ID get one from their position. Cancelling ctx has
// the same effect as Run.Cancel: no new dispatches, in-flight audits still
// finish. The only error is ErrNoTargets.
func (o *Orchestrator) Start(ctx context.Context, targets []model.BatchTarget) (*Run, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	owned := make([]model.BatchTarget, len(targets))
	for i, t := range targets {
		if t.ID == "" {
			t.ID = "target-" + strconv.Itoa(i+1)
		}
		owned[i] = t
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := newRun(runCtx, cancel, owned, o.observers, o.logger)

	limit := rate.Inf
	if o.delay > 0 {
		limit = rate.Every(o.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	o.logger.Info("starting batch",
		"total", len(owned),
		"concurrency", o.concurrency,
		"delay", o.delay,
	)

	// Audits must outlive cancellation so in-flight work is never aborted.
	auditCtx := context.WithoutCancel(ctx)
	go r.dispatch(auditCtx, o.auditor, o.concurrency, limiter)

	return r, nil
}
