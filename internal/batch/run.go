package batch

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nao1215/pageaudit/internal/model"
)

// Run is one batch execution. Its methods are safe for concurrent use.
type Run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	targets []model.BatchTarget
	logger  *slog.Logger
	done    chan struct{}

	// notifyMu serializes event publication so observers and subscribers
	// see snapshots in order. It is always taken before mu.
	notifyMu    sync.Mutex
	observers   []Observer
	subscribers []chan Snapshot

	mu                 sync.Mutex
	state              State
	cancelled          bool
	cancelAnnounced    bool
	results            []model.BatchAuditResult
	totalAuditDuration time.Duration
	startedAt          time.Time
	finishedAt         time.Time
}

func newRun(ctx context.Context, cancel context.CancelFunc, targets []model.BatchTarget, observers []Observer, logger *slog.Logger) *Run {
	r := &Run{
		ctx:       ctx,
		cancel:    cancel,
		targets:   targets,
		logger:    logger,
		done:      make(chan struct{}),
		observers: slices.Clone(observers),
		state:     StateRunning,
		results:   make([]model.BatchAuditResult, 0, len(targets)),
		startedAt: time.Now(),
	}
	// A cancelled parent context behaves like Cancel.
	context.AfterFunc(ctx, r.markCancelling)
	return r
}

// Targets returns the submitted targets with their IDs filled in.
func (r *Run) Targets() []model.BatchTarget {
	return slices.Clone(r.targets)
}

// Cancel requests cooperative cancellation. No target that has not been
// dispatched yet will start; audits in flight finish normally. Cancel is a
// no-op once the run has finished.
func (r *Run) Cancel() {
	r.markCancelling()
	r.cancel()
}

// Done returns a channel that is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns its final snapshot.
func (r *Run) Wait() Snapshot {
	<-r.done
	return r.Snapshot()
}

// Snapshot returns the current progress.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe returns a channel that receives the current snapshot followed
// by every later change, and is closed when the run finishes. The channel
// is buffered for every event the run can produce, so a slow reader never
// stalls the run.
func (r *Run) Subscribe() <-chan Snapshot {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	ch := make(chan Snapshot, len(r.targets)+3)
	ch <- r.Snapshot()

	select {
	case <-r.done:
		close(ch)
	default:
		r.subscribers = append(r.subscribers, ch)
	}
	return ch
}

func (r *Run) markCancelling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return
	}
	r.state = StateCancelling
	r.cancelled = true
}

// dispatch starts audits in target order until every target is dispatched
// or cancellation is requested, then waits for in-flight audits.
func (r *Run) dispatch(auditCtx context.Context, auditor Auditor, concurrency int, limiter *rate.Limiter) {
	defer r.cancel()

	var g errgroup.Group
	sem := semaphore.NewWeighted(int64(concurrency))

	for i, target := range r.targets {
		if err := sem.Acquire(r.ctx, 1); err != nil {
			break
		}
		if err := limiter.Wait(r.ctx); err != nil {
			sem.Release(1)
			break
		}
		// Acquire and Wait may succeed after cancellation; check again.
		if r.ctx.Err() != nil {
			sem.Release(1)
			break
		}

		r.logger.Debug("dispatching target",
			"index", i+1,
			"total", len(r.targets),
			"url", target.URL,
		)

		g.Go(func() error {
			// The slot is released only after the result is published, so
			// an observer that cancels on this event prevents the next dispatch.
			defer sem.Release(1)
			r.auditOne(auditCtx, auditor, target)
			return nil
		})
	}

	if r.ctx.Err() != nil {
		r.markCancelling()
		r.announceCancelling()
	}

	_ = g.Wait()
	r.finish()
}

func (r *Run) auditOne(ctx context.Context, auditor Auditor, target model.BatchTarget) {
	start := time.Now()
	audit, err := auditor.Audit(ctx, target.URL)
	elapsed := time.Since(start)

	var result model.BatchAuditResult
	if err != nil {
		r.logger.Warn("audit failed",
			"target", target.ID,
			"url", target.URL,
			"error", err,
		)
		result = model.NewFailureResult(target, err)
	} else {
		r.logger.Info("audit completed",
			"target", target.ID,
			"url", target.URL,
			"overall", audit.OverallScore,
		)
		result = model.NewSuccessResult(target, audit)
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	r.results = append(r.results, result)
	r.totalAuditDuration += elapsed
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.publishLocked(snap)
}

func (r *Run) announceCancelling() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if r.cancelAnnounced || r.state != StateCancelling {
		r.mu.Unlock()
		return
	}
	r.cancelAnnounced = true
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("batch cancelling",
		"progress", snap.Progress,
		"total", snap.Total,
	)
	r.publishLocked(snap)
}

func (r *Run) finish() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if r.ctx.Err() != nil && r.state == StateRunning {
		r.state = StateCancelling
		r.cancelled = true
	}
	if r.cancelled {
		r.state = StateCancelled
	} else {
		r.state = StateCompleted
	}
	r.finishedAt = time.Now()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("batch finished",
		"state", snap.State,
		"progress", snap.Progress,
		"total", snap.Total,
		"succeeded", snap.Succeeded(),
		"elapsed", snap.Elapsed(),
	)

	r.publishLocked(snap)
	for _, ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = nil
	close(r.done)
}

// publishLocked delivers snap to observers and subscribers.
// The caller holds notifyMu.
func (r *Run) publishLocked(snap Snapshot) {
	for _, obs := range r.observers {
		obs(snap)
	}
	for _, ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			r.logger.Warn("dropping batch event for full subscriber")
		}
	}
}

// snapshotLocked builds a snapshot. The caller holds mu.
func (r *Run) snapshotLocked() Snapshot {
	progress := len(r.results)
	snap := Snapshot{
		State:     r.state,
		Total:     len(r.targets),
		Progress:  progress,
		Cancelled: r.cancelled,
		Results:   slices.Clone(r.results),
		StartedAt: r.startedAt,
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		snap.FinishedAt = &finished
	}
	if progress > 0 && !r.state.IsTerminal() {
		avg := r.totalAuditDuration / time.Duration(progress)
		snap.EstimatedRemaining = avg * time.Duration(len(r.targets)-progress)
	}
	return snap
}
