package batch

import (
	"context"
	"sync"

	"github.com/nao1215/pageaudit/internal/model"
)

// Manager owns the single current run exposed through the batch API.
// At most one run is active at a time.
type Manager struct {
	orchestrator *Orchestrator

	mu      sync.Mutex
	current *Run
}

// NewManager creates a Manager that starts runs with o.
func NewManager(o *Orchestrator) *Manager {
	return &Manager{orchestrator: o}
}

// Submit starts a new run. A finished run is replaced; an active one
// causes ErrBatchInProgress.
//
// The run is detached from ctx's cancellation so that it outlives the
// request that submitted it; use Cancel to stop it.
func (m *Manager) Submit(ctx context.Context, targets []model.BatchTarget) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Snapshot().State.IsActive() {
		return nil, ErrBatchInProgress
	}

	run, err := m.orchestrator.Start(context.WithoutCancel(ctx), targets)
	if err != nil {
		return nil, err
	}
	m.current = run
	return run, nil
}

// Cancel requests cancellation of the active run.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.Snapshot().State.IsTerminal() {
		return ErrNoActiveBatch
	}
	m.current.Cancel()
	return nil
}

// Reset discards a finished run and returns the manager to idle.
// Resetting while a run is active returns ErrBatchInProgress.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Snapshot().State.IsActive() {
		return ErrBatchInProgress
	}
	m.current = nil
	return nil
}

// Current returns the current run, if any.
func (m *Manager) Current() (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Snapshot returns the current run's progress, or an idle snapshot when
// there is no run.
func (m *Manager) Snapshot() Snapshot {
	run, ok := m.Current()
	if !ok {
		return Snapshot{State: StateIdle, Results: []model.BatchAuditResult{}}
	}
	return run.Snapshot()
}
