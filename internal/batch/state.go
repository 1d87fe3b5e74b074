package batch

import (
	"fmt"
	"time"

	"github.com/nao1215/pageaudit/internal/model"
)

// State is the lifecycle state of a batch run.
//
//	Idle --submit--> Running --all done--> Completed
//	Running --cancel--> Cancelling --in-flight done--> Cancelled
type State int

const (
	// StateIdle means no batch has been submitted.
	StateIdle State = iota

	// StateRunning means targets are being dispatched.
	StateRunning

	// StateCancelling means cancellation was requested and in-flight
	// audits are draining.
	StateCancelling

	// StateCompleted means every target was audited.
	StateCompleted

	// StateCancelled means the run stopped early and in-flight work drained.
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether the state is Completed or Cancelled.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// IsActive reports whether the run still has work in progress.
func (s State) IsActive() bool {
	return s == StateRunning || s == StateCancelling
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for candidate := StateIdle; candidate <= StateCancelled; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown batch state %q", text)
}

// Snapshot is a point-in-time copy of a run's progress.
type Snapshot struct {
	State     State `json:"state"`
	Total     int   `json:"total"`
	Progress  int   `json:"progress"`
	Cancelled bool  `json:"cancelled"`

	// Results holds one entry per completed audit, in completion order.
	Results []model.BatchAuditResult `json:"results"`

	// EstimatedRemaining is (total - progress) times the average audit
	// duration so far. It is for display only.
	EstimatedRemaining time.Duration `json:"estimated_remaining_ns"`

	StartedAt  time.Time  `json:"started_at,omitzero"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Succeeded returns the number of successful audits.
func (s Snapshot) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed audits.
func (s Snapshot) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Elapsed returns the run duration so far, or in total once finished.
func (s Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}
