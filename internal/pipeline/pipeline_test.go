package pipeline

import (
	"context"
	"errors"
	"testing"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, state *State) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, state *State) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, state)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("creates empty pipeline", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
	})

	t.Run("maintains step order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "first"})
		p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

		names := p.StepNames()
		expected := []string{"first", "second", "third"}
		if len(names) != len(expected) {
			t.Fatalf("expected %d steps, got %d", len(expected), len(names))
		}
		for i, name := range names {
			if name != expected[i] {
				t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
			}
		}
	})
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *State) error {
					order = append(order, name)
					return nil
				},
			}
		}

		p := New()
		p.AddSteps(record("a"), record("b"), record("c"))

		state := NewState("https://example.com/")
		if err := p.Execute(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("unexpected execution order %v", order)
		}
		if len(state.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %v", state.PerformedSteps)
		}
	})

	t.Run("stops at first failure and names the stage", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("boom")
		failing := &mockStep{
			name:   "extract",
			doFunc: func(context.Context, *State) error { return stepErr },
		}
		after := &mockStep{name: "persist"}

		p := New()
		p.AddSteps(&mockStep{name: "fetch"}, failing, after)

		state := NewState("https://example.com/")
		err := p.Execute(context.Background(), state)

		var ae *AuditError
		if !errors.As(err, &ae) {
			t.Fatalf("expected *AuditError, got %T", err)
		}
		if ae.Stage != "extract" {
			t.Errorf("expected stage extract, got %q", ae.Stage)
		}
		if !errors.Is(err, stepErr) {
			t.Error("expected error to wrap the step error")
		}
		if after.callCount != 0 {
			t.Error("steps after a failure must not run")
		}
		if len(state.PerformedSteps) != 1 {
			t.Errorf("expected 1 performed step, got %v", state.PerformedSteps)
		}
	})

	t.Run("checks cancellation before each step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{
			name: "fetch",
			doFunc: func(context.Context, *State) error {
				cancel()
				return nil
			},
		}
		second := &mockStep{name: "extract"}

		p := New()
		p.AddSteps(first, second)

		err := p.Execute(ctx, NewState("https://example.com/"))
		if !IsCancelled(err) {
			t.Errorf("expected cancellation error, got %v", err)
		}
		if StageOf(err) != "extract" {
			t.Errorf("expected stage extract, got %q", StageOf(err))
		}
		if second.callCount != 0 {
			t.Error("step must not start after cancellation")
		}
	})
}
