package batch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/pageaudit/internal/model"
)

// TestManager tests the single-run lifecycle used by the HTTP API.
func TestManager(t *testing.T) {
	t.Parallel()

	t.Run("starts idle", func(t *testing.T) {
		t.Parallel()

		m := NewManager(NewOrchestrator(&fakeAuditor{}))
		if _, ok := m.Current(); ok {
			t.Error("expected no current run")
		}
		snap := m.Snapshot()
		if snap.State != StateIdle || snap.Results == nil {
			t.Errorf("unexpected idle snapshot %+v", snap)
		}
		if err := m.Cancel(); !errors.Is(err, ErrNoActiveBatch) {
			t.Errorf("expected ErrNoActiveBatch, got %v", err)
		}
		if err := m.Reset(); err != nil {
			t.Errorf("reset while idle should succeed, got %v", err)
		}
	})

	t.Run("refuses a second submit while running", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		auditor := &fakeAuditor{
			fn: func(_ context.Context, pageURL string) (*model.PageAudit, error) {
				<-release
				return okAudit(pageURL), nil
			},
		}
		m := NewManager(NewOrchestrator(auditor, WithDelay(0)))

		run, err := m.Submit(context.Background(), targets("a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := m.Submit(context.Background(), targets("c")); !errors.Is(err, ErrBatchInProgress) {
			t.Errorf("expected ErrBatchInProgress, got %v", err)
		}
		if err := m.Reset(); !errors.Is(err, ErrBatchInProgress) {
			t.Errorf("expected reset to be refused while running, got %v", err)
		}

		close(release)
		waitDone(t, run)

		if err := m.Reset(); err != nil {
			t.Errorf("expected reset after completion, got %v", err)
		}
		if m.Snapshot().State != StateIdle {
			t.Error("expected idle after reset")
		}
	})

	t.Run("cancel stops the active run", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		auditor := &fakeAuditor{
			fn: func(_ context.Context, pageURL string) (*model.PageAudit, error) {
				<-release
				return okAudit(pageURL), nil
			},
		}
		m := NewManager(NewOrchestrator(auditor, WithConcurrency(1), WithDelay(0)))

		run, err := m.Submit(context.Background(), targets("a", "b", "c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := m.Cancel(); err != nil {
			t.Fatalf("unexpected cancel error: %v", err)
		}
		if got := m.Snapshot().State; got != StateCancelling {
			t.Errorf("expected cancelling, got %s", got)
		}

		close(release)
		snap := waitDone(t, run)
		if snap.State != StateCancelled || snap.Progress > 1 {
			t.Errorf("unexpected final snapshot %+v", snap)
		}
		if err := m.Cancel(); !errors.Is(err, ErrNoActiveBatch) {
			t.Errorf("expected ErrNoActiveBatch after finish, got %v", err)
		}
	})

	t.Run("submit outlives the submitting context", func(t *testing.T) {
		t.Parallel()

		m := NewManager(NewOrchestrator(&fakeAuditor{}, WithDelay(0)))
		ctx, cancel := context.WithCancel(context.Background())

		run, err := m.Submit(ctx, targets("a", "b"))
		cancel()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := waitDone(t, run)
		if snap.State != StateCompleted || snap.Progress != 2 {
			t.Errorf("expected completed run, got %+v", snap)
		}
	})

	t.Run("empty submission is rejected", func(t *testing.T) {
		t.Parallel()

		m := NewManager(NewOrchestrator(&fakeAuditor{}))
		if _, err := m.Submit(context.Background(), nil); !errors.Is(err, ErrNoTargets) {
			t.Errorf("expected ErrNoTargets, got %v", err)
		}
	})
}

// TestParseTargets tests target list parsing.
func TestParseTargets(t *testing.T) {
	t.Parallel()

	t.Run("parses urls, titles, comments and duplicates", func(t *testing.T) {
		t.Parallel()

		input := strings.Join([]string{
			"# marketing pages",
			"https://example.com/",
			"",
			"https://example.com/pricing\tPricing",
			"https://example.com/",
		}, "\n")

		got, err := ParseTargets(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 targets, got %d", len(got))
		}
		if got[1].URL != "https://example.com/pricing" || got[1].Title != "Pricing" {
			t.Errorf("unexpected target %+v", got[1])
		}
		if got[0].URL != got[2].URL {
			t.Error("duplicate urls must be kept")
		}
	})

	t.Run("builds targets from urls", func(t *testing.T) {
		t.Parallel()

		got := TargetsFromURLs([]string{"a", "b"})
		if len(got) != 2 || got[1].URL != "b" || got[1].ID != "" {
			t.Errorf("unexpected targets %+v", got)
		}
	})
}
