package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/database"
	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/pipeline"
	"github.com/nao1215/pageaudit/internal/report"
	"github.com/nao1215/pageaudit/internal/stats"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeAuditor stores a fixed-score audit for every URL.
type fakeAuditor struct {
	store   *database.AuditDB
	err     error
	panics  bool
	gate    chan struct{}
	entered atomic.Int64
	overall int
	seq     atomic.Int64
}

func (f *fakeAuditor) Audit(ctx context.Context, pageURL string) (*model.PageAudit, error) {
	f.entered.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.panics {
		panic("rule table corrupted")
	}
	if f.err != nil {
		return nil, f.err
	}

	n := f.seq.Add(1)
	audit := newAudit(fmt.Sprintf("audit-%d", n), pageURL, time.Now().Add(time.Duration(n)*time.Second), f.overall+int(n))
	if err := f.store.Insert(ctx, audit); err != nil {
		return nil, err
	}
	return audit, nil
}

func newAudit(id, pageURL string, date time.Time, overall int) *model.PageAudit {
	return &model.PageAudit{
		ID:             id,
		PageURL:        pageURL,
		AuditDate:      date.UTC(),
		SEOScore:       overall,
		ContentScore:   overall,
		StructureScore: overall,
		OverallScore:   overall,
		Issues: []model.Issue{
			{Rule: "title_too_short", Severity: model.SeverityWarning, Type: model.IssueTypeSEO, Message: "title too short"},
		},
		Recommendations: []model.Recommendation{
			{Priority: model.PriorityHigh, Category: "title", Action: "lengthen title to 50-60 chars"},
		},
	}
}

type testEnv struct {
	server  *Server
	store   *database.AuditDB
	auditor *fakeAuditor
	batches *batch.Manager
}

func setup(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	auditor := &fakeAuditor{store: store, overall: 60}
	batches := batch.NewManager(batch.NewOrchestrator(auditor, batch.WithDelay(0)))

	srv, err := New(auditor, store, batches, opts...)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return &testEnv{server: srv, store: store, auditor: auditor, batches: batches}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew(t *testing.T) {
	t.Parallel()

	manager := batch.NewManager(batch.NewOrchestrator(&fakeAuditor{}))

	if _, err := New(nil, &database.AuditDB{}, manager); err == nil {
		t.Error("expected error for nil auditor")
	}
	if _, err := New(&fakeAuditor{}, nil, manager); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := New(&fakeAuditor{}, &database.AuditDB{}, nil); err == nil {
		t.Error("expected error for nil batch manager")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := setup(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuditLifecycle(t *testing.T) {
	t.Parallel()

	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/audits", gin.H{"url": "https://example.com/"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[model.PageAudit](t, rec)
	if created.ID == "" || created.PageURL != "https://example.com/" {
		t.Fatalf("unexpected audit: %+v", created)
	}

	rec = env.do(t, http.MethodGet, "/api/audits/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[model.PageAudit](t, rec); got.OverallScore != created.OverallScore {
		t.Errorf("expected overall %d, got %d", created.OverallScore, got.OverallScore)
	}

	rec = env.do(t, http.MethodGet, "/api/audits", nil)
	if history := decode[report.HistoryReport](t, rec); history.Count != 1 {
		t.Errorf("expected 1 audit, got %d", history.Count)
	}

	rec = env.do(t, http.MethodDelete, "/api/audits/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/audits/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/audits/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestCreateAuditErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing url is a bad request", func(t *testing.T) {
		t.Parallel()

		env := setup(t)
		rec := env.do(t, http.MethodPost, "/api/audits", gin.H{"page": "x"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantStage  string
		wantReason string
	}{
		{
			name: "invalid url is a bad request",
			err: &pipeline.AuditError{URL: "ftp://x", Stage: pipeline.StageFetch, Err: &fetcher.FetchError{
				URL: "ftp://x", Reason: fetcher.ReasonInvalidURL, Err: fetcher.ErrInvalidURL,
			}},
			wantStatus: http.StatusBadRequest,
			wantStage:  "fetch",
			wantReason: "invalid_url",
		},
		{
			name: "blocked fetch is a bad gateway",
			err: &pipeline.AuditError{URL: "https://x", Stage: pipeline.StageFetch, Err: &fetcher.FetchError{
				URL: "https://x", Reason: fetcher.ReasonBlocked, StatusCode: http.StatusForbidden,
			}},
			wantStatus: http.StatusBadGateway,
			wantStage:  "fetch",
			wantReason: "blocked",
		},
		{
			name: "persistence failure is an internal error",
			err: &pipeline.AuditError{URL: "https://x", Stage: pipeline.StagePersist, Err: &pipeline.PersistenceError{
				AuditID: "a", Err: io.ErrClosedPipe,
			}},
			wantStatus: http.StatusInternalServerError,
			wantStage:  "persist",
		},
		{
			name:       "cancelled audit is unavailable",
			err:        &pipeline.AuditError{URL: "https://x", Stage: pipeline.StageScore, Err: context.Canceled},
			wantStatus: http.StatusServiceUnavailable,
			wantStage:  "score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setup(t)
			env.auditor.err = tt.err

			rec := env.do(t, http.MethodPost, "/api/audits", gin.H{"url": "https://x"})
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			body := decode[errorResponse](t, rec)
			if body.Stage != tt.wantStage || body.Reason != tt.wantReason {
				t.Errorf("expected stage %q reason %q, got %+v", tt.wantStage, tt.wantReason, body)
			}
		})
	}
}

func TestListAudits(t *testing.T) {
	t.Parallel()

	env := setup(t)
	ctx := context.Background()
	now := time.Now()
	for i, u := range []string{"https://a.example/", "https://b.example/", "https://a.example/"} {
		if err := env.store.Insert(ctx, newAudit(fmt.Sprintf("r%d", i), u, now.Add(time.Duration(i)*time.Minute), 50)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	t.Run("limit bounds the result", func(t *testing.T) {
		t.Parallel()

		rec := env.do(t, http.MethodGet, "/api/audits?limit=2", nil)
		history := decode[report.HistoryReport](t, rec)
		if history.Count != 2 || history.Audits[0].ID != "r2" {
			t.Errorf("expected newest two starting with r2, got %+v", history)
		}
	})

	t.Run("url filters records", func(t *testing.T) {
		t.Parallel()

		rec := env.do(t, http.MethodGet, "/api/audits?url=https://a.example/", nil)
		if history := decode[report.HistoryReport](t, rec); history.Count != 2 {
			t.Errorf("expected 2 records for a.example, got %d", history.Count)
		}
	})

	t.Run("invalid limit is rejected", func(t *testing.T) {
		t.Parallel()

		for _, limit := range []string{"0", "-3", "ten"} {
			rec := env.do(t, http.MethodGet, "/api/audits?limit="+limit, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: expected 400, got %d", limit, rec.Code)
			}
		}
	})
}

func TestStatsAndCompare(t *testing.T) {
	t.Parallel()

	env := setup(t)
	ctx := context.Background()
	now := time.Now()
	older := newAudit("old", "https://a.example/", now.Add(-time.Hour), 60)
	newer := newAudit("new", "https://a.example/", now, 72)
	newer.Issues = nil
	for _, a := range []*model.PageAudit{older, newer} {
		if err := env.store.Insert(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	summary := decode[stats.Summary](t, rec)
	if summary.Total != 2 || summary.AvgOverall != 66 {
		t.Errorf("expected 2 records averaging 66, got %+v", summary)
	}
	if summary.Trend != stats.TrendUp {
		t.Errorf("expected trend up, got %v", summary.Trend)
	}

	rec = env.do(t, http.MethodGet, "/api/compare?url=https://a.example/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cmp := decode[stats.Comparison](t, rec)
	if cmp.OlderID != "old" || cmp.NewerID != "new" || cmp.OverallDelta != 12 {
		t.Errorf("unexpected comparison: %+v", cmp)
	}
	if len(cmp.ResolvedIssues) != 1 {
		t.Errorf("expected 1 resolved issue, got %d", len(cmp.ResolvedIssues))
	}

	rec = env.do(t, http.MethodGet, "/api/compare?url=https://b.example/", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with fewer than two audits, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/compare", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without url, got %d", rec.Code)
	}
}

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()

	env := setup(t)

	rec := env.do(t, http.MethodGet, "/api/batch", nil)
	if snap := decode[batch.Snapshot](t, rec); snap.State != batch.StateIdle {
		t.Fatalf("expected idle, got %v", snap.State)
	}

	rec = env.do(t, http.MethodPost, "/api/batch", gin.H{
		"urls":    []string{"https://a.example/"},
		"targets": []model.BatchTarget{{ID: "custom", URL: "https://b.example/"}},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	run, ok := env.batches.Current()
	if !ok {
		t.Fatal("expected a current run")
	}
	run.Wait()

	rec = env.do(t, http.MethodGet, "/api/batch", nil)
	snap := decode[batch.Snapshot](t, rec)
	if snap.State != batch.StateCompleted || snap.Progress != 2 || snap.Succeeded() != 2 {
		t.Errorf("expected 2 completed audits, got %+v", snap)
	}
	if snap.Results[0].TargetID != "custom" && snap.Results[1].TargetID != "custom" {
		t.Errorf("expected the custom target id to be kept, got %+v", snap.Results)
	}

	rec = env.do(t, http.MethodPost, "/api/batch/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 cancelling a finished batch, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/batch/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if snap := decode[batch.Snapshot](t, rec); snap.State != batch.StateIdle {
		t.Errorf("expected idle after reset, got %v", snap.State)
	}

	rec = env.do(t, http.MethodPost, "/api/batch", gin.H{"urls": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestBatchInProgress(t *testing.T) {
	t.Parallel()

	env := setup(t)
	env.auditor.gate = make(chan struct{})

	rec := env.do(t, http.MethodPost, "/api/batch", gin.H{"urls": []string{"https://a.example/"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/batch", gin.H{"urls": []string{"https://b.example/"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while a batch runs, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/batch/reset", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 resetting a running batch, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/batch/cancel", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202 cancelling a running batch, got %d", rec.Code)
	}

	close(env.auditor.gate)
	run, _ := env.batches.Current()
	if snap := run.Wait(); snap.State != batch.StateCancelled {
		t.Errorf("expected cancelled, got %v", snap.State)
	}
}

func TestBatchEvents(t *testing.T) {
	t.Parallel()

	env := setup(t)
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/batch/events")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without a batch, got %d", resp.StatusCode)
	}

	env.auditor.gate = make(chan struct{})
	rec := env.do(t, http.MethodPost, "/api/batch", gin.H{"urls": []string{"https://a.example/", "https://b.example/"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	resp, err = http.Get(ts.URL + "/api/batch/events")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	close(env.auditor.gate)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}
	stream := string(body)

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Errorf("expected event stream content type, got %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(stream, "event:running") {
		t.Errorf("expected a running event, got:\n%s", stream)
	}
	if !strings.Contains(stream, "event:completed") {
		t.Errorf("expected a completed event, got:\n%s", stream)
	}
	if !strings.Contains(stream, `"progress":2`) {
		t.Errorf("expected final progress 2, got:\n%s", stream)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	env := setup(t, WithRateLimit(0.001, 2))

	for i := range 2 {
		if rec := env.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	other := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(other, req)
	if other.Code != http.StatusOK {
		t.Errorf("expected 200 for a different client, got %d", other.Code)
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	env := setup(t)
	env.auditor.panics = true

	rec := env.do(t, http.MethodPost, "/api/audits", gin.H{"url": "https://example.com/"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error != "internal server error" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	const origin = "https://dashboard.example.com"

	request := func(env *testEnv) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed origin gets the header", func(t *testing.T) {
		t.Parallel()

		rec := request(setup(t, WithCORSOrigins([]string{origin})))
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("expected allow origin %q, got %q", origin, got)
		}
	})

	t.Run("no configured origins sends no header", func(t *testing.T) {
		t.Parallel()

		rec := request(setup(t))
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow origin header, got %q", got)
		}
	})
}

func TestListenAndServeShutdown(t *testing.T) {
	t.Parallel()

	env := setup(t, WithAddress("127.0.0.1:0"), WithShutdownTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.server.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServeWaitsForInFlightBatch(t *testing.T) {
	t.Parallel()

	env := setup(t, WithAddress("127.0.0.1:0"), WithShutdownTimeout(5*time.Second))
	env.auditor.gate = make(chan struct{})

	run, err := env.batches.Submit(context.Background(), batch.TargetsFromURLs([]string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}))
	if err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.server.ListenAndServe(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for env.auditor.entered.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("batch never dispatched an audit")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		t.Fatalf("server returned while an audit was in flight: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(env.auditor.gate)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// The store is closed right after shutdown in production; every
	// dispatched audit must already be persisted by now.
	snap := run.Snapshot()
	if !snap.State.IsTerminal() {
		t.Fatalf("expected a terminal batch state, got %s", snap.State)
	}
	if snap.Progress == 0 || snap.Progress == snap.Total {
		t.Errorf("expected cancellation to stop dispatch part way, progress=%d total=%d", snap.Progress, snap.Total)
	}
	for _, res := range snap.Results {
		if !res.Success {
			t.Errorf("in-flight audit of %s failed: %s", res.URL, res.Error)
		}
	}
	if err := env.store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	if got := int(env.auditor.seq.Load()); got != len(snap.Results) {
		t.Errorf("expected %d stored audits, got %d", len(snap.Results), got)
	}
}

func TestListenAndServeShutdownTimeoutWithStuckBatch(t *testing.T) {
	t.Parallel()

	env := setup(t, WithAddress("127.0.0.1:0"), WithShutdownTimeout(100*time.Millisecond))
	env.auditor.gate = make(chan struct{})
	t.Cleanup(func() { close(env.auditor.gate) })

	if _, err := env.batches.Submit(context.Background(), batch.TargetsFromURLs([]string{"https://example.com/"})); err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.server.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil || !strings.Contains(err.Error(), "did not finish") {
			t.Errorf("expected drain timeout error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
