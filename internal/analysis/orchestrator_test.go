package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/model"
	"github.com/redlinehq/redline/internal/store"
)

func seedDocumentWithPages(t *testing.T, content store.ContentStore, pageTexts ...string) *model.Document {
	t.Helper()

	doc := model.NewDocument("user-1")
	if err := content.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("creating document: %v", err)
	}

	pages := make([]model.ExtractedPage, 0, len(pageTexts))
	for i, text := range pageTexts {
		pages = append(pages, model.ExtractedPage{
			ID:         model.NewID(),
			DocumentID: doc.ID,
			Ordinal:    model.Ordinal(i, 0),
			Content:    text,
		})
	}
	if len(pages) > 0 {
		if err := content.CreatePages(context.Background(), pages); err != nil {
			t.Fatalf("creating pages: %v", err)
		}
	}
	return doc
}

func TestOrchestrator_SyncCompletes(t *testing.T) {
	content := store.NewMemoryStore()
	eng := engine.NewMockAnalysisEngine()
	o := NewOrchestrator(Config{Content: content, Engine: eng, Mode: ModeSync})

	doc := seedDocumentWithPages(t, content, "clause one", "clause two")

	res, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.AlreadyExists {
		t.Error("first request must not report an existing run")
	}
	if res.Status != model.RunCompleted {
		t.Errorf("expected completed, got %s", res.Status)
	}

	run, err := content.GetRunByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("loading run: %v", err)
	}
	if run.Status != model.RunCompleted {
		t.Errorf("persisted run status = %s", run.Status)
	}
	if run.Summary != "mock summary" {
		t.Errorf("unexpected summary %q", run.Summary)
	}

	findings, _ := content.ListFindings(context.Background(), run.ID)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}

	// The engine sees every page text in reading order.
	texts := eng.LastTexts()
	if len(texts) != 2 || texts[0] != "clause one" || texts[1] != "clause two" {
		t.Errorf("engine received %v", texts)
	}
}

func TestOrchestrator_RepeatRequestReportsExistingRun(t *testing.T) {
	content := store.NewMemoryStore()
	eng := engine.NewMockAnalysisEngine()
	o := NewOrchestrator(Config{Content: content, Engine: eng, Mode: ModeSync})

	doc := seedDocumentWithPages(t, content, "text")

	first, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	second, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}

	if !second.AlreadyExists {
		t.Error("second request must report the existing run")
	}
	if second.RunID != first.RunID {
		t.Errorf("second request referenced run %s, want %s", second.RunID, first.RunID)
	}
	if eng.RequestCount() != 1 {
		t.Errorf("engine invoked %d times, want 1", eng.RequestCount())
	}
}

func TestOrchestrator_RequiresExtractedPages(t *testing.T) {
	content := store.NewMemoryStore()
	o := NewOrchestrator(Config{Content: content, Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	doc := seedDocumentWithPages(t, content) // no pages

	_, err := o.Request(context.Background(), doc.ID)
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
	if _, err := content.GetRunByDocument(context.Background(), doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("no run may exist after a rejected request")
	}
}

func TestOrchestrator_UnknownDocument(t *testing.T) {
	o := NewOrchestrator(Config{Content: store.NewMemoryStore(), Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	_, err := o.Request(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrchestrator_EngineFailureLandsInFailed(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*engine.MockAnalysisEngine)
	}{
		{"engine reports failure", func(e *engine.MockAnalysisEngine) { e.ReportFail = true }},
		{"transport error", func(e *engine.MockAnalysisEngine) { e.TransportErr = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := store.NewMemoryStore()
			eng := engine.NewMockAnalysisEngine()
			tt.mod(eng)
			o := NewOrchestrator(Config{Content: content, Engine: eng, Mode: ModeSync})

			doc := seedDocumentWithPages(t, content, "text")

			res, err := o.Request(context.Background(), doc.ID)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if res.Status != model.RunFailed {
				t.Errorf("expected failed, got %s", res.Status)
			}

			run, err := content.GetRunByDocument(context.Background(), doc.ID)
			if err != nil {
				t.Fatalf("loading run: %v", err)
			}
			if run.Status != model.RunFailed {
				t.Errorf("persisted status = %s", run.Status)
			}
			findings, _ := content.ListFindings(context.Background(), run.ID)
			if len(findings) != 0 {
				t.Errorf("failed run must have no findings, got %d", len(findings))
			}
		})
	}
}

// brokenFindingsStore fails every findings insert.
type brokenFindingsStore struct {
	*store.MemoryStore
}

func (s *brokenFindingsStore) CreateFindings(context.Context, []model.Finding) error {
	return errors.New("findings insert failed")
}

func TestOrchestrator_FindingsPersistFailureLandsInFailed(t *testing.T) {
	content := &brokenFindingsStore{MemoryStore: store.NewMemoryStore()}
	o := NewOrchestrator(Config{Content: content, Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	doc := seedDocumentWithPages(t, content.MemoryStore, "text")

	res, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	// A run that could not store its findings must not claim success:
	// completed-with-zero-findings would be indistinguishable from a
	// clean analysis.
	if res.Status != model.RunFailed {
		t.Errorf("trigger status = %s, want failed", res.Status)
	}

	run, err := content.GetRunByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("loading run: %v", err)
	}
	if run.Status != model.RunFailed {
		t.Errorf("persisted status = %s, want failed", run.Status)
	}
	findings, _ := content.ListFindings(context.Background(), run.ID)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestOrchestrator_RunCompletesOnlyAfterFindingsPersist(t *testing.T) {
	content := store.NewMemoryStore()
	o := NewOrchestrator(Config{Content: content, Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	doc := seedDocumentWithPages(t, content, "text")

	res, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// A completed run carries its findings: readers never observe
	// completed with the findings still on their way.
	run, err := content.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("loading run: %v", err)
	}
	if run.Status != model.RunCompleted {
		t.Fatalf("run status = %s", run.Status)
	}
	findings, err := content.ListFindings(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("loading findings: %v", err)
	}
	if len(findings) != 1 {
		t.Errorf("completed run has %d findings, want 1", len(findings))
	}
}

// flakyStore fails ListPages a configured number of times to exercise the
// rollback path between run creation and submission.
type flakyStore struct {
	*store.MemoryStore
	listFailures atomic.Int32
}

func (s *flakyStore) ListPages(ctx context.Context, documentID string) ([]model.ExtractedPage, error) {
	if s.listFailures.Add(-1) >= 0 {
		return nil, errors.New("transient storage error")
	}
	return s.MemoryStore.ListPages(ctx, documentID)
}

func TestOrchestrator_SetupFailureRollsBackRun(t *testing.T) {
	content := &flakyStore{MemoryStore: store.NewMemoryStore()}
	content.listFailures.Store(1)
	o := NewOrchestrator(Config{Content: content, Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	doc := seedDocumentWithPages(t, content.MemoryStore, "text")

	if _, err := o.Request(context.Background(), doc.ID); err == nil {
		t.Fatal("expected setup failure")
	}

	// The pending run was rolled back, so a retry starts fresh.
	if _, err := content.GetRunByDocument(context.Background(), doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected run rollback, got %v", err)
	}

	res, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res.AlreadyExists {
		t.Error("retry after rollback must start a new run")
	}
	if res.Status != model.RunCompleted {
		t.Errorf("retry status = %s", res.Status)
	}
}

func TestOrchestrator_AsyncRunsInBackground(t *testing.T) {
	content := store.NewMemoryStore()
	eng := engine.NewMockAnalysisEngine()
	eng.Latency = 20 * time.Millisecond
	o := NewOrchestrator(Config{Content: content, Engine: eng, Mode: ModeAsync})

	doc := seedDocumentWithPages(t, content, "text")

	res, err := o.Request(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.Status != model.RunInProgress {
		t.Errorf("async request should report in_progress, got %s", res.Status)
	}

	o.Wait()

	run, err := content.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("loading run: %v", err)
	}
	if run.Status != model.RunCompleted {
		t.Errorf("background run status = %s", run.Status)
	}
}

func TestOrchestrator_Result(t *testing.T) {
	content := store.NewMemoryStore()
	o := NewOrchestrator(Config{Content: content, Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	doc := seedDocumentWithPages(t, content, "first page", "second page")
	if _, err := o.Request(context.Background(), doc.ID); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	detail, err := o.Result(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if detail.Run.Status != model.RunCompleted {
		t.Errorf("run status = %s", detail.Run.Status)
	}
	if len(detail.Findings) != 1 {
		t.Errorf("expected 1 finding, got %d", len(detail.Findings))
	}
	if detail.OriginContent != "first page\nsecond page" {
		t.Errorf("origin content = %q", detail.OriginContent)
	}
}

func TestOrchestrator_ResultWithoutRun(t *testing.T) {
	content := store.NewMemoryStore()
	o := NewOrchestrator(Config{Content: content, Engine: engine.NewMockAnalysisEngine(), Mode: ModeSync})

	doc := seedDocumentWithPages(t, content, "text")

	_, err := o.Result(context.Background(), doc.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
