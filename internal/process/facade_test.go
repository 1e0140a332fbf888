package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redlinehq/redline/internal/analysis"
	"github.com/redlinehq/redline/internal/blob"
	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/extraction"
	"github.com/redlinehq/redline/internal/model"
	"github.com/redlinehq/redline/internal/store"
)

type facadeFixture struct {
	facade     *Facade
	content    store.ContentStore
	extractEng *engine.MockExtractionEngine
	analyzeEng *engine.MockAnalysisEngine
}

func newFacadeFixture(t *testing.T, content store.ContentStore) *facadeFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pool := extraction.NewPool(extraction.PoolConfig{Workers: 4, QueueSize: 50})
	pool.Start(ctx)

	extractEng := engine.NewMockExtractionEngine()
	analyzeEng := engine.NewMockAnalysisEngine()

	coordinator := extraction.NewCoordinator(extraction.CoordinatorConfig{
		Pool:    pool,
		Blobs:   blob.NewMemoryStore(),
		Engine:  extractEng,
		Content: content,
	})
	analyzer := analysis.NewOrchestrator(analysis.Config{
		Content: content,
		Engine:  analyzeEng,
		Mode:    analysis.ModeSync,
	})

	return &facadeFixture{
		facade: NewFacade(FacadeConfig{
			Content:     content,
			Coordinator: coordinator,
			Analyzer:    analyzer,
			StatusTTL:   time.Minute,
		}),
		content:    content,
		extractEng: extractEng,
		analyzeEng: analyzeEng,
	}
}

func uploadPages(n int) []extraction.PagePayload {
	pages := make([]extraction.PagePayload, n)
	for i := range pages {
		pages[i] = extraction.PagePayload{
			Filename: "scan.png",
			Data:     []byte{1, byte(i)},
		}
	}
	return pages
}

func TestFacade_ProcessComplete(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	res, err := f.facade.ProcessComplete(context.Background(), "user-1", uploadPages(2))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Extraction.Succeeded != 2 {
		t.Errorf("expected 2 pages extracted, got %d", res.Extraction.Succeeded)
	}
	if res.Analysis == nil {
		t.Fatal("expected analysis trigger result")
	}
	if res.AnalysisError != "" {
		t.Errorf("unexpected analysis error: %s", res.AnalysisError)
	}
	if res.Analysis.Status != model.RunCompleted {
		t.Errorf("analysis status = %s", res.Analysis.Status)
	}

	info, err := f.facade.GetStatus(context.Background(), res.Extraction.DocumentID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if info.Status != model.ProcessAllCompleted {
		t.Errorf("status = %s, want %s", info.Status, model.ProcessAllCompleted)
	}
}

func TestFacade_AnalysisUsesOnlySurvivingPages(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())
	f.extractEng.FailPages = map[int]bool{2: true}

	res, err := f.facade.ProcessComplete(context.Background(), "user-1", uploadPages(3))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Extraction.Succeeded != 2 {
		t.Fatalf("expected 2 survivors, got %d", res.Extraction.Succeeded)
	}
	if res.AnalysisError != "" {
		t.Fatalf("analysis should still trigger: %s", res.AnalysisError)
	}

	// 2 surviving pages x 2 mock fragments each.
	if texts := f.analyzeEng.LastTexts(); len(texts) != 4 {
		t.Errorf("analysis received %d texts, want 4", len(texts))
	}
}

// failRunStore rejects run creation to simulate the analysis trigger
// failing after extraction already persisted its output.
type failRunStore struct {
	*store.MemoryStore
}

func (s *failRunStore) CreateRun(context.Context, *model.AnalysisRun) error {
	return errors.New("run table unavailable")
}

func TestFacade_AnalysisTriggerFailureIsReportedNotFatal(t *testing.T) {
	f := newFacadeFixture(t, &failRunStore{MemoryStore: store.NewMemoryStore()})

	res, err := f.facade.ProcessComplete(context.Background(), "user-1", uploadPages(2))
	if err != nil {
		t.Fatalf("extraction output must survive a trigger failure: %v", err)
	}
	if res.Extraction.Succeeded != 2 {
		t.Errorf("expected extraction to succeed, got %d", res.Extraction.Succeeded)
	}
	if res.Analysis != nil {
		t.Error("no trigger result expected on failure")
	}
	if res.AnalysisError == "" {
		t.Error("expected the trigger failure to be reported")
	}

	// Pages persisted despite the failed trigger.
	if n, _ := f.content.CountPages(context.Background(), res.Extraction.DocumentID); n != 4 {
		t.Errorf("expected 4 persisted fragments, got %d", n)
	}
}

func TestFacade_ProcessDocumentSkipsAnalysis(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	res, err := f.facade.ProcessDocument(context.Background(), "user-1", uploadPages(1))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Analysis != nil || res.AnalysisError != "" {
		t.Error("extraction-only processing must not touch analysis")
	}
	if f.analyzeEng.RequestCount() != 0 {
		t.Errorf("analysis engine invoked %d times", f.analyzeEng.RequestCount())
	}

	info, err := f.facade.GetStatus(context.Background(), res.Extraction.DocumentID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if info.Status != model.ProcessOCRCompleted {
		t.Errorf("status = %s, want %s", info.Status, model.ProcessOCRCompleted)
	}
}

func TestFacade_Validation(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	if _, err := f.facade.ProcessComplete(context.Background(), "", uploadPages(1)); !errors.Is(err, ErrValidation) {
		t.Errorf("missing user id: got %v", err)
	}
	if _, err := f.facade.ProcessComplete(context.Background(), "user-1", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("no pages: got %v", err)
	}
	if _, err := f.facade.ProcessComplete(context.Background(), "user-1", []extraction.PagePayload{{}}); !errors.Is(err, ErrValidation) {
		t.Errorf("empty page: got %v", err)
	}
}

func TestFacade_EditPage(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	res, err := f.facade.ProcessDocument(context.Background(), "user-1", uploadPages(1))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	docID := res.Extraction.DocumentID
	pages, err := f.facade.GetPages(context.Background(), docID)
	if err != nil {
		t.Fatalf("get pages failed: %v", err)
	}
	pageID := pages.Pages[0].ID

	t.Run("owner can edit", func(t *testing.T) {
		page, err := f.facade.EditPage(context.Background(), "user-1", docID, pageID, "<p>corrected</p>")
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if page.Content != "<p>corrected</p>" {
			t.Errorf("content = %q", page.Content)
		}

		after, _ := f.facade.GetPages(context.Background(), docID)
		if after.Pages[0].Content != "<p>corrected</p>" {
			t.Error("edit not persisted")
		}
	})

	t.Run("other user is rejected", func(t *testing.T) {
		_, err := f.facade.EditPage(context.Background(), "user-2", docID, pageID, "<p>tampered</p>")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		_, err := f.facade.EditPage(context.Background(), "user-1", docID, pageID, "   ")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown page", func(t *testing.T) {
		_, err := f.facade.EditPage(context.Background(), "user-1", docID, "missing", "<p>x</p>")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFacade_GetPagesConcatenatesContent(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	res, err := f.facade.ProcessDocument(context.Background(), "user-1", uploadPages(2))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	info, err := f.facade.GetPages(context.Background(), res.Extraction.DocumentID)
	if err != nil {
		t.Fatalf("get pages failed: %v", err)
	}
	if len(info.Pages) != 4 {
		t.Fatalf("expected 4 fragments, got %d", len(info.Pages))
	}
	if strings.Count(info.Content, "\n") != 3 {
		t.Errorf("expected 4 joined fragments, got %q", info.Content)
	}
}

func TestFacade_GetStatusUnknownDocument(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	_, err := f.facade.GetStatus(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFacade_StatusTransitionsAcrossAnalysis(t *testing.T) {
	f := newFacadeFixture(t, store.NewMemoryStore())

	res, err := f.facade.ProcessDocument(context.Background(), "user-1", uploadPages(1))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	docID := res.Extraction.DocumentID

	info, _ := f.facade.GetStatus(context.Background(), docID)
	if info.Status != model.ProcessOCRCompleted {
		t.Fatalf("pre-analysis status = %s", info.Status)
	}

	if _, err := f.facade.RequestAnalysis(context.Background(), docID); err != nil {
		t.Fatalf("analysis request failed: %v", err)
	}

	// RequestAnalysis invalidates the cached status.
	info, _ = f.facade.GetStatus(context.Background(), docID)
	if info.Status != model.ProcessAllCompleted {
		t.Errorf("post-analysis status = %s", info.Status)
	}
}
