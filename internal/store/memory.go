package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redlinehq/redline/internal/model"
)

// MemoryStore is an in-memory ContentStore used in tests and for running
// the server without a data directory. It enforces the same uniqueness
// constraint on analysis runs as the DuckDB store.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]model.Document
	pages     map[string]model.ExtractedPage // by page ID
	runs      map[string]model.AnalysisRun   // by run ID
	runByDoc  map[string]string              // document ID -> run ID
	findings  map[string][]model.Finding     // by run ID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]model.Document),
		pages:     make(map[string]model.ExtractedPage),
		runs:      make(map[string]model.AnalysisRun),
		runByDoc:  make(map[string]string),
		findings:  make(map[string][]model.Finding),
	}
}

var _ ContentStore = (*MemoryStore)(nil)

func (s *MemoryStore) CreateDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, ErrConflict)
	}
	s.documents[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return &doc, nil
}

func (s *MemoryStore) CreatePages(_ context.Context, pages []model.ExtractedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pages {
		s.pages[p.ID] = p
	}
	if len(pages) > 0 {
		if doc, ok := s.documents[pages[0].DocumentID]; ok {
			doc.UpdatedAt = time.Now().UTC()
			s.documents[doc.ID] = doc
		}
	}
	return nil
}

func (s *MemoryStore) ListPages(_ context.Context, documentID string) ([]model.ExtractedPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ExtractedPage
	for _, p := range s.pages {
		if p.DocumentID == documentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (s *MemoryStore) CountPages(ctx context.Context, documentID string) (int, error) {
	pages, err := s.ListPages(ctx, documentID)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

func (s *MemoryStore) GetPage(_ context.Context, documentID, pageID string) (*model.ExtractedPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[pageID]
	if !ok || p.DocumentID != documentID {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) UpdatePageContent(_ context.Context, pageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	p.Content = content
	s.pages[pageID] = p
	return nil
}

func (s *MemoryStore) CreateRun(_ context.Context, run *model.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runByDoc[run.DocumentID]; ok {
		return fmt.Errorf("analysis run for document %s: %w", run.DocumentID, ErrConflict)
	}
	s.runs[run.ID] = *run
	s.runByDoc[run.DocumentID] = run.ID
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (*model.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("analysis run %s: %w", runID, ErrNotFound)
	}
	return &run, nil
}

func (s *MemoryStore) GetRunByDocument(_ context.Context, documentID string) (*model.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runID, ok := s.runByDoc[documentID]
	if !ok {
		return nil, fmt.Errorf("analysis run for document %s: %w", documentID, ErrNotFound)
	}
	run := s.runs[runID]
	return &run, nil
}

func (s *MemoryStore) UpdateRun(_ context.Context, run *model.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("analysis run %s: %w", run.ID, ErrNotFound)
	}
	// Stamp the stored copy only; the SQL backend never writes through
	// the caller's pointer either.
	updated := *run
	updated.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = updated
	return nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("analysis run %s: %w", runID, ErrNotFound)
	}
	delete(s.runs, runID)
	delete(s.runByDoc, run.DocumentID)
	delete(s.findings, runID)
	return nil
}

func (s *MemoryStore) CreateFindings(_ context.Context, findings []model.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range findings {
		s.findings[f.RunID] = append(s.findings[f.RunID], f)
	}
	return nil
}

func (s *MemoryStore) ListFindings(_ context.Context, runID string) ([]model.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Finding, len(s.findings[runID]))
	copy(out, s.findings[runID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeverityLevel > out[j].SeverityLevel })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
