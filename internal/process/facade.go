// Package process is the document-processing facade: it owns document
// creation, orchestrates extraction and analysis as one operation, and
// derives the composite status the API reports.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/redlinehq/redline/internal/analysis"
	"github.com/redlinehq/redline/internal/extraction"
	"github.com/redlinehq/redline/internal/model"
	"github.com/redlinehq/redline/internal/store"
)

// ErrValidation indicates a rejected request payload.
var ErrValidation = errors.New("invalid request")

// ErrForbidden indicates the caller does not own the document.
var ErrForbidden = errors.New("document belongs to another user")

// Facade exposes the document-processing operations to the API layer.
type Facade struct {
	content     store.ContentStore
	coordinator *extraction.Coordinator
	analyzer    *analysis.Orchestrator
	statusCache *gocache.Cache
	logger      *slog.Logger
}

// FacadeConfig configures a Facade.
type FacadeConfig struct {
	Content     store.ContentStore
	Coordinator *extraction.Coordinator
	Analyzer    *analysis.Orchestrator
	StatusTTL   time.Duration // status cache TTL (default 5s)
	Logger      *slog.Logger
}

// NewFacade creates a Facade.
func NewFacade(cfg FacadeConfig) *Facade {
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		content:     cfg.Content,
		coordinator: cfg.Coordinator,
		analyzer:    cfg.Analyzer,
		statusCache: gocache.New(cfg.StatusTTL, 2*cfg.StatusTTL),
		logger:      logger.With("component", "process"),
	}
}

// ProcessResult is the outcome of a document submission. AnalysisError
// is set when extraction succeeded but the analysis trigger did not.
type ProcessResult struct {
	Extraction    *extraction.Result      `json:"extraction"`
	Analysis      *analysis.TriggerResult `json:"analysis,omitempty"`
	AnalysisError string                  `json:"analysisError,omitempty"`
}

// StatusInfo is the composite status of a document, with the per-stage
// detail behind it.
type StatusInfo struct {
	DocumentID     string              `json:"documentId"`
	Status         model.ProcessStatus `json:"status"`
	Message        string              `json:"message"`
	PageCount      int                 `json:"pageCount"`
	AnalysisStatus model.RunStatus     `json:"analysisStatus,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// PagesInfo is a document's extracted pages plus the concatenated text.
type PagesInfo struct {
	DocumentID string                `json:"documentId"`
	Pages      []model.ExtractedPage `json:"pages"`
	Content    string                `json:"content"`
}

// ProcessDocument creates a document for userID and extracts its pages.
// Analysis is not triggered.
func (f *Facade) ProcessDocument(ctx context.Context, userID string, pages []extraction.PagePayload) (*ProcessResult, error) {
	doc, err := f.createDocument(ctx, userID, pages)
	if err != nil {
		return nil, err
	}
	res, err := f.coordinator.Process(ctx, doc, pages)
	if err != nil {
		return nil, err
	}
	f.statusCache.Delete(doc.ID)
	return &ProcessResult{Extraction: res}, nil
}

// ProcessComplete creates a document, extracts its pages, then triggers
// analysis over whatever pages survived. A failed analysis trigger does
// not fail the submission: extraction output is already persisted, so
// the result carries the trigger error instead.
func (f *Facade) ProcessComplete(ctx context.Context, userID string, pages []extraction.PagePayload) (*ProcessResult, error) {
	doc, err := f.createDocument(ctx, userID, pages)
	if err != nil {
		return nil, err
	}
	res, err := f.coordinator.Process(ctx, doc, pages)
	if err != nil {
		return nil, err
	}

	out := &ProcessResult{Extraction: res}
	trigger, err := f.analyzer.Request(ctx, doc.ID)
	if err != nil {
		f.logger.Warn("analysis trigger failed after extraction",
			"document_id", doc.ID,
			"error", err)
		out.AnalysisError = err.Error()
	} else {
		out.Analysis = trigger
	}
	f.statusCache.Delete(doc.ID)
	return out, nil
}

// RequestAnalysis triggers analysis for an existing document.
func (f *Facade) RequestAnalysis(ctx context.Context, documentID string) (*analysis.TriggerResult, error) {
	res, err := f.analyzer.Request(ctx, documentID)
	if err != nil {
		return nil, err
	}
	f.statusCache.Delete(documentID)
	return res, nil
}

// AnalysisResult returns the document's run, findings, and origin text.
func (f *Facade) AnalysisResult(ctx context.Context, documentID string) (*analysis.RunDetail, error) {
	return f.analyzer.Result(ctx, documentID)
}

// GetStatus derives the composite status of a document. Results are
// cached briefly; callers polling the endpoint do not hammer the store.
func (f *Facade) GetStatus(ctx context.Context, documentID string) (*StatusInfo, error) {
	if cached, ok := f.statusCache.Get(documentID); ok {
		return cached.(*StatusInfo), nil
	}

	doc, err := f.content.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}
	count, err := f.content.CountPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("counting pages for document %s: %w", documentID, err)
	}

	run, err := f.content.GetRunByDocument(ctx, documentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading run for document %s: %w", documentID, err)
	}

	status := resolveStatus(count, run)
	info := &StatusInfo{
		DocumentID: documentID,
		Status:     status,
		Message:    status.Message(),
		PageCount:  count,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if run != nil {
		info.AnalysisStatus = run.Status
	}
	f.statusCache.SetDefault(documentID, info)
	return info, nil
}

// GetPages returns a document's extracted pages in reading order along
// with the concatenated text.
func (f *Facade) GetPages(ctx context.Context, documentID string) (*PagesInfo, error) {
	if _, err := f.content.GetDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}
	pages, err := f.content.ListPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading pages for document %s: %w", documentID, err)
	}

	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Content)
	}
	return &PagesInfo{
		DocumentID: documentID,
		Pages:      pages,
		Content:    strings.Join(texts, "\n"),
	}, nil
}

// EditPage replaces one extracted page's content. The caller must own
// the document, and the page must belong to it.
func (f *Facade) EditPage(ctx context.Context, userID, documentID, pageID, content string) (*model.ExtractedPage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty page content", ErrValidation)
	}
	doc, err := f.content.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrForbidden)
	}

	page, err := f.content.GetPage(ctx, documentID, pageID)
	if err != nil {
		return nil, fmt.Errorf("loading page %s: %w", pageID, err)
	}
	if err := f.content.UpdatePageContent(ctx, pageID, content); err != nil {
		return nil, fmt.Errorf("updating page %s: %w", pageID, err)
	}
	page.Content = content
	f.statusCache.Delete(documentID)
	return page, nil
}

func (f *Facade) createDocument(ctx context.Context, userID string, pages []extraction.PagePayload) (*model.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrValidation)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages supplied", ErrValidation)
	}
	for i, p := range pages {
		if p.Filename == "" || len(p.Data) == 0 {
			return nil, fmt.Errorf("%w: page %d has no filename or data", ErrValidation, i)
		}
	}

	doc := model.NewDocument(userID)
	if err := f.content.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	return doc, nil
}
