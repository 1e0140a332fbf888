package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redlinehq/redline/internal/blob"
	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/model"
	"github.com/redlinehq/redline/internal/store"
)

// ErrAllPagesFailed indicates no page produced a usable extraction. It
// wraps engine.ErrUpstream so callers can classify it as an upstream
// failure.
var ErrAllPagesFailed = fmt.Errorf("all pages failed extraction: %w", engine.ErrUpstream)

// ErrNoPayloads indicates a submission with nothing to extract. A
// request-level validation problem, not an upstream one.
var ErrNoPayloads = errors.New("no page payloads to process")

// PagePayload is one uploaded page image.
type PagePayload struct {
	Filename string
	Data     []byte
}

// PageResult is the per-page outcome of a document submission.
type PageResult struct {
	PageIndex int    `json:"pageIndex"`
	Success   bool   `json:"success"`
	Fragments int    `json:"fragments"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of processing one document's pages.
type Result struct {
	DocumentID string       `json:"documentId"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Pages      []PageResult `json:"pages"`
}

// PartialFailure reports whether some but not all pages failed.
func (r *Result) PartialFailure() bool {
	return r.Succeeded > 0 && r.Succeeded < r.Total
}

// Coordinator runs page extraction for a document: stage each page in
// blob storage, extract it on the shared pool, then persist the surviving
// pages in a single ordered batch.
type Coordinator struct {
	pool    *Pool
	blobs   blob.Store
	engine  engine.ExtractionEngine
	content store.ContentStore
	timeout time.Duration
	logger  *slog.Logger
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Pool        *Pool
	Blobs       blob.Store
	Engine      engine.ExtractionEngine
	Content     store.ContentStore
	PageTimeout time.Duration // per-page extraction budget (default 60s)
	Logger      *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		pool:    cfg.Pool,
		blobs:   cfg.Blobs,
		engine:  cfg.Engine,
		content: cfg.Content,
		timeout: cfg.PageTimeout,
		logger:  logger.With("component", "extraction"),
	}
}

// pageOutcome carries one worker's result back to the fan-in.
type pageOutcome struct {
	pageIndex int
	fragments []engine.Fragment
	err       error
}

// Process stages and extracts every page of doc, waits for all of them,
// and persists the successful pages ordered by ordinal. A page failure
// never aborts the batch; only a batch with zero successes is an error.
func (c *Coordinator) Process(ctx context.Context, doc *model.Document, pages []PagePayload) (*Result, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.ID, ErrNoPayloads)
	}

	start := time.Now()
	c.logger.Info("processing document",
		"document_id", doc.ID,
		"pages", len(pages))

	outcomes := make([]pageOutcome, len(pages))
	var mu sync.Mutex

	batch := c.pool.NewBatch()
	for i, page := range pages {
		i, page := i, page
		err := batch.Submit(func() {
			out := c.processPage(ctx, doc, i, page)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
		})
		if err != nil {
			mu.Lock()
			outcomes[i] = pageOutcome{pageIndex: i, err: err}
			mu.Unlock()
		}
	}
	batch.Wait()

	result := &Result{
		DocumentID: doc.ID,
		Total:      len(pages),
		Pages:      make([]PageResult, 0, len(pages)),
	}

	var rows []model.ExtractedPage
	for _, out := range outcomes {
		pr := PageResult{PageIndex: out.pageIndex}
		if out.err != nil {
			pr.Error = out.err.Error()
			c.logger.Warn("page failed",
				"document_id", doc.ID,
				"page_index", out.pageIndex,
				"error", out.err)
		} else {
			pr.Success = true
			pr.Fragments = len(out.fragments)
			result.Succeeded++
			for fragIdx, frag := range out.fragments {
				rows = append(rows, model.ExtractedPage{
					ID:         model.NewID(),
					DocumentID: doc.ID,
					Ordinal:    model.Ordinal(out.pageIndex, fragIdx),
					Content:    frag.HTML,
				})
			}
		}
		result.Pages = append(result.Pages, pr)
	}

	if result.Succeeded == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.ID, ErrAllPagesFailed)
	}

	// Completion order of the workers does not matter: ordinals encode
	// the reading order, and rows persist sorted by ordinal.
	sort.Slice(rows, func(a, b int) bool { return rows[a].Ordinal < rows[b].Ordinal })
	if err := c.content.CreatePages(ctx, rows); err != nil {
		return nil, fmt.Errorf("persisting pages for document %s: %w", doc.ID, err)
	}

	c.logger.Info("document processed",
		"document_id", doc.ID,
		"succeeded", result.Succeeded,
		"failed", result.Total-result.Succeeded,
		"fragments", len(rows),
		"duration", time.Since(start).Round(time.Millisecond))

	return result, nil
}

// processPage stages one page image and extracts it. Any stage failing
// marks just this page as failed.
func (c *Coordinator) processPage(ctx context.Context, doc *model.Document, pageIndex int, page PagePayload) pageOutcome {
	pageCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := fmt.Sprintf("%s%d_%s", doc.BlobPrefix, pageIndex, page.Filename)
	if err := c.blobs.Put(pageCtx, key, page.Data); err != nil {
		return pageOutcome{pageIndex: pageIndex, err: fmt.Errorf("staging page: %w", err)}
	}

	res, err := c.engine.ExtractPage(pageCtx, key, pageIndex)
	if err != nil {
		return pageOutcome{pageIndex: pageIndex, err: err}
	}
	if !res.Success {
		return pageOutcome{pageIndex: pageIndex, err: fmt.Errorf("extraction reported failure: %s", res.ErrorMessage)}
	}
	if len(res.Fragments) >= model.FragmentsPerPage {
		return pageOutcome{pageIndex: pageIndex, err: fmt.Errorf("page yielded %d fragments, limit is %d", len(res.Fragments), model.FragmentsPerPage-1)}
	}

	return pageOutcome{pageIndex: pageIndex, fragments: res.Fragments}
}
