// Package store provides ordered persistence for documents, extracted
// pages, analysis runs, and findings.
package store

import (
	"context"
	"errors"

	"github.com/redlinehq/redline/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint,
// in particular creating a second analysis run for a document.
var ErrConflict = errors.New("already exists")

// ContentStore is the persistence collaborator for the processing pipeline.
// ListPages returns pages ordered by ordinal ascending; ListFindings
// returns findings ordered by severity level descending.
type ContentStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	// CreatePages bulk-inserts extracted pages and bumps the owning
	// document's updated timestamp.
	CreatePages(ctx context.Context, pages []model.ExtractedPage) error
	ListPages(ctx context.Context, documentID string) ([]model.ExtractedPage, error)
	CountPages(ctx context.Context, documentID string) (int, error)
	GetPage(ctx context.Context, documentID, pageID string) (*model.ExtractedPage, error)
	UpdatePageContent(ctx context.Context, pageID, content string) error

	// CreateRun fails with ErrConflict if a run already exists for the
	// run's document.
	CreateRun(ctx context.Context, run *model.AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error)
	GetRunByDocument(ctx context.Context, documentID string) (*model.AnalysisRun, error)
	// UpdateRun targets the run by its identity, never "latest for document".
	UpdateRun(ctx context.Context, run *model.AnalysisRun) error
	DeleteRun(ctx context.Context, runID string) error

	CreateFindings(ctx context.Context, findings []model.Finding) error
	ListFindings(ctx context.Context, runID string) ([]model.Finding, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
	Close() error
}
