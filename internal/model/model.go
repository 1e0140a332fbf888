// Package model defines the domain entities shared across the processing
// pipeline: documents, extracted pages, analysis runs, and findings.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FragmentsPerPage bounds the number of extracted fragments a single page
// may produce. Ordinals are computed as (pageIndex+1)*FragmentsPerPage +
// fragmentIndex, which keeps them globally ordered across pages without
// renumbering.
const FragmentsPerPage = 1000

// Ordinal returns the stable sort key for a fragment within a document.
func Ordinal(pageIndex, fragmentIndex int) int {
	return (pageIndex+1)*FragmentsPerPage + fragmentIndex
}

// PageIndexFromOrdinal recovers the zero-based page index from an ordinal.
func PageIndexFromOrdinal(ordinal int) int {
	return ordinal/FragmentsPerPage - 1
}

// NewID generates an identifier for any entity.
func NewID() string {
	return uuid.NewString()
}

// Document is one user-submitted multi-page item.
type Document struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	BlobPrefix string    `json:"blob_prefix"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewDocument creates a document owned by userID with its storage-key prefix.
func NewDocument(userID string) *Document {
	id := NewID()
	now := time.Now().UTC()
	return &Document{
		ID:         id,
		UserID:     userID,
		BlobPrefix: fmt.Sprintf("contracts/%s/", id),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ExtractedPage is one extracted fragment of a page, ordered within its
// document by Ordinal.
type ExtractedPage struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
}

// Commentary is the reviewer-style commentary attached to a completed run.
type Commentary struct {
	OverallComment string `json:"overall_comment"`
	WarningComment string `json:"warning_comment"`
	Advice         string `json:"advice"`
}

// AnalysisRun is one execution of the risk-analysis stage over a document.
// At most one run exists per document; the store enforces this.
type AnalysisRun struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Status     RunStatus  `json:"status"`
	Summary    string     `json:"summary"`
	Commentary Commentary `json:"commentary"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewAnalysisRun creates a run in the pending state.
func NewAnalysisRun(documentID string) *AnalysisRun {
	now := time.Now().UTC()
	return &AnalysisRun{
		ID:         NewID(),
		DocumentID: documentID,
		Status:     RunPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Finding is one flagged risky clause produced by an analysis run.
type Finding struct {
	ID              string `json:"id"`
	RunID           string `json:"run_id"`
	Title           string `json:"title"`
	Clause          string `json:"clause"`
	Reason          string `json:"reason"`
	ReasonReference string `json:"reason_reference"`
	SeverityLevel   int    `json:"severity_level"`
}
