// Package engine defines the external extraction and analysis engines and
// their client implementations. Engines are black boxes invoked over a
// request/response boundary; results carry success/error fields so callers
// can distinguish engine-reported failure from transport failure.
package engine

import (
	"context"
	"errors"

	"github.com/redlinehq/redline/internal/model"
)

// ErrUpstream is the sentinel for engine transport failures, timeouts, and
// malformed responses.
var ErrUpstream = errors.New("upstream engine error")

// Fragment is one structured text element extracted from a page.
type Fragment struct {
	Category string `json:"category"`
	HTML     string `json:"html"`
	ID       string `json:"id"`
}

// ExtractionResult is the extraction engine's response for one page.
type ExtractionResult struct {
	Success      bool       `json:"success"`
	Fragments    []Fragment `json:"fragments"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ExtractionEngine extracts structured text from one staged page.
type ExtractionEngine interface {
	// Name returns the engine identifier (e.g. "http", "mock").
	Name() string

	// ExtractPage invokes the engine synchronously for a single
	// (blob-reference, page-index) pair.
	ExtractPage(ctx context.Context, blobRef string, pageIndex int) (*ExtractionResult, error)
}

// FindingData is one risky clause reported by the analysis engine.
type FindingData struct {
	Title           string `json:"title"`
	Clause          string `json:"clause"`
	Reason          string `json:"reason"`
	ReasonReference string `json:"reason_reference"`
	SeverityLevel   int    `json:"severity_level"`
}

// AnalysisResult is the analysis engine's response for one document.
type AnalysisResult struct {
	Success      bool             `json:"success"`
	Summary      string           `json:"summary"`
	Commentary   model.Commentary `json:"commentary"`
	Findings     []FindingData    `json:"findings"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// AnalysisEngine analyzes a document's extracted text, supplied in ordinal
// order.
type AnalysisEngine interface {
	Name() string
	Analyze(ctx context.Context, pageTexts []string) (*AnalysisResult, error)
}
