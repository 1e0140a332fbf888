package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redlinehq/redline/internal/model"
)

// MockExtractionEngine is an ExtractionEngine for tests.
type MockExtractionEngine struct {
	// Configurable behavior
	Latency          time.Duration
	ShouldFail       bool         // every call returns a transport error
	FailPages        map[int]bool // per-page engine-reported failure
	HangPages        map[int]bool // per-page block until ctx expires
	FragmentsPerPage int          // fragments returned per page (default 2)

	// PageDelays lets tests force a completion order: pages wait their
	// configured delay before responding.
	PageDelays map[int]time.Duration

	requestCount atomic.Int64

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

// NewMockExtractionEngine creates a mock returning two fragments per page.
func NewMockExtractionEngine() *MockExtractionEngine {
	return &MockExtractionEngine{FragmentsPerPage: 2}
}

var _ ExtractionEngine = (*MockExtractionEngine)(nil)

func (e *MockExtractionEngine) Name() string { return "mock" }

func (e *MockExtractionEngine) ExtractPage(ctx context.Context, blobRef string, pageIndex int) (*ExtractionResult, error) {
	e.requestCount.Add(1)

	e.mu.Lock()
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	if e.ShouldFail {
		return nil, fmt.Errorf("%w: mock extraction engine configured to fail", ErrUpstream)
	}

	if e.HangPages[pageIndex] {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
	}

	delay := e.Latency
	if d, ok := e.PageDelays[pageIndex]; ok {
		delay = d
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
		}
	}

	if e.FailPages[pageIndex] {
		return &ExtractionResult{Success: false, ErrorMessage: fmt.Sprintf("mock failure on page %d", pageIndex)}, nil
	}

	n := e.FragmentsPerPage
	if n <= 0 {
		n = 2
	}
	fragments := make([]Fragment, n)
	for i := range fragments {
		fragments[i] = Fragment{
			Category: "content",
			HTML:     fmt.Sprintf("<p>page %d fragment %d of %s</p>", pageIndex, i, blobRef),
			ID:       fmt.Sprintf("p%d-f%d", pageIndex, i),
		}
	}
	return &ExtractionResult{Success: true, Fragments: fragments}, nil
}

// RequestCount returns the number of calls made.
func (e *MockExtractionEngine) RequestCount() int64 {
	return e.requestCount.Load()
}

// MaxInFlight returns the peak number of concurrent calls observed.
func (e *MockExtractionEngine) MaxInFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInFlight
}

// MockAnalysisEngine is an AnalysisEngine for tests.
type MockAnalysisEngine struct {
	Latency      time.Duration
	TransportErr bool // return an error instead of a result
	ReportFail   bool // return success=false
	Result       *AnalysisResult

	requestCount atomic.Int64
	mu           sync.Mutex
	lastTexts    []string
}

// NewMockAnalysisEngine creates a mock returning one finding.
func NewMockAnalysisEngine() *MockAnalysisEngine {
	return &MockAnalysisEngine{
		Result: &AnalysisResult{
			Success: true,
			Summary: "mock summary",
			Commentary: model.Commentary{
				OverallComment: "mock overall",
				WarningComment: "mock warning",
				Advice:         "mock advice",
			},
			Findings: []FindingData{{
				Title:           "Unilateral termination",
				Clause:          "either party may terminate at will",
				Reason:          "allows termination without notice",
				ReasonReference: "standard practice requires notice",
				SeverityLevel:   3,
			}},
		},
	}
}

var _ AnalysisEngine = (*MockAnalysisEngine)(nil)

func (e *MockAnalysisEngine) Name() string { return "mock" }

func (e *MockAnalysisEngine) Analyze(ctx context.Context, pageTexts []string) (*AnalysisResult, error) {
	e.requestCount.Add(1)
	e.mu.Lock()
	e.lastTexts = append([]string(nil), pageTexts...)
	e.mu.Unlock()

	if e.Latency > 0 {
		select {
		case <-time.After(e.Latency):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
		}
	}
	if e.TransportErr {
		return nil, fmt.Errorf("%w: mock analysis engine configured to fail", ErrUpstream)
	}
	if e.ReportFail {
		return &AnalysisResult{Success: false, ErrorMessage: "mock analysis failure"}, nil
	}
	return e.Result, nil
}

// RequestCount returns the number of calls made.
func (e *MockAnalysisEngine) RequestCount() int64 {
	return e.requestCount.Load()
}

// LastTexts returns the page texts from the most recent call.
func (e *MockAnalysisEngine) LastTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lastTexts...)
}
