// Package analysis owns the risk-analysis lifecycle for a document: at
// most one run per document, triggered idempotently, executed against an
// analysis engine either inline or in the background.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/model"
	"github.com/redlinehq/redline/internal/store"
)

// ErrNoPages indicates an analysis request for a document with no
// extracted pages.
var ErrNoPages = errors.New("document has no extracted pages")

// TriggerResult is the outcome of an analysis request.
type TriggerResult struct {
	RunID         string          `json:"runId"`
	Status        model.RunStatus `json:"status"`
	AlreadyExists bool            `json:"alreadyExists"`
}

// RunDetail is a completed or in-flight run with its findings and the
// document text the run was built from.
type RunDetail struct {
	Run           *model.AnalysisRun `json:"run"`
	Findings      []model.Finding    `json:"findings"`
	OriginContent string             `json:"originContent"`
}

// Orchestrator coordinates analysis runs over a content store and an
// analysis engine.
type Orchestrator struct {
	content store.ContentStore
	engine  engine.AnalysisEngine
	submit  Submitter
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// Config configures an Orchestrator.
type Config struct {
	Content store.ContentStore
	Engine  engine.AnalysisEngine
	Mode    Mode          // ModeSync blocks the request; ModeAsync returns immediately
	Timeout time.Duration // background run budget (default 300s)
	Logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		content: cfg.Content,
		engine:  cfg.Engine,
		logger:  logger.With("component", "analysis"),
	}
	switch cfg.Mode {
	case ModeAsync:
		o.submit = &asyncSubmitter{o: o, timeout: cfg.Timeout}
	default:
		o.submit = &syncSubmitter{o: o}
	}
	return o
}

// Request triggers analysis for a document. A second request for the
// same document never starts a second run: it reports the existing run
// instead. The check-then-create race is backstopped by the store's
// uniqueness constraint.
func (o *Orchestrator) Request(ctx context.Context, documentID string) (*TriggerResult, error) {
	if _, err := o.content.GetDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}

	count, err := o.content.CountPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("counting pages for document %s: %w", documentID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNoPages)
	}

	if existing, err := o.content.GetRunByDocument(ctx, documentID); err == nil {
		o.logger.Info("analysis already requested",
			"document_id", documentID,
			"run_id", existing.ID,
			"status", existing.Status)
		return &TriggerResult{RunID: existing.ID, Status: existing.Status, AlreadyExists: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking existing run for document %s: %w", documentID, err)
	}

	run := model.NewAnalysisRun(documentID)
	if err := o.content.CreateRun(ctx, run); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost the race to a concurrent request; report its run.
			existing, gerr := o.content.GetRunByDocument(ctx, documentID)
			if gerr != nil {
				return nil, fmt.Errorf("resolving concurrent run for document %s: %w", documentID, gerr)
			}
			return &TriggerResult{RunID: existing.ID, Status: existing.Status, AlreadyExists: true}, nil
		}
		return nil, fmt.Errorf("creating run for document %s: %w", documentID, err)
	}

	pages, err := o.content.ListPages(ctx, documentID)
	if err != nil {
		// Unwind the pending run so the document stays retryable.
		o.rollback(ctx, run)
		return nil, fmt.Errorf("loading pages for document %s: %w", documentID, err)
	}

	status, err := o.submit.Submit(ctx, run, pageTexts(pages))
	if err != nil {
		o.rollback(ctx, run)
		return nil, err
	}

	return &TriggerResult{RunID: run.ID, Status: status}, nil
}

// Result returns the document's run with its findings and the extracted
// text the run analyzed.
func (o *Orchestrator) Result(ctx context.Context, documentID string) (*RunDetail, error) {
	run, err := o.content.GetRunByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading run for document %s: %w", documentID, err)
	}

	findings, err := o.content.ListFindings(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("loading findings for run %s: %w", run.ID, err)
	}

	pages, err := o.content.ListPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading pages for document %s: %w", documentID, err)
	}

	return &RunDetail{
		Run:           run,
		Findings:      findings,
		OriginContent: strings.Join(pageTexts(pages), "\n"),
	}, nil
}

// Wait blocks until all background runs have finished. Used at shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute drives one run to a terminal state. The engine reporting a
// failure, or the transport failing outright, both land the run in
// RunFailed with no findings.
func (o *Orchestrator) execute(ctx context.Context, run *model.AnalysisRun, texts []string) model.RunStatus {
	start := time.Now()
	o.logger.Info("running analysis",
		"run_id", run.ID,
		"document_id", run.DocumentID,
		"pages", len(texts))

	res, err := o.engine.Analyze(ctx, texts)
	if err != nil {
		return o.markFailed(run, fmt.Sprintf("analysis engine: %v", err))
	}
	if !res.Success {
		return o.markFailed(run, res.ErrorMessage)
	}

	// Summary/commentary and findings land before the status flips to
	// completed, so a completed run always has its full output and a
	// persist failure lands the run in failed instead.
	run.Summary = res.Summary
	run.Commentary = res.Commentary
	if err := o.content.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		return o.markFailed(run, fmt.Sprintf("recording analysis output: %v", err))
	}

	findings := make([]model.Finding, 0, len(res.Findings))
	for _, f := range res.Findings {
		findings = append(findings, model.Finding{
			ID:              model.NewID(),
			RunID:           run.ID,
			Title:           f.Title,
			Clause:          f.Clause,
			Reason:          f.Reason,
			ReasonReference: f.ReasonReference,
			SeverityLevel:   f.SeverityLevel,
		})
	}
	if err := o.content.CreateFindings(context.WithoutCancel(ctx), findings); err != nil {
		return o.markFailed(run, fmt.Sprintf("recording findings: %v", err))
	}

	run.Status = model.RunCompleted
	if err := o.content.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Error("recording run completion", "run_id", run.ID, "error", err)
		return run.Status
	}

	o.logger.Info("analysis completed",
		"run_id", run.ID,
		"findings", len(findings),
		"duration", time.Since(start).Round(time.Millisecond))
	return run.Status
}

func (o *Orchestrator) markFailed(run *model.AnalysisRun, reason string) model.RunStatus {
	o.logger.Warn("analysis failed",
		"run_id", run.ID,
		"document_id", run.DocumentID,
		"reason", reason)
	run.Status = model.RunFailed
	run.Summary = reason
	if err := o.content.UpdateRun(context.Background(), run); err != nil {
		o.logger.Error("recording run failure", "run_id", run.ID, "error", err)
	}
	return run.Status
}

// rollback deletes a run whose setup failed before the engine was ever
// invoked, so a later request can start fresh.
func (o *Orchestrator) rollback(ctx context.Context, run *model.AnalysisRun) {
	if err := o.content.DeleteRun(context.WithoutCancel(ctx), run.ID); err != nil {
		o.logger.Error("rolling back run", "run_id", run.ID, "error", err)
	}
}

func pageTexts(pages []model.ExtractedPage) []string {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Content)
	}
	return texts
}
