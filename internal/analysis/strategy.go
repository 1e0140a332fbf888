package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/redlinehq/redline/internal/model"
)

// Mode selects how an analysis run executes relative to the request.
type Mode string

const (
	// ModeSync runs the engine inside the request and returns the
	// terminal status.
	ModeSync Mode = "sync"
	// ModeAsync records the run as in progress and executes it in the
	// background.
	ModeAsync Mode = "async"
)

// ParseMode maps a config string to a Mode, defaulting to sync.
func ParseMode(s string) Mode {
	if Mode(s) == ModeAsync {
		return ModeAsync
	}
	return ModeSync
}

// Submitter hands a freshly created run to the engine. An error means
// the run never started and the caller should roll it back; once the
// engine is invoked, failures are recorded on the run instead.
type Submitter interface {
	Submit(ctx context.Context, run *model.AnalysisRun, texts []string) (model.RunStatus, error)
}

type syncSubmitter struct {
	o *Orchestrator
}

func (s *syncSubmitter) Submit(ctx context.Context, run *model.AnalysisRun, texts []string) (model.RunStatus, error) {
	run.Status = model.RunInProgress
	if err := s.o.content.UpdateRun(ctx, run); err != nil {
		return "", fmt.Errorf("marking run %s in progress: %w", run.ID, err)
	}
	return s.o.execute(ctx, run, texts), nil
}

type asyncSubmitter struct {
	o       *Orchestrator
	timeout time.Duration
}

func (s *asyncSubmitter) Submit(ctx context.Context, run *model.AnalysisRun, texts []string) (model.RunStatus, error) {
	run.Status = model.RunInProgress
	if err := s.o.content.UpdateRun(ctx, run); err != nil {
		return "", fmt.Errorf("marking run %s in progress: %w", run.ID, err)
	}

	// The background run outlives the request context.
	s.o.wg.Add(1)
	go func() {
		defer s.o.wg.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.o.execute(runCtx, run, texts)
	}()

	return model.RunInProgress, nil
}
