package process

import "github.com/redlinehq/redline/internal/model"

// resolveStatus derives the composite document status from the page
// count and the run state. A failed run reads as IN_PROGRESS: the
// document is not done, and extraction output still exists.
func resolveStatus(pageCount int, run *model.AnalysisRun) model.ProcessStatus {
	if pageCount == 0 {
		return model.ProcessNotStarted
	}
	if run == nil {
		return model.ProcessOCRCompleted
	}
	switch run.Status {
	case model.RunPending, model.RunInProgress:
		return model.ProcessAnalysisInProgress
	case model.RunCompleted:
		return model.ProcessAllCompleted
	case model.RunFailed:
		return model.ProcessInProgress
	}
	return model.ProcessInProgress
}
