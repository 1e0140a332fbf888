package model

// RunStatus is the lifecycle state of an AnalysisRun.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// ProcessStatus is the composite status of a document across both stages.
type ProcessStatus string

const (
	ProcessNotStarted         ProcessStatus = "NOT_STARTED"
	ProcessOCRCompleted       ProcessStatus = "OCR_COMPLETED"
	ProcessAnalysisInProgress ProcessStatus = "ANALYSIS_IN_PROGRESS"
	ProcessAllCompleted       ProcessStatus = "ALL_COMPLETED"
	ProcessInProgress         ProcessStatus = "IN_PROGRESS"
)

// Message returns the human-readable description for a composite status.
func (s ProcessStatus) Message() string {
	switch s {
	case ProcessNotStarted:
		return "Document processing has not started"
	case ProcessOCRCompleted:
		return "Text extraction completed, analysis not started"
	case ProcessAnalysisInProgress:
		return "Text extraction completed, analysis in progress"
	case ProcessAllCompleted:
		return "All processing completed successfully"
	case ProcessInProgress:
		return "Document processing in progress"
	default:
		return "Unknown processing status"
	}
}
