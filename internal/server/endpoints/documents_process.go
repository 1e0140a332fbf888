package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/svcctx"
)

// ProcessDocumentEndpoint handles POST /api/documents with a multipart
// upload. Pages are extracted and persisted; analysis is not triggered.
type ProcessDocumentEndpoint struct{}

var _ api.Endpoint = (*ProcessDocumentEndpoint)(nil)

func (e *ProcessDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents", e.handler
}

func (e *ProcessDocumentEndpoint) RequiresInit() bool { return true }

func (e *ProcessDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	facade := svcctx.FacadeFrom(r.Context())
	if facade == nil {
		writeError(w, http.StatusServiceUnavailable, "facade not initialized")
		return
	}

	userID, pages, err := parseUpload(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	res, err := facade.ProcessDocument(r.Context(), userID, pages)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	if res.Extraction.PartialFailure() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

func (e *ProcessDocumentEndpoint) Command(_ func() string) *cobra.Command {
	// No CLI command for file upload.
	return nil
}

// ProcessCompleteEndpoint handles POST /api/documents/process: the same
// upload, but extraction is followed by an analysis trigger.
type ProcessCompleteEndpoint struct{}

var _ api.Endpoint = (*ProcessCompleteEndpoint)(nil)

func (e *ProcessCompleteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/process", e.handler
}

func (e *ProcessCompleteEndpoint) RequiresInit() bool { return true }

func (e *ProcessCompleteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	facade := svcctx.FacadeFrom(r.Context())
	if facade == nil {
		writeError(w, http.StatusServiceUnavailable, "facade not initialized")
		return
	}

	userID, pages, err := parseUpload(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	res, err := facade.ProcessComplete(r.Context(), userID, pages)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	if res.Extraction.PartialFailure() || res.AnalysisError != "" {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

func (e *ProcessCompleteEndpoint) Command(_ func() string) *cobra.Command {
	// No CLI command for file upload.
	return nil
}
