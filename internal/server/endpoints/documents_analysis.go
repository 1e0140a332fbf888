package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/analysis"
	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/svcctx"
)

// RequestAnalysisEndpoint handles POST /api/documents/{id}/analysis.
// Triggering is idempotent: a repeat request reports the existing run.
type RequestAnalysisEndpoint struct{}

var _ api.Endpoint = (*RequestAnalysisEndpoint)(nil)

func (e *RequestAnalysisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/analysis", e.handler
}

func (e *RequestAnalysisEndpoint) RequiresInit() bool { return true }

func (e *RequestAnalysisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	facade := svcctx.FacadeFrom(r.Context())
	if facade == nil {
		writeError(w, http.StatusServiceUnavailable, "facade not initialized")
		return
	}

	res, err := facade.RequestAnalysis(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusAccepted
	if res.AlreadyExists {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (e *RequestAnalysisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <document-id>",
		Short: "Trigger risk analysis for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var res analysis.TriggerResult
			if err := client.Post(cmd.Context(), "/api/documents/"+args[0]+"/analysis", nil, &res); err != nil {
				return err
			}
			return api.Output(res)
		},
	}
}

// AnalysisResultEndpoint handles GET /api/documents/{id}/analysis.
type AnalysisResultEndpoint struct{}

var _ api.Endpoint = (*AnalysisResultEndpoint)(nil)

func (e *AnalysisResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/analysis", e.handler
}

func (e *AnalysisResultEndpoint) RequiresInit() bool { return true }

func (e *AnalysisResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	facade := svcctx.FacadeFrom(r.Context())
	if facade == nil {
		writeError(w, http.StatusServiceUnavailable, "facade not initialized")
		return
	}

	detail, err := facade.AnalysisResult(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (e *AnalysisResultEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "analysis <document-id>",
		Short: "Get a document's analysis result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var detail analysis.RunDetail
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0]+"/analysis", &detail); err != nil {
				return err
			}
			return api.Output(detail)
		},
	}
}
