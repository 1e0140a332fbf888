package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/process"
	"github.com/redlinehq/redline/internal/svcctx"
)

// DocumentStatusEndpoint handles GET /api/documents/{id}/status.
type DocumentStatusEndpoint struct{}

var _ api.Endpoint = (*DocumentStatusEndpoint)(nil)

func (e *DocumentStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/status", e.handler
}

func (e *DocumentStatusEndpoint) RequiresInit() bool { return true }

func (e *DocumentStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	info, err := facade.GetStatus(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (e *DocumentStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Get a document's processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var info process.StatusInfo
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0]+"/status", &info); err != nil {
				return err
			}
			return api.Output(info)
		},
	}
}
