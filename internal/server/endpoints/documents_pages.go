package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/process"
	"github.com/redlinehq/redline/internal/svcctx"
)

// DocumentPagesEndpoint handles GET /api/documents/{id}/pages.
type DocumentPagesEndpoint struct{}

var _ api.Endpoint = (*DocumentPagesEndpoint)(nil)

func (e *DocumentPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/pages", e.handler
}

func (e *DocumentPagesEndpoint) RequiresInit() bool { return true }

func (e *DocumentPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	pages, err := facade.GetPages(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, pages)
}

func (e *DocumentPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <document-id>",
		Short: "Get a document's extracted pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var info process.PagesInfo
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0]+"/pages", &info); err != nil {
				return err
			}
			return api.Output(info)
		},
	}
}

// EditPageRequest is the body of a page edit.
type EditPageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// EditPageEndpoint handles PUT /api/documents/{id}/pages/{pageID}.
type EditPageEndpoint struct{}

var _ api.Endpoint = (*EditPageEndpoint)(nil)

func (e *EditPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/documents/{id}/pages/{pageID}", e.handler
}

func (e *EditPageEndpoint) RequiresInit() bool { return true }

func (e *EditPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pageID := r.PathValue("pageID")
	if id == "" || pageID == "" {
		writeError(w, http.StatusBadRequest, "document id and page id are required")
		return
	}

	var req EditPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	facade := svcctx.FacadeFrom(r.Context())
	if facade == nil {
		writeError(w, http.StatusServiceUnavailable, "facade not initialized")
		return
	}

	page, err := facade.EditPage(r.Context(), req.UserID, id, pageID, req.Content)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (e *EditPageEndpoint) Command(_ func() string) *cobra.Command {
	// Page edits come from the review UI, not the CLI.
	return nil
}
