// Package endpoints contains all HTTP API endpoints and their CLI commands.
package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/redlinehq/redline/internal/analysis"
	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/extraction"
	"github.com/redlinehq/redline/internal/intake"
	"github.com/redlinehq/redline/internal/process"
	"github.com/redlinehq/redline/internal/store"
	"github.com/redlinehq/redline/internal/svcctx"
)

// All returns every endpoint to register with the server.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&ProcessDocumentEndpoint{},
		&ProcessCompleteEndpoint{},
		&DocumentStatusEndpoint{},
		&DocumentPagesEndpoint{},
		&EditPageEndpoint{},
		&RequestAnalysisEndpoint{},
		&AnalysisResultEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, process.ErrValidation),
		errors.Is(err, analysis.ErrNoPages),
		errors.Is(err, extraction.ErrNoPayloads),
		errors.Is(err, intake.ErrInvalidPDF):
		return http.StatusBadRequest
	case errors.Is(err, process.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// maxUploadMemory bounds the in-memory portion of multipart parsing.
const maxUploadMemory = 100 << 20 // 100MB

// parseUpload reads the multipart form of a document submission: a
// user_id field plus one or more files under "pages". PDF uploads are
// split into per-page payloads; image uploads pass through in form
// order.
func parseUpload(r *http.Request) (string, []extraction.PagePayload, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return "", nil, fmt.Errorf("%w: parsing form: %v", process.ErrValidation, err)
	}
	defer r.MultipartForm.RemoveAll()

	userID := r.FormValue("user_id")
	files := r.MultipartForm.File["pages"]
	if len(files) == 0 {
		return "", nil, fmt.Errorf("%w: no pages uploaded", process.ErrValidation)
	}

	logger := svcctx.LoggerFrom(r.Context())
	var pages []extraction.PagePayload
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("%w: opening %s: %v", process.ErrValidation, fh.Filename, err)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}

		if intake.IsPDF(fh.Filename) {
			split, err := intake.SplitPDF(r.Context(), fh.Filename, data, logger)
			if err != nil {
				return "", nil, err
			}
			pages = append(pages, split...)
			continue
		}
		pages = append(pages, extraction.PagePayload{Filename: fh.Filename, Data: data})
	}

	return userID, pages, nil
}
