// Package intake turns uploaded files into per-page payloads for
// extraction. Multi-page PDFs are split into single-page documents;
// image uploads pass through untouched.
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/redlinehq/redline/internal/extraction"
)

// ErrInvalidPDF indicates an upload that claims to be a PDF but cannot
// be parsed as one.
var ErrInvalidPDF = errors.New("invalid PDF")

// splitConcurrency bounds parallel page trims for one upload.
const splitConcurrency = 4

// IsPDF reports whether the filename looks like a PDF upload.
func IsPDF(filename string) bool {
	return strings.EqualFold(path.Ext(filename), ".pdf")
}

// SplitPDF splits a PDF into one single-page PDF payload per page, in
// page order.
func SplitPDF(ctx context.Context, filename string, data []byte, logger *slog.Logger) ([]extraction.PagePayload, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conf := pdfmodel.NewDefaultConfiguration()
	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}

	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	payloads := make([]extraction.PagePayload, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(splitConcurrency)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			pageNum := strconv.Itoa(i + 1)
			if err := api.Trim(bytes.NewReader(data), &buf, []string{pageNum}, conf); err != nil {
				return fmt.Errorf("splitting page %s: %w", pageNum, err)
			}
			payloads[i] = extraction.PagePayload{
				Filename: fmt.Sprintf("%s_p%d.pdf", stem, i+1),
				Data:     buf.Bytes(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("split pdf upload", "filename", filename, "pages", count)
	return payloads, nil
}
