// Package ingest turns uploaded PDF bytes into ordered, overlapping chunks.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "docqa/internal/errors"
)

// TextBlock is the extracted text of one page.
type TextBlock struct {
	Page int
	Text string
}

// Extraction is the result of parsing a PDF.
type Extraction struct {
	PageCount int
	Blocks    []TextBlock
}

// PDFExtractor extracts plain text page by page with ledongthuc/pdf.
type PDFExtractor struct{}

// Extract returns one block per page that has text, in page order. Invalid
// PDFs and documents without any text fail with ErrIngest.
func (PDFExtractor) Extract(ctx context.Context, data []byte) (ext *Extraction, err error) {
	if len(data) == 0 {
		return nil, apperrors.ErrIngest.WithMessage("Document is empty")
	}

	// the parser panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			ext = nil
			err = apperrors.ErrIngest.WithCause(fmt.Errorf("pdf parser: %v", rec))
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.ErrIngest.WithMessage("Document is not a valid PDF").WithCause(err)
	}

	n := rdr.NumPage()
	ext = &Extraction{PageCount: n, Blocks: make([]TextBlock, 0, n)}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			// Image-only or problematic page
			slog.Debug("skipping page without text", "page", i, "error", err)
			continue
		}
		txt = strings.TrimSpace(txt)
		if txt == "" {
			continue
		}
		ext.Blocks = append(ext.Blocks, TextBlock{Page: i, Text: txt})
	}

	if len(ext.Blocks) == 0 {
		return nil, apperrors.ErrIngest.WithMessage("Document contains no extractable text")
	}
	return ext, nil
}
