// Package extract turns an uploaded PDF résumé into plain text and a preview
// thumbnail. The document is opened fully in memory; no temporary files are
// created.
package extract

import (
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/nfnt/resize"
)

// maxPreviewEdge bounds the long edge of the first-page thumbnail.
const maxPreviewEdge = 800

// ExtractionError reports an unreadable document. It is recoverable for the
// caller: the session simply stays without a résumé.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting resume: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting resume: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor reads PDF documents.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Text returns the plain text of the whole document: page texts concatenated in
// page order, separated by a newline, with surrounding whitespace trimmed.
// Running it twice on the same bytes yields the same text.
func (e *Extractor) Text(pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", &ExtractionError{Reason: "empty document"}
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return "", &ExtractionError{Reason: "cannot open document", Err: err}
	}
	defer doc.Close()

	var pages []string
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return "", &ExtractionError{Reason: fmt.Sprintf("reading page %d", n+1), Err: err}
		}
		pages = append(pages, text)
	}

	combined := strings.TrimSpace(strings.Join(pages, "\n"))
	if combined == "" {
		return "", &ExtractionError{Reason: "document contains no extractable text"}
	}

	return combined, nil
}

// Preview renders only the first page and scales it so the long edge does not
// exceed 800 pixels, preserving aspect ratio. A nil image with an error is
// returned when the document cannot be rendered.
func (e *Extractor) Preview(pdf []byte) (image.Image, error) {
	if len(pdf) == 0 {
		return nil, &ExtractionError{Reason: "empty document"}
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, &ExtractionError{Reason: "cannot open document", Err: err}
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, &ExtractionError{Reason: "document has no pages"}
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, &ExtractionError{Reason: "rendering first page", Err: err}
	}

	return resize.Thumbnail(maxPreviewEdge, maxPreviewEdge, img, resize.Lanczos3), nil
}
