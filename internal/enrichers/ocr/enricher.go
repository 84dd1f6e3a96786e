// Package ocr implements the image text stage: tesseract runs over the
// blob through the CommandRunner port, and a short deterministic
// caption is derived from the recognised text. OCR is best-effort: a
// missing binary or an empty result leaves the fields untouched.
package ocr

import (
	"context"
	"strings"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// Bounds for recognised text and the derived caption.
const (
	maxExtractedText = 1 << 20
	maxCaptionLength = 80
)

// Enricher recognises text in images.
type Enricher struct {
	blobs  driven.BlobStore
	runner driven.CommandRunner
}

// New creates the OCR stage.
func New(blobs driven.BlobStore, runner driven.CommandRunner) *Enricher {
	return &Enricher{blobs: blobs, runner: runner}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "ocr"
}

// Applies reports true for images when tesseract is installed.
func (e *Enricher) Applies(item *domain.Item) bool {
	return item.Category == domain.CategoryImages && item.Hash != "" &&
		e.runner.Available("tesseract")
}

// Enrich runs tesseract and derives the caption.
func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	path, err := e.blobs.PathOf(item.Hash)
	if err != nil {
		return nil, err
	}

	out, err := e.runner.Run(ctx, "tesseract", path, "stdout")
	if err != nil {
		// Best-effort: unreadable images are not an enrichment failure.
		return nil, nil
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, nil
	}
	if len(text) > maxExtractedText {
		text = text[:maxExtractedText]
	}

	return &domain.ItemPatch{
		Metadata: map[string]any{
			domain.MetaExtractedText: text,
			domain.MetaCaption:       Caption(text),
		},
	}, nil
}

// Caption derives a short deterministic caption from OCR output: the
// first non-empty line, bounded.
func Caption(ocrText string) string {
	for _, line := range strings.Split(ocrText, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if len(line) > maxCaptionLength {
			line = strings.TrimSpace(line[:maxCaptionLength]) + "…"
		}
		return "image with text: " + line
	}
	return ""
}
