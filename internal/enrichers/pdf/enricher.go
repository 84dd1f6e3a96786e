// Package pdf implements the PDF stage: page count, author, title, and
// creation date via pdfinfo, bounded body text via pdftotext, and a
// cover preview via pdftoppm. All three tools run through the
// CommandRunner port so the stage degrades to a no-op when Poppler is
// not installed.
package pdf

import (
	"context"
	"strconv"
	"strings"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// maxExtractedText bounds the body text kept in metadata (1 MiB).
const maxExtractedText = 1 << 20

// Enricher extracts PDF metadata, body text, and a cover preview.
type Enricher struct {
	blobs  driven.BlobStore
	runner driven.CommandRunner
}

// New creates the PDF stage.
func New(blobs driven.BlobStore, runner driven.CommandRunner) *Enricher {
	return &Enricher{blobs: blobs, runner: runner}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "pdf"
}

// Applies reports true for PDF documents.
func (e *Enricher) Applies(item *domain.Item) bool {
	return item.Category == domain.CategoryDocuments &&
		strings.HasSuffix(strings.ToLower(item.MetaString(domain.MetaFilename)), ".pdf") &&
		item.Hash != ""
}

// Enrich runs the Poppler tools over the blob. Each sub-extraction is
// best-effort: a missing tool or a parse failure leaves its fields
// empty without failing the others.
func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	path, err := e.blobs.PathOf(item.Hash)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]any)

	if e.runner.Available("pdfinfo") {
		if out, err := e.runner.Run(ctx, "pdfinfo", path); err == nil {
			parseInfo(string(out), meta)
		} else {
			logger.Warn("pdfinfo on %s: %v", item.ID, err)
		}
	}

	if e.runner.Available("pdftotext") {
		if out, err := e.runner.Run(ctx, "pdftotext", "-q", path, "-"); err == nil {
			text := strings.TrimSpace(string(out))
			if len(text) > maxExtractedText {
				text = text[:maxExtractedText]
			}
			if text != "" {
				meta[domain.MetaExtractedText] = text
			}
		} else {
			logger.Warn("pdftotext on %s: %v", item.ID, err)
		}
	}

	if e.runner.Available("pdftoppm") {
		if e.coverMissing(item) {
			if out, err := e.runner.Run(ctx, "pdftoppm",
				"-jpeg", "-f", "1", "-l", "1", "-singlefile", "-scale-to", "480", path); err == nil && len(out) > 0 {
				ref, err := e.blobs.PutDerived(ctx, item.Hash, driven.DerivedPDFCover, out)
				if err != nil {
					logger.Warn("storing pdf cover for %s: %v", item.ID, err)
				} else {
					meta[domain.MetaThumbnailRef] = ref
				}
			} else if err != nil {
				logger.Warn("pdftoppm on %s: %v", item.ID, err)
			}
		}
	}

	if len(meta) == 0 {
		return nil, nil
	}
	return &domain.ItemPatch{Metadata: meta}, nil
}

// coverMissing reports whether the cover preview needs rendering.
func (e *Enricher) coverMissing(item *domain.Item) bool {
	ref := item.MetaString(domain.MetaThumbnailRef)
	if ref == "" {
		return true
	}
	_, err := e.blobs.DerivedPath(ref)
	return err != nil
}

// parseInfo extracts the recognised pdfinfo fields.
func parseInfo(out string, meta map[string]any) {
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil {
				meta[domain.MetaPageCount] = n
			}
		case "Author":
			meta[domain.MetaAuthor] = value
		case "Title":
			meta[domain.MetaDocTitle] = value
		case "CreationDate":
			meta[domain.MetaCreationDate] = value
		}
	}
}
