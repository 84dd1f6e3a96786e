// Package textfile implements the plain-text body stage: .txt, .md,
// .csv, and .tsv blobs are read (bounded) into metadata.extracted_text so
// their contents feed the searchable text. A .txt document whose body
// is a delimited table narrows the category from documents to csv.
package textfile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// maxExtractedText bounds the body text kept in metadata (1 MiB).
const maxExtractedText = 1 << 20

// textExtensions are the extensions this stage reads.
var textExtensions = map[string]bool{
	".txt": true,
	".csv": true,
	".tsv": true,
	".md":  true,
}

// Enricher reads text-like blobs into metadata.
type Enricher struct {
	blobs driven.BlobStore
}

// New creates the plain-text stage.
func New(blobs driven.BlobStore) *Enricher {
	return &Enricher{blobs: blobs}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "textfile"
}

// Applies reports true for documents and csv items with a text-like
// extension.
func (e *Enricher) Applies(item *domain.Item) bool {
	if item.Hash == "" {
		return false
	}
	if item.Category != domain.CategoryDocuments && item.Category != domain.CategoryCSV {
		return false
	}
	name := strings.ToLower(item.MetaString(domain.MetaFilename))
	for ext := range textExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Enrich reads the blob body, bounded to a megabyte.
func (e *Enricher) Enrich(_ context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	path, err := e.blobs.PathOf(item.Hash)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %s", domain.ErrIO, path, err)
	}

	text := strings.TrimSpace(string(data))
	if len(text) > maxExtractedText {
		text = text[:maxExtractedText]
	}
	if text == "" {
		return nil, nil
	}

	patch := &domain.ItemPatch{
		Metadata: map[string]any{domain.MetaExtractedText: text},
	}

	// A .txt that is really a delimited table narrows to csv. The queue
	// only honours this when the item sits in the generic documents
	// bucket.
	if looksDelimited(text) {
		csv := domain.CategoryCSV
		patch.Category = &csv
	}

	return patch, nil
}

// looksDelimited reports whether most lines carry the same delimiter
// count, the shape of a headerful table.
func looksDelimited(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return false
	}
	if len(lines) > 20 {
		lines = lines[:20]
	}

	for _, sep := range []string{",", "\t"} {
		first := strings.Count(lines[0], sep)
		if first == 0 {
			continue
		}
		uniform := true
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.Count(line, sep) != first {
				uniform = false
				break
			}
		}
		if uniform {
			return true
		}
	}
	return false
}
