// Package probe implements the first enrichment stage: confirm the blob
// exists and record its true size. The MIME type recorded at ingest is
// not re-checked. A missing
// primary blob is a storage corruption event: the item is marked
// damaged and disappears from search.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// Enricher probes blob size and format.
type Enricher struct {
	blobs driven.BlobStore
}

// New creates the probe stage.
func New(blobs driven.BlobStore) *Enricher {
	return &Enricher{blobs: blobs}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "probe"
}

// Applies reports true for every item holding a blob.
func (e *Enricher) Applies(item *domain.Item) bool {
	return item.Hash != ""
}

// Enrich stats the blob and records its size. When the blob cannot be
// produced the item is marked damaged; no repair is attempted.
func (e *Enricher) Enrich(_ context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	path, err := e.blobs.PathOf(item.Hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Error("item %s: %v: blob %s is gone", item.ID, domain.ErrCorruption, item.Hash)
			damaged := true
			return &domain.ItemPatch{Damaged: &damaged}, nil
		}
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %s", domain.ErrIO, path, err)
	}

	return &domain.ItemPatch{
		Metadata: map[string]any{domain.MetaSizeBytes: int(info.Size())},
	}, nil
}
