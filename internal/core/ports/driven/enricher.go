package driven

import (
	"context"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// Enricher is one stage of the enrichment pipeline. Stages run in a fixed
// order; each is independent and its failure does not abort later stages.
type Enricher interface {
	// Name identifies the stage in logs.
	Name() string

	// Applies reports whether this stage has work for the item.
	Applies(item *domain.Item) bool

	// Enrich extracts facts from the item's blob or text and returns a
	// patch to merge into the record. A nil patch means no change.
	// Implementations must be idempotent on an unchanged blob.
	Enrich(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error)
}
