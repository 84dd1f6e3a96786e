package driven

import (
	"context"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// ItemStore is the persistent, consistent record of all items.
// Every successful mutation survives a crash; partial writes are not
// observable. Concurrent readers see a consistent snapshot; writers
// serialise.
type ItemStore interface {
	// Insert atomically adds a new item. Returns domain.ErrDuplicateID
	// if the ID already exists.
	Insert(ctx context.Context, item *domain.Item) error

	// Get retrieves an item by ID.
	Get(ctx context.Context, id string) (*domain.Item, error)

	// List returns items ordered by created_at descending.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Item, error)

	// Update merges the patch into the record and bumps updated_at.
	// Used only by enrichment and damage marking.
	Update(ctx context.Context, id string, patch domain.ItemPatch) error

	// Delete removes the record.
	Delete(ctx context.Context, id string) error

	// CountReferences counts items whose hash equals the given hash.
	// Delete uses it to decide whether to garbage-collect the blob.
	CountReferences(ctx context.Context, hash string) (int, error)
}
