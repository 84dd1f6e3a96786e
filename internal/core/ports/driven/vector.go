package driven

import (
	"context"
	"time"
)

// VectorIndex stores one embedding per item and answers "k most similar
// items to this query embedding". Implementations must be durable across
// restarts; a flat array scanned linearly is acceptable at vault scale.
type VectorIndex interface {
	// Upsert inserts or replaces the embedding for an item. createdAt is
	// retained for deterministic tie-breaking on equal similarity.
	// Returns domain.ErrDimensionMismatch when the vector length differs
	// from the index dimension.
	Upsert(ctx context.Context, itemID string, createdAt time.Time, vector []float32) error

	// Remove deletes the embedding for an item. Removing an absent ID is
	// a no-op.
	Remove(ctx context.Context, itemID string) error

	// Query returns up to k items ordered by descending cosine
	// similarity. Ties break by descending createdAt, then ascending ID.
	Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error)

	// Has reports whether an embedding exists for the item.
	Has(itemID string) bool

	// Size returns the number of stored embeddings.
	Size() int

	// Close flushes and releases resources.
	Close() error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ItemID is the matched item.
	ItemID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
