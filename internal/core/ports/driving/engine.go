package driving

import (
	"context"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// Engine is the capture, persistence, and retrieval entry point.
//
// Every Ingest* call returns before enrichment runs, with an item whose
// primary fields are final and whose initial embedding has been written.
// A subsequent Search can find the item by title or filename even before
// enrichment completes.
type Engine interface {
	// IngestText captures a typed or pasted text payload.
	IngestText(ctx context.Context, text string) (*domain.Item, error)

	// IngestLink captures a URL. title may be empty.
	IngestLink(ctx context.Context, url, title string) (*domain.Item, error)

	// IngestFile captures a file by absolute path. The engine re-derives
	// the category from the path as a defence in depth and rejects with
	// domain.ErrFileRejected when it fails the deeper check.
	IngestFile(ctx context.Context, path string) (*domain.Item, error)

	// IngestBytes captures a dropped file for which the host could not
	// supply a path. The engine materialises the blob directly.
	IngestBytes(ctx context.Context, filename string, data []byte) (*domain.Item, error)

	// Search embeds the query and returns up to k items with similarity
	// scores. Queries shorter than two characters and queries against an
	// empty index return an empty result without error. Damaged items
	// are omitted. Search never blocks on enrichment.
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)

	// Get retrieves a single item.
	Get(ctx context.Context, id string) (*domain.Item, error)

	// List returns items ordered by creation time descending.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Item, error)

	// Delete removes the item, its embedding, and - when no other item
	// shares the hash - its blob and thumbnail.
	Delete(ctx context.Context, id string) error

	// Subscribe registers for items_updated notifications. The channel
	// is closed when the engine shuts down. Subscribers must not call
	// back into the engine from a notification handler.
	Subscribe() <-chan domain.Notification
}
