package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driving"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// Ensure Engine implements the interface.
var _ driving.Engine = (*Engine)(nil)

// minQueryLength is the shortest query that reaches the embedding
// function. Anything shorter returns an empty result.
const minQueryLength = 2

// Enqueuer accepts enrichment tasks. The engine only enqueues; it never
// waits on a worker.
type Enqueuer interface {
	Enqueue(task domain.EnrichTask) bool
}

// Engine is the capture, persistence, and retrieval core.
type Engine struct {
	blobs    driven.BlobStore
	items    driven.ItemStore
	vectors  driven.VectorIndex
	embedder driven.EmbeddingService // optional
	enricher Enqueuer                // optional

	mu          sync.Mutex
	subscribers []chan domain.Notification
	closed      bool
}

// NewEngine creates the engine. embedder may be nil: items are then
// stored without embeddings and stay invisible to semantic search until
// a backfill runs with a working embedder.
func NewEngine(
	blobs driven.BlobStore,
	items driven.ItemStore,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
) *Engine {
	return &Engine{
		blobs:    blobs,
		items:    items,
		vectors:  vectors,
		embedder: embedder,
	}
}

// SetEnricher wires the enrichment queue. Set after construction because
// the queue needs the engine's stores.
func (e *Engine) SetEnricher(q Enqueuer) {
	e.enricher = q
}

// IngestText captures a typed or pasted text payload.
func (e *Engine) IngestText(ctx context.Context, text string) (*domain.Item, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	// Pasted URLs may arrive here when the caller skipped classification.
	if IsURL(text) {
		return e.IngestLink(ctx, strings.TrimSpace(text), "")
	}

	now := time.Now().UTC()
	item := &domain.Item{
		ID:        uuid.NewString(),
		Kind:      domain.KindText,
		Category:  ClassifyText(text),
		Title:     DeriveTitle(text),
		Content:   text,
		Metadata:  map[string]any{domain.MetaSource: domain.SourceOverlay},
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.RebuildSearchableText()

	return e.commit(ctx, item)
}

// IngestLink captures a URL. title may be empty.
func (e *Engine) IngestLink(ctx context.Context, url, title string) (*domain.Item, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", domain.ErrInvalidInput)
	}

	if title == "" {
		title = url
	}

	now := time.Now().UTC()
	item := &domain.Item{
		ID:       uuid.NewString(),
		Kind:     domain.KindLink,
		Category: domain.CategoryLinks,
		Title:    title,
		Metadata: map[string]any{
			domain.MetaURL:    url,
			domain.MetaSource: domain.SourceOverlay,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if title != url {
		item.SetMeta(domain.MetaPageTitle, title)
	}
	item.RebuildSearchableText()

	return e.commit(ctx, item)
}

// IngestFile captures a file by absolute path. The category is
// re-derived from the path regardless of what the caller validated.
func (e *Engine) IngestFile(ctx context.Context, path string) (*domain.Item, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: missing path", domain.ErrInvalidInput)
	}
	if _, err := ClassifyFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no file at %s", domain.ErrInvalidInput, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %s", domain.ErrIO, path, err)
	}

	return e.ingestBlob(ctx, filepath.Base(path), data)
}

// IngestBytes captures a dropped file for which the host could not
// supply a path.
func (e *Engine) IngestBytes(ctx context.Context, filename string, data []byte) (*domain.Item, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: missing filename", domain.ErrInvalidInput)
	}
	return e.ingestBlob(ctx, filepath.Base(filename), data)
}

// ingestBlob is the shared file path: classify, persist the blob, build
// the item, commit.
func (e *Engine) ingestBlob(ctx context.Context, filename string, data []byte) (*domain.Item, error) {
	category, err := ClassifyFile(filename)
	if err != nil {
		return nil, err
	}

	kind := domain.KindFile
	if category == domain.CategoryImages {
		kind = domain.KindImage
	}

	ext := filepath.Ext(filename)
	hash, err := e.blobs.Put(ctx, data, ext)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := &domain.Item{
		ID:       uuid.NewString(),
		Kind:     kind,
		Category: category,
		Title:    filename,
		BlobRef:  hash + strings.ToLower(ext),
		Hash:     hash,
		MIMEType: MIMEFromPath(filename),
		Metadata: map[string]any{
			domain.MetaFilename:  filename,
			domain.MetaSizeBytes: len(data),
			domain.MetaSource:    domain.SourceOverlay,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.RebuildSearchableText()

	return e.commit(ctx, item)
}

// commit inserts the item, writes the initial embedding, notifies
// subscribers, and schedules enrichment. On return the item is durable
// and findable by title or filename.
func (e *Engine) commit(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if err := e.items.Insert(ctx, item); err != nil {
		// A blob already written stays orphaned until the next sweep.
		return nil, err
	}

	e.embedInitial(ctx, item)
	e.notify(item.ID)
	e.scheduleEnrichment(item)

	logger.Debug("ingested %s item %s (%s)", item.Kind, item.ID, item.Category)
	return item, nil
}

// embedInitial writes the first embedding. Failures never fail the
// ingest: the item stays visible to listing and is embedded later by
// the backfill.
func (e *Engine) embedInitial(ctx context.Context, item *domain.Item) {
	if e.embedder == nil || item.SearchableText == "" {
		return
	}

	vec, err := e.embedder.Embed(ctx, item.SearchableText)
	if err != nil {
		logger.Warn("initial embedding for %s failed: %v", item.ID, err)
		return
	}
	if err := e.vectors.Upsert(ctx, item.ID, item.CreatedAt, vec); err != nil {
		logger.Warn("storing initial embedding for %s failed: %v", item.ID, err)
	}
}

// scheduleEnrichment enqueues the item for background enrichment.
func (e *Engine) scheduleEnrichment(item *domain.Item) {
	if e.enricher == nil {
		return
	}
	task := domain.EnrichTask{
		ItemID:     item.ID,
		State:      domain.TaskPending,
		EnqueuedAt: time.Now().UTC(),
	}
	if !e.enricher.Enqueue(task) {
		logger.Warn("enrichment queue full, dropping task for %s", item.ID)
	}
}

// Search embeds the query and resolves the nearest items.
// It never blocks on enrichment and never calls the language model.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minQueryLength {
		return []domain.SearchResult{}, nil
	}
	if k <= 0 {
		k = 10
	}
	if e.vectors.Size() == 0 {
		return []domain.SearchResult{}, nil
	}
	if e.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := e.embedder.Embed(ctx, strings.ToLower(query))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Over-fetch so damaged or freshly deleted items don't shrink the page.
	hits, err := e.vectors.Query(ctx, vec, k*2)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if len(results) == k {
			break
		}
		item, err := e.items.Get(ctx, hit.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if errors.Is(err, domain.ErrCorruption) {
				logger.Error("search skipping corrupt item %s: %v", hit.ItemID, err)
				continue
			}
			return nil, fmt.Errorf("resolving item %s: %w", hit.ItemID, err)
		}
		if item.Damaged {
			continue
		}
		results = append(results, domain.SearchResult{Item: *item, Similarity: hit.Similarity})
	}
	return results, nil
}

// Get retrieves a single item.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Item, error) {
	return e.items.Get(ctx, id)
}

// List returns items ordered by creation time descending.
func (e *Engine) List(ctx context.Context, filter domain.ListFilter) ([]domain.Item, error) {
	return e.items.List(ctx, filter)
}

// Delete removes the item, its embedding, and - when it held the last
// reference - its blob and derived artifacts.
func (e *Engine) Delete(ctx context.Context, id string) error {
	item, err := e.items.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := e.items.Delete(ctx, id); err != nil {
		return err
	}
	if err := e.vectors.Remove(ctx, id); err != nil {
		logger.Warn("removing embedding for %s failed: %v", id, err)
	}

	if item.Hash != "" {
		refs, err := e.items.CountReferences(ctx, item.Hash)
		if err != nil {
			return err
		}
		if refs == 0 {
			if err := e.blobs.Remove(ctx, item.Hash); err != nil {
				return err
			}
		}
	}

	e.notify(id)
	return nil
}

// Subscribe registers for items_updated notifications.
func (e *Engine) Subscribe() <-chan domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan domain.Notification, 16)
	if e.closed {
		close(ch)
		return ch
	}
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// NotifyUpdated publishes an items_updated event. Exposed for the
// enrichment queue, which mutates items outside the engine.
func (e *Engine) NotifyUpdated(itemID string) {
	e.notify(itemID)
}

// notify fans out without blocking: a slow subscriber loses events
// rather than stalling capture.
func (e *Engine) notify(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- domain.Notification{Type: domain.NotifyItemsUpdated, ItemID: itemID}:
		default:
		}
	}
}

// Close ends all subscriptions.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
}

// SweepOrphans removes blobs no item references. Runs at startup to
// reclaim blobs left behind by ingests that failed after the content
// store accepted bytes.
func (e *Engine) SweepOrphans(ctx context.Context) error {
	hashes, err := e.blobs.Hashes(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for _, hash := range hashes {
		refs, err := e.items.CountReferences(ctx, hash)
		if err != nil {
			return err
		}
		if refs > 0 {
			continue
		}
		if err := e.blobs.Remove(ctx, hash); err != nil {
			logger.Warn("sweep could not remove orphan %s: %v", hash, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("sweep reclaimed %d orphaned blob(s)", removed)
	}
	return nil
}

// BackfillEmbeddings enqueues embed-only tasks for items that have no
// embedding. Runs once at startup in the enrichment context; the query
// path never backfills.
func (e *Engine) BackfillEmbeddings(ctx context.Context) error {
	if e.enricher == nil {
		return nil
	}

	items, err := e.items.List(ctx, domain.ListFilter{})
	if err != nil {
		return err
	}

	queued := 0
	for i := range items {
		item := &items[i]
		if item.Damaged || item.SearchableText == "" || e.vectors.Has(item.ID) {
			continue
		}
		task := domain.EnrichTask{
			ItemID:     item.ID,
			EmbedOnly:  true,
			State:      domain.TaskPending,
			EnqueuedAt: time.Now().UTC(),
		}
		if e.enricher.Enqueue(task) {
			queued++
		}
	}

	if queued > 0 {
		logger.Info("backfill queued %d item(s) for embedding", queued)
	}
	return nil
}
