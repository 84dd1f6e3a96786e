package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/blob"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/storage/memory"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/vector/flat"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/textfile"
)

// mockStage is a configurable pipeline stage.
type mockStage struct {
	name    string
	applies func(*domain.Item) bool
	patch   *domain.ItemPatch
	err     error

	mu    sync.Mutex
	calls int
}

func (m *mockStage) Name() string { return m.name }

func (m *mockStage) Applies(item *domain.Item) bool {
	if m.applies == nil {
		return true
	}
	return m.applies(item)
}

func (m *mockStage) Enrich(_ context.Context, _ *domain.Item) (*domain.ItemPatch, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.patch, nil
}

func (m *mockStage) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockNotifier records items_updated events.
type mockNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (m *mockNotifier) NotifyUpdated(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

type enrichFixture struct {
	queue    *EnrichQueue
	items    *memory.ItemStore
	vectors  *flat.Index
	embedder *mockEmbedder
	notifier *mockNotifier
}

func newEnrichFixture(t *testing.T, stages ...*mockStage) *enrichFixture {
	t.Helper()

	items := memory.NewItemStore()
	vectors, err := flat.NewIndex(filepath.Join(t.TempDir(), "embeddings.bin"), testDims)
	require.NoError(t, err)
	embedder := &mockEmbedder{}
	notifier := &mockNotifier{}

	queue := NewEnrichQueue(
		EnrichConfig{QueueSize: 16, Workers: 1, StageTimeout: time.Second},
		items, vectors, embedder, toEnrichers(stages), notifier,
	)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	return &enrichFixture{
		queue: queue, items: items, vectors: vectors,
		embedder: embedder, notifier: notifier,
	}
}

func seedItem(t *testing.T, items *memory.ItemStore, id string) *domain.Item {
	t.Helper()
	now := time.Now().UTC()
	item := &domain.Item{
		ID:             id,
		Kind:           domain.KindFile,
		Category:       domain.CategoryDocuments,
		Title:          "Doc.pdf",
		BlobRef:        "h1.pdf",
		Hash:           "h1",
		Metadata:       map[string]any{domain.MetaFilename: "Doc.pdf"},
		SearchableText: "doc.pdf",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, items.Insert(context.Background(), item))
	return item
}

func TestEnrichAppliesPatchAndRefreshesEmbedding(t *testing.T) {
	extracted := "The Annual Budget"
	stage := &mockStage{
		name:  "extract",
		patch: &domain.ItemPatch{Metadata: map[string]any{domain.MetaExtractedText: extracted}},
	}
	fx := newEnrichFixture(t, stage)
	item := seedItem(t, fx.items, "a")

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: item.ID}))

	require.Eventually(t, func() bool {
		return fx.notifier.count() > 0
	}, 2*time.Second, 10*time.Millisecond)

	got, err := fx.items.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, extracted, got.Metadata[domain.MetaExtractedText])

	// Stage 7: searchable text rebuilt, lowercase, includes the extraction.
	assert.Equal(t, "doc.pdf doc.pdf the annual budget", got.SearchableText)

	// Stage 8: embedding written for the refreshed text.
	assert.True(t, fx.vectors.Has(item.ID))
}

func TestEnrichStageFailureDoesNotAbortLaterStages(t *testing.T) {
	failing := &mockStage{name: "ocr", err: domain.ErrExtractionFailure}
	succeeding := &mockStage{
		name:  "caption",
		patch: &domain.ItemPatch{Metadata: map[string]any{domain.MetaCaption: "a chart"}},
	}
	fx := newEnrichFixture(t, failing, succeeding)
	item := seedItem(t, fx.items, "a")

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: item.ID}))

	require.Eventually(t, func() bool {
		return fx.notifier.count() > 0
	}, 2*time.Second, 10*time.Millisecond)

	got, err := fx.items.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, failing.callCount())
	assert.Equal(t, "a chart", got.Metadata[domain.MetaCaption])
}

func TestEnrichSkipsInapplicableStages(t *testing.T) {
	imageOnly := &mockStage{
		name:    "thumbnail",
		applies: func(i *domain.Item) bool { return i.Category == domain.CategoryImages },
	}
	fx := newEnrichFixture(t, imageOnly)
	item := seedItem(t, fx.items, "a") // a document

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: item.ID}))

	require.Eventually(t, func() bool {
		return fx.notifier.count() > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Zero(t, imageOnly.callCount())
}

func TestEnrichCategoryNarrowsOnlyFromDocuments(t *testing.T) {
	csv := domain.CategoryCSV
	narrowing := &mockStage{
		name:  "sniff",
		patch: &domain.ItemPatch{Category: &csv},
	}
	fx := newEnrichFixture(t, narrowing)
	ctx := context.Background()

	doc := seedItem(t, fx.items, "doc")

	now := time.Now().UTC()
	image := &domain.Item{
		ID: "img", Kind: domain.KindImage, Category: domain.CategoryImages,
		Title: "p.png", BlobRef: "h2.png", Hash: "h2",
		SearchableText: "p.png", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, fx.items.Insert(ctx, image))

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: doc.ID}))
	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: image.ID}))

	require.Eventually(t, func() bool {
		return fx.notifier.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	gotDoc, err := fx.items.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryCSV, gotDoc.Category)

	gotImage, err := fx.items.Get(ctx, image.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryImages, gotImage.Category)
}

func TestEnrichEmbedOnlyTask(t *testing.T) {
	stage := &mockStage{name: "never", patch: &domain.ItemPatch{
		Metadata: map[string]any{domain.MetaCaption: "should not appear"},
	}}
	fx := newEnrichFixture(t, stage)
	item := seedItem(t, fx.items, "a")

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: item.ID, EmbedOnly: true}))

	require.Eventually(t, func() bool {
		return fx.vectors.Has(item.ID)
	}, 2*time.Second, 10*time.Millisecond)

	got, err := fx.items.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Zero(t, stage.callCount())
	assert.Nil(t, got.Metadata[domain.MetaCaption])
}

func TestEnrichDeletedItemIsNoop(t *testing.T) {
	stage := &mockStage{name: "extract"}
	fx := newEnrichFixture(t, stage)

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: "ghost"}))

	// The task drains without calling any stage.
	require.Eventually(t, func() bool {
		return fx.queue.Pending() == 0
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, stage.callCount())
}

func TestEnrichIsIdempotent(t *testing.T) {
	stage := &mockStage{
		name:  "extract",
		patch: &domain.ItemPatch{Metadata: map[string]any{domain.MetaExtractedText: "stable"}},
	}
	fx := newEnrichFixture(t, stage)
	item := seedItem(t, fx.items, "a")
	ctx := context.Background()

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: item.ID}))
	require.Eventually(t, func() bool { return fx.notifier.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	first, err := fx.items.Get(ctx, item.ID)
	require.NoError(t, err)

	require.True(t, fx.queue.Enqueue(domain.EnrichTask{ItemID: item.ID}))
	require.Eventually(t, func() bool { return fx.notifier.count() >= 2 }, 2*time.Second, 10*time.Millisecond)

	second, err := fx.items.Get(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Metadata, second.Metadata)
	assert.Equal(t, first.SearchableText, second.SearchableText)
}

func TestEnqueueFullQueue(t *testing.T) {
	items := memory.NewItemStore()
	vectors, err := flat.NewIndex(filepath.Join(t.TempDir(), "e.bin"), testDims)
	require.NoError(t, err)

	// Never started: nothing drains the queue.
	queue := NewEnrichQueue(
		EnrichConfig{QueueSize: 2, Workers: 1},
		items, vectors, nil, nil, nil,
	)

	assert.True(t, queue.Enqueue(domain.EnrichTask{ItemID: "a"}))
	assert.True(t, queue.Enqueue(domain.EnrichTask{ItemID: "b"}))
	assert.False(t, queue.Enqueue(domain.EnrichTask{ItemID: "c"}))
	assert.Equal(t, 2, queue.Pending())
}

func TestEnrichStageTimeout(t *testing.T) {
	slow := &slowStage{delay: 500 * time.Millisecond}
	items := memory.NewItemStore()
	vectors, err := flat.NewIndex(filepath.Join(t.TempDir(), "e.bin"), testDims)
	require.NoError(t, err)
	notifier := &mockNotifier{}

	queue := NewEnrichQueue(
		EnrichConfig{QueueSize: 16, Workers: 1, StageTimeout: 50 * time.Millisecond},
		items, vectors, &mockEmbedder{}, toEnrichers(nil, slow), notifier,
	)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	item := seedItem(t, items, "a")
	require.True(t, queue.Enqueue(domain.EnrichTask{ItemID: item.ID}))

	// The timed-out stage fails alone; the pipeline still completes and
	// refreshes the embedding.
	require.Eventually(t, func() bool {
		return notifier.count() > 0 && vectors.Has(item.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

// TestIngestThenEnrichmentWidensSearch wires the real engine and queue
// together: an item is findable by filename the moment ingest returns,
// and findable by body text once enrichment has run.
func TestIngestThenEnrichmentWidensSearch(t *testing.T) {
	ctx := context.Background()

	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	items := memory.NewItemStore()
	vectors, err := flat.NewIndex(filepath.Join(t.TempDir(), "embeddings.bin"), testDims)
	require.NoError(t, err)
	embedder := &mockEmbedder{}

	engine := NewEngine(blobs, items, vectors, embedder)
	t.Cleanup(engine.Close)

	queue := NewEnrichQueue(
		EnrichConfig{QueueSize: 16, Workers: 1},
		items, vectors, embedder,
		[]driven.Enricher{textfile.New(blobs)},
		engine,
	)
	engine.SetEnricher(queue)
	queue.Start(ctx)
	t.Cleanup(queue.Stop)

	path := filepath.Join(t.TempDir(), "budget.txt")
	require.NoError(t, os.WriteFile(path, []byte("the quarterly numbers were approved"), 0o600))

	item, err := engine.IngestFile(ctx, path)
	require.NoError(t, err)

	// Findable by filename before enrichment runs.
	results, err := engine.Search(ctx, "budget.txt", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, item.ID, results[0].Item.ID)

	// After enrichment, the body text matches too.
	require.Eventually(t, func() bool {
		results, err := engine.Search(ctx, "quarterly numbers approved", 5)
		return err == nil && len(results) > 0 && results[0].Item.ID == item.ID
	}, 3*time.Second, 20*time.Millisecond)

	got, err := engine.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Contains(t, got.SearchableText, "quarterly numbers")
}

// toEnrichers adapts mock stages (plus any extra enrichers) to the port
// slice the queue expects.
func toEnrichers(stages []*mockStage, extra ...driven.Enricher) []driven.Enricher {
	out := make([]driven.Enricher, 0, len(stages)+len(extra))
	for _, s := range stages {
		out = append(out, s)
	}
	return append(out, extra...)
}

// slowStage blocks until its context is cancelled.
type slowStage struct {
	delay time.Duration
}

func (s *slowStage) Name() string                { return "slow" }
func (s *slowStage) Applies(_ *domain.Item) bool { return true }

func (s *slowStage) Enrich(ctx context.Context, _ *domain.Item) (*domain.ItemPatch, error) {
	select {
	case <-ctx.Done():
		return nil, errors.Join(domain.ErrTimeout, ctx.Err())
	case <-time.After(s.delay):
		return nil, nil
	}
}
