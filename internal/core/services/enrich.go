package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// Ensure EnrichQueue satisfies the engine's Enqueuer.
var _ Enqueuer = (*EnrichQueue)(nil)

// UpdateNotifier receives items_updated events for enrichment mutations.
type UpdateNotifier interface {
	NotifyUpdated(itemID string)
}

// EnrichConfig tunes the enrichment queue.
type EnrichConfig struct {
	// QueueSize bounds the FIFO queue (default 256).
	QueueSize int

	// Workers is the pool size (default 1; one per core is plenty).
	Workers int

	// StageTimeout bounds each stage (default 60s). Exceeding it fails
	// that stage only.
	StageTimeout time.Duration

	// EmbedRate throttles embedding calls per second (default 10).
	EmbedRate rate.Limit
}

func (c EnrichConfig) withDefaults() EnrichConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 60 * time.Second
	}
	if c.EmbedRate <= 0 {
		c.EmbedRate = 10
	}
	return c
}

// EnrichQueue drains a bounded FIFO of enrichment tasks with a small
// worker pool. It is never on the critical path of ingest or search:
// the capture context only enqueues.
type EnrichQueue struct {
	cfg      EnrichConfig
	items    driven.ItemStore
	vectors  driven.VectorIndex
	embedder driven.EmbeddingService // optional
	stages   []driven.Enricher
	notifier UpdateNotifier
	limiter  *rate.Limiter

	queue chan domain.EnrichTask

	mu       sync.Mutex
	inflight map[string]bool
	started  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEnrichQueue creates the queue. stages run in the order given;
// notifier may be nil.
func NewEnrichQueue(
	cfg EnrichConfig,
	items driven.ItemStore,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
	stages []driven.Enricher,
	notifier UpdateNotifier,
) *EnrichQueue {
	cfg = cfg.withDefaults()
	return &EnrichQueue{
		cfg:      cfg,
		items:    items,
		vectors:  vectors,
		embedder: embedder,
		stages:   stages,
		notifier: notifier,
		limiter:  rate.NewLimiter(cfg.EmbedRate, 1),
		queue:    make(chan domain.EnrichTask, cfg.QueueSize),
		inflight: make(map[string]bool),
	}
}

// Enqueue adds a task without blocking. Returns false when the queue is
// full; the caller logs and drops.
func (q *EnrichQueue) Enqueue(task domain.EnrichTask) bool {
	task.State = domain.TaskPending
	select {
	case q.queue <- task:
		return true
	default:
		return false
	}
}

// Start launches the worker pool. Workers run until Stop or context
// cancellation.
func (q *EnrichQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (q *EnrichQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Pending returns the queue depth, for status reporting.
func (q *EnrichQueue) Pending() int {
	return len(q.queue)
}

func (q *EnrichQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.queue:
			q.run(ctx, task)
		}
	}
}

// run executes one task. Updates to the same item are serialised: a
// task whose item is already being processed goes back to the queue.
func (q *EnrichQueue) run(ctx context.Context, task domain.EnrichTask) {
	q.mu.Lock()
	if q.inflight[task.ItemID] {
		q.mu.Unlock()
		// Another worker holds this item; retry behind the current queue.
		time.Sleep(10 * time.Millisecond)
		if !q.Enqueue(task) {
			logger.Warn("enrichment queue full, dropping task for %s", task.ItemID)
		}
		return
	}
	q.inflight[task.ItemID] = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.inflight, task.ItemID)
		q.mu.Unlock()
	}()

	task.State = domain.TaskRunning
	if err := q.process(ctx, task); err != nil {
		task.State = domain.TaskFailed
		logger.Error("enrichment for %s failed: %v", task.ItemID, err)
		return
	}
	task.State = domain.TaskSucceeded
	logger.Debug("enrichment for %s succeeded", task.ItemID)
}

// process runs the pipeline stages followed by the searchable-text
// rebuild and the embedding refresh. Each extraction stage is bounded
// and independent; its failure leaves its outputs empty and the
// pipeline continues. The item store is never held across a blocking
// call: every stage loads, extracts, and writes back in a discrete
// transaction.
func (q *EnrichQueue) process(ctx context.Context, task domain.EnrichTask) error {
	item, err := q.items.Get(ctx, task.ItemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted while queued.
			return nil
		}
		return err
	}
	if item.Damaged {
		return nil
	}

	if !task.EmbedOnly {
		q.runStages(ctx, item)

		// Reload: stages patched the stored record.
		item, err = q.items.Get(ctx, task.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}

		if item.Damaged {
			if q.notifier != nil {
				q.notifier.NotifyUpdated(item.ID)
			}
			return nil
		}

		// Searchable-text rebuild.
		item.RebuildSearchableText()
		st := item.SearchableText
		if err := q.items.Update(ctx, item.ID, domain.ItemPatch{SearchableText: &st}); err != nil {
			return err
		}
	}

	// Embedding refresh.
	if err := q.refreshEmbedding(ctx, item); err != nil {
		logger.Warn("embedding refresh for %s failed: %v", item.ID, err)
	}

	if q.notifier != nil {
		q.notifier.NotifyUpdated(item.ID)
	}
	return nil
}

// runStages applies each applicable stage in order.
func (q *EnrichQueue) runStages(ctx context.Context, item *domain.Item) {
	for _, stage := range q.stages {
		if !stage.Applies(item) {
			continue
		}

		stageCtx, cancel := context.WithTimeout(ctx, q.cfg.StageTimeout)
		patch, err := stage.Enrich(stageCtx, item)
		cancel()

		if err != nil {
			if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
				logger.Error("stage %s timed out on %s", stage.Name(), item.ID)
			} else {
				logger.Error("stage %s failed on %s: %v", stage.Name(), item.ID, err)
			}
			continue
		}
		if patch == nil {
			continue
		}

		// Category may narrow only from the generic documents bucket.
		if patch.Category != nil && item.Category != domain.CategoryDocuments {
			patch.Category = nil
		}

		if err := q.items.Update(ctx, item.ID, *patch); err != nil {
			logger.Error("stage %s could not persist on %s: %v", stage.Name(), item.ID, err)
			continue
		}
		patch.Apply(item, item.UpdatedAt)

		// A stage that marked the item damaged ends the pipeline for it.
		if item.Damaged {
			return
		}
	}
}

// refreshEmbedding recomputes the embedding of the current searchable
// text, replacing the initial one written at ingest.
func (q *EnrichQueue) refreshEmbedding(ctx context.Context, item *domain.Item) error {
	if q.embedder == nil || item.SearchableText == "" {
		return nil
	}

	if err := q.limiter.Wait(ctx); err != nil {
		return err
	}

	vec, err := q.embedder.Embed(ctx, item.SearchableText)
	if err != nil {
		return err
	}
	return q.vectors.Upsert(ctx, item.ID, item.CreatedAt, vec)
}
