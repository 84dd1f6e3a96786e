package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/blob"
	configfile "github.com/stashdrop-labs/stashdrop/internal/adapters/driven/config/file"
	embedollama "github.com/stashdrop-labs/stashdrop/internal/adapters/driven/embedding/ollama"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/embedding/openai"
	llmollama "github.com/stashdrop-labs/stashdrop/internal/adapters/driven/llm/ollama"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/runner"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/storage/sqlite"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/vector/flat"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
	"github.com/stashdrop-labs/stashdrop/internal/core/services"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/annotate"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/ocr"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/pdf"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/probe"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/textfile"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/thumbnail"
	"github.com/stashdrop-labs/stashdrop/internal/enrichers/video"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// app wires the engine and its adapters for a command invocation.
type app struct {
	cfg      *configfile.ConfigStore
	lock     *flock.Flock
	blobs    *blob.Store
	items    *sqlite.Store
	vectors  *flat.Index
	embedder driven.EmbeddingService
	llm      driven.LLMService
	engine   *services.Engine
	queue    *services.EnrichQueue
}

// openApp assembles the engine over the on-disk vault. Exactly one
// process may hold the vault; a second invocation fails fast with a
// readable reason. withEnrichment also builds the background queue.
func openApp(withEnrichment bool) (*app, error) {
	dir, err := vaultDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking vault: %w", err)
	}
	if !locked {
		return nil, domain.ErrVaultLocked
	}

	cfg, err := configfile.NewConfigStore(filepath.Dir(dir))
	if err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, fmt.Errorf("loading config: %w", err)
	}

	blobs, err := blob.NewStore(filepath.Join(dir, "blobs"))
	if err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, err
	}

	items, err := sqlite.NewStore(dir)
	if err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, err
	}

	embedder := buildEmbedder(cfg)

	dims := 0
	if embedder != nil {
		dims = embedder.Dimensions()
	}
	vectors, err := flat.NewIndex(filepath.Join(dir, "embeddings.bin"), dims)
	if err != nil {
		items.Close()
		lock.Unlock() //nolint:errcheck
		return nil, err
	}

	engine := services.NewEngine(blobs, items, vectors, embedder)

	a := &app{
		cfg:      cfg,
		lock:     lock,
		blobs:    blobs,
		items:    items,
		vectors:  vectors,
		embedder: embedder,
		engine:   engine,
	}

	if withEnrichment {
		a.llm = buildLLM(cfg)
		a.queue = services.NewEnrichQueue(
			services.EnrichConfig{Workers: enrichWorkers(cfg)},
			items, vectors, embedder, buildStages(blobs, a.llm), engine,
		)
		engine.SetEnricher(a.queue)
	}

	return a, nil
}

// close releases every resource in reverse order.
func (a *app) close() {
	if a.queue != nil {
		a.queue.Stop()
	}
	a.engine.Close()
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if err := a.vectors.Close(); err != nil {
		logger.Warn("closing vector index: %v", err)
	}
	if err := a.items.Close(); err != nil {
		logger.Warn("closing item index: %v", err)
	}
	a.lock.Unlock() //nolint:errcheck
}

// buildEmbedder selects the embedding provider from config. A missing
// or unreachable provider is not fatal: items stay visible to listing
// and the backfill embeds them later.
func buildEmbedder(cfg *configfile.ConfigStore) driven.EmbeddingService {
	provider := cfg.GetString(configfile.KeyEmbedProvider)
	switch provider {
	case "none":
		return nil
	case "openai":
		service, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    cfg.GetString(configfile.KeyEmbedBaseURL),
			Model:      cfg.GetString(configfile.KeyEmbedModel),
			Dimensions: cfg.GetInt(configfile.KeyEmbedDimensions),
		})
		if err != nil {
			logger.Warn("openai embedder unavailable: %v", err)
			return nil
		}
		return service
	default:
		return embedollama.NewEmbeddingService(embedollama.Config{
			BaseURL:    cfg.GetString(configfile.KeyEmbedBaseURL),
			Model:      cfg.GetString(configfile.KeyEmbedModel),
			Dimensions: cfg.GetInt(configfile.KeyEmbedDimensions),
		})
	}
}

// buildLLM creates the optional metadata annotator. Disabled unless the
// config opts in.
func buildLLM(cfg *configfile.ConfigStore) driven.LLMService {
	if !cfg.GetBool(configfile.KeyLLMEnabled) {
		return nil
	}
	return llmollama.NewLLMService(llmollama.LLMConfig{
		BaseURL: cfg.GetString(configfile.KeyLLMBaseURL),
		Model:   cfg.GetString(configfile.KeyLLMModel),
	})
}

// buildStages assembles the pipeline in its fixed order.
func buildStages(blobs *blob.Store, llm driven.LLMService) []driven.Enricher {
	run := runner.New()
	stages := []driven.Enricher{
		probe.New(blobs),
		thumbnail.New(blobs),
		pdf.New(blobs, run),
		textfile.New(blobs),
		ocr.New(blobs, run),
		video.New(blobs, run),
	}
	if llm != nil {
		stages = append(stages, annotate.New(llm))
	}
	return stages
}

func enrichWorkers(cfg *configfile.ConfigStore) int {
	if n := cfg.GetInt(configfile.KeyWorkers); n > 0 {
		return n
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	return n
}

// startMaintenance runs the startup tasks in the enrichment context.
func (a *app) startMaintenance(ctx context.Context) {
	go func() {
		if err := a.engine.SweepOrphans(ctx); err != nil {
			logger.Warn("orphan sweep: %v", err)
		}
		if err := a.engine.BackfillEmbeddings(ctx); err != nil {
			logger.Warn("embedding backfill: %v", err)
		}
	}()
}

// pingServices logs reachability of the optional services.
func (a *app) pingServices(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if a.embedder != nil {
		if err := a.embedder.Ping(ctx); err != nil {
			logger.Warn("embedding service unreachable: %v", err)
		} else {
			logger.Info("embedding model: %s (%d dims)", a.embedder.ModelName(), a.embedder.Dimensions())
		}
	}
	if a.llm != nil {
		if err := a.llm.Ping(ctx); err != nil {
			logger.Warn("llm endpoint unreachable: %v", err)
		}
	}
}
