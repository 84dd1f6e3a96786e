// Package watcher ingests files dropped into a watched folder. It is an
// alternative capture path to the overlay: anything that settles in the
// folder is validated through the same rules and handed to the engine.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driving"
	"github.com/stashdrop-labs/stashdrop/internal/core/services"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// settleDelay is how long a file must stay quiet before ingest. Large
// drops arrive as a burst of writes; ingesting early reads a torso.
const settleDelay = 500 * time.Millisecond

// Config tunes the watcher.
type Config struct {
	// Dir is the folder to watch.
	Dir string

	// RemoveAfterIngest deletes files once they are in the vault.
	RemoveAfterIngest bool

	// SettleDelay overrides the write-quiesce window, used in tests.
	SettleDelay time.Duration
}

// Watcher ingests settling files from a folder.
type Watcher struct {
	cfg    Config
	engine driving.Engine

	mu      sync.Mutex
	pending map[string]*time.Timer
	fsw     *fsnotify.Watcher
	started bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for cfg.Dir.
func New(cfg Config, engine driving.Engine) *Watcher {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = settleDelay
	}
	return &Watcher{
		cfg:     cfg,
		engine:  engine,
		pending: make(map[string]*time.Timer),
	}
}

// Start begins watching. The folder is created if absent.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	if err := os.MkdirAll(w.cfg.Dir, 0o700); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		fsw.Close()
		return err
	}

	w.fsw = fsw
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop(ctx)

	logger.Info("watching %s for drops", w.cfg.Dir)
	return nil
}

// Stop ends the watch and cancels pending settles.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.fsw.Close()
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.touch(ctx, event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// touch (re)arms the settle timer for a path. Each write pushes the
// deadline out; the file is ingested once it stays quiet.
func (w *Watcher) touch(ctx context.Context, path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	if _, err := services.ClassifyFile(path); err != nil {
		logger.Info("watcher skipping %s: %s", filepath.Base(path), domain.Reason(err))
		return
	}

	item, err := w.engine.IngestFile(ctx, path)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("watcher could not ingest %s: %v", filepath.Base(path), err)
		}
		return
	}
	logger.Info("watcher ingested %s as %s", filepath.Base(path), item.ID)

	if w.cfg.RemoveAfterIngest {
		if err := os.Remove(path); err != nil {
			logger.Warn("watcher could not remove %s: %v", path, err)
		}
	}
}
