package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driving"
)

// countingEngine records ingested paths.
type countingEngine struct {
	mu    sync.Mutex
	files []string
}

var _ driving.Engine = (*countingEngine)(nil)

func (e *countingEngine) IngestFile(_ context.Context, path string) (*domain.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files = append(e.files, path)
	return &domain.Item{ID: "x", Kind: domain.KindFile, Category: domain.CategoryDocuments}, nil
}

func (e *countingEngine) IngestText(_ context.Context, _ string) (*domain.Item, error) {
	return nil, domain.ErrInvalidInput
}

func (e *countingEngine) IngestLink(_ context.Context, _, _ string) (*domain.Item, error) {
	return nil, domain.ErrInvalidInput
}

func (e *countingEngine) IngestBytes(_ context.Context, _ string, _ []byte) (*domain.Item, error) {
	return nil, domain.ErrInvalidInput
}

func (e *countingEngine) Search(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return nil, nil
}

func (e *countingEngine) Get(_ context.Context, _ string) (*domain.Item, error) {
	return nil, domain.ErrNotFound
}

func (e *countingEngine) List(_ context.Context, _ domain.ListFilter) ([]domain.Item, error) {
	return nil, nil
}

func (e *countingEngine) Delete(_ context.Context, _ string) error { return nil }

func (e *countingEngine) Subscribe() <-chan domain.Notification {
	ch := make(chan domain.Notification)
	close(ch)
	return ch
}

func (e *countingEngine) ingested() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}

func TestWatcherIngestsSettledFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drops")
	engine := &countingEngine{}

	w := New(Config{Dir: dir, SettleDelay: 50 * time.Millisecond}, engine)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("dropped"), 0o600))

	require.Eventually(t, func() bool {
		return len(engine.ingested()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, filepath.Join(dir, "note.txt"), engine.ingested()[0])
}

func TestWatcherSkipsRejectedExtensions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drops")
	engine := &countingEngine{}

	w := New(Config{Dir: dir, SettleDelay: 50 * time.Millisecond}, engine)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.mp3"), []byte("ID3"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.pdf"), []byte("%PDF"), 0o600))

	require.Eventually(t, func() bool {
		return len(engine.ingested()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	files := engine.ingested()
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "doc.pdf"), files[0])
}

func TestWatcherRemoveAfterIngest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drops")
	engine := &countingEngine{}

	w := New(Config{Dir: dir, RemoveAfterIngest: true, SettleDelay: 50 * time.Millisecond}, engine)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("dropped"), 0o600))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drops")
	engine := &countingEngine{}

	w := New(Config{Dir: dir, SettleDelay: 50 * time.Millisecond}, engine)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial.pdf"), []byte("x"), 0o600))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, engine.ingested())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drops")
	w := New(Config{Dir: dir}, &countingEngine{})
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
