package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	return store
}

func TestPutReturnsContentHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := []byte("hello vault")
	hash, err := store.Put(ctx, data, ".txt")
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)

	path, err := store.PathOf(hash)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, ".txt", filepath.Ext(path))
}

func TestPutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := []byte("same bytes")
	h1, err := store.Put(ctx, data, ".bin")
	require.NoError(t, err)
	h2, err := store.Put(ctx, data, ".bin")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)

	hashes, err := store.Hashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestPutZeroByteBlob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hash, err := store.Put(ctx, nil, "")
	require.NoError(t, err)

	// SHA-256 of the empty string.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hash)

	path, err := store.PathOf(hash)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestPathOfMissingBlob(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PathOf("deadbeef")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPutDerivedIsDeterministicAndIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hash, err := store.Put(ctx, []byte("image bytes"), ".png")
	require.NoError(t, err)

	ref1, err := store.PutDerived(ctx, hash, driven.DerivedImageThumb, []byte("thumb-v1"))
	require.NoError(t, err)
	assert.Equal(t, hash+"-image-thumb.jpg", ref1)

	// A second generation does not overwrite.
	ref2, err := store.PutDerived(ctx, hash, driven.DerivedImageThumb, []byte("thumb-v2"))
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)

	path, err := store.DerivedPath(ref1)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("thumb-v1"), got)
}

func TestRemoveDeletesBlobAndDerived(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hash, err := store.Put(ctx, []byte("doomed"), ".pdf")
	require.NoError(t, err)
	ref, err := store.PutDerived(ctx, hash, driven.DerivedPDFCover, []byte("cover"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, hash))

	_, err = store.PathOf(hash)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = store.DerivedPath(ref)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRemoveMissingBlobIsNoop(t *testing.T) {
	store := newTestStore(t)
	hash := "0000000000000000000000000000000000000000000000000000000000000000"
	assert.NoError(t, store.Remove(context.Background(), hash))
}

func TestHashesSkipsTempAndDerivedFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	h1, err := store.Put(ctx, []byte("one"), ".txt")
	require.NoError(t, err)
	h2, err := store.Put(ctx, []byte("two"), "")
	require.NoError(t, err)
	_, err = store.PutDerived(ctx, h1, driven.DerivedImageThumb, []byte("t"))
	require.NoError(t, err)

	// Simulate a leftover temp file from a crashed write.
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), ".tmp-123"), []byte("junk"), 0o600))

	hashes, err := store.Hashes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{h1, h2}, hashes)
}

func TestNoVisiblePartialWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, []byte("payload"), ".dat")
	require.NoError(t, err)

	// Only the published blob is visible; no temp residue remains.
	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}
