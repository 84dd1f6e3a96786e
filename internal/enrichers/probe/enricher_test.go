package probe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/blob"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

func TestProbeRecordsSize(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	ctx := context.Background()

	hash, err := blobs.Put(ctx, []byte("twelve bytes"), ".txt")
	require.NoError(t, err)

	item := &domain.Item{
		ID: "a", Kind: domain.KindFile, Category: domain.CategoryDocuments,
		BlobRef: hash + ".txt", Hash: hash,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	stage := New(blobs)
	require.True(t, stage.Applies(item))

	patch, err := stage.Enrich(ctx, item)
	require.NoError(t, err)
	require.NotNil(t, patch)
	assert.Equal(t, 12, patch.Metadata[domain.MetaSizeBytes])
}

func TestProbeMarksMissingBlobDamaged(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	item := &domain.Item{
		ID: "a", Kind: domain.KindFile, Category: domain.CategoryDocuments,
		BlobRef: "gone.pdf", Hash: "gonegonegone",
	}

	stage := New(blobs)
	patch, err := stage.Enrich(context.Background(), item)
	require.NoError(t, err)
	require.NotNil(t, patch)
	require.NotNil(t, patch.Damaged)
	assert.True(t, *patch.Damaged)
}

func TestProbeSkipsTextItems(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	stage := New(blobs)
	assert.False(t, stage.Applies(&domain.Item{Kind: domain.KindText}))
}
