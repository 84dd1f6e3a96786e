package ocr

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/blob"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output  []byte
	err     error
	missing bool
}

func (m *mockRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.output, m.err
}

func (m *mockRunner) Available(_ string) bool {
	return !m.missing
}

func imageItem(t *testing.T, blobs *blob.Store) *domain.Item {
	t.Helper()
	hash, err := blobs.Put(context.Background(), []byte("png bytes"), ".png")
	require.NoError(t, err)
	return &domain.Item{
		ID: "a", Kind: domain.KindImage, Category: domain.CategoryImages,
		BlobRef: hash + ".png", Hash: hash,
	}
}

func TestOCRStoresTextAndCaption(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	runner := &mockRunner{output: []byte("\n  Receipt   from  ACME\ntotal 42.00\n")}
	stage := New(blobs, runner)
	item := imageItem(t, blobs)
	require.True(t, stage.Applies(item))

	patch, err := stage.Enrich(context.Background(), item)
	require.NoError(t, err)
	require.NotNil(t, patch)

	assert.Equal(t, "Receipt   from  ACME\ntotal 42.00", patch.Metadata[domain.MetaExtractedText])
	assert.Equal(t, "image with text: Receipt from ACME", patch.Metadata[domain.MetaCaption])
}

func TestOCRFailureIsSilent(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	stage := New(blobs, &mockRunner{err: assert.AnError})
	patch, err := stage.Enrich(context.Background(), imageItem(t, blobs))
	require.NoError(t, err)
	assert.Nil(t, patch)
}

func TestOCREmptyOutput(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	stage := New(blobs, &mockRunner{output: []byte("  \n \n")})
	patch, err := stage.Enrich(context.Background(), imageItem(t, blobs))
	require.NoError(t, err)
	assert.Nil(t, patch)
}

func TestOCRNotAppliedWithoutTesseract(t *testing.T) {
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	stage := New(blobs, &mockRunner{missing: true})
	assert.False(t, stage.Applies(imageItem(t, blobs)))
}

func TestCaptionIsDeterministicAndBounded(t *testing.T) {
	text := strings.Repeat("verylongword ", 20)
	first := Caption(text)
	second := Caption(text)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, len([]rune(first)), len("image with text: ")+84)

	assert.Equal(t, "", Caption("   \n  "))
}
