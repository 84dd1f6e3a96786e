package textfile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/blob"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

func seed(t *testing.T, content, filename string, category domain.Category) (*Enricher, *domain.Item) {
	t.Helper()
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	hash, err := blobs.Put(context.Background(), []byte(content), filepath.Ext(filename))
	require.NoError(t, err)

	item := &domain.Item{
		ID: "a", Kind: domain.KindFile, Category: category,
		BlobRef: hash, Hash: hash,
		Metadata: map[string]any{domain.MetaFilename: filename},
	}
	return New(blobs), item
}

func TestTextfileExtractsBody(t *testing.T) {
	stage, item := seed(t, "meeting notes\nfollow up with sam", "notes.txt", domain.CategoryDocuments)
	require.True(t, stage.Applies(item))

	patch, err := stage.Enrich(context.Background(), item)
	require.NoError(t, err)
	require.NotNil(t, patch)
	assert.Equal(t, "meeting notes\nfollow up with sam", patch.Metadata[domain.MetaExtractedText])
	assert.Nil(t, patch.Category)
}

func TestTextfileNarrowsDelimitedTxtToCSV(t *testing.T) {
	stage, item := seed(t, "name,age,city\nada,36,london\ngrace,45,new york", "export.txt", domain.CategoryDocuments)

	patch, err := stage.Enrich(context.Background(), item)
	require.NoError(t, err)
	require.NotNil(t, patch)
	require.NotNil(t, patch.Category)
	assert.Equal(t, domain.CategoryCSV, *patch.Category)
}

func TestTextfileAppliesByExtension(t *testing.T) {
	stage, _ := seed(t, "x", "notes.txt", domain.CategoryDocuments)

	assert.True(t, stage.Applies(&domain.Item{
		Category: domain.CategoryCSV, Hash: "h",
		Metadata: map[string]any{domain.MetaFilename: "data.csv"},
	}))
	assert.False(t, stage.Applies(&domain.Item{
		Category: domain.CategoryDocuments, Hash: "h",
		Metadata: map[string]any{domain.MetaFilename: "scan.pdf"},
	}))
	assert.False(t, stage.Applies(&domain.Item{
		Category: domain.CategoryImages, Hash: "h",
		Metadata: map[string]any{domain.MetaFilename: "note.txt"},
	}))
}

func TestTextfileEmptyBody(t *testing.T) {
	stage, item := seed(t, "   \n  ", "blank.txt", domain.CategoryDocuments)

	patch, err := stage.Enrich(context.Background(), item)
	require.NoError(t, err)
	assert.Nil(t, patch)
}

func TestLooksDelimited(t *testing.T) {
	assert.True(t, looksDelimited("a,b\n1,2\n3,4"))
	assert.True(t, looksDelimited("a\tb\n1\t2"))
	assert.False(t, looksDelimited("plain prose without commas\nanother line"))
	assert.False(t, looksDelimited("one line only"))
	// Ragged comma counts are prose, not a table.
	assert.False(t, looksDelimited("a,b,c\nwords, just words\nmore"))
}
