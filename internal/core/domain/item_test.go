package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "text", input: "text", want: KindText},
		{name: "image", input: "image", want: KindImage},
		{name: "file", input: "file", want: KindFile},
		{name: "link", input: "link", want: KindLink},
		{name: "unknown rejected", input: "video", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "case sensitive", input: "Text", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategory(t *testing.T) {
	valid := []string{
		"ideas", "links", "code", "notes", "images",
		"documents", "videos", "csv", "text",
	}
	for _, s := range valid {
		got, err := ParseCategory(s)
		require.NoError(t, err, s)
		assert.Equal(t, Category(s), got)
	}

	_, err := ParseCategory("audio")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRebuildSearchableText(t *testing.T) {
	item := Item{
		Title:   "Quarterly Report",
		Content: "",
	}
	item.SetMeta(MetaFilename, "Report-Q3.PDF")
	item.SetMeta(MetaExtractedText, "Revenue grew 12%")
	item.SetMeta(MetaCaption, "A bar chart")

	item.RebuildSearchableText()

	assert.Equal(t, "quarterly report report-q3.pdf revenue grew 12% a bar chart", item.SearchableText)
}

func TestRebuildSearchableTextAlwaysLowercase(t *testing.T) {
	item := Item{Title: "HELLO World", Content: "MiXeD CaSe"}
	item.RebuildSearchableText()
	assert.Equal(t, strings.ToLower(item.SearchableText), item.SearchableText)
}

func TestRebuildSearchableTextIncludesURLWordsForLinks(t *testing.T) {
	item := Item{
		Kind:  KindLink,
		Title: "https://Example.com/Docs",
	}
	item.SetMeta(MetaURL, "https://Example.com/Docs")
	item.RebuildSearchableText()

	assert.Contains(t, item.SearchableText, "example com docs")

	// Rebuilding again is stable.
	before := item.SearchableText
	item.RebuildSearchableText()
	assert.Equal(t, before, item.SearchableText)
}

func TestRebuildSearchableTextIncludesLLMFields(t *testing.T) {
	item := Item{Title: "note"}
	item.SetMeta(MetaLLMKeywords, "Planning Roadmap")
	item.RebuildSearchableText()
	assert.Contains(t, item.SearchableText, "planning roadmap")
}

func TestItemValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{
			name: "valid text item",
			item: Item{ID: "a", Kind: KindText, Category: CategoryNotes, Content: "hello", CreatedAt: now},
		},
		{
			name:    "text without content",
			item:    Item{ID: "a", Kind: KindText, Category: CategoryNotes, Content: "  "},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "file without blob",
			item:    Item{ID: "a", Kind: KindFile, Category: CategoryDocuments},
			wantErr: ErrInvalidInput,
		},
		{
			name: "valid file item",
			item: Item{ID: "a", Kind: KindFile, Category: CategoryDocuments, BlobRef: "abc.pdf", Hash: "abc"},
		},
		{
			name:    "link without url",
			item:    Item{ID: "a", Kind: KindLink, Category: CategoryLinks},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "missing id",
			item:    Item{Kind: KindText, Category: CategoryNotes, Content: "x"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown category",
			item:    Item{ID: "a", Kind: KindText, Category: "stuff", Content: "x"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestItemPatchApply(t *testing.T) {
	item := Item{
		ID:       "a",
		Kind:     KindFile,
		Category: CategoryDocuments,
		Title:    "old",
		Metadata: map[string]any{MetaFilename: "a.pdf", "custom": 1},
	}

	title := "new"
	cat := CategoryCSV
	now := time.Now()

	ItemPatch{
		Title:    &title,
		Category: &cat,
		Metadata: map[string]any{MetaPageCount: 3},
	}.Apply(&item, now)

	assert.Equal(t, "new", item.Title)
	assert.Equal(t, CategoryCSV, item.Category)
	assert.Equal(t, 3, item.Metadata[MetaPageCount])
	// Unrelated keys survive the merge.
	assert.Equal(t, "a.pdf", item.Metadata[MetaFilename])
	assert.Equal(t, 1, item.Metadata["custom"])
	assert.Equal(t, now, item.UpdatedAt)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "This file type can't be saved", Reason(ErrFileRejected))
	assert.NotEmpty(t, Reason(errors.New("anything")))
}
