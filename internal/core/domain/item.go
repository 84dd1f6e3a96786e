package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the capture type of an item. It is immutable after ingest.
type Kind string

// Item kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
	KindLink  Kind = "link"
)

// ParseKind validates a raw kind value at the boundary.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindText, KindImage, KindFile, KindLink:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
}

// Category is the classification tag of an item, drawn from a closed set.
type Category string

// Item categories.
const (
	CategoryIdeas     Category = "ideas"
	CategoryLinks     Category = "links"
	CategoryCode      Category = "code"
	CategoryNotes     Category = "notes"
	CategoryImages    Category = "images"
	CategoryDocuments Category = "documents"
	CategoryVideos    Category = "videos"
	CategoryCSV       Category = "csv"
	CategoryText      Category = "text"
)

// ParseCategory validates a raw category value at the boundary.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryIdeas, CategoryLinks, CategoryCode, CategoryNotes,
		CategoryImages, CategoryDocuments, CategoryVideos, CategoryCSV, CategoryText:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// Recognised metadata keys. The metadata bag accepts unknown keys without
// loss; these are the ones the engine itself reads or writes.
const (
	MetaFilename      = "filename"
	MetaSizeBytes     = "size_bytes"
	MetaThumbnailRef  = "thumbnail_ref"
	MetaPageCount     = "page_count"
	MetaAuthor        = "author"
	MetaDocTitle      = "doc_title"
	MetaCreationDate  = "creation_date"
	MetaExtractedText = "extracted_text"
	MetaCaption       = "caption"
	MetaURL           = "url"
	MetaPageTitle     = "page_title"
	MetaSource        = "source"
	MetaLLMTitle      = "llm_title"
	MetaLLMKeywords   = "llm_keywords"
	MetaLLMSummary    = "llm_summary"
)

// SourceOverlay is the capture source recorded on every item ingested
// through the overlay.
const SourceOverlay = "overlay"

// Item is the unit of capture.
type Item struct {
	// ID is assigned once at ingest and never reused.
	ID string

	// Kind is the capture type. Immutable after ingest.
	Kind Kind

	// Category is derived at ingest. Enrichment may narrow it only when
	// it was "documents" and a more specific rule fires.
	Category Category

	// Title is a short human-readable label.
	Title string

	// Content is the full text for kind=text, empty otherwise.
	Content string

	// BlobRef references the content store for kind image/file.
	BlobRef string

	// Hash is the SHA-256 hex of the referenced blob. Empty for text/link.
	Hash string

	// MIMEType is informational, derived from the file extension.
	MIMEType string

	// Damaged marks an item whose blob or embedding is corrupt.
	// Damaged items are kept in the index but omitted from search.
	Damaged bool

	// Metadata is a semi-structured bag. Unknown keys are preserved.
	Metadata map[string]any

	// SearchableText is the lowercase concatenation of title, content,
	// filename, extracted text, and caption. Sole input to embedding.
	SearchableText string

	// CreatedAt is set once at ingest.
	CreatedAt time.Time

	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time
}

// MetaString returns a metadata value as a string, or "" when absent or
// of another type.
func (i *Item) MetaString(key string) string {
	if i.Metadata == nil {
		return ""
	}
	s, _ := i.Metadata[key].(string)
	return s
}

// SetMeta writes a metadata key, allocating the bag on first use.
func (i *Item) SetMeta(key string, value any) {
	if i.Metadata == nil {
		i.Metadata = make(map[string]any)
	}
	i.Metadata[key] = value
}

// RebuildSearchableText recomposes SearchableText from the current
// contributing fields. The result is always lowercase. Links contribute
// the words of their URL so they are findable by host and path.
func (i *Item) RebuildSearchableText() {
	parts := []string{
		i.Title,
		i.Content,
		i.MetaString(MetaFilename),
		i.MetaString(MetaExtractedText),
		i.MetaString(MetaCaption),
		i.MetaString(MetaLLMTitle),
		i.MetaString(MetaLLMKeywords),
		i.MetaString(MetaLLMSummary),
	}
	if i.Kind == KindLink {
		parts = append(parts, urlWords(i.MetaString(MetaURL)))
	}

	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	i.SearchableText = strings.ToLower(b.String())
}

// Validate checks structural consistency before the item reaches a store.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: item has no id", ErrInvalidInput)
	}
	if _, err := ParseKind(string(i.Kind)); err != nil {
		return err
	}
	if _, err := ParseCategory(string(i.Category)); err != nil {
		return err
	}
	switch i.Kind {
	case KindImage, KindFile:
		if i.BlobRef == "" || i.Hash == "" {
			return fmt.Errorf("%w: %s item requires blob_ref and hash", ErrInvalidInput, i.Kind)
		}
	case KindText:
		if strings.TrimSpace(i.Content) == "" {
			return fmt.Errorf("%w: text item has no content", ErrInvalidInput)
		}
	case KindLink:
		if i.MetaString(MetaURL) == "" {
			return fmt.Errorf("%w: link item has no url", ErrInvalidInput)
		}
	}
	return nil
}

// urlWords splits a URL into searchable words.
func urlWords(url string) string {
	if url == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"https://", " ", "http://", " ",
		"/", " ", ".", " ", "-", " ", "_", " ",
		"?", " ", "&", " ", "=", " ", "#", " ",
	)
	return strings.Join(strings.Fields(replacer.Replace(url)), " ")
}

// ItemPatch is a partial update applied by enrichment. Nil fields are
// left untouched; Metadata entries are merged key by key.
type ItemPatch struct {
	Title          *string
	Category       *Category
	SearchableText *string
	Damaged        *bool
	Metadata       map[string]any
}

// Apply merges the patch into the item and bumps UpdatedAt.
func (p ItemPatch) Apply(item *Item, now time.Time) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.SearchableText != nil {
		item.SearchableText = *p.SearchableText
	}
	if p.Damaged != nil {
		item.Damaged = *p.Damaged
	}
	for k, v := range p.Metadata {
		item.SetMeta(k, v)
	}
	item.UpdatedAt = now
}
