// Package annotate implements the optional language-model stage. It is
// disabled by default and only wired when an endpoint is configured.
// Annotations land in metadata (llm_title, llm_keywords, llm_summary,
// caption) and feed the searchable text; they never alter item content
// and the search path never reaches this stage.
package annotate

import (
	"context"
	"fmt"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// Enricher annotates items with a language model.
type Enricher struct {
	llm driven.LLMService
}

// New creates the annotation stage.
func New(llm driven.LLMService) *Enricher {
	return &Enricher{llm: llm}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "annotate"
}

// Applies reports true for text items, and for images once OCR has
// produced text to describe.
func (e *Enricher) Applies(item *domain.Item) bool {
	if e.llm == nil {
		return false
	}
	switch item.Kind {
	case domain.KindText:
		return item.Content != ""
	case domain.KindImage:
		return item.MetaString(domain.MetaExtractedText) != ""
	default:
		return false
	}
}

// Enrich requests the structured annotation for the item.
func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	switch item.Kind {
	case domain.KindText:
		return e.annotateText(ctx, item)
	case domain.KindImage:
		return e.annotateImage(ctx, item)
	default:
		return nil, nil
	}
}

func (e *Enricher) annotateText(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	annotation, err := e.llm.AnnotateText(ctx, item.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrExtractionFailure, err)
	}

	meta := make(map[string]any)
	if annotation.Title != "" {
		meta[domain.MetaLLMTitle] = annotation.Title
	}
	if annotation.Keywords != "" {
		meta[domain.MetaLLMKeywords] = annotation.Keywords
	}
	if annotation.Summary != "" {
		meta[domain.MetaLLMSummary] = annotation.Summary
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return &domain.ItemPatch{Metadata: meta}, nil
}

func (e *Enricher) annotateImage(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	annotation, err := e.llm.AnnotateImage(ctx, item.MetaString(domain.MetaExtractedText))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrExtractionFailure, err)
	}

	meta := make(map[string]any)
	// The deterministic OCR caption wins; the model only fills gaps.
	if annotation.Caption != "" && item.MetaString(domain.MetaCaption) == "" {
		meta[domain.MetaCaption] = annotation.Caption
	}
	if annotation.Keywords != "" {
		meta[domain.MetaLLMKeywords] = annotation.Keywords
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return &domain.ItemPatch{Metadata: meta}, nil
}
