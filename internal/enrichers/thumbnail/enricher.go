// Package thumbnail implements the image preview stage: a bounded
// 480x320 covering-fit JPEG rendered into the content store as a
// derived artifact.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// Thumbnail bounds.
const (
	thumbWidth  = 480
	thumbHeight = 320
	jpegQuality = 80
)

// Enricher renders image thumbnails.
type Enricher struct {
	blobs driven.BlobStore
}

// New creates the thumbnail stage.
func New(blobs driven.BlobStore) *Enricher {
	return &Enricher{blobs: blobs}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "thumbnail"
}

// Applies reports true for images.
func (e *Enricher) Applies(item *domain.Item) bool {
	return item.Category == domain.CategoryImages && item.Hash != ""
}

// Enrich decodes the blob, renders the preview, and stores it as a
// derived artifact. Idempotent: an existing artifact is left in place
// and only the ref is recorded.
func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	// Skip the decode when the artifact already exists.
	if ref := item.MetaString(domain.MetaThumbnailRef); ref != "" {
		if _, err := e.blobs.DerivedPath(ref); err == nil {
			return nil, nil
		}
	}

	path, err := e.blobs.PathOf(item.Hash)
	if err != nil {
		return nil, err
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %s", domain.ErrExtractionFailure, err)
	}

	thumb := imaging.Fill(src, thumbWidth, thumbHeight, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("%w: encoding thumbnail: %s", domain.ErrExtractionFailure, err)
	}

	ref, err := e.blobs.PutDerived(ctx, item.Hash, driven.DerivedImageThumb, buf.Bytes())
	if err != nil {
		return nil, err
	}

	return &domain.ItemPatch{
		Metadata: map[string]any{domain.MetaThumbnailRef: ref},
	}, nil
}
