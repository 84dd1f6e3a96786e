// Package video implements the optional poster stage: a single frame
// near t=1s extracted with ffmpeg, stored as a derived artifact. The
// stage only applies when the host has ffmpeg on PATH.
package video

import (
	"context"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Enricher implements the interface.
var _ driven.Enricher = (*Enricher)(nil)

// Enricher extracts a poster frame from videos.
type Enricher struct {
	blobs  driven.BlobStore
	runner driven.CommandRunner
}

// New creates the video poster stage.
func New(blobs driven.BlobStore, runner driven.CommandRunner) *Enricher {
	return &Enricher{blobs: blobs, runner: runner}
}

// Name identifies the stage in logs.
func (e *Enricher) Name() string {
	return "video"
}

// Applies reports true for videos when a frame extractor is available.
func (e *Enricher) Applies(item *domain.Item) bool {
	return item.Category == domain.CategoryVideos && item.Hash != "" &&
		e.runner.Available("ffmpeg")
}

// Enrich captures one frame near t=1s.
func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (*domain.ItemPatch, error) {
	if ref := item.MetaString(domain.MetaThumbnailRef); ref != "" {
		if _, err := e.blobs.DerivedPath(ref); err == nil {
			return nil, nil
		}
	}

	path, err := e.blobs.PathOf(item.Hash)
	if err != nil {
		return nil, err
	}

	out, err := e.runner.Run(ctx, "ffmpeg",
		"-ss", "1", "-i", path,
		"-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "pipe:1")
	if err != nil || len(out) == 0 {
		// Best-effort; a poster is never required.
		return nil, nil
	}

	ref, err := e.blobs.PutDerived(ctx, item.Hash, driven.DerivedVideoPoster, out)
	if err != nil {
		return nil, err
	}

	return &domain.ItemPatch{
		Metadata: map[string]any{domain.MetaThumbnailRef: ref},
	}, nil
}
