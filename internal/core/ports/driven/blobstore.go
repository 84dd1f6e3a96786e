package driven

import "context"

// DerivedKind identifies a derived artifact produced from a primary blob.
type DerivedKind string

// Derived artifact kinds. The artifact name is a deterministic function
// of (parent hash, kind) so repeated generation is idempotent.
const (
	DerivedImageThumb  DerivedKind = "image-thumb"
	DerivedPDFCover    DerivedKind = "pdf-cover"
	DerivedVideoPoster DerivedKind = "video-poster"
)

// BlobStore persists opaque byte blobs on the local filesystem, addressed
// by the SHA-256 of their contents. Every write is atomic: the visible
// path appears only after the bytes are fully persisted.
type BlobStore interface {
	// Put writes a blob keyed by the SHA-256 of its contents and returns
	// the hex hash. If a blob with that hash already exists the existing
	// hash is returned without rewriting. ext, when non-empty, preserves
	// the original extension for OS-level previews (".pdf", ".png").
	Put(ctx context.Context, data []byte, ext string) (string, error)

	// PathOf returns the local path for a blob so consumers can stream
	// the raw bytes. It does not open the file. Returns
	// domain.ErrNotFound when no blob with that hash exists.
	PathOf(hash string) (string, error)

	// PutDerived writes a derived artifact for a parent blob and returns
	// its reference. Idempotent: regenerating an existing artifact is a
	// no-op that returns the same reference.
	PutDerived(ctx context.Context, parentHash string, kind DerivedKind, data []byte) (string, error)

	// DerivedPath resolves a derived-artifact reference to a local path.
	// Missing derived artifacts are tolerated by callers, which
	// regenerate on demand.
	DerivedPath(ref string) (string, error)

	// Remove deletes a blob and all its derived artifacts. The caller is
	// responsible for ensuring no item references remain.
	Remove(ctx context.Context, hash string) error

	// Hashes lists the hashes of all primary blobs currently stored.
	// Used by the orphan sweep.
	Hashes(ctx context.Context) ([]string, error)
}
