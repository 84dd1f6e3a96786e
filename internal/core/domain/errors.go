package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrInvalidInput indicates malformed input: empty text, a missing
	// path, or a vector of the wrong shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFileRejected indicates the file extension is on the reject list
	// or absent from the allow list.
	ErrFileRejected = errors.New("file type not accepted")

	// ErrNotFound indicates a requested item or blob does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID indicates an insert collided with an existing ID.
	// This should not arise outside bugs and is treated as a hard error.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrIO indicates a filesystem failure on read, write, or rename.
	ErrIO = errors.New("io error")

	// ErrCorruption indicates the index references a blob the content
	// store cannot produce, or an embedding of the wrong dimension.
	ErrCorruption = errors.New("storage corruption")

	// ErrExtractionFailure indicates a single enrichment stage failed.
	// It never aborts the rest of the pipeline.
	ErrExtractionFailure = errors.New("extraction failed")

	// ErrTimeout indicates an enrichment stage exceeded its time bound.
	ErrTimeout = errors.New("timed out")

	// ErrDimensionMismatch indicates a vector of the wrong length was
	// offered to the semantic index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or unreachable. Ingest still succeeds; the item is
	// invisible to semantic search until backfill.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVaultLocked indicates another engine instance holds the vault.
	ErrVaultLocked = errors.New("vault locked by another process")
)

// Reason returns the one-line human-readable reason for a surfaced error.
// The overlay shows this inline; it never includes stack traces.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileRejected):
		return "This file type can't be saved"
	case errors.Is(err, ErrInvalidInput):
		return "Nothing to save"
	case errors.Is(err, ErrNotFound):
		return "Item no longer exists"
	case errors.Is(err, ErrIO):
		return "Couldn't write to the vault"
	case errors.Is(err, ErrCorruption):
		return "Item is damaged"
	case errors.Is(err, ErrTimeout):
		return "Operation timed out"
	case errors.Is(err, ErrVaultLocked):
		return "Vault is in use by another instance"
	default:
		return "Something went wrong"
	}
}
