// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - BlobStore: Content-addressed blob and derived-artifact storage
//   - ItemStore: Item persistence
//   - VectorIndex: Embedding storage and cosine-similarity queries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, items are
//     stored but invisible to semantic search until backfill.
//   - LLMService: Metadata annotation only. Never called on the search path
//     and never alters item content.
//   - CommandRunner: External extraction tools (pdftotext, tesseract,
//     ffmpeg). Missing tools degrade to skipped enrichment stages.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or enricher package
package driven
