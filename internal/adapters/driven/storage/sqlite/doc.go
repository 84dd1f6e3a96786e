// Package sqlite provides the SQLite-backed implementation of the item index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. Items are stored in a
// single table with secondary indexes on hash and created_at; the metadata
// bag is a JSON column so unknown keys written by enrichment survive
// round-trips without schema changes.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.stashdrop/vault/items.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode; updates run load-merge-store inside a
// transaction so enrichment writers serialise.
package sqlite
