// Package file provides the TOML-backed configuration store.
// Settings live in ~/.stashdrop/config.toml; nested tables are flattened
// to dot-notation keys (overlay.hold_ms, embedding.model) on load.
package file
