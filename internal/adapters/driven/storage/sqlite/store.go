package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ItemStore = (*Store)(nil)

// Store is the SQLite-backed item index.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the item index at dataDir/items.db.
// If dataDir is empty, defaults to ~/.stashdrop/vault.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".stashdrop", "vault")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "items.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_items.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

const itemColumns = `id, kind, category, title, content, blob_ref, hash,
	mime_type, searchable_text, damaged, metadata, created_at, updated_at`

// Insert atomically adds a new item.
func (s *Store) Insert(ctx context.Context, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)", item.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking id: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, item.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, string(item.Kind), string(item.Category), item.Title,
		nullString(item.Content), nullString(item.BlobRef), nullString(item.Hash),
		nullString(item.MIMEType), item.SearchableText, boolToInt(item.Damaged),
		string(metadataJSON), item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	return nil
}

// Get retrieves an item by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	return scanItemRow(row)
}

// List returns items ordered by created_at descending.
func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]domain.Item, error) {
	query := "SELECT " + itemColumns + " FROM items"
	var conds []string
	var args []any

	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(filter.Category))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	return items, nil
}

// Update merges the patch into the record and bumps updated_at.
// The load-merge-store runs in a single transaction so concurrent
// enrichment writers serialise.
func (s *Store) Update(ctx context.Context, id string, patch domain.ItemPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItemRow(row)
	if err != nil {
		return err
	}

	patch.Apply(item, time.Now().UTC())

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE items SET
			category = ?,
			title = ?,
			searchable_text = ?,
			damaged = ?,
			metadata = ?,
			updated_at = ?
		WHERE id = ?
	`, string(item.Category), item.Title, item.SearchableText,
		boolToInt(item.Damaged), string(metadataJSON), item.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	return nil
}

// CountReferences counts items whose hash equals the given hash.
func (s *Store) CountReferences(ctx context.Context, hash string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE hash = ?", hash).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting references: %w", err)
	}
	return count, nil
}

// ==================== Helper Functions ====================

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (*domain.Item, error) {
	var item domain.Item
	var kind, category string
	var content, blobRef, hash, mimeType sql.NullString
	var damaged int
	var metadataJSON string
	var createdAt, updatedAt time.Time

	if err := sc.Scan(&item.ID, &kind, &category, &item.Title, &content,
		&blobRef, &hash, &mimeType, &item.SearchableText, &damaged,
		&metadataJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsedKind, err := domain.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s has kind %q", domain.ErrCorruption, item.ID, kind)
	}
	parsedCategory, err := domain.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s has category %q", domain.ErrCorruption, item.ID, category)
	}

	item.Kind = parsedKind
	item.Category = parsedCategory
	item.Content = content.String
	item.BlobRef = blobRef.String
	item.Hash = hash.String
	item.MIMEType = mimeType.String
	item.Damaged = damaged != 0
	item.CreatedAt = createdAt
	item.UpdatedAt = updatedAt

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &item.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &item, nil
}

func scanItemRow(row scanner) (*domain.Item, error) {
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if errors.Is(err, domain.ErrCorruption) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return item, nil
}

func scanItemRows(rows *sql.Rows) (*domain.Item, error) {
	item, err := scanItem(rows)
	if err != nil {
		if errors.Is(err, domain.ErrCorruption) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return item, nil
}

// nullString converts an empty string to NULL for storage.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
