// Package blob implements the content-addressed blob store on the local
// filesystem. Blobs live in a flat directory named after their SHA-256
// hex hash, with the original extension preserved for OS-level previews.
// Derived artifacts (thumbnails, covers, posters) live in a sibling
// directory and are named deterministically from (parent hash, kind).
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// thumbsDir is the derived-artifact directory under the blob root.
const thumbsDir = "thumbnails"

// Store is a filesystem-backed content store.
type Store struct {
	root string
}

// NewStore creates a blob store rooted at dir, typically
// <vault>/blobs. The directory and its thumbnails subdirectory are
// created if absent.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: blob store needs a directory", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Join(dir, thumbsDir), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating blob directories: %s", domain.ErrIO, err)
	}
	return &Store{root: dir}, nil
}

// Root returns the blob directory.
func (s *Store) Root() string {
	return s.root
}

// Put writes a blob keyed by the SHA-256 of its contents.
// The write is atomic: bytes go to a temporary name in the same
// directory and are renamed into place, so a crash mid-write never
// leaves a partially visible blob. Writing content that already exists
// returns the existing hash without rewriting.
func (s *Store) Put(_ context.Context, data []byte, ext string) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if _, err := s.PathOf(hash); err == nil {
		return hash, nil
	}

	name := hash + normaliseExt(ext)
	if err := s.writeAtomic(filepath.Join(s.root, name), data); err != nil {
		return "", err
	}
	return hash, nil
}

// PathOf returns the local path for a blob. It does not open the file.
func (s *Store) PathOf(hash string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("%w: empty hash", domain.ErrInvalidInput)
	}

	// Exact name first, then hash with a preserved extension.
	exact := filepath.Join(s.root, hash)
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.root, hash+".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("%w: blob %s", domain.ErrNotFound, hash)
	}
	return matches[0], nil
}

// PutDerived writes a derived artifact whose name is a deterministic
// function of (parentHash, kind). Regeneration is idempotent.
func (s *Store) PutDerived(
	_ context.Context, parentHash string, kind driven.DerivedKind, data []byte,
) (string, error) {
	if parentHash == "" {
		return "", fmt.Errorf("%w: derived artifact needs a parent hash", domain.ErrInvalidInput)
	}

	ref := fmt.Sprintf("%s-%s.jpg", parentHash, kind)
	path := filepath.Join(s.root, thumbsDir, ref)

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	if err := s.writeAtomic(path, data); err != nil {
		return "", err
	}
	return ref, nil
}

// DerivedPath resolves a derived-artifact reference to a local path.
func (s *Store) DerivedPath(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty derived ref", domain.ErrInvalidInput)
	}
	path := filepath.Join(s.root, thumbsDir, filepath.Base(ref))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: derived artifact %s", domain.ErrNotFound, ref)
	}
	return path, nil
}

// Remove deletes a blob and all its derived artifacts.
func (s *Store) Remove(_ context.Context, hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: empty hash", domain.ErrInvalidInput)
	}

	path, err := s.PathOf(hash)
	if err == nil {
		if rmErr := os.Remove(path); rmErr != nil {
			return fmt.Errorf("%w: removing blob %s: %s", domain.ErrIO, hash, rmErr)
		}
	}

	derived, _ := filepath.Glob(filepath.Join(s.root, thumbsDir, hash+"-*"))
	for _, d := range derived {
		if rmErr := os.Remove(d); rmErr != nil {
			return fmt.Errorf("%w: removing derived artifact %s: %s", domain.ErrIO, d, rmErr)
		}
	}
	return nil
}

// Hashes lists the hashes of all primary blobs.
func (s *Store) Hashes(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob directory: %s", domain.ErrIO, err)
	}

	var hashes []string //nolint:prealloc // temp files are skipped
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if i := strings.IndexByte(name, '.'); i > 0 {
			name = name[:i]
		}
		if len(name) == sha256.Size*2 {
			hashes = append(hashes, name)
		}
	}
	return hashes, nil
}

// writeAtomic persists data to path via a temporary name and rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %s", domain.ErrIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing blob: %s", domain.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: syncing blob: %s", domain.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing blob: %s", domain.ErrIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: publishing blob: %s", domain.ErrIO, err)
	}
	return nil
}

// normaliseExt lowercases an extension and guarantees a leading dot.
// Empty input stays empty: blobs without a known extension are stored
// under the bare hash.
func normaliseExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
