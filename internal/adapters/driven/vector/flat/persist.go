package flat

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// Snapshot file layout, all little-endian:
//
//	magic   [4]byte "SDVX"
//	version uint16
//	dim     uint32
//	count   uint32
//	records: idLen uint16, id []byte, createdAt int64, vec [dim]float32
const (
	snapshotMagic   = "SDVX"
	snapshotVersion = 1
)

// load reads the snapshot at x.path. A missing file is an empty index.
func (x *Index) load() error {
	f, err := os.Open(x.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: opening index snapshot: %s", domain.ErrIO, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("%w: index snapshot header: %s", domain.ErrCorruption, err)
	}
	if string(magic[:]) != snapshotMagic {
		return fmt.Errorf("%w: index snapshot has wrong magic", domain.ErrCorruption)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("%w: index snapshot version: %s", domain.ErrCorruption, err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("%w: index snapshot version %d", domain.ErrCorruption, version)
	}

	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("%w: index snapshot dim: %s", domain.ErrCorruption, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: index snapshot count: %s", domain.ErrCorruption, err)
	}

	if x.dim != 0 && dim != 0 && int(dim) != x.dim {
		return fmt.Errorf("%w: snapshot dim %d, configured %d", domain.ErrDimensionMismatch, dim, x.dim)
	}
	if dim != 0 {
		x.dim = int(dim)
	}

	entries := make([]entry, 0, count)
	byID := make(map[string]int, count)
	for i := uint32(0); i < count; i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("%w: index record %d: %s", domain.ErrCorruption, i, err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return fmt.Errorf("%w: index record %d: %s", domain.ErrCorruption, i, err)
		}

		var createdAt int64
		if err := binary.Read(r, binary.LittleEndian, &createdAt); err != nil {
			return fmt.Errorf("%w: index record %d: %s", domain.ErrCorruption, i, err)
		}

		vec := make([]float32, x.dim)
		raw := make([]byte, 4*x.dim)
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("%w: index record %d: %s", domain.ErrCorruption, i, err)
		}
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
		}

		byID[string(idBytes)] = len(entries)
		entries = append(entries, entry{id: string(idBytes), createdAt: createdAt, vec: vec})
	}

	x.entries = entries
	x.byID = byID
	return nil
}

// persistLocked writes the snapshot atomically: a temporary file in the
// same directory is renamed into place once fully written. Callers hold
// the write lock.
func (x *Index) persistLocked() error {
	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: creating index directory: %s", domain.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".embeddings-*")
	if err != nil {
		return fmt.Errorf("%w: creating index temp file: %s", domain.ErrIO, err)
	}
	tmpName := tmp.Name()

	if err := x.writeSnapshot(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: syncing index snapshot: %s", domain.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing index snapshot: %s", domain.ErrIO, err)
	}
	if err := os.Rename(tmpName, x.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: publishing index snapshot: %s", domain.ErrIO, err)
	}
	return nil
}

func (x *Index) writeSnapshot(f *os.File) error {
	w := bufio.NewWriter(f)

	if _, err := w.WriteString(snapshotMagic); err != nil {
		return fmt.Errorf("%w: writing index snapshot: %s", domain.ErrIO, err)
	}
	for _, v := range []any{uint16(snapshotVersion), uint32(x.dim), uint32(len(x.entries))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: writing index snapshot: %s", domain.ErrIO, err)
		}
	}

	for _, e := range x.entries {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(e.id))); err != nil {
			return fmt.Errorf("%w: writing index record: %s", domain.ErrIO, err)
		}
		if _, err := w.WriteString(e.id); err != nil {
			return fmt.Errorf("%w: writing index record: %s", domain.ErrIO, err)
		}
		if err := binary.Write(w, binary.LittleEndian, e.createdAt); err != nil {
			return fmt.Errorf("%w: writing index record: %s", domain.ErrIO, err)
		}
		if err := binary.Write(w, binary.LittleEndian, e.vec); err != nil {
			return fmt.Errorf("%w: writing index record: %s", domain.ErrIO, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flushing index snapshot: %s", domain.ErrIO, err)
	}
	return nil
}
