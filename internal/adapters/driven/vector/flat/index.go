// Package flat implements the semantic index as a flat, durable table of
// embeddings scanned linearly per query. At vault scale (tens of
// thousands of items) a linear scan over normalised vectors is well
// under a millisecond and needs no approximate structure.
package flat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// entry is one stored embedding. Vectors are L2-normalised on the way
// in, so cosine similarity reduces to a dot product.
type entry struct {
	id        string
	createdAt int64 // unix nanoseconds, retained for tie-breaking
	vec       []float32
}

// Index is a flat vector index persisted to a single snapshot file.
type Index struct {
	mu      sync.RWMutex
	path    string
	dim     int
	entries []entry
	byID    map[string]int
}

// NewIndex opens (or creates) the index persisted at path. dim fixes the
// vector length; 0 adopts the length of the first upsert (or of the
// loaded snapshot). A missing snapshot file yields an empty index.
func NewIndex(path string, dim int) (*Index, error) {
	idx := &Index{
		path: path,
		dim:  dim,
		byID: make(map[string]int),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Upsert inserts or replaces the embedding for an item.
func (x *Index) Upsert(_ context.Context, itemID string, createdAt time.Time, vector []float32) error {
	if itemID == "" {
		return fmt.Errorf("%w: empty item id", domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 && len(x.entries) == 0 {
		x.dim = len(vector)
	}
	if len(vector) != x.dim {
		return fmt.Errorf("%w: got %d, index holds %d", domain.ErrDimensionMismatch, len(vector), x.dim)
	}

	e := entry{
		id:        itemID,
		createdAt: createdAt.UnixNano(),
		vec:       normaliseL2(vector),
	}

	if i, ok := x.byID[itemID]; ok {
		x.entries[i] = e
	} else {
		x.byID[itemID] = len(x.entries)
		x.entries = append(x.entries, e)
	}

	return x.persistLocked()
}

// Remove deletes the embedding for an item. Absent IDs are a no-op.
func (x *Index) Remove(_ context.Context, itemID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	i, ok := x.byID[itemID]
	if !ok {
		return nil
	}

	last := len(x.entries) - 1
	x.entries[i] = x.entries[last]
	x.entries = x.entries[:last]
	delete(x.byID, itemID)
	if i < last {
		x.byID[x.entries[i].id] = i
	}

	return x.persistLocked()
}

// Query returns up to k items by descending cosine similarity.
// Ties break by descending creation time, then ascending ID, so results
// are deterministic.
func (x *Index) Query(_ context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		return nil, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: got %d, index holds %d", domain.ErrDimensionMismatch, len(vector), x.dim)
	}

	q := normaliseL2(vector)

	type scored struct {
		entry
		sim float64
	}
	hits := make([]scored, len(x.entries))
	for i, e := range x.entries {
		hits[i] = scored{entry: e, sim: dot(q, e.vec)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		if hits[i].createdAt != hits[j].createdAt {
			return hits[i].createdAt > hits[j].createdAt
		}
		return hits[i].id < hits[j].id
	})

	if k > len(hits) {
		k = len(hits)
	}
	out := make([]driven.VectorHit, k)
	for i := range out {
		out[i] = driven.VectorHit{ItemID: hits[i].id, Similarity: hits[i].sim}
	}
	return out, nil
}

// Has reports whether an embedding exists for the item.
func (x *Index) Has(itemID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.byID[itemID]
	return ok
}

// Size returns the number of stored embeddings.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Dimensions returns the fixed vector length, 0 while the index is empty
// and unpinned.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Close flushes the snapshot.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.persistLocked()
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normaliseL2 returns a copy of v scaled to unit L2 norm.
func normaliseL2(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	n := math.Sqrt(sum)
	if n == 0 {
		copy(out, v)
		return out
	}
	inv := float32(1 / n)
	for i, f := range v {
		out[i] = f * inv
	}
	return out
}
