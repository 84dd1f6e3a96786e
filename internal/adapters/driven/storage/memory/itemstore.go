// Package memory provides in-memory implementations of driven ports,
// used in tests and as a reference for the persistence contracts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driven"
)

// Ensure ItemStore implements the interface.
var _ driven.ItemStore = (*ItemStore)(nil)

// ItemStore is an in-memory implementation of driven.ItemStore.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]domain.Item
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items: make(map[string]domain.Item),
	}
}

// Insert atomically adds a new item.
func (s *ItemStore) Insert(_ context.Context, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, item.ID)
	}
	s.items[item.ID] = cloneItem(*item)
	return nil
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneItem(item)
	return &out, nil
}

// List returns items ordered by created_at descending.
func (s *ItemStore) List(_ context.Context, filter domain.ListFilter) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.Item //nolint:prealloc // filtered below
	for _, item := range s.items {
		if filter.Kind != "" && item.Kind != filter.Kind {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		items = append(items, cloneItem(item))
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})

	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

// Update merges the patch into the record and bumps updated_at.
func (s *ItemStore) Update(_ context.Context, id string, patch domain.ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	patch.Apply(&item, time.Now().UTC())
	s.items[id] = item
	return nil
}

// Delete removes the record.
func (s *ItemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// CountReferences counts items whose hash equals the given hash.
func (s *ItemStore) CountReferences(_ context.Context, hash string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, item := range s.items {
		if item.Hash == hash {
			count++
		}
	}
	return count, nil
}

// cloneItem copies the item including its metadata bag so callers can
// mutate results without racing the store.
func cloneItem(item domain.Item) domain.Item {
	if item.Metadata != nil {
		meta := make(map[string]any, len(item.Metadata))
		for k, v := range item.Metadata {
			meta[k] = v
		}
		item.Metadata = meta
	}
	return item
}
