package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"crypto_dash/internal/domain"
)

// Favorites is the persisted set of favorite asset ids, kept in insertion order.
type Favorites struct {
	mu    sync.Mutex
	store domain.KeyValueStore
	ids   []string
}

func NewFavorites(store domain.KeyValueStore) *Favorites {
	return &Favorites{store: store}
}

func (f *Favorites) Load(ctx context.Context) error {
	var ids []string
	if _, err := f.store.Get(ctx, domain.KeyFavorites, &ids); err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	f.mu.Lock()
	f.ids = ids
	f.mu.Unlock()
	return nil
}

// Toggle adds id if absent or removes it if present, persists, and reports
// whether id is now a favorite.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, &domain.ValidationError{Field: "asset", Reason: "required"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := slices.Clone(f.ids)
	idx := slices.Index(next, id)
	if idx >= 0 {
		next = slices.Delete(next, idx, idx+1)
	} else {
		next = append(next, id)
	}

	if err := f.store.Set(ctx, domain.KeyFavorites, next); err != nil {
		return idx >= 0, fmt.Errorf("persist favorites: %w", err)
	}
	f.ids = next
	return idx < 0, nil
}

// IDs returns favorite ids in the order they were added.
func (f *Favorites) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ids)
}

// Set returns the favorites as a lookup set.
func (f *Favorites) Set() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.ids))
	for _, id := range f.ids {
		out[id] = true
	}
	return out
}
