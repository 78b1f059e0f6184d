package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

// Collection stores a JSON array of T under a single key.
type Collection[T any] struct {
	store Store
	key   string
}

// NewCollection binds a collection to key.
func NewCollection[T any](store Store, key string) *Collection[T] {
	return &Collection[T]{store: store, key: key}
}

// Load implements domain.ListStore.
func (c *Collection[T]) Load(ctx context.Context) ([]T, bool, error) {
	payload, err := c.store.Get(ctx, c.key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", c.key, err)
	}

	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", c.key, err)
	}
	return items, true, nil
}

// Save implements domain.ListStore.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, payload); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

// GardenStores wires the four garden lists to store.
func GardenStores(store Store) domain.GardenStores {
	return domain.GardenStores{
		Plots:   NewCollection[domain.Plot](store, KeyPlots),
		Plants:  NewCollection[domain.Plant](store, KeyPlants),
		Tasks:   NewCollection[domain.Task](store, KeyTasks),
		Recipes: NewCollection[domain.Recipe](store, KeyRecipes),
	}
}
