// Package kv provides the scoped key/value datastore consumed by plugins and
// governance processes. Values are JSON-serializable; each owner sees only its
// own namespace.
package kv

import (
	"context"
	"strings"
)

// Store is an opaque key/value datastore. Implementations must round-trip
// values through JSON so stored data survives process restarts regardless of
// backend.
type Store interface {
	// Get returns the value for key. The second return is false when the key
	// is absent.
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	// Keys lists all keys currently present in the store.
	Keys(ctx context.Context) ([]string, error)
}

// Namespaced returns a view of base restricted to keys under the given
// prefix. It is how plugin-level and process-level state share one backend
// without seeing each other.
func Namespaced(base Store, prefix string) Store {
	return &namespaced{base: base, prefix: prefix + ":"}
}

type namespaced struct {
	base   Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) (any, bool, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value any) error {
	return n.base.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.base.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context) ([]string, error) {
	all, err := n.base.Keys(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0)

	for _, k := range all {
		if strings.HasPrefix(k, n.prefix) {
			keys = append(keys, strings.TrimPrefix(k, n.prefix))
		}
	}

	return keys, nil
}

// Clear removes every key in the store. Used to cascade-delete the private
// datastore of a destroyed governance process.
func Clear(ctx context.Context, store Store) error {
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			return err
		}
	}

	return nil
}
