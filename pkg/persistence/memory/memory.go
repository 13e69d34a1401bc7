// Package memory provides an in-process repository for governance process
// records, used in tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agorahq/agora/pkg/process"
)

type Repository struct {
	mu      sync.RWMutex
	records map[string]*process.Record
}

func NewRepository() *Repository {
	return &Repository{records: make(map[string]*process.Record)}
}

func (r *Repository) Save(_ context.Context, rec *process.Record) error {
	r.mu.Lock()
	r.records[rec.ID] = rec.Clone()
	r.mu.Unlock()

	return nil
}

func (r *Repository) Get(_ context.Context, id string) (*process.Record, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}

	return rec.Clone(), nil
}

func (r *Repository) List(_ context.Context) ([]*process.Record, error) {
	r.mu.RLock()
	records := make([]*process.Record, 0, len(r.records))

	for _, rec := range r.records {
		records = append(records, rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })

	return records, nil
}

func (r *Repository) ListPending(ctx context.Context) ([]*process.Record, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]*process.Record, 0)

	for _, rec := range all {
		if rec.Status == process.StatusPending {
			pending = append(pending, rec)
		}
	}

	return pending, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}

	delete(r.records, id)

	return nil
}
