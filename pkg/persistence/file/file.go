// Package file provides file-based persistence for governance process
// records: one JSON document per process under the configured root.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agorahq/agora/pkg/process"
)

type Repository struct {
	root string
}

// NewRepository creates a repository rooted at the given directory.
func NewRepository(root string) (*Repository, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	if err := os.MkdirAll(filepath.Join(cleanRoot, "processes"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create process directory: %w", err)
	}

	return &Repository{root: cleanRoot}, nil
}

func (r *Repository) Save(_ context.Context, rec *process.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode process %s: %w", rec.ID, err)
	}

	path := r.path(rec.ID)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write process %s: %w", rec.ID, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace process %s: %w", rec.ID, err)
	}

	return nil
}

func (r *Repository) Get(_ context.Context, id string) (*process.Record, error) {
	data, err := os.ReadFile(r.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read process %s: %w", id, err)
	}

	var rec process.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("process file %s is corrupt: %w", id, err)
	}

	return &rec, nil
}

func (r *Repository) List(ctx context.Context) ([]*process.Record, error) {
	root := os.DirFS(filepath.Join(r.root, "processes"))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list process files: %w", err)
	}

	records := make([]*process.Record, 0, len(files))

	for _, file := range files {
		rec, err := r.Get(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

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
	err := os.Remove(r.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}

	if err != nil {
		return fmt.Errorf("failed to delete process %s: %w", id, err)
	}

	return nil
}

func (r *Repository) path(id string) string {
	return filepath.Join(r.root, "processes", id+".json")
}
