// Package postgresql provides PostgreSQL persistence for governance process
// records, for deployments where several replicas share one process table.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/agorahq/agora/pkg/process"
)

const schemaVersion = 1

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository connects to the database, runs migrations, and returns a
// ready repository.
func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &Repository{db: db, logger: logger.With("module", "postgresql_persistence")}

	if err := repo.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection.
func (r *Repository) Close(_ context.Context) error {
	return r.db.Close()
}

// HealthCheck verifies the database connection is healthy.
func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (r *Repository) Save(ctx context.Context, rec *process.Record) error {
	outcome, err := json.Marshal(rec.Outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome of process %s: %w", rec.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO governance_processes
			(id, plugin, tenant, name, status, callback_url, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			callback_url = EXCLUDED.callback_url,
			outcome = EXCLUDED.outcome,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.Plugin, rec.Tenant, rec.Name, string(rec.Status),
		rec.CallbackURL, outcome, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save process %s: %w", rec.ID, err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*process.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, plugin, tenant, name, status, callback_url, outcome, created_at, updated_at
		FROM governance_processes WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read process %s: %w", id, err)
	}

	return rec, nil
}

func (r *Repository) List(ctx context.Context) ([]*process.Record, error) {
	return r.query(ctx, `
		SELECT id, plugin, tenant, name, status, callback_url, outcome, created_at, updated_at
		FROM governance_processes ORDER BY created_at`)
}

func (r *Repository) ListPending(ctx context.Context) ([]*process.Record, error) {
	return r.query(ctx, `
		SELECT id, plugin, tenant, name, status, callback_url, outcome, created_at, updated_at
		FROM governance_processes WHERE status = 'pending' ORDER BY created_at`)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM governance_processes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete process %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete process %s: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}

	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*process.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	defer rows.Close()

	records := make([]*process.Record, 0)

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process row: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate process rows: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*process.Record, error) {
	var (
		rec     process.Record
		status  string
		outcome []byte
	)

	err := row.Scan(&rec.ID, &rec.Plugin, &rec.Tenant, &rec.Name, &status,
		&rec.CallbackURL, &outcome, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = process.Status(status)

	if len(outcome) > 0 {
		if err := json.Unmarshal(outcome, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("outcome of process %s is corrupt: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Starting database migrations")

	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS agora_schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current sql.NullInt64
	err = r.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM agora_schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for version := int(current.Int64) + 1; version <= schemaVersion; version++ {
		statement, ok := migrations[version]
		if !ok {
			return fmt.Errorf("missing migration for version %d", version)
		}

		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}

		_, err = r.db.ExecContext(ctx,
			`INSERT INTO agora_schema_migrations (version) VALUES ($1)`, version)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		r.logger.InfoContext(ctx, "Applied migration", "version", version)
	}

	return nil
}

var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS governance_processes (
			id TEXT PRIMARY KEY,
			plugin TEXT NOT NULL,
			tenant TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			callback_url TEXT NOT NULL DEFAULT '',
			outcome JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_governance_processes_status
			ON governance_processes (status);`,
}
