package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agorahq/agora/pkg/kv"
	"github.com/agorahq/agora/pkg/otelhelper"
	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/schema"
)

// Manager drives every governance process: it starts them, advances them, and
// serializes concurrent operations per process id so racing reconciliations
// cannot interleave.
type Manager struct {
	repo       Repository
	strategies StrategyResolver
	plugins    PluginResolver
	states     kv.Store
	notifier   Notifier
	logger     *slog.Logger
	tracer     trace.Tracer
	locks      sync.Map // process id -> *sync.Mutex
}

func NewManager(
	repo Repository,
	strategies StrategyResolver,
	plugins PluginResolver,
	states kv.Store,
	notifier Notifier,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		repo:       repo,
		strategies: strategies,
		plugins:    plugins,
		states:     states,
		notifier:   notifier,
		logger:     logger.With("module", "process_manager"),
		tracer:     otel.Tracer("agora/process"),
	}
}

// Start validates parameters, creates the remote resource through the
// process's strategy, and persists the record in pending status.
//
// On failure nothing is persisted: the process never leaves created, and any
// private state the strategy may have written is discarded.
func (m *Manager) Start(
	ctx context.Context,
	instance *plugin.Instance,
	name string,
	params map[string]any,
	callbackURL string,
) (*Record, error) {
	info, ok := m.strategies.ProcessStrategy(instance.Name(), name)
	if !ok {
		return nil, fmt.Errorf("process type %q is not registered for plugin %q", name, instance.Name())
	}

	if err := schema.Validate(params, info.InputSchema); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:          uuid.NewString(),
		Plugin:      instance.Name(),
		Tenant:      instance.Tenant(),
		Name:        name,
		Status:      StatusCreated,
		CallbackURL: callbackURL,
		Outcome:     map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "process.start",
		attribute.String(otelhelper.ProcessIDKey, rec.ID),
		attribute.String(otelhelper.ProcessNameKey, name),
		attribute.String(otelhelper.PluginNameKey, instance.Name()),
	)
	defer span.End()

	proc := m.buildProcess(rec, instance)

	if err := info.New().Start(ctx, proc, params); err != nil {
		otelhelper.SetError(span, err)

		// A failed start must not leave remote identifiers behind.
		if clearErr := kv.Clear(ctx, proc.state); clearErr != nil {
			m.logger.ErrorContext(ctx, "Failed to discard state of failed start",
				"process_id", rec.ID, "error", clearErr)
		}

		return nil, err
	}

	rec.Status = StatusPending
	rec.UpdatedAt = time.Now().UTC()

	if err := m.repo.Save(ctx, rec); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to persist process %s: %w", rec.ID, err)
	}

	m.logger.InfoContext(ctx, "Process started",
		"process_id", rec.ID, "process", name, "plugin", instance.Name())
	m.notifier.ProcessChanged(ctx, rec.Clone())

	return rec.Clone(), nil
}

// Update re-fetches remote state for one process and reconciles it into the
// record. Safe to call repeatedly and at any interval; a completed process is
// an unconditional no-op.
func (m *Manager) Update(ctx context.Context, id string) error {
	return m.advance(ctx, id, "process.update", Strategy.Update)
}

// Close terminates the remote resource early on behalf of the host, then
// reconciles the final state. If the remote call fails the process stays
// pending and Close may be retried.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.advance(ctx, id, "process.close", Strategy.Close)
}

func (m *Manager) advance(
	ctx context.Context,
	id string,
	spanName string,
	op func(Strategy, context.Context, *Process) error,
) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	// Terminal processes are never re-fetched, never notified, never failed.
	if rec.Status == StatusCompleted {
		return nil
	}

	instance, err := m.plugins.Plugin(ctx, rec.Plugin, rec.Tenant)
	if err != nil {
		return err
	}

	info, ok := m.strategies.ProcessStrategy(rec.Plugin, rec.Name)
	if !ok {
		return fmt.Errorf("process type %q is not registered for plugin %q", rec.Name, rec.Plugin)
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, spanName,
		attribute.String(otelhelper.ProcessIDKey, rec.ID),
		attribute.String(otelhelper.ProcessNameKey, rec.Name),
		attribute.String(otelhelper.PluginNameKey, rec.Plugin),
	)
	defer span.End()

	proc := m.buildProcess(rec, instance)

	if err := op(info.New(), ctx, proc); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if !proc.dirty {
		return nil
	}

	rec.UpdatedAt = time.Now().UTC()

	if err := m.repo.Save(ctx, rec); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to persist process %s: %w", rec.ID, err)
	}

	m.logger.InfoContext(ctx, "Process changed",
		"process_id", rec.ID, "status", rec.Status, "outcome", rec.Outcome)
	m.notifier.ProcessChanged(ctx, rec.Clone())

	return nil
}

// Get returns the current record of a process.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return rec.Clone(), nil
}

// List returns all process records.
func (m *Manager) List(ctx context.Context) ([]*Record, error) {
	return m.repo.List(ctx)
}

// ListPending returns the processes the supervisor must keep polling.
func (m *Manager) ListPending(ctx context.Context) ([]*Record, error) {
	return m.repo.ListPending(ctx)
}

// Delete destroys a process record and cascade-deletes its private datastore.
func (m *Manager) Delete(ctx context.Context, id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.repo.Get(ctx, id); err != nil {
		return err
	}

	if err := kv.Clear(ctx, kv.Namespaced(m.states, "process:"+id)); err != nil {
		return fmt.Errorf("failed to delete state of process %s: %w", id, err)
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}

	m.locks.Delete(id)

	return nil
}

func (m *Manager) buildProcess(rec *Record, instance *plugin.Instance) *Process {
	return newProcess(
		rec,
		instance,
		kv.Namespaced(m.states, "process:"+rec.ID),
		m.logger.With("process_id", rec.ID, "process", rec.Name),
	)
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(id, &sync.Mutex{})

	return lock.(*sync.Mutex)
}
