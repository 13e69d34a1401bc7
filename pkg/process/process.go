package process

import (
	"log/slog"
	"reflect"

	"github.com/agorahq/agora/pkg/kv"
	"github.com/agorahq/agora/pkg/plugin"
)

// Process is the handle a strategy operates on. It tracks whether anything
// actually changed, so reconciling an identical remote snapshot twice
// produces no second write and no second notification.
type Process struct {
	rec      *Record
	instance *plugin.Instance
	state    kv.Store
	logger   *slog.Logger
	dirty    bool
}

func newProcess(rec *Record, instance *plugin.Instance, state kv.Store, logger *slog.Logger) *Process {
	return &Process{
		rec:      rec,
		instance: instance,
		state:    state,
		logger:   logger,
	}
}

func (p *Process) ID() string {
	return p.rec.ID
}

func (p *Process) Name() string {
	return p.rec.Name
}

func (p *Process) Status() Status {
	return p.rec.Status
}

// Plugin is the instance this process belongs to.
func (p *Process) Plugin() *plugin.Instance {
	return p.instance
}

// State is the private datastore of this process. It is not visible to the
// host and is cascade-deleted with the process.
func (p *Process) State() kv.Store {
	return p.state
}

func (p *Process) Logger() *slog.Logger {
	return p.logger
}

// Outcome returns a deep copy of the accumulated outcome.
func (p *Process) Outcome() map[string]any {
	return cloneMap(p.rec.Outcome)
}

// OutcomeField returns a deep copy of one outcome field.
func (p *Process) OutcomeField(key string) (any, bool) {
	value, ok := p.rec.Outcome[key]
	if !ok {
		return nil, false
	}

	return cloneValue(value), true
}

// SetOutcome merges one field into the outcome. Fields not named here are
// never touched, and setting an unchanged value is a no-op: reconciliation
// stays idempotent.
func (p *Process) SetOutcome(key string, value any) {
	normalized := cloneValue(value)

	if current, ok := p.rec.Outcome[key]; ok && reflect.DeepEqual(current, normalized) {
		return
	}

	if p.rec.Outcome == nil {
		p.rec.Outcome = make(map[string]any)
	}

	p.rec.Outcome[key] = normalized
	p.dirty = true
}

// Complete transitions the process to its terminal status. Status is
// monotonic: calling Complete on an already-completed process changes
// nothing.
func (p *Process) Complete() {
	if p.rec.Status == StatusCompleted {
		return
	}

	p.rec.Status = StatusCompleted
	p.dirty = true
}
