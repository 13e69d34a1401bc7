package process

import (
	"context"
	"errors"

	"github.com/agorahq/agora/pkg/plugin"
)

// ErrNotFound is returned when no process record exists for an id.
var ErrNotFound = errors.New("process not found")

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Strategy implements the platform-specific mechanics of one process type.
// Strategies mutate outcome and private state only through the Process
// handle; the manager owns persistence and host notification.
type Strategy interface {
	// Start creates the remote resource. On error the framework discards all
	// private state: nothing is persisted for a failed start.
	Start(ctx context.Context, proc *Process, params map[string]any) error

	// Update re-fetches current remote state and reconciles it into the
	// outcome. It is called repeatedly, on no particular schedule, and must
	// be idempotent against an unchanged remote snapshot.
	Update(ctx context.Context, proc *Process) error

	// Close terminates the remote resource early, then reconciles the final
	// state. On error the process stays pending and may be closed again.
	Close(ctx context.Context, proc *Process) error
}

// StrategyInfo is the registered metadata of one process type.
type StrategyInfo struct {
	Name        string
	Description string
	InputSchema map[string]any
	New         func() Strategy
}

// StrategyResolver resolves a (plugin type, process name) pair to its
// registered strategy. Implemented by the registry.
type StrategyResolver interface {
	ProcessStrategy(pluginType, name string) (*StrategyInfo, bool)
}

// PluginResolver resolves the plugin instance a process belongs to.
// Implemented by the plugin manager.
type PluginResolver interface {
	Plugin(ctx context.Context, name, tenant string) (*plugin.Instance, error)
}

// Repository persists process records.
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	ListPending(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, id string) error
}

// Notifier is told about every persisted outcome or status change.
// Notification is best-effort and never rolls back the persisted change.
type Notifier interface {
	ProcessChanged(ctx context.Context, rec *Record)
}
