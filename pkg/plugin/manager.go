package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/agorahq/agora/pkg/kv"
	"github.com/agorahq/agora/pkg/schema"
)

// DescriptorSource resolves a plugin type name to its declared descriptor.
// Implemented by the registry.
type DescriptorSource interface {
	PluginDescriptor(name string) (*Descriptor, bool)
}

// Manager owns the configured plugin instances of one host application.
type Manager struct {
	mu          sync.RWMutex
	descriptors DescriptorSource
	store       kv.Store
	emitter     EventEmitter
	logger      *slog.Logger
	instances   map[string]*Instance
}

func NewManager(descriptors DescriptorSource, store kv.Store, emitter EventEmitter, logger *slog.Logger) *Manager {
	return &Manager{
		descriptors: descriptors,
		store:       store,
		emitter:     emitter,
		logger:      logger.With("module", "plugin_manager"),
		instances:   make(map[string]*Instance),
	}
}

// Create builds, validates, and initializes a new plugin instance. When
// initialization fails no instance is kept: there is no partially-initialized
// state to observe.
func (m *Manager) Create(ctx context.Context, name, tenant string, config map[string]any) (*Instance, error) {
	m.mu.RLock()
	_, exists := m.instances[instanceKey(name, tenant)]
	m.mu.RUnlock()

	if exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrInstanceExists, name, tenant)
	}

	return m.build(ctx, name, tenant, config)
}

// Reconfigure replaces the config of an existing instance. The new config is
// validated and the instance re-initialized; on failure the previous instance
// stays in place.
func (m *Manager) Reconfigure(ctx context.Context, name, tenant string, config map[string]any) (*Instance, error) {
	m.mu.RLock()
	_, exists := m.instances[instanceKey(name, tenant)]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrInstanceNotFound, name, tenant)
	}

	return m.build(ctx, name, tenant, config)
}

func (m *Manager) build(ctx context.Context, name, tenant string, config map[string]any) (*Instance, error) {
	desc, ok := m.descriptors.PluginDescriptor(name)
	if !ok {
		return nil, fmt.Errorf("plugin type %q is not registered", name)
	}

	if err := schema.Validate(config, desc.ConfigSchema); err != nil {
		return nil, err
	}

	instance := &Instance{
		name:    name,
		tenant:  tenant,
		config:  config,
		state:   kv.Namespaced(m.store, "plugin:"+name+":"+tenant),
		desc:    desc,
		emitter: m.emitter,
		logger:  m.logger.With("plugin", name, "tenant", tenant),
	}

	handler, err := desc.New(instance)
	if err != nil {
		return nil, fmt.Errorf("failed to construct plugin %q: %w", name, err)
	}

	instance.handler = handler

	if err := handler.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize plugin %q: %w", name, err)
	}

	m.mu.Lock()
	m.instances[instanceKey(name, tenant)] = instance
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Plugin instance ready", "plugin", name, "tenant", tenant)

	return instance, nil
}

// Plugin returns the instance for a (name, tenant) pair. It satisfies the
// resolver the process manager depends on.
func (m *Manager) Plugin(_ context.Context, name, tenant string) (*Instance, error) {
	m.mu.RLock()
	instance, ok := m.instances[instanceKey(name, tenant)]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrInstanceNotFound, name, tenant)
	}

	return instance, nil
}

// Remove destroys an instance and cascade-deletes its datastore.
func (m *Manager) Remove(ctx context.Context, name, tenant string) error {
	m.mu.Lock()
	instance, ok := m.instances[instanceKey(name, tenant)]
	delete(m.instances, instanceKey(name, tenant))
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrInstanceNotFound, name, tenant)
	}

	return kv.Clear(ctx, instance.state)
}

// List returns all instances ordered by name, then tenant.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	instances := make([]*Instance, 0, len(m.instances))

	for _, instance := range m.instances {
		instances = append(instances, instance)
	}
	m.mu.RUnlock()

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].name != instances[j].name {
			return instances[i].name < instances[j].name
		}

		return instances[i].tenant < instances[j].tenant
	})

	return instances
}

func instanceKey(name, tenant string) string {
	return name + "/" + tenant
}
