// Package registry maps plugin types to their declared actions and governance
// process types. Registration is explicit and happens once at startup; the
// registry itself is bookkeeping plus validation, free of side effects.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agorahq/agora/pkg/otelhelper"
	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/schema"
)

// ActionHandler performs one remote operation on behalf of a plugin instance.
type ActionHandler func(ctx context.Context, p *plugin.Instance, input map[string]any) (map[string]any, error)

// Action is a schema-validated remote operation exposed by a plugin type.
type Action struct {
	Slug        string
	Description string
	InputSchema map[string]any
	// OutputSchema is nil for side-effect-only actions.
	OutputSchema map[string]any
	Handler      ActionHandler
}

type Registry struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	plugins    map[string]*plugin.Descriptor
	actions    map[string]map[string]*Action
	strategies map[string]map[string]*process.StrategyInfo
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger.With("module", "registry"),
		tracer:     otel.Tracer("agora/registry"),
		plugins:    make(map[string]*plugin.Descriptor),
		actions:    make(map[string]map[string]*Action),
		strategies: make(map[string]map[string]*process.StrategyInfo),
	}
}

func (r *Registry) RegisterPlugin(desc *plugin.Descriptor) {
	r.plugins[desc.Name] = desc
}

func (r *Registry) RegisterAction(pluginType string, action *Action) {
	if r.actions[pluginType] == nil {
		r.actions[pluginType] = make(map[string]*Action)
	}

	r.actions[pluginType][action.Slug] = action
}

func (r *Registry) RegisterProcess(pluginType string, info *process.StrategyInfo) {
	if r.strategies[pluginType] == nil {
		r.strategies[pluginType] = make(map[string]*process.StrategyInfo)
	}

	r.strategies[pluginType][info.Name] = info
}

// PluginDescriptor satisfies plugin.DescriptorSource.
func (r *Registry) PluginDescriptor(name string) (*plugin.Descriptor, bool) {
	desc, ok := r.plugins[name]

	return desc, ok
}

// ProcessStrategy satisfies process.StrategyResolver.
func (r *Registry) ProcessStrategy(pluginType, name string) (*process.StrategyInfo, bool) {
	info, ok := r.strategies[pluginType][name]

	return info, ok
}

// Plugins returns all registered plugin descriptors, ordered by name.
func (r *Registry) Plugins() []*plugin.Descriptor {
	descs := make([]*plugin.Descriptor, 0, len(r.plugins))
	for _, desc := range r.plugins {
		descs = append(descs, desc)
	}

	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

	return descs
}

// Actions returns the declared actions of a plugin type, ordered by slug.
func (r *Registry) Actions(pluginType string) []*Action {
	actions := make([]*Action, 0, len(r.actions[pluginType]))
	for _, action := range r.actions[pluginType] {
		actions = append(actions, action)
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].Slug < actions[j].Slug })

	return actions
}

// Processes returns the declared process types of a plugin type, ordered by
// name.
func (r *Registry) Processes(pluginType string) []*process.StrategyInfo {
	infos := make([]*process.StrategyInfo, 0, len(r.strategies[pluginType]))
	for _, info := range r.strategies[pluginType] {
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// Invoke validates input against the action's declared schema, runs the
// handler, and validates its output.
//
// Non-conformant input never reaches the handler. Handler failures surface as
// ExecutionError; transport-specific error types never cross this boundary.
// A handler producing output that violates its own schema is a programming
// defect, reported as InternalError rather than a caller fault.
func (r *Registry) Invoke(
	ctx context.Context,
	p *plugin.Instance,
	slug string,
	input map[string]any,
) (map[string]any, error) {
	action, ok := r.actions[p.Name()][slug]
	if !ok {
		return nil, fmt.Errorf("action %q is not registered for plugin %q", slug, p.Name())
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "action.invoke",
		attribute.String(otelhelper.PluginNameKey, p.Name()),
		attribute.String(otelhelper.TenantKey, p.Tenant()),
		attribute.String(otelhelper.ActionSlugKey, slug),
	)
	defer span.End()

	if err := schema.Validate(input, action.InputSchema); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	output, err := action.Handler(ctx, p, input)
	if err != nil {
		otelhelper.SetError(span, err)

		if plugin.IsExecutionError(err) {
			return nil, err
		}

		return nil, &plugin.ExecutionError{Message: err.Error()}
	}

	if action.OutputSchema != nil {
		if err := schema.Validate(output, action.OutputSchema); err != nil {
			otelhelper.SetError(span, err)
			r.logger.ErrorContext(ctx, "Action produced non-conformant output",
				"plugin", p.Name(), "action", slug, "error", err)

			return nil, &plugin.InternalError{
				Message: fmt.Sprintf("action %q produced output violating its declared schema", slug),
				Err:     err,
			}
		}
	}

	return output, nil
}
