// Package web provides the HTTP surface: plugin administration, action
// invocation, governance process lifecycle, and the inbound webhook route.
package web

import (
	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/registry"
)

// CreatePluginRequest represents the request body for enabling a plugin
// instance on a tenant.
type CreatePluginRequest struct {
	Plugin string         `json:"plugin" validate:"required"`
	Tenant string         `json:"tenant" validate:"required"`
	Config map[string]any `json:"config"`
}

// InvokeActionRequest represents the request body for performing one plugin
// action.
type InvokeActionRequest struct {
	Plugin     string         `json:"plugin" validate:"required"`
	Tenant     string         `json:"tenant" validate:"required"`
	Action     string         `json:"action" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

// StartProcessRequest represents the request body for starting a governance
// process.
type StartProcessRequest struct {
	Plugin      string         `json:"plugin"       validate:"required"`
	Tenant      string         `json:"tenant"       validate:"required"`
	Process     string         `json:"process"      validate:"required"`
	Parameters  map[string]any `json:"parameters"`
	CallbackURL string         `json:"callback_url" validate:"omitempty,url"`
}

// PluginResponse is the serialized form of one configured instance.
type PluginResponse struct {
	Plugin string `json:"plugin"`
	Tenant string `json:"tenant"`
}

// ActionMetadata describes one registered action for driver discovery.
type ActionMetadata struct {
	Slug         string         `json:"slug"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// ProcessMetadata describes one registered governance process type.
type ProcessMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// PluginTypeMetadata is the full declared surface of one plugin type.
type PluginTypeMetadata struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	ConfigSchema map[string]any    `json:"config_schema,omitempty"`
	Events       []string          `json:"events,omitempty"`
	Actions      []ActionMetadata  `json:"actions"`
	Processes    []ProcessMetadata `json:"processes"`
}

func transformInstance(p *plugin.Instance) PluginResponse {
	return PluginResponse{Plugin: p.Name(), Tenant: p.Tenant()}
}

func transformPluginType(reg *registry.Registry, desc *plugin.Descriptor) PluginTypeMetadata {
	meta := PluginTypeMetadata{
		Name:         desc.Name,
		Description:  desc.Description,
		ConfigSchema: desc.ConfigSchema,
		Events:       desc.Events,
		Actions:      []ActionMetadata{},
		Processes:    []ProcessMetadata{},
	}

	for _, action := range reg.Actions(desc.Name) {
		meta.Actions = append(meta.Actions, ActionMetadata{
			Slug:         action.Slug,
			Description:  action.Description,
			InputSchema:  action.InputSchema,
			OutputSchema: action.OutputSchema,
		})
	}

	for _, info := range reg.Processes(desc.Name) {
		meta.Processes = append(meta.Processes, ProcessMetadata{
			Name:        info.Name,
			Description: info.Description,
			InputSchema: info.InputSchema,
		})
	}

	return meta
}

func transformRecords(recs []*process.Record) []*process.Record {
	if recs == nil {
		return []*process.Record{}
	}

	return recs
}
