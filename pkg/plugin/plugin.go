// Package plugin defines configured integration instances: their declared
// metadata, scoped state, and the inbound webhook surface.
package plugin

import (
	"context"
	"log/slog"

	"github.com/agorahq/agora/pkg/events"
	"github.com/agorahq/agora/pkg/kv"
)

// Descriptor declares a plugin type: its config schema, the webhook surface
// it exposes, and the finite set of event types it recognizes. Descriptors
// are registered once at startup and never change.
type Descriptor struct {
	// Name identifies the plugin type, e.g. "discourse".
	Name        string
	Description string

	// ConfigSchema is validated against every instance config before the
	// instance may be used. Unknown properties are rejected.
	ConfigSchema map[string]any

	// Events is the finite set of webhook event types this plugin
	// understands. Deliveries tagged with any other type are ignored.
	Events []string

	// Webhook describes how inbound deliveries are authenticated and
	// classified. Nil means the plugin has no webhook surface.
	Webhook *WebhookSpec

	// New constructs the platform-specific handler for an instance.
	New func(p *Instance) (Handler, error)
}

// Handler is implemented by each platform integration.
type Handler interface {
	// Initialize is called exactly once at instance creation. It may perform
	// a remote read to populate cached state. Failure aborts the creation.
	Initialize(ctx context.Context) error

	// ProjectEvent normalizes the platform-specific payload of a recognized
	// webhook event. Returning (nil, nil) drops the event.
	ProjectEvent(ctx context.Context, eventName string, body map[string]any) (*Projection, error)
}

// Projection is the normalized form of one webhook event.
type Projection struct {
	Initiator events.Initiator
	Data      map[string]any
}

// EventEmitter forwards recognized platform events to the host application.
type EventEmitter interface {
	Emit(ctx context.Context, event events.PlatformEvent) error
}

// Instance is one configured integration with a specific external
// platform/tenant. Its config is immutable after creation; plugin-level
// cached facts live in the scoped state store.
type Instance struct {
	name    string
	tenant  string
	config  map[string]any
	state   kv.Store
	desc    *Descriptor
	handler Handler
	emitter EventEmitter
	logger  *slog.Logger
}

func (p *Instance) Name() string {
	return p.name
}

func (p *Instance) Tenant() string {
	return p.tenant
}

// State is the datastore scoped to this instance.
func (p *Instance) State() kv.Store {
	return p.state
}

func (p *Instance) Logger() *slog.Logger {
	return p.logger
}

// Config returns a copy of the instance configuration.
func (p *Instance) Config() map[string]any {
	config := make(map[string]any, len(p.config))
	for k, v := range p.config {
		config[k] = v
	}

	return config
}

// ConfigString returns the named config value, or "" when absent or not a
// string.
func (p *Instance) ConfigString(key string) string {
	value, _ := p.config[key].(string)

	return value
}

func (p *Instance) Descriptor() *Descriptor {
	return p.desc
}

func (p *Instance) recognizes(eventName string) bool {
	for _, e := range p.desc.Events {
		if e == eventName {
			return true
		}
	}

	return false
}
