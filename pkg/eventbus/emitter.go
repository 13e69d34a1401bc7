package eventbus

import (
	"context"

	"github.com/agorahq/agora/pkg/events"
	"github.com/agorahq/agora/pkg/process"
)

// Emitter forwards recognized platform events from plugin instances onto the
// event bus. It satisfies plugin.EventEmitter.
type Emitter struct {
	bus EventPublisher
}

func NewEmitter(bus EventPublisher) *Emitter {
	return &Emitter{bus: bus}
}

func (e *Emitter) Emit(ctx context.Context, event events.PlatformEvent) error {
	return e.bus.Publish(ctx, event.Plugin+"/"+event.Tenant, event)
}

// ProcessNotifier publishes governance-process lifecycle events onto the bus.
// It satisfies process.Notifier; publish failures are swallowed because host
// notification never rolls back a persisted change.
type ProcessNotifier struct {
	bus EventPublisher
}

func NewProcessNotifier(bus EventPublisher) *ProcessNotifier {
	return &ProcessNotifier{bus: bus}
}

func (n *ProcessNotifier) ProcessChanged(ctx context.Context, rec *process.Record) {
	var event Event

	if rec.Status == process.StatusCompleted {
		event = events.ProcessCompleted{
			BaseEvent: events.NewBaseEvent(events.ProcessCompletedEvent, rec.Plugin, rec.Tenant),
			ProcessID: rec.ID,
			Name:      rec.Name,
			Outcome:   rec.Outcome,
		}
	} else {
		event = events.ProcessUpdated{
			BaseEvent: events.NewBaseEvent(events.ProcessUpdatedEvent, rec.Plugin, rec.Tenant),
			ProcessID: rec.ID,
			Name:      rec.Name,
			Status:    string(rec.Status),
			Outcome:   rec.Outcome,
		}
	}

	_ = n.bus.Publish(ctx, rec.ID, event)
}
