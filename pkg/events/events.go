// Package events defines the structured events Agora emits to the host
// application: normalized platform webhooks and governance-process lifecycle
// changes.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the event bus topic all host-facing events are published on.
const Topic = "agora.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// PlatformEventReceived carries a recognized, normalized webhook event
	// from an external platform.
	PlatformEventReceived EventType = "platform.event"

	// Governance process lifecycle.
	ProcessUpdatedEvent   EventType = "process.updated"
	ProcessCompletedEvent EventType = "process.completed"
)

// Initiator identifies the remote user who caused a platform event.
type Initiator struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Plugin    string    `json:"plugin"`
	Tenant    string    `json:"tenant"`
}

func NewBaseEvent(eventType EventType, pluginName, tenant string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Plugin:    pluginName,
		Tenant:    tenant,
	}
}

// PlatformEvent is the normalized (event_type, initiator, data) triple
// projected from an inbound webhook delivery.
type PlatformEvent struct {
	BaseEvent

	EventName string         `json:"event_name"`
	Initiator Initiator      `json:"initiator"`
	Data      map[string]any `json:"data"`
}

func (e PlatformEvent) GetType() EventType {
	return PlatformEventReceived
}

// ProcessUpdated reports a persisted outcome or status change of a governance
// process.
type ProcessUpdated struct {
	BaseEvent

	ProcessID string         `json:"process_id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Outcome   map[string]any `json:"outcome,omitempty"`
}

func (e ProcessUpdated) GetType() EventType {
	return ProcessUpdatedEvent
}

// ProcessCompleted reports a governance process reaching its terminal status.
type ProcessCompleted struct {
	BaseEvent

	ProcessID string         `json:"process_id"`
	Name      string         `json:"name"`
	Outcome   map[string]any `json:"outcome,omitempty"`
}

func (e ProcessCompleted) GetType() EventType {
	return ProcessCompletedEvent
}
