// Package process implements the governance-process state machine: long-lived
// units of work delegated to an external platform, tracked through a monotonic
// created/pending/completed lifecycle.
package process

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a governance process. The literal strings
// are wire-stable: persisted and reported verbatim.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Record is the host-visible state of one governance process.
type Record struct {
	ID          string         `json:"id"           validate:"required"`
	Plugin      string         `json:"plugin"       validate:"required"`
	Tenant      string         `json:"tenant"       validate:"required"`
	Name        string         `json:"name"         validate:"required"`
	Status      Status         `json:"status"       validate:"required,oneof=created pending completed"`
	CallbackURL string         `json:"callback_url,omitempty" validate:"omitempty,url"`
	Outcome     map[string]any `json:"outcome,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns an independent deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	clone.Outcome = cloneMap(r.Outcome)

	return &clone
}

// cloneMap deep-copies a JSON-shaped map by round-tripping through JSON.
// Values only ever enter records via JSON, so the round trip is lossless.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}

	clone := make(map[string]any, len(m))
	_ = json.Unmarshal(raw, &clone)

	return clone
}

func cloneValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}

	var clone any
	_ = json.Unmarshal(raw, &clone)

	return clone
}
