// Package notify delivers out-of-band host notifications when a governance
// process record changes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/agorahq/agora/pkg/process"
)

const callbackTimeout = 10 * time.Second

// Callback POSTs {process_id, status, outcome} to the process's callback_url.
// Delivery is fire-and-forget: a failed POST is logged and never rolls back
// the already-persisted state change.
type Callback struct {
	client *http.Client
	logger *slog.Logger
}

func NewCallback(logger *slog.Logger) *Callback {
	return &Callback{
		client: &http.Client{Timeout: callbackTimeout},
		logger: logger.With("module", "callback_notifier"),
	}
}

type callbackPayload struct {
	ProcessID string         `json:"process_id"`
	Status    string         `json:"status"`
	Outcome   map[string]any `json:"outcome,omitempty"`
}

func (c *Callback) ProcessChanged(_ context.Context, rec *process.Record) {
	if rec.CallbackURL == "" {
		return
	}

	payload, err := json.Marshal(callbackPayload{
		ProcessID: rec.ID,
		Status:    string(rec.Status),
		Outcome:   rec.Outcome,
	})
	if err != nil {
		c.logger.Error("Failed to encode callback payload", "process_id", rec.ID, "error", err)

		return
	}

	url := rec.CallbackURL
	id := rec.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			c.logger.Error("Failed to build callback request", "process_id", id, "error", err)

			return
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Warn("Callback delivery failed", "process_id", id, "url", url, "error", err)

			return
		}

		_ = resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			c.logger.Warn("Callback rejected by host",
				"process_id", id, "url", url, "status", resp.StatusCode)
		}
	}()
}

// Multi fans one notification out to several notifiers, typically the HTTP
// callback plus the event bus.
type Multi struct {
	notifiers []process.Notifier
}

func NewMulti(notifiers ...process.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) ProcessChanged(ctx context.Context, rec *process.Record) {
	for _, n := range m.notifiers {
		n.ProcessChanged(ctx, rec)
	}
}
