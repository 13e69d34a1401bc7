package plugin

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/agorahq/agora/pkg/events"
)

// WebhookSpec declares how a plugin type authenticates and classifies inbound
// webhook deliveries. Header names are platform-specific; the verification
// procedure is not.
type WebhookSpec struct {
	// SignatureHeader carries "sha256=<hex>" computed over the raw body.
	SignatureHeader string
	// OriginHeader must equal the configured server origin exactly.
	OriginHeader string
	// EventHeader tags the delivery with its event type.
	EventHeader string

	// SecretConfigKey names the config entry holding the shared secret.
	SecretConfigKey string
	// OriginConfigKey names the config entry holding the expected origin.
	OriginConfigKey string
	// SlugConfigKey names the config entry holding the slug the instance's
	// inbound webhook route is published under.
	SlugConfigKey string
}

// WebhookRequest is an inbound delivery from the external platform.
type WebhookRequest struct {
	Body    []byte
	Headers http.Header
}

// ReceiveWebhook authenticates and dispatches one webhook delivery.
//
// The raw body is never parsed before signature verification succeeds.
// Deliveries with an unrecognized event type are ignored without error.
// A malformed payload fails only that event; the delivery path stays open.
func (p *Instance) ReceiveWebhook(ctx context.Context, req *WebhookRequest) error {
	spec := p.desc.Webhook
	if spec == nil {
		return &AuthenticationError{Reason: "plugin has no webhook surface"}
	}

	if err := p.verifyDelivery(spec, req); err != nil {
		return err
	}

	eventName := req.Headers.Get(spec.EventHeader)
	if !p.recognizes(eventName) {
		p.logger.DebugContext(ctx, "Ignoring unrecognized webhook event", "event", eventName)

		return nil
	}

	p.logger.InfoContext(ctx, "Received webhook event", "event", eventName)

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		p.logger.WarnContext(ctx, "Webhook payload is not valid JSON", "event", eventName, "error", err)

		return nil
	}

	projection, err := p.handler.ProjectEvent(ctx, eventName, body)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to normalize webhook event", "event", eventName, "error", err)

		return nil
	}

	if projection == nil {
		return nil
	}

	event := events.PlatformEvent{
		BaseEvent: events.NewBaseEvent(events.PlatformEventReceived, p.name, p.tenant),
		EventName: eventName,
		Initiator: projection.Initiator,
		Data:      projection.Data,
	}

	if err := p.emitter.Emit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "Failed to emit platform event", "event", eventName, "error", err)
	}

	return nil
}

// verifyDelivery is fail-closed: a missing or mismatched signature, or an
// unexpected origin, rejects the delivery before the body is parsed.
func (p *Instance) verifyDelivery(spec *WebhookSpec, req *WebhookRequest) error {
	signature := req.Headers.Get(spec.SignatureHeader)
	if signature == "" {
		return &AuthenticationError{Reason: "missing signature header"}
	}

	secret := p.ConfigString(spec.SecretConfigKey)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(req.Body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return &AuthenticationError{Reason: "signature mismatch"}
	}

	origin := req.Headers.Get(spec.OriginHeader)
	if origin != p.ConfigString(spec.OriginConfigKey) {
		return &AuthenticationError{Reason: "unexpected origin " + origin}
	}

	return nil
}
