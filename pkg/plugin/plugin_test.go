package plugin

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahq/agora/pkg/events"
	"github.com/agorahq/agora/pkg/kv"
	"github.com/agorahq/agora/pkg/schema"
)

type capturingEmitter struct {
	mu     sync.Mutex
	events []events.PlatformEvent
}

func (e *capturingEmitter) Emit(_ context.Context, event events.PlatformEvent) error {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()

	return nil
}

type testHandler struct {
	initErr      error
	initCalls    int
	projectErr   error
	projectCalls int
}

func (h *testHandler) Initialize(_ context.Context) error {
	h.initCalls++

	return h.initErr
}

func (h *testHandler) ProjectEvent(_ context.Context, eventName string, body map[string]any) (*Projection, error) {
	h.projectCalls++

	if h.projectErr != nil {
		return nil, h.projectErr
	}

	user, _ := body["username"].(string)

	return &Projection{
		Initiator: events.Initiator{UserID: user, Provider: "testplatform"},
		Data:      map[string]any{"echo": eventName},
	}, nil
}

func testDescriptor(handler *testHandler) *Descriptor {
	return &Descriptor{
		Name:        "testplatform",
		Description: "Test platform integration",
		ConfigSchema: schema.Strict(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"server_url":     map[string]any{"type": "string"},
				"webhook_secret": map[string]any{"type": "string"},
			},
			"required": []any{"server_url", "webhook_secret"},
		}),
		Events: []string{"post_created"},
		Webhook: &WebhookSpec{
			SignatureHeader: "X-Event-Signature",
			OriginHeader:    "X-Instance",
			EventHeader:     "X-Event",
			SecretConfigKey: "webhook_secret",
			OriginConfigKey: "server_url",
		},
		New: func(_ *Instance) (Handler, error) {
			return handler, nil
		},
	}
}

type singleDescriptorSource struct {
	desc *Descriptor
}

func (s *singleDescriptorSource) PluginDescriptor(name string) (*Descriptor, bool) {
	if name == s.desc.Name {
		return s.desc, true
	}

	return nil, false
}

func testConfig() map[string]any {
	return map[string]any{
		"server_url":     "https://forum.example.com",
		"webhook_secret": "s3cret",
	}
}

func newTestInstance(t *testing.T, handler *testHandler) (*Instance, *capturingEmitter) {
	t.Helper()

	emitter := &capturingEmitter{}
	manager := NewManager(&singleDescriptorSource{desc: testDescriptor(handler)}, kv.NewMemory(), emitter, slog.Default())

	instance, err := manager.Create(t.Context(), "testplatform", "tenant-a", testConfig())
	require.NoError(t, err)

	return instance, emitter
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(body []byte, event string) *WebhookRequest {
	headers := http.Header{}
	headers.Set("X-Event-Signature", sign("s3cret", body))
	headers.Set("X-Instance", "https://forum.example.com")
	headers.Set("X-Event", event)

	return &WebhookRequest{Body: body, Headers: headers}
}

func TestManagerCreate_RejectsNonConformantConfig(t *testing.T) {
	handler := &testHandler{}
	manager := NewManager(&singleDescriptorSource{desc: testDescriptor(handler)}, kv.NewMemory(), &capturingEmitter{}, slog.Default())

	_, err := manager.Create(t.Context(), "testplatform", "tenant-a", map[string]any{
		"server_url":     "https://forum.example.com",
		"webhook_secret": "s3cret",
		"unexpected":     true,
	})
	require.Error(t, err)
	assert.True(t, schema.IsValidationError(err))
	assert.Zero(t, handler.initCalls)
}

func TestManagerCreate_InitializeFailureAbortsCreation(t *testing.T) {
	handler := &testHandler{initErr: errors.New("remote unavailable")}
	manager := NewManager(&singleDescriptorSource{desc: testDescriptor(handler)}, kv.NewMemory(), &capturingEmitter{}, slog.Default())

	_, err := manager.Create(t.Context(), "testplatform", "tenant-a", testConfig())
	require.Error(t, err)

	_, err = manager.Plugin(t.Context(), "testplatform", "tenant-a")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestManagerCreate_DuplicateIdentityRejected(t *testing.T) {
	handler := &testHandler{}
	manager := NewManager(&singleDescriptorSource{desc: testDescriptor(handler)}, kv.NewMemory(), &capturingEmitter{}, slog.Default())

	_, err := manager.Create(t.Context(), "testplatform", "tenant-a", testConfig())
	require.NoError(t, err)

	_, err = manager.Create(t.Context(), "testplatform", "tenant-a", testConfig())
	assert.ErrorIs(t, err, ErrInstanceExists)
}

func TestManagerReconfigure_ReplacesInstance(t *testing.T) {
	handler := &testHandler{}
	manager := NewManager(&singleDescriptorSource{desc: testDescriptor(handler)}, kv.NewMemory(), &capturingEmitter{}, slog.Default())

	_, err := manager.Create(t.Context(), "testplatform", "tenant-a", testConfig())
	require.NoError(t, err)

	config := testConfig()
	config["webhook_secret"] = "rotated"

	instance, err := manager.Reconfigure(t.Context(), "testplatform", "tenant-a", config)
	require.NoError(t, err)
	assert.Equal(t, "rotated", instance.ConfigString("webhook_secret"))
	assert.Equal(t, 2, handler.initCalls)
}

func TestReceiveWebhook_ValidSignatureEmitsEvent(t *testing.T) {
	instance, emitter := newTestInstance(t, &testHandler{})

	body := []byte(`{"username": "alice"}`)
	err := instance.ReceiveWebhook(t.Context(), signedRequest(body, "post_created"))
	require.NoError(t, err)

	require.Len(t, emitter.events, 1)
	event := emitter.events[0]
	assert.Equal(t, "post_created", event.EventName)
	assert.Equal(t, events.Initiator{UserID: "alice", Provider: "testplatform"}, event.Initiator)
	assert.Equal(t, "tenant-a", event.Tenant)
}

func TestReceiveWebhook_MissingSignatureFailsClosed(t *testing.T) {
	instance, emitter := newTestInstance(t, &testHandler{})

	req := signedRequest([]byte(`{"username": "alice"}`), "post_created")
	req.Headers.Del("X-Event-Signature")

	err := instance.ReceiveWebhook(t.Context(), req)
	require.Error(t, err)
	assert.True(t, IsAuthenticationError(err))
	assert.Empty(t, emitter.events)
}

func TestReceiveWebhook_ForgedSignatureRejected(t *testing.T) {
	handler := &testHandler{}
	instance, emitter := newTestInstance(t, handler)

	body := []byte(`{"username": "mallory"}`)
	req := signedRequest(body, "post_created")
	req.Headers.Set("X-Event-Signature", sign("wrong-secret", body))

	err := instance.ReceiveWebhook(t.Context(), req)
	require.Error(t, err)
	assert.True(t, IsAuthenticationError(err))
	assert.Empty(t, emitter.events)
	// The body is never parsed, so no projection happens either.
	assert.Zero(t, handler.projectCalls)
}

func TestReceiveWebhook_CorrectSignatureWrongOriginRejected(t *testing.T) {
	instance, emitter := newTestInstance(t, &testHandler{})

	req := signedRequest([]byte(`{"username": "alice"}`), "post_created")
	req.Headers.Set("X-Instance", "https://evil.example.com")

	err := instance.ReceiveWebhook(t.Context(), req)
	require.Error(t, err)
	assert.True(t, IsAuthenticationError(err))
	assert.Empty(t, emitter.events)
}

func TestReceiveWebhook_UnrecognizedEventSilentlyIgnored(t *testing.T) {
	handler := &testHandler{}
	instance, emitter := newTestInstance(t, handler)

	err := instance.ReceiveWebhook(t.Context(), signedRequest([]byte(`{}`), "like_toggled"))
	require.NoError(t, err)
	assert.Empty(t, emitter.events)
	assert.Zero(t, handler.projectCalls)
}

func TestReceiveWebhook_NormalizationFailureFailsOnlyThatEvent(t *testing.T) {
	handler := &testHandler{projectErr: errors.New("missing expected field")}
	instance, emitter := newTestInstance(t, handler)

	err := instance.ReceiveWebhook(t.Context(), signedRequest([]byte(`{"username": "alice"}`), "post_created"))
	require.NoError(t, err)
	assert.Empty(t, emitter.events)

	// The delivery path stays open for subsequent events.
	handler.projectErr = nil
	err = instance.ReceiveWebhook(t.Context(), signedRequest([]byte(`{"username": "bob"}`), "post_created"))
	require.NoError(t, err)
	assert.Len(t, emitter.events, 1)
}

func TestReceiveWebhook_MalformedPayloadDoesNotError(t *testing.T) {
	handler := &testHandler{}
	instance, emitter := newTestInstance(t, handler)

	err := instance.ReceiveWebhook(t.Context(), signedRequest([]byte(`{not json`), "post_created"))
	require.NoError(t, err)
	assert.Empty(t, emitter.events)
	assert.Zero(t, handler.projectCalls)
}
