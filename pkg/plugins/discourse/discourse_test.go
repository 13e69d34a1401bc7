package discourse_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahq/agora/pkg/events"
	"github.com/agorahq/agora/pkg/kv"
	"github.com/agorahq/agora/pkg/persistence/memory"
	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/plugins/discourse"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/registry"
)

const webhookSecret = "s3cret"

// fakeForum simulates the slice of the Discourse API the plugin talks to.
type fakeForum struct {
	mu sync.Mutex

	pollStatus   string
	pollVotes    map[string]float64
	createErrors []any

	lastPath     string
	lastMethod   string
	lastUsername string
	lastJSON     map[string]any
	lastForm     url.Values
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		pollStatus: "open",
		pollVotes:  map[string]float64{},
	}
}

func (f *fakeForum) poll() map[string]any {
	options := make([]any, 0, len(f.pollVotes))
	for _, label := range []string{"apple", "banana"} {
		if votes, ok := f.pollVotes[label]; ok {
			options = append(options, map[string]any{"html": label, "votes": votes})
		}
	}

	return map[string]any{"status": f.pollStatus, "options": options}
}

func (f *fakeForum) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastPath = r.URL.Path
	f.lastMethod = r.Method
	f.lastUsername = r.Header.Get("Api-Username")
	f.lastJSON = nil
	f.lastForm = nil

	body, _ := io.ReadAll(r.Body)

	switch r.Header.Get("Content-Type") {
	case "application/json":
		_ = json.Unmarshal(body, &f.lastJSON)
	case "application/x-www-form-urlencoded":
		f.lastForm, _ = url.ParseQuery(string(body))
	}

	switch {
	case r.URL.Path == "/about.json":
		writeJSON(w, map[string]any{"about": map[string]any{"title": "Test Community"}})

	case r.URL.Path == "/posts.json" && r.Method == http.MethodPost:
		if len(f.createErrors) > 0 {
			writeJSON(w, map[string]any{"errors": f.createErrors})

			return
		}

		writeJSON(w, map[string]any{
			"id": 78, "topic_id": 42, "topic_slug": "poll-topic", "post_number": 1,
		})

	case r.URL.Path == "/t/42.json":
		writeJSON(w, map[string]any{
			"post_stream": map[string]any{
				"posts": []any{map[string]any{"polls": []any{f.poll()}}},
			},
		})

	case r.URL.Path == "/polls/toggle_status":
		f.pollStatus = "closed"
		writeJSON(w, map[string]any{"poll": f.poll()})

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type capturingEmitter struct {
	emitted []events.PlatformEvent
}

func (e *capturingEmitter) Emit(_ context.Context, event events.PlatformEvent) error {
	e.emitted = append(e.emitted, event)

	return nil
}

type countingNotifier struct {
	changes int
}

func (n *countingNotifier) ProcessChanged(_ context.Context, _ *process.Record) {
	n.changes++
}

type harness struct {
	forum     *fakeForum
	serverURL string
	registry  *registry.Registry
	emitter   *capturingEmitter
	notifier  *countingNotifier
	instance  *plugin.Instance
	processes *process.Manager
}

func setup(t *testing.T) *harness {
	t.Helper()

	forum := newFakeForum()
	server := httptest.NewServer(forum)
	t.Cleanup(server.Close)

	reg := registry.New(slog.Default())
	discourse.Register(reg)

	emitter := &capturingEmitter{}
	plugins := plugin.NewManager(reg, kv.NewMemory(), emitter, slog.Default())

	instance, err := plugins.Create(t.Context(), discourse.PluginName, server.URL, map[string]any{
		"api_key":        "test-key",
		"server_url":     server.URL,
		"webhook_secret": webhookSecret,
		"webhook_slug":   "hook",
	})
	require.NoError(t, err)

	notifier := &countingNotifier{}
	processes := process.NewManager(memory.NewRepository(), reg, plugins, kv.NewMemory(), notifier, slog.Default())

	return &harness{
		forum:     forum,
		serverURL: server.URL,
		registry:  reg,
		emitter:   emitter,
		notifier:  notifier,
		instance:  instance,
		processes: processes,
	}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (h *harness) deliver(t *testing.T, event string, payload map[string]any) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("X-Discourse-Event-Signature", sign(body))
	headers.Set("X-Discourse-Instance", h.serverURL)
	headers.Set("X-Discourse-Event", event)

	require.NoError(t, h.instance.ReceiveWebhook(t.Context(), &plugin.WebhookRequest{
		Body:    body,
		Headers: headers,
	}))
}

func TestInitializeCachesCommunityName(t *testing.T) {
	h := setup(t)

	name, ok, err := h.instance.State().Get(t.Context(), "community_name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Test Community", name)
}

func TestCreatePostAction(t *testing.T) {
	h := setup(t)

	output, err := h.registry.Invoke(t.Context(), h.instance, "create-post", map[string]any{
		"raw":       "hello world",
		"topic_id":  42,
		"initiator": "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, h.serverURL+"/t/poll-topic/42/1", output["url"])
	assert.Equal(t, float64(42), output["topic_id"])
	assert.Equal(t, float64(78), output["post_id"])

	assert.Equal(t, "/posts.json", h.forum.lastPath)
	assert.Equal(t, "alice", h.forum.lastUsername)
	assert.Equal(t, "hello world", h.forum.lastJSON["raw"])
	assert.NotContains(t, h.forum.lastJSON, "initiator")
}

func TestCreateMessageAction(t *testing.T) {
	h := setup(t)

	_, err := h.registry.Invoke(t.Context(), h.instance, "create-message", map[string]any{
		"raw":              "psst",
		"title":            "Secret plans",
		"target_usernames": []any{"alice", "bob"},
	})
	require.NoError(t, err)

	assert.Equal(t, "system", h.forum.lastUsername)
	assert.Equal(t, "alice,bob", h.forum.lastJSON["target_recipients"])
	assert.Equal(t, "private_message", h.forum.lastJSON["archetype"])
	assert.NotContains(t, h.forum.lastJSON, "target_usernames")
}

func TestDeleteAndRecoverActions(t *testing.T) {
	tests := []struct {
		action string
		method string
		path   string
	}{
		{"delete-post", http.MethodDelete, "/posts/7"},
		{"delete-topic", http.MethodDelete, "/t/7.json"},
		{"recover-post", http.MethodPut, "/posts/7/recover"},
		{"recover-topic", http.MethodPut, "/t/7/recover"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			h := setup(t)

			output, err := h.registry.Invoke(t.Context(), h.instance, tt.action, map[string]any{"id": 7})
			require.NoError(t, err)
			assert.Nil(t, output)

			assert.Equal(t, tt.method, h.forum.lastMethod)
			assert.Equal(t, tt.path, h.forum.lastPath)
		})
	}
}

func TestLockPostAction(t *testing.T) {
	h := setup(t)

	_, err := h.registry.Invoke(t.Context(), h.instance, "lock-post", map[string]any{
		"id":     7,
		"locked": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "/posts/7/locked", h.forum.lastPath)
	assert.Equal(t, "true", h.forum.lastForm.Get("locked"))
}

func TestWebhookPostCreated(t *testing.T) {
	h := setup(t)

	h.deliver(t, "post_created", map[string]any{
		"post": map[string]any{
			"raw":         "new reply",
			"id":          9,
			"topic_id":    42,
			"topic_slug":  "poll-topic",
			"post_number": 3,
			"username":    "carol",
		},
	})

	require.Len(t, h.emitter.emitted, 1)

	event := h.emitter.emitted[0]
	assert.Equal(t, "post_created", event.EventName)
	assert.Equal(t, "carol", event.Initiator.UserID)
	assert.Equal(t, "discourse", event.Initiator.Provider)
	assert.Equal(t, "new reply", event.Data["raw"])
	assert.Equal(t, h.serverURL+"/t/poll-topic/42/3", event.Data["url"])
}

func TestWebhookTopicCreated(t *testing.T) {
	h := setup(t)

	h.deliver(t, "topic_created", map[string]any{
		"topic": map[string]any{
			"title":       "A new idea",
			"id":          42,
			"slug":        "a-new-idea",
			"tags":        []any{"governance"},
			"category_id": 3,
			"created_by":  map[string]any{"username": "dave"},
		},
	})

	require.Len(t, h.emitter.emitted, 1)

	event := h.emitter.emitted[0]
	assert.Equal(t, "topic_created", event.EventName)
	assert.Equal(t, "dave", event.Initiator.UserID)
	assert.Equal(t, "A new idea", event.Data["title"])
	assert.Equal(t, float64(3), event.Data["category"])
	assert.Equal(t, h.serverURL+"/t/a-new-idea/42", event.Data["url"])
}

func TestWebhookIgnoresUnknownEvent(t *testing.T) {
	h := setup(t)

	h.deliver(t, "user_logged_in", map[string]any{"user": map[string]any{}})

	assert.Empty(t, h.emitter.emitted)
}
