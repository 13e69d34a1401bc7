package remote

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/agorahq/agora/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_ParsesJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("Api-Key"))
		assert.Equal(t, "/about.json", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"about": {"title": "Metagov Forum"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, map[string]string{"Api-Key": "key-123"}, slog.Default())

	resp, err := client.Do(t.Context(), Request{Method: http.MethodGet, Path: "about.json"})
	require.NoError(t, err)

	about, ok := resp["about"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Metagov Forum", about["title"])
}

func TestDo_EmptySuccessBodyIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, slog.Default())

	resp, err := client.Do(t.Context(), Request{Method: http.MethodDelete, Path: "posts/9"})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestDo_NonSuccessStatusCarriesBodyAndStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":["invalid api key"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, slog.Default())

	_, err := client.Do(t.Context(), Request{Method: http.MethodPost, Path: "posts.json"})
	require.Error(t, err)
	require.True(t, plugin.IsExecutionError(err))

	var execErr *plugin.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, http.StatusForbidden, execErr.Status)
	assert.Contains(t, execErr.Message, "invalid api key")
}

func TestDo_FormEncodedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "status=closed")

		_, _ = w.Write([]byte(`{"poll": {"status": "closed"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, slog.Default())

	resp, err := client.Do(t.Context(), Request{
		Method: http.MethodPut,
		Path:   "polls/toggle_status",
		Form:   url.Values{"status": {"closed"}},
	})
	require.NoError(t, err)
	assert.NotNil(t, resp["poll"])
}

func TestDo_TransportFailureIsExecutionError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", nil, slog.Default())

	_, err := client.Do(t.Context(), Request{Method: http.MethodGet, Path: "about.json"})
	require.Error(t, err)
	assert.True(t, plugin.IsExecutionError(err))
}

func TestDo_PerRequestHeadersOverrideClientHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.Header.Get("Api-Username"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, map[string]string{"Api-Username": "system"}, slog.Default())

	_, err := client.Do(t.Context(), Request{
		Method:  http.MethodPost,
		Path:    "posts.json",
		Headers: map[string]string{"Api-Username": "alice"},
	})
	require.NoError(t, err)
}
