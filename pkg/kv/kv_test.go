package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFile(filepath.Join(t.TempDir(), "state", "agora.json"))
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemory(),
		"file":   fileStore,
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, ok, err := store.Get(ctx, "community_name")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "community_name", "Metagov Forum"))

			value, ok, err := store.Get(ctx, "community_name")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "Metagov Forum", value)

			require.NoError(t, store.Delete(ctx, "community_name"))

			_, ok, err = store.Get(ctx, "community_name")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_ValuesRoundTripThroughJSON(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			require.NoError(t, store.Set(ctx, "topic_id", 123))
			require.NoError(t, store.Set(ctx, "options", []any{"red", "blue"}))

			topicID, ok, err := store.Get(ctx, "topic_id")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.InDelta(t, float64(123), topicID, 0)

			options, ok, err := store.Get(ctx, "options")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []any{"red", "blue"}, options)
		})
	}
}

func TestStore_RejectsUnserializableValue(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Set(t.Context(), "bad", func() {})
			assert.Error(t, err)
		})
	}
}

func TestNamespaced_Isolation(t *testing.T) {
	ctx := t.Context()
	base := NewMemory()

	pluginState := Namespaced(base, "plugin:discourse:tenant-a")
	processState := Namespaced(base, "process:proc-1")

	require.NoError(t, pluginState.Set(ctx, "community_name", "A"))
	require.NoError(t, processState.Set(ctx, "topic_id", 7))

	_, ok, err := pluginState.Get(ctx, "topic_id")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := processState.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"topic_id"}, keys)
}

func TestClear_CascadesNamespaceOnly(t *testing.T) {
	ctx := t.Context()
	base := NewMemory()

	pluginState := Namespaced(base, "plugin:discourse:tenant-a")
	processState := Namespaced(base, "process:proc-1")

	require.NoError(t, pluginState.Set(ctx, "community_name", "A"))
	require.NoError(t, processState.Set(ctx, "topic_id", 7))
	require.NoError(t, processState.Set(ctx, "post_id", 8))

	require.NoError(t, Clear(ctx, processState))

	keys, err := processState.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, ok, err := pluginState.Get(ctx, "community_name")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "agora.json")

	store, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "poll_url", "https://forum.example.com/t/pick/12"))

	reopened, err := NewFile(path)
	require.NoError(t, err)

	value, ok, err := reopened.Get(ctx, "poll_url")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://forum.example.com/t/pick/12", value)
}
