package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pollSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":   map[string]any{"type": "string"},
		"options": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []any{"title", "options"},
}

func TestValidate_Conformant(t *testing.T) {
	err := Validate(map[string]any{
		"title":   "Pick a color",
		"options": []any{"red", "blue"},
	}, pollSchema)
	require.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(map[string]any{"title": "Pick a color"}, pollSchema)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "options")
}

func TestValidate_WrongType(t *testing.T) {
	err := Validate(map[string]any{
		"title":   42,
		"options": []any{"red"},
	}, pollSchema)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	assert.NoError(t, Validate(map[string]any{"anything": true}, nil))
	assert.NoError(t, Validate(nil, nil))
}

func TestStrict_RejectsUnknownProperties(t *testing.T) {
	loose := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"api_key": map[string]any{"type": "string"},
		},
	}
	strict := Strict(loose)

	err := Validate(map[string]any{"api_key": "k", "extra": "nope"}, strict)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	// The original schema is not mutated.
	_, ok := loose["additionalProperties"]
	assert.False(t, ok)
	assert.NoError(t, Validate(map[string]any{"api_key": "k"}, strict))
}
