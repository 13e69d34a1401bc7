// Package schema validates JSON documents against JSON Schema declarations.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports a document that does not conform to its declared schema.
type ValidationError struct {
	Causes []string
}

func (e *ValidationError) Error() string {
	return "schema validation failed: " + strings.Join(e.Causes, "; ")
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError

	return errors.As(err, &target)
}

// Validate checks document against the given JSON Schema. A nil schema
// accepts any document.
func Validate(document any, schema map[string]any) error {
	if schema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to evaluate schema: %w", err)
	}

	if !result.Valid() {
		causes := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			causes = append(causes, desc.String())
		}

		return &ValidationError{Causes: causes}
	}

	return nil
}

// Strict returns a copy of an object schema with additionalProperties set to
// false, the default posture for plugin configuration.
func Strict(objectSchema map[string]any) map[string]any {
	strict := make(map[string]any, len(objectSchema)+1)
	for k, v := range objectSchema {
		strict[k] = v
	}

	strict["additionalProperties"] = false

	return strict
}
