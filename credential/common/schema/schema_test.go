package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var degreeContext = map[string]interface{}{
	"name":   "https://schema.org/name",
	"degree": "https://example.org/vocab#degree",
	"gpa":    "https://example.org/vocab#gpa",
}

func TestValidateTerms(t *testing.T) {
	doc := map[string]interface{}{
		"id":   "did:example:alice",
		"name": "Alice",
		"degree": map[string]interface{}{
			"name": "BSc Computer Science",
		},
		"gpa": 3.9,
	}

	assert.NoError(t, ValidateTerms(doc, []interface{}{degreeContext}))
}

func TestValidateTerms_Undefined(t *testing.T) {
	doc := map[string]interface{}{
		"id":       "did:example:alice",
		"name":     "Alice",
		"nickname": "Al",
		"degree": map[string]interface{}{
			"name":  "BSc",
			"major": "CS",
		},
	}

	err := ValidateTerms(doc, []interface{}{degreeContext})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nickname")
	assert.Contains(t, err.Error(), "degree.major")
}

func TestValidateTerms_BaseContext(t *testing.T) {
	doc := map[string]interface{}{"id": "did:example:alice", "nickname": "Al"}

	err := ValidateTerms(doc, nil, WithBaseContext(map[string]interface{}{
		"nickname": "https://example.org/vocab#nickname",
	}))
	assert.NoError(t, err)
}

func TestValidator(t *testing.T) {
	v, err := NewValidator([]byte(`{
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": {"type": "string"},
			"name": {"type": "string"},
			"age": {"type": "integer", "minimum": 0}
		}
	}`))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]interface{}{"id": "did:example:alice", "name": "Alice", "age": 30}))

	err = v.Validate(map[string]interface{}{"id": "did:example:alice", "age": -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")

	_, err = NewValidator([]byte(`{"type": 12}`))
	assert.Error(t, err)
}
