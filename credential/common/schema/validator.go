package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks documents against a JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles a schema given inline as JSON.
func NewValidator(schemaJSON []byte) (*Validator, error) {
	return newValidator(gojsonschema.NewBytesLoader(schemaJSON))
}

// NewReferenceValidator compiles the schema found at ref, a file:// or
// http(s):// URL.
func NewReferenceValidator(ref string) (*Validator, error) {
	return newValidator(gojsonschema.NewReferenceLoader(ref))
}

func newValidator(loader gojsonschema.JSONLoader) (*Validator, error) {
	s, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	return &Validator{schema: s}, nil
}

// Validate checks doc, which must be JSON-serializable.
func (v *Validator) Validate(doc interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}

	return nil
}
