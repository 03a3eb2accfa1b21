package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/piprate/json-gold/ld"
)

// ProcessorOpt represents an option for JSON-LD processing.
type ProcessorOpt func(*ProcessorOptions)

// ProcessorOptions holds configuration for JSON-LD processing.
type ProcessorOptions struct {
	documentLoader ld.DocumentLoader
	baseContexts   []interface{}
}

// WithDocumentLoader sets the document loader for JSON-LD processing.
func WithDocumentLoader(loader ld.DocumentLoader) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.documentLoader = loader
	}
}

// WithBaseContext prepends context entries to every checked document.
func WithBaseContext(contexts ...interface{}) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.baseContexts = append(p.baseContexts, contexts...)
	}
}

// defaultDocumentLoader is a shared caching loader to prevent repeated fetches across function calls.
var defaultDocumentLoader ld.DocumentLoader

func init() {
	innerLoader := ld.NewDefaultDocumentLoader(nil) // HTTP client
	defaultDocumentLoader = ld.NewCachingDocumentLoader(innerLoader)
}

// keywordContext maps the plain id and type keys every claim set uses.
var keywordContext = map[string]interface{}{
	"id":   "@id",
	"type": "@type",
}

// ValidateTerms checks that every key of doc is defined by contexts. The
// document is expanded and compacted again with the same contexts; a key
// that does not survive the round trip has no term definition.
func ValidateTerms(doc map[string]interface{}, contexts []interface{}, opts ...ProcessorOpt) error {
	if doc == nil {
		return fmt.Errorf("failed to validate JSON-LD terms: document is nil")
	}

	options := &ProcessorOptions{documentLoader: defaultDocumentLoader}
	for _, opt := range opts {
		opt(options)
	}

	plain, err := toPlainJSON(doc)
	if err != nil {
		return err
	}

	ctx := make([]interface{}, 0, len(options.baseContexts)+len(contexts)+1)
	ctx = append(ctx, keywordContext)
	ctx = append(ctx, options.baseContexts...)
	ctx = append(ctx, contexts...)
	plain["@context"] = ctx

	processor := ld.NewJsonLdProcessor()
	jsonldOptions := ld.NewJsonLdOptions("")
	jsonldOptions.DocumentLoader = options.documentLoader

	expanded, err := processor.Expand(plain, jsonldOptions)
	if err != nil {
		return fmt.Errorf("failed to expand document: %w", err)
	}

	compacted, err := processor.Compact(expanded, map[string]interface{}{"@context": ctx}, jsonldOptions)
	if err != nil {
		return fmt.Errorf("failed to compact document: %w", err)
	}

	var missing []string
	collectMissing(plain, compacted, "", &missing)
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("undefined JSON-LD terms: %v", missing)
	}

	return nil
}

// toPlainJSON round-trips doc through encoding/json so that numbers are
// float64, the form json-gold understands.
func toPlainJSON(doc map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	var plain map[string]interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return plain, nil
}

func collectMissing(orig, compacted interface{}, prefix string, out *[]string) {
	switch o := orig.(type) {
	case map[string]interface{}:
		c, _ := compacted.(map[string]interface{})
		for k, v := range o {
			if len(k) > 0 && k[0] == '@' {
				continue
			}
			name := k
			if prefix != "" {
				name = prefix + "." + k
			}
			cv, ok := c[k]
			if !ok {
				*out = append(*out, name)
				continue
			}
			collectMissing(v, cv, name, out)
		}
	case []interface{}:
		if c, ok := compacted.([]interface{}); ok && len(c) == len(o) {
			for i := range o {
				collectMissing(o[i], c[i], prefix, out)
			}
			return
		}
		if len(o) == 1 {
			collectMissing(o[0], compacted, prefix, out)
		}
	}
}
