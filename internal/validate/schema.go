package validate

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/beverage-tools/invparse/internal/invoice"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaRegistry holds the compiled structural schema for each vendor.
// The schemas carry only the fatal constraints: required top-level fields
// and their basic types. Everything softer is handled by the later tiers.
type schemaRegistry struct {
	compiled map[invoice.Vendor]*jsonschema.Schema
}

func newSchemaRegistry() (*schemaRegistry, error) {
	reg := &schemaRegistry{compiled: make(map[invoice.Vendor]*jsonschema.Schema)}

	for _, v := range invoice.Vendors() {
		name := fmt.Sprintf("schemas/%s.json", v)
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema for %s: %w", v, err)
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to load schema for %s: %w", v, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", v, err)
		}
		reg.compiled[v] = schema
	}

	return reg, nil
}

// check validates a candidate document against the vendor's structural
// schema. A failure here means no meaningful record can be built.
func (r *schemaRegistry) check(vendor invoice.Vendor, doc map[string]any) error {
	schema, ok := r.compiled[vendor]
	if !ok {
		return fmt.Errorf("no schema registered for vendor %s", vendor)
	}
	// jsonschema expects plain decoded JSON values; Candidate already is.
	if err := schema.Validate(map[string]any(doc)); err != nil {
		return err
	}
	return nil
}
