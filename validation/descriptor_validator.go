// Package validation checks plugin documents against JSON schemas.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/stranslate-dev/stranslate-plugin-host/registry"
)

// SchemaValidator validates documents of one kind using a schema from the registry.
type SchemaValidator struct {
	registry registry.SchemaRegistry
	kind     string

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// NewSchemaValidator creates a validator for kind.
func NewSchemaValidator(reg registry.SchemaRegistry, kind string) *SchemaValidator {
	return &SchemaValidator{registry: reg, kind: kind}
}

// NewDescriptorValidator creates a validator for plugin descriptor files.
func NewDescriptorValidator(reg registry.SchemaRegistry) *SchemaValidator {
	return NewSchemaValidator(reg, registry.KindDescriptor)
}

func (v *SchemaValidator) schema() (*jsonschema.Schema, error) {
	v.once.Do(func() {
		raw, ok := v.registry.GetSchema(v.kind)
		if !ok {
			v.err = fmt.Errorf("no schema registered for %q", v.kind)
			return
		}
		url := v.kind + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
			v.err = fmt.Errorf("adding %s schema: %w", v.kind, err)
			return
		}
		v.compiled, v.err = compiler.Compile(url)
	})
	return v.compiled, v.err
}

// Validate decodes data in the given format and validates it.
func (v *SchemaValidator) Validate(data []byte, format string) error {
	schema, err := v.schema()
	if err != nil {
		return err
	}

	doc, err := decode(data, format)
	if err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s does not match schema: %w", v.kind, err)
	}
	return nil
}

// decode turns data into the generic JSON value tree the validator expects.
// YAML goes through a JSON round trip so numbers and maps have JSON types.
func decode(data []byte, format string) (any, error) {
	switch format {
	case FormatJSON:
	case FormatYAML:
		var y any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
		b, err := json.Marshal(y)
		if err != nil {
			return nil, fmt.Errorf("converting yaml to json: %w", err)
		}
		data = b
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return doc, nil
}
