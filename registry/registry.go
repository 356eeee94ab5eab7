// Package registry keeps the JSON schemas of the documents the host reads
// from plugin packages, generated from Go types.
package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// KindDescriptor is the schema kind for plugin descriptor files.
const KindDescriptor = "descriptor"

// Registry implements SchemaRegistry using in-memory storage.
type Registry struct {
	schemas   map[string]string
	mu        sync.RWMutex
	reflector *jsonschema.Reflector
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithAdditionalProperties controls whether generated schemas accept unknown keys.
func WithAdditionalProperties(allow bool) RegistryOption {
	return func(r *Registry) {
		r.reflector.AllowAdditionalProperties = allow
	}
}

// NewRegistry creates an empty schema registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		schemas: make(map[string]string),
		reflector: &jsonschema.Reflector{
			ExpandedStruct:             true,
			RequiredFromJSONSchemaTags: true,
			AllowAdditionalProperties:  true,
			Anonymous:                  true,
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewDefaultRegistry returns a registry with the descriptor schema registered.
func NewDefaultRegistry(opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	if err := r.Register(KindDescriptor, &entities.Descriptor{}); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a schema for a document kind.
// model can be a Go struct (to generate schema), a raw JSON schema string or
// []byte, or a map.
func (r *Registry) Register(kind string, model any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[kind]; exists {
		return fmt.Errorf("schema kind already registered: %s", kind)
	}

	schemaStr, err := r.schemaFor(model)
	if err != nil {
		return fmt.Errorf("schema %s: %w", kind, err)
	}
	r.schemas[kind] = schemaStr
	return nil
}

func (r *Registry) schemaFor(model any) (string, error) {
	switch v := model.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal schema map: %w", err)
		}
		return string(b), nil
	}

	t := reflect.TypeOf(model)
	if t == nil || (t.Kind() != reflect.Struct && (t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct)) {
		return "", fmt.Errorf("unsupported schema model %T", model)
	}

	s := r.reflector.Reflect(model)
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal generated schema: %w", err)
	}
	return string(b), nil
}

// GetSchema retrieves the JSON Schema for a document kind.
func (r *Registry) GetSchema(kind string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[kind]
	return s, ok
}

// List returns all registered kinds in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
