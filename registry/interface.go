package registry

// SchemaRegistry manages JSON schemas for host document kinds.
type SchemaRegistry interface {
	// Register adds a schema for a document kind (e.g. "descriptor").
	// model can be a struct (to generate schema) or a JSON schema string/map.
	Register(kind string, model any) error

	// GetSchema returns the JSON schema for a document kind.
	GetSchema(kind string) (string, bool)

	// List returns all registered kinds.
	List() []string
}
