package parser

import "github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"

// DescriptorParser parses raw descriptor bytes into a Descriptor.
type DescriptorParser interface {
	// Parse unmarshals descriptor bytes into a Descriptor struct.
	Parse(data []byte) (*entities.Descriptor, error)
	// Format names the document format ("json" or "yaml").
	Format() string
}
