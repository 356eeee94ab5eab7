package ports

import (
	"context"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// DescriptorReader reads a package directory into a descriptor.
// It fails soft: a false return means the directory is not a usable package.
type DescriptorReader interface {
	Read(ctx context.Context, dir string) (*entities.Descriptor, bool)
}

// DescriptorParser decodes raw descriptor bytes.
type DescriptorParser interface {
	Parse(data []byte) (*entities.Descriptor, error)
}

// DescriptorValidator checks a decoded descriptor document.
type DescriptorValidator interface {
	Validate(data []byte, format string) error
}
