package ports

import (
	"context"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// ModuleLoader turns a winning descriptor into a bound, runnable plugin.
type ModuleLoader interface {
	// Load inspects the module and binds AssemblyName and PluginType onto d.
	// It has no Package Store side effects.
	Load(ctx context.Context, d *entities.Descriptor) *entities.LoadResult

	// Instantiate creates a runnable instance of a previously loaded module
	// and initializes it with the host context.
	Instantiate(ctx context.Context, d *entities.Descriptor, hc capability.Context) (capability.Plugin, error)

	// Close releases compiled modules and runtimes.
	Close(ctx context.Context) error
}
