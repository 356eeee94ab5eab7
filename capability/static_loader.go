package capability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// StaticLoader loads ".plugin" modules: small text files naming a factory that
// a plugin compiled into the host registered with Register.
type StaticLoader struct {
	registry *Registry
	logger   *slog.Logger
	mu       sync.Mutex
	bound    map[string]Factory
}

// StaticLoaderOption configures a StaticLoader.
type StaticLoaderOption func(*StaticLoader)

// WithRegistry sets the factory registry. Defaults to DefaultRegistry().
func WithRegistry(r *Registry) StaticLoaderOption {
	return func(l *StaticLoader) {
		l.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StaticLoaderOption {
	return func(l *StaticLoader) {
		l.logger = logger
	}
}

// NewStaticLoader creates a loader backed by the registry.
func NewStaticLoader(opts ...StaticLoaderOption) *StaticLoader {
	l := &StaticLoader{
		registry: defaultRegistry,
		logger:   slog.Default(),
		bound:    make(map[string]Factory),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the factory named by the module file, invokes it once and
// inspects the instance for contract variants.
func (l *StaticLoader) Load(ctx context.Context, d *entities.Descriptor) *entities.LoadResult {
	path := d.ExecutePath()

	data, err := os.ReadFile(path)
	if err != nil {
		kind := entities.ErrModuleLoad
		if errors.Is(err, fs.ErrNotExist) {
			kind = entities.ErrModuleNotFound
		}
		return entities.LoadFail("cannot read plugin module", d.Name, &entities.LoadError{Path: path, Kind: kind, Err: err})
	}

	name := string(bytes.TrimSpace(firstLine(data)))
	if name == "" {
		return entities.LoadFail("plugin module declares no name", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrModuleNameUnknown})
	}

	factory, ok := l.registry.Get(name)
	if !ok {
		return entities.LoadFail("plugin factory not registered", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrModuleLoad, Err: fmt.Errorf("no factory registered as %q", name)})
	}

	probe, err := invoke(factory)
	if err != nil {
		return entities.LoadFail("plugin factory failed", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrModuleLoad, Err: err})
	}

	caps := Detect(probe)
	if caps.IsNone() {
		return entities.LoadFail("plugin implements no capability", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrNoCapability})
	}

	l.mu.Lock()
	l.bound[path] = factory
	l.mu.Unlock()

	d.AssemblyName = name
	d.PluginType = caps
	l.logger.DebugContext(ctx, "bound static plugin", "plugin_id", d.PluginID, "factory", name, "capabilities", caps.String())
	return entities.LoadSuccess(d)
}

// Instantiate creates and initializes a fresh instance.
func (l *StaticLoader) Instantiate(ctx context.Context, d *entities.Descriptor, hc Context) (Plugin, error) {
	l.mu.Lock()
	factory, ok := l.bound[d.ExecutePath()]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("plugin %q is not loaded", d.PluginID)
	}

	p, err := invoke(factory)
	if err != nil {
		return nil, err
	}
	if err := p.Init(ctx, hc); err != nil {
		return nil, fmt.Errorf("initializing plugin %q: %w", d.PluginID, err)
	}
	return p, nil
}

// Close forgets every bound factory.
func (l *StaticLoader) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.bound)
	return nil
}

func invoke(factory Factory) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin factory panicked: %v", r)
		}
	}()
	p = factory()
	if p == nil {
		return nil, fmt.Errorf("plugin factory returned nil")
	}
	return p, nil
}

func firstLine(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i]
	}
	return data
}
