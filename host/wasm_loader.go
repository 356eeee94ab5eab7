// Package host loads wasm plugin modules with wazero and runs them under the
// capability contract.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	wz "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
	"github.com/stranslate-dev/stranslate-plugin-host/wazero"
)

// Exports every wasm plugin provides besides its capability functions.
const (
	ExportInit    = "init"
	ExportDispose = "dispose"
)

const wasiModuleName = wasi_snapshot_preview1.ModuleName

type compiledEntry struct {
	digest   values.Digest
	module   wz.CompiledModule
	caps     values.Capability
	name     string
	instance int
}

// WasmLoader implements ports.ModuleLoader for ".wasm" modules.
type WasmLoader struct {
	runtime     wz.Runtime
	cache       wz.CompilationCache
	interpreter bool
	hostOpts    []wazero.HostModuleOption
	logger      *slog.Logger

	// available maps each importable module to the functions it exports.
	available map[string]map[string]struct{}

	mu       sync.Mutex
	compiled map[string]*compiledEntry
}

// NewWasmLoader creates the runtime and instantiates the wasi and
// "stranslate" host modules in it.
func NewWasmLoader(ctx context.Context, opts ...Option) (*WasmLoader, error) {
	l := &WasmLoader{
		logger:   slog.Default(),
		compiled: make(map[string]*compiledEntry),
	}
	for _, opt := range opts {
		opt(l)
	}

	cfg := wz.NewRuntimeConfig()
	if l.interpreter {
		cfg = wz.NewRuntimeConfigInterpreter()
	}
	if l.cache != nil {
		cfg = cfg.WithCompilationCache(l.cache)
	}
	rt := wz.NewRuntimeWithConfig(ctx, cfg)

	wasi, err := wasi_snapshot_preview1.Instantiate(ctx, rt)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	hostOpts := append([]wazero.HostModuleOption{wazero.WithHostLogger(l.logger)}, l.hostOpts...)
	hostMod, err := wazero.RegisterHostModule(ctx, rt, hostOpts...)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	l.runtime = rt
	l.available = map[string]map[string]struct{}{
		wasiModuleName:    exportNames(wasi),
		wazero.ModuleName: exportNames(hostMod),
	}
	return l, nil
}

// exportNames lists the functions exported by an instantiated module.
func exportNames(m api.Closer) map[string]struct{} {
	names := map[string]struct{}{}
	mod, ok := m.(api.Module)
	if !ok {
		return names
	}
	for name := range mod.ExportedFunctionDefinitions() {
		names[name] = struct{}{}
	}
	return names
}

// Load compiles the module, checks its imports against the runtime and
// inspects its exports for the capability contract. Loading an unchanged
// module again reuses the compiled form.
func (l *WasmLoader) Load(ctx context.Context, d *entities.Descriptor) *entities.LoadResult {
	path := d.ExecutePath()
	data, err := os.ReadFile(path)
	if err != nil {
		kind := entities.ErrModuleLoad
		if errors.Is(err, fs.ErrNotExist) {
			kind = entities.ErrModuleNotFound
		}
		return entities.LoadFail("cannot read plugin module", d.Name, &entities.LoadError{Path: path, Kind: kind, Err: err})
	}
	digest, err := values.ComputeDigest(bytes.NewReader(data))
	if err != nil {
		return entities.LoadFail("cannot hash plugin module", d.Name, &entities.LoadError{Path: path, Kind: entities.ErrModuleLoad, Err: err})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.compiled[path]; ok && e.digest.Equals(digest) {
		d.AssemblyName = e.name
		d.PluginType = e.caps
		return entities.LoadSuccess(d)
	}

	compiled, err := l.runtime.CompileModule(ctx, data)
	if err != nil {
		return entities.LoadFail("plugin module failed to compile", d.Name, &entities.LoadError{Path: path, Kind: entities.ErrModuleLoad, Err: err})
	}
	e, res := l.inspect(d, path, compiled)
	if res != nil {
		_ = compiled.Close(ctx)
		return res
	}
	e.digest = digest

	if old, ok := l.compiled[path]; ok {
		_ = old.module.Close(ctx)
	}
	l.compiled[path] = e

	d.AssemblyName = e.name
	d.PluginType = e.caps
	l.logger.DebugContext(ctx, "compiled wasm plugin", "plugin_id", d.PluginID, "module", e.name, "capabilities", e.caps.String())
	return entities.LoadSuccess(d)
}

func (l *WasmLoader) inspect(d *entities.Descriptor, path string, compiled wz.CompiledModule) (*compiledEntry, *entities.LoadResult) {
	var missing []error
	for _, fn := range compiled.ImportedFunctions() {
		module, name, _ := fn.Import()
		funcs, ok := l.available[module]
		if !ok {
			missing = append(missing, fmt.Errorf("module %q is not available", module))
			continue
		}
		if _, ok := funcs[name]; !ok {
			missing = append(missing, fmt.Errorf("function %s.%s is not available", module, name))
		}
	}
	if len(missing) > 0 {
		return nil, entities.LoadFail("plugin module has unresolved dependencies", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrModuleLoad, Err: errors.Join(missing...)})
	}

	name := compiled.Name()
	if name == "" {
		return nil, entities.LoadFail("plugin module declares no name", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrModuleNameUnknown})
	}

	exports := compiled.ExportedFunctions()
	caps := values.CapNone
	if hasFunc(exports, ExportInit) && hasFunc(exports, ExportDispose) && hasFunc(exports, wazero.AllocateExport) {
		for _, export := range values.CapabilityExports() {
			if !hasFunc(exports, export) {
				continue
			}
			if c, err := values.ParseCapability(export); err == nil {
				caps |= c
			}
		}
	}
	if caps.IsNone() {
		return nil, entities.LoadFail("plugin implements no capability", d.Name,
			&entities.LoadError{Path: path, Kind: entities.ErrNoCapability})
	}

	return &compiledEntry{module: compiled, caps: caps, name: name}, nil
}

func hasFunc(exports map[string]api.FunctionDefinition, name string) bool {
	_, ok := exports[name]
	return ok
}

// Instantiate creates a fresh instance of a loaded module and initializes it.
func (l *WasmLoader) Instantiate(ctx context.Context, d *entities.Descriptor, hc capability.Context) (capability.Plugin, error) {
	l.mu.Lock()
	e, ok := l.compiled[d.ExecutePath()]
	if ok {
		e.instance++
	}
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("plugin %q is not loaded", d.PluginID)
	}

	cfg := wz.NewModuleConfig().
		WithName(fmt.Sprintf("%s#%d", e.name, e.instance)).
		WithStartFunctions()
	mod, err := l.runtime.InstantiateModule(ctx, e.module, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	if start := mod.ExportedFunction("_initialize"); start != nil {
		if _, err := start.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	p := &Instance{module: mod, caps: e.caps, pluginID: d.PluginID, version: d.Version}
	if err := p.Init(ctx, hc); err != nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("initializing plugin %q: %w", d.PluginID, err)
	}
	return p, nil
}

// Close releases the runtime, its compiled modules and every instance.
func (l *WasmLoader) Close(ctx context.Context) error {
	l.mu.Lock()
	clear(l.compiled)
	l.mu.Unlock()
	return l.runtime.Close(ctx)
}
