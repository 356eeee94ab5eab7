package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/ports"
)

// CompositeLoader dispatches to a ModuleLoader chosen by the module file
// extension and binds the derived settings and cache paths on success.
type CompositeLoader struct {
	loaders      map[string]ports.ModuleLoader
	settingsRoot string
	cacheRoot    string
	logger       *slog.Logger
}

// CompositeLoaderOption configures a CompositeLoader.
type CompositeLoaderOption func(*CompositeLoader)

// WithModuleLoader registers loader for module files ending in ext.
func WithModuleLoader(ext string, loader ports.ModuleLoader) CompositeLoaderOption {
	return func(c *CompositeLoader) {
		c.loaders[strings.ToLower(ext)] = loader
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(l *slog.Logger) CompositeLoaderOption {
	return func(c *CompositeLoader) { c.logger = l }
}

// NewCompositeLoader creates a loader. settingsRoot and cacheRoot are the
// parents of the per-plugin directories bound on a successful load.
func NewCompositeLoader(settingsRoot, cacheRoot string, opts ...CompositeLoaderOption) *CompositeLoader {
	c := &CompositeLoader{
		loaders:      make(map[string]ports.ModuleLoader),
		settingsRoot: settingsRoot,
		cacheRoot:    cacheRoot,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extensions lists the module extensions with a registered loader.
func (c *CompositeLoader) Extensions() []string {
	exts := make([]string, 0, len(c.loaders))
	for ext := range c.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load implements ports.ModuleLoader.
func (c *CompositeLoader) Load(ctx context.Context, d *entities.Descriptor) *entities.LoadResult {
	path := d.ExecutePath()
	if _, err := os.Stat(path); err != nil {
		kind := entities.ErrModuleLoad
		if errors.Is(err, fs.ErrNotExist) {
			kind = entities.ErrModuleNotFound
		}
		return entities.LoadFail("plugin module file not found", d.Name, &entities.LoadError{Path: path, Kind: kind, Err: err})
	}

	loader, err := c.loaderFor(path)
	if err != nil {
		return entities.LoadFail("unsupported plugin module type", d.Name, &entities.LoadError{Path: path, Kind: entities.ErrModuleLoad, Err: err})
	}

	res := loader.Load(ctx, d)
	if !res.IsSuccess() {
		return res
	}

	name := d.DirectoryName()
	if c.settingsRoot != "" {
		d.PluginSettingsDirectoryPath = filepath.Join(c.settingsRoot, name)
	}
	if c.cacheRoot != "" {
		d.PluginCacheDirectoryPath = filepath.Join(c.cacheRoot, name)
	}
	return res
}

// Instantiate implements ports.ModuleLoader.
func (c *CompositeLoader) Instantiate(ctx context.Context, d *entities.Descriptor, hc capability.Context) (capability.Plugin, error) {
	loader, err := c.loaderFor(d.ExecutePath())
	if err != nil {
		return nil, err
	}
	return loader.Instantiate(ctx, d, hc)
}

// Close closes every registered loader.
func (c *CompositeLoader) Close(ctx context.Context) error {
	var errs []error
	for _, ext := range c.Extensions() {
		if err := c.loaders[ext].Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing %s loader: %w", ext, err))
		}
	}
	return errors.Join(errs...)
}

func (c *CompositeLoader) loaderFor(path string) (ports.ModuleLoader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := c.loaders[ext]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("no loader for module extension %q", ext)
}
