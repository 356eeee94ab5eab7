// Package plugin is the plugin lifecycle manager. It discovers installed
// packages, keeps one loaded plugin per identifier, and installs, upgrades
// and uninstalls packages through a services.Installer.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	pluginhost "github.com/stranslate-dev/stranslate-plugin-host"
	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/i18n"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/ports"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/resolvers"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/services"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
)

// Manager orchestrates plugin lifecycle use cases.
//
// Registry reads are safe from any goroutine. Mutating operations are
// serialized so at most one discovery, install, upgrade or uninstall runs at
// a time.
type Manager struct {
	store     ports.PackageStore
	reader    ports.DescriptorReader
	loader    ports.ModuleLoader
	installer *services.Installer
	resolver  *resolvers.DuplicateResolver
	localizer *i18n.Localizer
	catalog   *i18n.Catalog
	client    *http.Client
	logger    *slog.Logger

	opMu    sync.Mutex
	mu      sync.RWMutex
	plugins []*entities.Descriptor
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithLocalizer sets the localizer used to apply plugin language resources.
func WithLocalizer(z *i18n.Localizer) ManagerOption {
	return func(m *Manager) { m.localizer = z }
}

// WithCatalog sets the string catalog shared with plugin host contexts.
func WithCatalog(c *i18n.Catalog) ManagerOption {
	return func(m *Manager) { m.catalog = c }
}

// WithHTTPClient sets the client handed to plugin instances.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.client = c }
}

// NewManager creates a manager. The store, reader, loader and installer are
// required and must share the same package store.
func NewManager(
	store ports.PackageStore,
	reader ports.DescriptorReader,
	loader ports.ModuleLoader,
	installer *services.Installer,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		store:     store,
		reader:    reader,
		loader:    loader,
		installer: installer,
		resolver:  resolvers.NewDuplicateResolver(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.localizer == nil {
		m.localizer = i18n.NewLocalizer(i18n.Fallback.String(), i18n.WithLogger(m.logger))
	}
	if m.catalog == nil {
		m.catalog = i18n.NewCatalog()
	}
	return m
}

// LoadSummary reports the outcome of a discovery pass.
type LoadSummary struct {
	Total     int
	Succeeded int
	Failed    int
	// Superseded counts descriptors dropped by duplicate resolution.
	Superseded int
	Failures   []*entities.LoadResult
}

// LoadPlugins runs a discovery pass and rebuilds the registry from the
// plugins that loaded. It never fails as a whole: problems with individual
// packages are logged and reported in the summary.
func (m *Manager) LoadPlugins(ctx context.Context) *LoadSummary {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	summary := &LoadSummary{}
	dirs, err := m.store.Enumerate(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "plugin discovery failed", "error", err)
		return summary
	}

	var all []*entities.Descriptor
	for _, dir := range dirs {
		if d, ok := m.reader.Read(ctx, dir); ok {
			all = append(all, d)
		}
	}

	winners, losers := m.resolver.Resolve(all)
	summary.Superseded = len(losers)
	for _, d := range losers {
		m.logger.WarnContext(ctx, "duplicate plugin ignored",
			"plugin_id", d.PluginID, "version", d.Version, "dir", d.PluginDirectory, "kind", d.Kind())
	}

	summary.Total = len(winners)
	loaded := make([]*entities.Descriptor, 0, len(winners))
	for _, d := range winners {
		res := m.loader.Load(ctx, d)
		if !res.IsSuccess() {
			if res.PluginName == "" {
				res.PluginName = d.PluginID
			}
			summary.Failures = append(summary.Failures, res)
			continue
		}
		loaded = append(loaded, res.Descriptor)
	}
	summary.Succeeded = len(loaded)
	summary.Failed = len(summary.Failures)

	m.catalog.Reset()
	for _, d := range loaded {
		m.applyResources(ctx, d)
	}

	m.mu.Lock()
	m.plugins = loaded
	m.mu.Unlock()

	m.report(ctx, summary, loaded)
	return summary
}

// InstallPlugin installs a package file. On success the plugin is
// registered and its language resources applied.
func (m *Manager) InstallPlugin(ctx context.Context, packagePath string) *entities.InstallResult {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	res := m.installer.Install(ctx, packagePath, m.Plugin)
	if !res.Succeeded() {
		return res
	}

	d := res.NewPlugin
	m.applyResources(ctx, d)
	m.mu.Lock()
	m.plugins = append(m.plugins, d)
	m.mu.Unlock()

	res.NewPlugin = d.Clone()
	return res
}

// UpgradePlugin stages the package left by a RequiresUpgrade install result
// in place of existing. The new version is picked up by the next
// LoadPlugins; until then the registry keeps the running version.
func (m *Manager) UpgradePlugin(ctx context.Context, existing *entities.Descriptor, packagePath string) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if existing == nil {
		return false
	}
	if current := m.find(existing.PluginID); current != nil {
		existing = current
	}
	return m.installer.Upgrade(ctx, existing, packagePath)
}

// UninstallPlugin schedules d's directories for deletion and removes it
// from the registry.
func (m *Manager) UninstallPlugin(ctx context.Context, d *entities.Descriptor) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if d == nil {
		return false
	}
	if current := m.find(d.PluginID); current != nil {
		d = current
	}
	if !m.installer.Uninstall(ctx, d) {
		return false
	}

	m.mu.Lock()
	m.plugins = removeID(m.plugins, d.PluginID)
	m.mu.Unlock()
	m.catalog.Remove(d.PluginID)
	return true
}

// AllPluginMetaDatas returns copies of every loaded descriptor in discovery
// order.
func (m *Manager) AllPluginMetaDatas() []*entities.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entities.Descriptor, 0, len(m.plugins))
	for _, d := range m.plugins {
		out = append(out, d.Clone())
	}
	return out
}

// PluginsWith returns copies of the loaded descriptors implementing every
// variant in c.
func (m *Manager) PluginsWith(c values.Capability) []*entities.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entities.Descriptor
	for _, d := range m.plugins {
		if d.PluginType.Has(c) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// Plugin returns a copy of the loaded descriptor for id, or nil.
func (m *Manager) Plugin(id string) *entities.Descriptor {
	return m.find(id).Clone()
}

// NewInstance creates an initialized instance of a loaded plugin, bound to
// a host context carrying its settings, the shared catalog and the HTTP
// facility. The caller disposes it.
func (m *Manager) NewInstance(ctx context.Context, id string) (capability.Plugin, error) {
	d := m.Plugin(id)
	if d == nil {
		return nil, fmt.Errorf("plugin %q is not loaded", id)
	}

	opts := []pluginhost.ContextOption{
		pluginhost.WithCatalog(m.catalog),
		pluginhost.WithLogger(m.logger),
	}
	if m.client != nil {
		opts = append(opts, pluginhost.WithHTTPClient(m.client))
	}
	return m.loader.Instantiate(ctx, d, pluginhost.NewContext(d, opts...))
}

// SetLocale switches the active locale and reapplies the language
// resources of every loaded plugin.
func (m *Manager) SetLocale(ctx context.Context, locale string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.localizer.SetLocale(locale)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog.Reset()
	for _, d := range m.plugins {
		// Restore persisted metadata before applying the new locale.
		if orig, ok := m.reader.Read(ctx, d.PluginDirectory); ok {
			d.Name, d.Description = orig.Name, orig.Description
		}
		m.applyResources(ctx, d)
	}
}

// Catalog returns the string catalog shared with plugin host contexts.
func (m *Manager) Catalog() *i18n.Catalog { return m.catalog }

// Close removes the process temp root and releases loaded modules.
func (m *Manager) Close(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	var errs []error
	if err := m.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing package store: %w", err))
	}
	if err := m.loader.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing module loader: %w", err))
	}
	return errors.Join(errs...)
}

func (m *Manager) find(id string) *entities.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.plugins {
		if d.PluginID == id {
			return d
		}
	}
	return nil
}

func (m *Manager) applyResources(ctx context.Context, d *entities.Descriptor) {
	res, err := m.localizer.Load(d.PluginDirectory)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load plugin language resources", "plugin_id", d.PluginID, "error", err)
		return
	}
	if res == nil {
		m.catalog.Remove(d.PluginID)
		return
	}
	res.Apply(d)
	m.catalog.Set(d.PluginID, res.Strings)
}

func (m *Manager) report(ctx context.Context, s *LoadSummary, loaded []*entities.Descriptor) {
	for _, d := range loaded {
		m.logger.InfoContext(ctx, "plugin loaded",
			"plugin_id", d.PluginID,
			"version", d.Version,
			"kind", d.Kind(),
			"assembly", d.AssemblyName,
			"capabilities", d.PluginType.String())
	}
	for _, f := range s.Failures {
		m.logger.ErrorContext(ctx, "plugin load failed",
			"plugin", f.PluginName,
			"message", f.Message,
			"cause", causeKind(f.Err),
			"error", f.Err)
	}
	m.logger.InfoContext(ctx, "plugin discovery complete",
		"total", s.Total, "succeeded", s.Succeeded, "failed", s.Failed, "superseded", s.Superseded)
}

// causeKind names the load failure category of err.
func causeKind(err error) string {
	switch {
	case errors.Is(err, entities.ErrModuleNotFound):
		return "module-not-found"
	case errors.Is(err, entities.ErrNoCapability):
		return "no-capability"
	case errors.Is(err, entities.ErrModuleNameUnknown):
		return "module-name-unknown"
	case errors.Is(err, entities.ErrModuleLoad):
		return "module-load"
	default:
		return "unknown"
	}
}

func removeID(list []*entities.Descriptor, id string) []*entities.Descriptor {
	out := list[:0]
	for _, d := range list {
		if d.PluginID != id {
			out = append(out, d)
		}
	}
	return out
}
