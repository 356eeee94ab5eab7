// Package pluginhost is the host side of the plugin capability contract. It
// provides the per-plugin Context handed to plugins on Init and the HTTP
// facility exposed to them.
package pluginhost

import (
	"log/slog"
	"net/http"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/i18n"
	"github.com/stranslate-dev/stranslate-plugin-host/netutil"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/settings"
)

var _ capability.Context = (*Context)(nil)

// Context is the host context of one plugin instance. Settings are keyed by
// the plugin's settings directory, which is derived from its package
// directory name.
type Context struct {
	pluginID string
	store    *settings.FileStore
	client   *http.Client
	catalog  *i18n.Catalog
	logger   *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithHTTPClient sets the client returned by HTTP.
func WithHTTPClient(c *http.Client) ContextOption {
	return func(hc *Context) { hc.client = c }
}

// WithCatalog sets the string catalog consulted by GetTranslation.
func WithCatalog(c *i18n.Catalog) ContextOption {
	return func(hc *Context) { hc.catalog = c }
}

// WithLogger sets the parent logger. The plugin id is added to it.
func WithLogger(l *slog.Logger) ContextOption {
	return func(hc *Context) { hc.logger = l }
}

// NewContext creates the host context for d.
func NewContext(d *entities.Descriptor, opts ...ContextOption) *Context {
	hc := &Context{
		pluginID: d.PluginID,
		store:    settings.NewFileStore(d.PluginSettingsDirectoryPath),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(hc)
	}
	if hc.client == nil {
		hc.client = netutil.NewHTTPClient(netutil.ClientOptions{Logger: hc.logger})
	}
	if hc.catalog == nil {
		hc.catalog = i18n.NewCatalog()
	}
	hc.logger = hc.logger.With("plugin_id", d.PluginID)
	return hc
}

// PluginID returns the id of the plugin the context belongs to.
func (hc *Context) PluginID() string { return hc.pluginID }

// Settings returns the plugin's settings store.
func (hc *Context) Settings() *settings.FileStore { return hc.store }

// LoadSettings implements capability.Context.
func (hc *Context) LoadSettings(v any) error { return hc.store.Load(v) }

// SaveSettings implements capability.Context.
func (hc *Context) SaveSettings(v any) error { return hc.store.Save(v) }

// HTTP implements capability.Context.
func (hc *Context) HTTP() *http.Client { return hc.client }

// GetTranslation implements capability.Context.
func (hc *Context) GetTranslation(key string) string {
	return hc.catalog.Lookup(hc.pluginID, key)
}

// Logger implements capability.Context.
func (hc *Context) Logger() *slog.Logger { return hc.logger }
