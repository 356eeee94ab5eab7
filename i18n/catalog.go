package i18n

import "sync"

// Catalog holds the active string tables of the host and of every loaded
// plugin. Lookups fall back from plugin strings to host strings to the key.
type Catalog struct {
	mu      sync.RWMutex
	host    map[string]string
	plugins map[string]map[string]string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		host:    map[string]string{},
		plugins: map[string]map[string]string{},
	}
}

// SetHost replaces the host string table.
func (c *Catalog) SetHost(table map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = clone(table)
}

// Set replaces the string table of a plugin.
func (c *Catalog) Set(pluginID string, table map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(table) == 0 {
		delete(c.plugins, pluginID)
		return
	}
	c.plugins[pluginID] = clone(table)
}

// Remove drops a plugin's strings.
func (c *Catalog) Remove(pluginID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.plugins, pluginID)
}

// Reset drops every plugin table, keeping host strings.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.plugins)
}

// Lookup resolves key for pluginID.
func (c *Catalog) Lookup(pluginID, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.plugins[pluginID][key]; ok {
		return s
	}
	if s, ok := c.host[key]; ok {
		return s
	}
	return key
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
