package plugin

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CaptureHandler is a slog.Handler that records messages for assertions.
type CaptureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewCaptureLogger returns a logger writing to a fresh CaptureHandler.
func NewCaptureLogger() (*slog.Logger, *CaptureHandler) {
	h := &CaptureHandler{}
	return slog.New(h), h
}

func (h *CaptureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *CaptureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *CaptureHandler) WithGroup(string) slog.Handler      { return h }

// Count returns how many records with msg were logged at level.
func (h *CaptureHandler) Count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

// MockLoader implements ports.ModuleLoader. Loads fail for ids in Fail and
// succeed with Caps otherwise.
type MockLoader struct {
	Caps   capability.Plugin
	Fail   map[string]error
	mu     sync.Mutex
	Loaded []string
	Closed bool
}

func (m *MockLoader) Load(ctx context.Context, d *entities.Descriptor) *entities.LoadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loaded = append(m.Loaded, d.PluginID)
	if err, ok := m.Fail[d.PluginID]; ok {
		return entities.LoadFail("mock load failure", d.Name, &entities.LoadError{Path: d.ExecutePath(), Kind: err})
	}
	d.AssemblyName = d.PluginID
	d.PluginType = capability.Detect(m.Caps)
	return entities.LoadSuccess(d)
}

func (m *MockLoader) Instantiate(ctx context.Context, d *entities.Descriptor, hc capability.Context) (capability.Plugin, error) {
	if err := m.Caps.Init(ctx, hc); err != nil {
		return nil, err
	}
	return m.Caps, nil
}

func (m *MockLoader) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
