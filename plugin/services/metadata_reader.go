// Package services holds the plugin lifecycle domain services: descriptor
// reading, module loading dispatch and the install state machine.
package services

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stranslate-dev/stranslate-plugin-host/parser"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/ports"
)

// DescriptorFileNames are tried in order inside a package directory.
var DescriptorFileNames = []string{"plugin.json", "plugin.yaml", "plugin.yml"}

// MetadataReader implements ports.DescriptorReader.
type MetadataReader struct {
	validator    ports.DescriptorValidator
	isPreinstall func(dir string) bool
	logger       *slog.Logger
}

// MetadataReaderOption configures a MetadataReader.
type MetadataReaderOption func(*MetadataReader)

// WithDescriptorValidator validates descriptor documents before decoding.
func WithDescriptorValidator(v ports.DescriptorValidator) MetadataReaderOption {
	return func(r *MetadataReader) { r.validator = v }
}

// WithPreinstalledCheck sets how the reader decides IsPrePlugin.
func WithPreinstalledCheck(fn func(dir string) bool) MetadataReaderOption {
	return func(r *MetadataReader) { r.isPreinstall = fn }
}

// WithReaderLogger sets the logger.
func WithReaderLogger(l *slog.Logger) MetadataReaderOption {
	return func(r *MetadataReader) { r.logger = l }
}

// NewMetadataReader creates a reader.
func NewMetadataReader(opts ...MetadataReaderOption) *MetadataReader {
	r := &MetadataReader{
		isPreinstall: func(string) bool { return false },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read parses the descriptor in dir. It never touches the filesystem beyond
// reading and reports every rejection through the logger.
func (r *MetadataReader) Read(ctx context.Context, dir string) (*entities.Descriptor, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		r.logger.WarnContext(ctx, "invalid plugin directory", "dir", dir, "error", err)
		return nil, false
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		r.logger.WarnContext(ctx, "plugin directory does not exist", "dir", abs)
		return nil, false
	}

	file, ok := findDescriptor(abs)
	if !ok {
		r.logger.WarnContext(ctx, "plugin descriptor not found", "dir", abs)
		return nil, false
	}

	data, err := os.ReadFile(file)
	if err != nil {
		r.logger.ErrorContext(ctx, "cannot read plugin descriptor", "file", file, "error", err)
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		r.logger.WarnContext(ctx, "plugin descriptor is empty", "file", file)
		return nil, false
	}

	p, _ := parser.ForFile(file)
	if r.validator != nil {
		if err := r.validator.Validate(data, p.Format()); err != nil {
			r.logger.ErrorContext(ctx, "plugin descriptor failed validation", "file", file, "error", err)
			return nil, false
		}
	}

	d, err := p.Parse(data)
	if err != nil {
		r.logger.ErrorContext(ctx, "cannot parse plugin descriptor", "file", file, "error", err)
		return nil, false
	}
	if strings.TrimSpace(d.PluginID) == "" || strings.TrimSpace(d.ExecuteFilePath) == "" {
		r.logger.ErrorContext(ctx, "plugin descriptor missing PluginID or ExecuteFilePath", "file", file)
		return nil, false
	}
	if !filepath.IsLocal(filepath.FromSlash(d.ExecuteFilePath)) {
		r.logger.ErrorContext(ctx, "plugin module path escapes package directory", "file", file, "path", d.ExecuteFilePath)
		return nil, false
	}

	d.PluginDirectory = abs
	d.IsPrePlugin = r.isPreinstall(abs)

	if info, err := os.Stat(d.ExecutePath()); err != nil || info.IsDir() {
		r.logger.ErrorContext(ctx, "plugin module file not found", "plugin_id", d.PluginID, "path", d.ExecutePath())
		return nil, false
	}

	return d, true
}

func findDescriptor(dir string) (string, bool) {
	for _, name := range DescriptorFileNames {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, true
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", false
		}
	}
	return "", false
}
