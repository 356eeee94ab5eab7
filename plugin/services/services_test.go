package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/archive"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/repository"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/services"
	"github.com/stretchr/testify/require"
)

type echo struct{}

func (echo) Init(context.Context, capability.Context) error { return nil }
func (echo) Dispose() error                                 { return nil }
func (echo) Translate(_ context.Context, req capability.TranslateRequest) (*capability.TranslateResponse, error) {
	return &capability.TranslateResponse{Text: req.Text}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writePlugin lays out a plugin directory with a JSON descriptor and a
// static module naming factory.
func writePlugin(t *testing.T, dir, id, version, factory string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	desc := map[string]string{
		"PluginID":        id,
		"Name":            id,
		"Version":         version,
		"ExecuteFilePath": "main.plugin",
	}
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.plugin"), []byte(factory+"\n"), 0o600))
}

// buildPackage packs a plugin into <out>/<name>.spkg.
func buildPackage(t *testing.T, out, name, id, version string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	writePlugin(t, src, id, version, "echo")
	pkg := filepath.Join(out, name+services.PackageExtension)
	_, err := archive.Pack(context.Background(), src, pkg)
	require.NoError(t, err)
	return pkg
}

type fixture struct {
	store     *repository.FSPackageStore
	reader    *services.MetadataReader
	loader    *services.CompositeLoader
	installer *services.Installer
	settings  string
	cache     string
	pkgs      string
}

func newFixture(t *testing.T, opts ...services.InstallerOption) *fixture {
	t.Helper()
	base := t.TempDir()
	store, err := repository.NewFSPackageStore(
		filepath.Join(base, "pre"), filepath.Join(base, "user"),
		repository.WithTempRoot(filepath.Join(base, "tmp")),
		repository.WithLogger(discard()),
	)
	require.NoError(t, err)

	reg := capability.NewRegistry()
	require.NoError(t, reg.Register("echo", func() capability.Plugin { return echo{} }))

	f := &fixture{
		store:    store,
		settings: filepath.Join(base, "settings"),
		cache:    filepath.Join(base, "cache"),
		pkgs:     filepath.Join(base, "pkgs"),
	}
	require.NoError(t, os.MkdirAll(f.pkgs, 0o750))
	f.reader = services.NewMetadataReader(
		services.WithPreinstalledCheck(store.IsPreinstalled),
		services.WithReaderLogger(discard()),
	)
	f.loader = services.NewCompositeLoader(f.settings, f.cache,
		services.WithModuleLoader(".plugin", capability.NewStaticLoader(capability.WithRegistry(reg), capability.WithLogger(discard()))),
		services.WithLoaderLogger(discard()),
	)
	f.installer = services.NewInstaller(store,
		archive.NewExtractor(archive.WithLogger(discard())),
		f.reader, f.loader,
		append([]services.InstallerOption{services.WithInstallerLogger(discard())}, opts...)...,
	)
	return f
}

func (f *fixture) tempEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.store.TempRoot())
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func none(string) *entities.Descriptor { return nil }
