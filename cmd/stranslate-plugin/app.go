package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	pluginhost "github.com/stranslate-dev/stranslate-plugin-host"
	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/config"
	"github.com/stranslate-dev/stranslate-plugin-host/host"
	"github.com/stranslate-dev/stranslate-plugin-host/i18n"
	"github.com/stranslate-dev/stranslate-plugin-host/netutil"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/archive"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/repository"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/services"
	"github.com/stranslate-dev/stranslate-plugin-host/registry"
	"github.com/stranslate-dev/stranslate-plugin-host/validation"
	"github.com/stranslate-dev/stranslate-plugin-host/wazero"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	programDir string
	configFile string
	dataDir    string
	locale     string
	logLevel   string
}

func (f *globalFlags) load() (config.Config, error) {
	programDir := f.programDir
	if programDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return config.Config{}, fmt.Errorf("locate program directory: %w", err)
		}
		programDir = filepath.Dir(exe)
	}

	var (
		cfg config.Config
		err error
	)
	if f.configFile != "" {
		cfg, err = config.LoadFile(programDir, f.configFile)
	} else {
		cfg, err = config.Load(programDir)
	}
	if err != nil {
		return config.Config{}, err
	}

	// An explicit data directory re-derives the whole layout under it.
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
		cfg.PluginsDir, cfg.SettingsDir, cfg.CacheDir = "", "", ""
		cfg.Resolve()
	}
	if f.locale != "" {
		cfg.Locale = f.locale
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openManager wires the plugin host described by cfg.
func openManager(ctx context.Context, cfg config.Config, logger *slog.Logger) (*plugin.Manager, error) {
	storeOpts := []repository.Option{
		repository.WithSweepRoots(cfg.SettingsDir, cfg.CacheDir),
		repository.WithLogger(logger),
	}
	if cfg.TempDir != "" {
		storeOpts = append(storeOpts, repository.WithTempRoot(cfg.TempDir))
	}
	store, err := repository.NewFSPackageStore(cfg.PreinstalledDir, cfg.PluginsDir, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open package store: %w", err)
	}

	schemas, err := registry.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("build descriptor schema: %w", err)
	}
	reader := services.NewMetadataReader(
		services.WithDescriptorValidator(validation.NewDescriptorValidator(schemas)),
		services.WithPreinstalledCheck(store.IsPreinstalled),
		services.WithReaderLogger(logger),
	)

	wasm, err := host.NewWasmLoader(ctx,
		host.WithLogger(logger),
		host.WithHostModuleOptions(
			wazero.WithHostLogger(logger),
			wazero.WithMiddleware(wazero.UserAgentMiddleware(cfg.HTTP.UserAgent)),
			wazero.WithHTTPOptions(
				pluginhost.WithHTTPRequestTimeout(cfg.HTTP.Timeout),
				pluginhost.WithHTTPMaxBodySize(cfg.HTTP.MaxBodySize),
			),
		),
	)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("start wasm runtime: %w", err)
	}

	loader := services.NewCompositeLoader(cfg.SettingsDir, cfg.CacheDir,
		services.WithModuleLoader(".wasm", wasm),
		services.WithModuleLoader(".plugin", capability.NewStaticLoader(capability.WithLogger(logger))),
		services.WithLoaderLogger(logger),
	)
	installer := services.NewInstaller(store,
		archive.NewExtractor(archive.WithLogger(logger)),
		reader, loader,
		services.WithPreinstalledIDs(cfg.PreinstalledIDs...),
		services.WithInstallerLogger(logger),
	)

	client := netutil.NewHTTPClient(netutil.ClientOptions{
		Timeout:        cfg.HTTP.Timeout,
		MaxRetries:     cfg.HTTP.MaxRetries,
		InitialBackoff: cfg.HTTP.InitialBackoff,
		UserAgent:      cfg.HTTP.UserAgent,
		Proxy:          cfg.HTTP.Proxy,
		Logger:         logger,
	})

	return plugin.NewManager(store, reader, loader, installer,
		plugin.WithLogger(logger),
		plugin.WithLocalizer(i18n.NewLocalizer(cfg.Locale, i18n.WithLogger(logger))),
		plugin.WithHTTPClient(client),
	), nil
}
