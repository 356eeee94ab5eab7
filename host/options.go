package host

import (
	"log/slog"

	wz "github.com/tetratelabs/wazero"

	"github.com/stranslate-dev/stranslate-plugin-host/wazero"
)

// Option defines a functional option for configuring the WasmLoader.
type Option func(*WasmLoader)

// WithHostModuleOptions configures the "stranslate" host module.
func WithHostModuleOptions(opts ...wazero.HostModuleOption) Option {
	return func(l *WasmLoader) {
		l.hostOpts = append(l.hostOpts, opts...)
	}
}

// WithCompilationCache configures the runtime with a compilation cache.
func WithCompilationCache(cache wz.CompilationCache) Option {
	return func(l *WasmLoader) {
		l.cache = cache
	}
}

// WithInterpreter selects the interpreter engine instead of the compiler.
func WithInterpreter() Option {
	return func(l *WasmLoader) {
		l.interpreter = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *WasmLoader) {
		l.logger = logger
	}
}
