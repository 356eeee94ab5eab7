package wazero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	wz "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	pluginhost "github.com/stranslate-dev/stranslate-plugin-host"
	"github.com/stranslate-dev/stranslate-plugin-host/netutil"
)

// ModuleName is the import module name of the host functions.
const ModuleName = "stranslate"

// Host function names.
const (
	FuncLogMessage     = "log_message"
	FuncGetTranslation = "get_translation"
	FuncLoadSettings   = "load_settings"
	FuncSaveSettings   = "save_settings"
	FuncHTTPRequest    = "http_request"
)

var errNoHostContext = errors.New("no host context bound to this call")

type hostModuleConfig struct {
	middleware []Middleware
	httpOpts   []pluginhost.HTTPOption
	logger     *slog.Logger
}

// HostModuleOption configures RegisterHostModule.
type HostModuleOption func(*hostModuleConfig)

// WithMiddleware appends middleware around every JSON host function.
func WithMiddleware(mw ...Middleware) HostModuleOption {
	return func(c *hostModuleConfig) { c.middleware = append(c.middleware, mw...) }
}

// WithHTTPOptions sets options applied to every http_request call.
func WithHTTPOptions(opts ...pluginhost.HTTPOption) HostModuleOption {
	return func(c *hostModuleConfig) { c.httpOpts = append(c.httpOpts, opts...) }
}

// WithHostLogger sets the logger used by the default logging middleware.
func WithHostLogger(l *slog.Logger) HostModuleOption {
	return func(c *hostModuleConfig) { c.logger = l }
}

// TranslationRequest is the get_translation payload.
type TranslationRequest struct {
	Key string `json:"key"`
}

// TranslationResponse is the get_translation result.
type TranslationResponse struct {
	Text string `json:"text"`
}

// SaveSettingsResponse is the save_settings result.
type SaveSettingsResponse struct {
	OK bool `json:"ok"`
}

// RegisterHostModule instantiates the "stranslate" host module in rt. Host
// functions resolve the calling plugin through the host context attached to
// the call's context with WithHostContext.
func RegisterHostModule(ctx context.Context, rt wz.Runtime, opts ...HostModuleOption) (api.Module, error) {
	cfg := hostModuleConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	mw := append([]Middleware{PanicRecoveryMiddleware(), LoggingMiddleware(cfg.logger)}, cfg.middleware...)

	handlers := []struct {
		name string
		h    ByteHandler
	}{
		{FuncGetTranslation, getTranslation},
		{FuncLoadSettings, loadSettings},
		{FuncSaveSettings, saveSettings},
		{FuncHTTPRequest, httpRequest(cfg.httpOpts)},
	}

	i64 := []api.ValueType{api.ValueTypeI64}
	b := rt.NewHostModuleBuilder(ModuleName)
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(LogMessageFunc), i64, []api.ValueType{}).
		Export(FuncLogMessage)
	for _, h := range handlers {
		b.NewFunctionBuilder().
			WithGoModuleFunction(adapt(h.name, Chain(h.h, mw...)), i64, i64).
			Export(h.name)
	}

	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate host module %q: %w", ModuleName, err)
	}
	return mod, nil
}

// adapt turns a ByteHandler into a wazero function taking and returning a
// packed pointer. Failures are returned to the guest as an ErrorResponse.
func adapt(name string, h ByteHandler) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		ctx = withFunctionName(ctx, name)

		var resp []byte
		payload, err := ReadPacked(mod, stack[0])
		if err != nil {
			resp = NewErrorResponse("BAD_INPUT", err)
		} else if resp, err = h(ctx, payload); err != nil {
			resp = NewErrorResponse("HOST_ERROR", err)
		}

		packed, err := WriteGuest(ctx, mod, resp)
		if err != nil {
			loggerFrom(ctx).ErrorContext(ctx, "wazero: failed to return host function result", "function", name, "error", err)
			packed = 0
		}
		stack[0] = packed
	}
}

func getTranslation(ctx context.Context, payload []byte) ([]byte, error) {
	hc, ok := HostContextFrom(ctx)
	if !ok {
		return nil, errNoHostContext
	}
	var req TranslationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode translation request: %w", err)
	}
	return json.Marshal(TranslationResponse{Text: hc.GetTranslation(req.Key)})
}

func loadSettings(ctx context.Context, _ []byte) ([]byte, error) {
	hc, ok := HostContextFrom(ctx)
	if !ok {
		return nil, errNoHostContext
	}
	var v any
	if err := hc.LoadSettings(&v); err != nil {
		return nil, err
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func saveSettings(ctx context.Context, payload []byte) ([]byte, error) {
	hc, ok := HostContextFrom(ctx)
	if !ok {
		return nil, errNoHostContext
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("settings are not valid JSON: %w", err)
	}
	if err := hc.SaveSettings(v); err != nil {
		return nil, err
	}
	return json.Marshal(SaveSettingsResponse{OK: true})
}

func httpRequest(opts []pluginhost.HTTPOption) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		hc, ok := HostContextFrom(ctx)
		if !ok {
			return nil, errNoHostContext
		}
		var req pluginhost.HTTPRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode http request: %w", err)
		}
		hc.Logger().DebugContext(ctx, "plugin http request", "method", req.Method, "url", netutil.StripCredentials(req.URL))
		return json.Marshal(pluginhost.PerformHTTPRequest(ctx, hc.HTTP(), req, opts...))
	}
}
