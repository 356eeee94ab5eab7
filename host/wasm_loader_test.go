package host_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	pluginhost "github.com/stranslate-dev/stranslate-plugin-host"
	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/host"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
	"github.com/stranslate-dev/stranslate-plugin-host/wazero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoader(t *testing.T) *host.WasmLoader {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := host.NewWasmLoader(context.Background(), host.WithInterpreter(), host.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	return l
}

func writeWasm(t *testing.T, module []byte) *entities.Descriptor {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "echo_translate.echo")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.wasm"), module, 0o600))
	return &entities.Descriptor{PluginID: "translate.echo", Name: "Echo", Version: "1.0", PluginDirectory: dir, ExecuteFilePath: "main.wasm"}
}

func echoModule() []byte {
	return buildModule("echo", nil, contractFuncs(wasmFunc{"translate", typeI64I64, bodyEcho}))
}

func TestWasmLoader_Load(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	ctx := context.Background()

	t.Run("binds name and capabilities", func(t *testing.T) {
		d := writeWasm(t, buildModule("echo", nil, contractFuncs(
			wasmFunc{"translate", typeI64I64, bodyEcho},
			wasmFunc{"ocr", typeI64I64, bodyZeroI64},
		)))
		res := l.Load(ctx, d)
		require.True(t, res.IsSuccess(), "%v", res.Err)
		assert.Equal(t, "echo", d.AssemblyName)
		assert.Equal(t, values.CapTranslate|values.CapOCR, d.PluginType)

		again := l.Load(ctx, d)
		assert.True(t, again.IsSuccess())
		assert.Equal(t, d.PluginType, again.Descriptor.PluginType)
	})

	tests := []struct {
		name   string
		module []byte
		kind   error
	}{
		{"no name section", buildModule("", nil, contractFuncs(wasmFunc{"translate", typeI64I64, bodyEcho})), entities.ErrModuleNameUnknown},
		{"no capability export", buildModule("echo", nil, contractFuncs()), entities.ErrNoCapability},
		{"capability without init", buildModule("echo", nil, []wasmFunc{
			{"dispose", typeVoid, bodyVoid},
			{"allocate", typeI32I32, bodyAlloc},
			{"translate", typeI64I64, bodyEcho},
		}), entities.ErrNoCapability},
		{"not wasm", []byte("MZ not a module"), entities.ErrModuleLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := writeWasm(t, tt.module)
			res := l.Load(ctx, d)
			assert.False(t, res.IsSuccess())
			assert.ErrorIs(t, res.Err, tt.kind)
			assert.Empty(t, d.AssemblyName)
		})
	}

	t.Run("unresolved imports are aggregated", func(t *testing.T) {
		d := writeWasm(t, buildModule("echo",
			[]wasmImport{{"missing_module", "f"}, {wazero.ModuleName, "no_such_function"}},
			contractFuncs(wasmFunc{"translate", typeI64I64, bodyEcho})))
		res := l.Load(ctx, d)
		assert.ErrorIs(t, res.Err, entities.ErrModuleLoad)
		assert.Contains(t, res.Err.Error(), "missing_module")
		assert.Contains(t, res.Err.Error(), "no_such_function")
	})

	t.Run("missing file", func(t *testing.T) {
		d := &entities.Descriptor{PluginID: "x", PluginDirectory: t.TempDir(), ExecuteFilePath: "gone.wasm"}
		res := l.Load(ctx, d)
		assert.ErrorIs(t, res.Err, entities.ErrModuleNotFound)
	})
}

func TestWasmLoader_Instantiate(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	ctx := context.Background()
	d := writeWasm(t, echoModule())
	require.True(t, l.Load(ctx, d).IsSuccess())

	p, err := l.Instantiate(ctx, d, pluginhost.NewContext(d))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Dispose() })

	assert.Equal(t, values.CapTranslate, capability.Detect(p))

	tr, ok := p.(capability.Translator)
	require.True(t, ok)
	resp, err := tr.Translate(ctx, capability.TranslateRequest{Text: "hello", TargetLang: "zh"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)

	ocr, ok := p.(capability.OCR)
	require.True(t, ok)
	_, err = ocr.Recognize(ctx, capability.OCRRequest{})
	assert.ErrorIs(t, err, capability.ErrUnsupported)

	// A second instance of the same module coexists with the first.
	p2, err := l.Instantiate(ctx, d, pluginhost.NewContext(d))
	require.NoError(t, err)
	require.NoError(t, p2.Dispose())
}

func TestWasmLoader_InstantiateUnloaded(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	d := writeWasm(t, echoModule())
	_, err := l.Instantiate(context.Background(), d, nil)
	assert.Error(t, err)
}

func TestWasmLoader_HostSettings(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	ctx := context.Background()
	d := writeWasm(t, buildModule("cached",
		[]wasmImport{{wazero.ModuleName, wazero.FuncLoadSettings}},
		contractFuncs(wasmFunc{"translate", typeI64I64, bodyCallImport()})))
	d.PluginSettingsDirectoryPath = filepath.Join(t.TempDir(), "settings")
	require.True(t, l.Load(ctx, d).IsSuccess())

	hc := pluginhost.NewContext(d)
	require.NoError(t, hc.SaveSettings(map[string]string{"text": "from settings"}))

	p, err := l.Instantiate(ctx, d, hc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Dispose() })

	resp, err := p.(capability.Translator).Translate(ctx, capability.TranslateRequest{Text: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "from settings", resp.Text)
}
