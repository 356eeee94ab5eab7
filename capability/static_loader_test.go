package capability_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ocrTranslator struct{ inits int }

func (p *ocrTranslator) Init(context.Context, capability.Context) error { p.inits++; return nil }
func (p *ocrTranslator) Dispose() error                                 { return nil }
func (p *ocrTranslator) Translate(_ context.Context, req capability.TranslateRequest) (*capability.TranslateResponse, error) {
	return &capability.TranslateResponse{Text: req.Text}, nil
}
func (p *ocrTranslator) Recognize(context.Context, capability.OCRRequest) (*capability.OCRResponse, error) {
	return &capability.OCRResponse{Text: "ok"}, nil
}

type bare struct{}

func (bare) Init(context.Context, capability.Context) error { return nil }
func (bare) Dispose() error                                 { return nil }

func writeModule(t *testing.T, content string) *entities.Descriptor {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.plugin"), []byte(content), 0o600))
	return &entities.Descriptor{PluginID: "test.plugin", Name: "Test", PluginDirectory: dir, ExecuteFilePath: "main.plugin"}
}

func TestStaticLoader_Load(t *testing.T) {
	t.Parallel()

	reg := capability.NewRegistry()
	require.NoError(t, reg.Register("multi", func() capability.Plugin { return &ocrTranslator{} }))
	require.NoError(t, reg.Register("bare", func() capability.Plugin { return bare{} }))
	require.NoError(t, reg.Register("panics", func() capability.Plugin { panic("boom") }))
	loader := capability.NewStaticLoader(capability.WithRegistry(reg))
	ctx := context.Background()

	t.Run("binds capabilities", func(t *testing.T) {
		d := writeModule(t, "multi\n")
		res := loader.Load(ctx, d)
		require.True(t, res.IsSuccess(), "%v", res.Err)
		assert.Equal(t, "multi", d.AssemblyName)
		assert.Equal(t, values.CapTranslate|values.CapOCR, d.PluginType)
	})

	tests := []struct {
		name    string
		content string
		kind    error
	}{
		{"no capability", "bare", entities.ErrNoCapability},
		{"empty name", "  \n", entities.ErrModuleNameUnknown},
		{"unregistered", "nobody", entities.ErrModuleLoad},
		{"factory panic", "panics", entities.ErrModuleLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := loader.Load(ctx, writeModule(t, tt.content))
			require.False(t, res.IsSuccess())
			assert.ErrorIs(t, res.Err, tt.kind)
		})
	}

	t.Run("missing module file", func(t *testing.T) {
		d := &entities.Descriptor{PluginDirectory: t.TempDir(), ExecuteFilePath: "gone.plugin"}
		res := loader.Load(ctx, d)
		assert.ErrorIs(t, res.Err, entities.ErrModuleNotFound)
	})
}

func TestStaticLoader_Instantiate(t *testing.T) {
	t.Parallel()

	reg := capability.NewRegistry()
	require.NoError(t, reg.Register("multi", func() capability.Plugin { return &ocrTranslator{} }))
	loader := capability.NewStaticLoader(capability.WithRegistry(reg))
	ctx := context.Background()

	d := writeModule(t, "multi")
	_, err := loader.Instantiate(ctx, d, nil)
	require.Error(t, err, "instantiate before load")

	require.True(t, loader.Load(ctx, d).IsSuccess())
	p, err := loader.Instantiate(ctx, d, nil)
	require.NoError(t, err)

	tr, ok := p.(capability.Translator)
	require.True(t, ok)
	resp, err := tr.Translate(ctx, capability.TranslateRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, 1, p.(*ocrTranslator).inits)

	require.NoError(t, loader.Close(ctx))
	_, err = loader.Instantiate(ctx, d, nil)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := capability.NewRegistry()
	require.NoError(t, reg.Register("b", func() capability.Plugin { return bare{} }))
	require.NoError(t, reg.Register("a", func() capability.Plugin { return bare{} }))
	assert.Error(t, reg.Register("a", func() capability.Plugin { return bare{} }))
	assert.Error(t, reg.Register("", func() capability.Plugin { return bare{} }))
	assert.Error(t, reg.Register("c", nil))
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	_, ok := reg.Get("missing")
	assert.False(t, ok)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, values.CapNone, capability.Detect(nil))
	assert.Equal(t, values.CapNone, capability.Detect(bare{}))
	assert.Equal(t, values.CapTranslate|values.CapOCR, capability.Detect(&ocrTranslator{}))
}
