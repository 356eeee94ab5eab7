package parser_test

import (
	"testing"

	"github.com/stranslate-dev/stranslate-plugin-host/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDescriptorParser(t *testing.T) {
	t.Parallel()

	p := parser.NewJSONDescriptorParser()
	d, err := p.Parse([]byte(`{
		"PluginID": "ocr.baidu",
		"Name": "Baidu OCR",
		"Author": "zggsong",
		"Version": "1.1",
		"ExecuteFilePath": "Baidu.wasm",
		"PluginDirectory": "/ignored"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "ocr.baidu", d.PluginID)
	assert.Equal(t, "1.1", d.Version)
	assert.Equal(t, "Baidu.wasm", d.ExecuteFilePath)
	assert.Empty(t, d.PluginDirectory, "computed fields are never read from disk")

	lower, err := p.Parse([]byte(`{"pluginid":"x","executefilepath":"x.wasm"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", lower.PluginID)

	_, err = p.Parse([]byte(`{not json`))
	assert.Error(t, err)
}

func TestYamlDescriptorParser(t *testing.T) {
	t.Parallel()

	p := parser.NewYamlDescriptorParser()
	d, err := p.Parse([]byte("PluginID: tts.edge\nVersion: \"2.0\"\nExecuteFilePath: edge.plugin\n"))
	require.NoError(t, err)
	assert.Equal(t, "tts.edge", d.PluginID)
	assert.Equal(t, "2.0", d.Version)
	assert.Equal(t, "yaml", p.Format())

	_, err = p.Parse([]byte("PluginID: [unterminated"))
	assert.Error(t, err)
}

func TestForFile(t *testing.T) {
	t.Parallel()

	p, ok := parser.ForFile("plugin.JSON")
	require.True(t, ok)
	assert.Equal(t, "json", p.Format())

	p, ok = parser.ForFile("plugin.yml")
	require.True(t, ok)
	assert.Equal(t, "yaml", p.Format())

	_, ok = parser.ForFile("plugin.toml")
	assert.False(t, ok)
}
