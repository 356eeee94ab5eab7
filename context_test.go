package pluginhost_test

import (
	"path/filepath"
	"testing"

	pluginhost "github.com/stranslate-dev/stranslate-plugin-host"
	"github.com/stranslate-dev/stranslate-plugin-host/i18n"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext(t *testing.T) {
	t.Parallel()

	catalog := i18n.NewCatalog()
	catalog.Set("tts.edge", map[string]string{"voice": "Voice"})
	d := &entities.Descriptor{
		PluginID:                    "tts.edge",
		PluginSettingsDirectoryPath: filepath.Join(t.TempDir(), "edge_tts.edge"),
	}
	hc := pluginhost.NewContext(d, pluginhost.WithCatalog(catalog))

	assert.Equal(t, "tts.edge", hc.PluginID())
	assert.NotNil(t, hc.HTTP())
	assert.NotNil(t, hc.Logger())
	assert.Equal(t, "Voice", hc.GetTranslation("voice"))
	assert.Equal(t, "speed", hc.GetTranslation("speed"))

	type conf struct {
		Voice string `yaml:"voice"`
	}
	require.NoError(t, hc.SaveSettings(conf{Voice: "alto"}))
	var got conf
	require.NoError(t, hc.LoadSettings(&got))
	assert.Equal(t, "alto", got.Voice)
	assert.FileExists(t, hc.Settings().Path())
}
