package registry_test

import (
	"encoding/json"
	"testing"

	"github.com/stranslate-dev/stranslate-plugin-host/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistry_DescriptorSchema(t *testing.T) {
	t.Parallel()

	r, err := registry.NewDefaultRegistry()
	require.NoError(t, err)

	raw, ok := r.GetSchema(registry.KindDescriptor)
	require.True(t, ok)

	var schema struct {
		Required   []string                  `json:"required"`
		Properties map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &schema))

	assert.ElementsMatch(t, []string{"PluginID", "ExecuteFilePath"}, schema.Required)
	assert.Contains(t, schema.Properties, "Version")
	assert.NotContains(t, schema.Properties, "PluginDirectory")
	assert.NotContains(t, schema.Properties, "PluginType")
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := registry.NewRegistry()
	require.NoError(t, r.Register("raw", `{"type":"object"}`))
	require.NoError(t, r.Register("map", map[string]any{"type": "string"}))
	assert.Error(t, r.Register("raw", `{}`), "duplicate kind")
	assert.Error(t, r.Register("bad", 42))

	assert.Equal(t, []string{"map", "raw"}, r.List())

	s, ok := r.GetSchema("map")
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"string"}`, s)
}
