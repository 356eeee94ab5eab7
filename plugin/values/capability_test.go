package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapability_Set(t *testing.T) {
	c := CapTranslate | CapOCR

	assert.True(t, c.Has(CapTranslate))
	assert.True(t, c.Has(CapOCR))
	assert.True(t, c.Has(CapTranslate|CapOCR))
	assert.False(t, c.Has(CapTTS))
	assert.False(t, c.Has(CapNone))
	assert.Equal(t, "translate|ocr", c.String())
	assert.Equal(t, []string{"translate", "ocr"}, c.Names())
}

func TestCapability_None(t *testing.T) {
	assert.True(t, CapNone.IsNone())
	assert.Equal(t, "none", CapNone.String())
	assert.Empty(t, CapNone.Names())
}

func TestParseCapability(t *testing.T) {
	for _, name := range CapabilityExports() {
		c, err := ParseCapability(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}

	c, err := ParseCapability(" TTS ")
	require.NoError(t, err)
	assert.Equal(t, CapTTS, c)

	_, err = ParseCapability("speech")
	assert.Error(t, err)
}
