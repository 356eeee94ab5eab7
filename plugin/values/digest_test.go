package values

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDigest(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantValue string
	}{
		{"ValidSHA256", "sha256:abcd", false, "abcd"},
		{"UppercaseHex", "sha256:ABCD", false, "abcd"},
		{"MissingValue", "sha256:", true, ""},
		{"NoColon", "sha256abcd", true, ""},
		{"UnsupportedAlgo", "md5:abcd", true, ""},
		{"NotHex", "sha256:xyz", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDigest(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sha256", got.Algorithm())
			assert.Equal(t, tt.wantValue, got.Value())
		})
	}
}

func TestComputeDigest(t *testing.T) {
	// echo -n "hello world" | sha256sum
	const want = "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	d, err := ComputeDigest(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, want, d.String())

	path := filepath.Join(t.TempDir(), "pkg.spkg")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	fromFile, err := ComputeFileDigest(path)
	require.NoError(t, err)
	assert.True(t, d.Equals(fromFile))

	parsed, err := ParseDigest(want)
	require.NoError(t, err)
	assert.True(t, parsed.Equals(d))
}

func TestDigest_Zero(t *testing.T) {
	var d Digest
	assert.True(t, d.IsZero())
	assert.Empty(t, d.String())

	_, err := ComputeFileDigest(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
