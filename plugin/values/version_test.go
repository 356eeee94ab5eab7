package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.0", "1.0.0", false},
		{"1.2.3", "1.2.3", false},
		{"1.2.3.4", "1.2.3.4", false},
		{" 2.0 ", "2.0.0", false},
		{"01.2", "1.2.0", false},
		{"1", "", true},
		{"1.2.3.4.5", "", true},
		{"v1.0", "", true},
		{"1.0.0-beta", "", true},
		{"1..0", "", true},
		{"not-a-version", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			v, err := ParseVersion(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
			assert.Equal(t, tt.input, v.Original())
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.1", -1},
		{"1.1", "1.0", 1},
		{"1.0", "1.0.0", 0},
		{"1.0.0.0", "1.0", 0},
		{"1.2.3.4", "1.2.3.5", -1},
		{"1.10", "1.9", 1},
		{"garbage", "0.0", 0},
		{"garbage", "0.1", -1},
	}

	for _, tt := range tests {
		a := ParseVersionOrZero(tt.a)
		b := ParseVersionOrZero(tt.b)
		assert.Equal(t, tt.want, a.Compare(b), "%s vs %s", tt.a, tt.b)
	}
}

func TestParseVersionOrZero(t *testing.T) {
	v := ParseVersionOrZero("bogus")
	assert.True(t, v.IsZero())
	assert.Equal(t, "bogus", v.Original())
	assert.Equal(t, "0.0.0", v.String())

	assert.True(t, ParseVersionOrZero("1.1").GreaterThan(ParseVersionOrZero("1.0")))
}
