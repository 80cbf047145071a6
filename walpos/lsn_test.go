package walpos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []LSN{0, 1, 0xFF, 0xDEADBEEF, 0x100000000, 0xFFFFFFFFFFFFFFFF, 0x16B3D80}
	for _, n := range cases {
		s := n.String()
		got, err := Parse(s)
		require.NoError(t, err, "Parse(%q)", s)
		assert.Equal(t, n, got, "Parse(String(%d)) should round-trip", uint64(n))
	}
}

func TestStringMatchesLibpqFormat(t *testing.T) {
	assert.Equal(t, "0/0", LSN(0).String())
	assert.Equal(t, "0/1", LSN(1).String())
	assert.Equal(t, "1/0", LSN(0x100000000).String())
	assert.Equal(t, "16B3D80/DEADBEEF", LSN(0x16B3D80DEADBEEF).String())
}

func TestParseIsCaseInsensitive(t *testing.T) {
	upper, err := Parse("16B3D80/DEADBEEF")
	require.NoError(t, err)
	lower, err := Parse("16b3d80/deadbeef")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
}

func TestParseRejectsMissingSlash(t *testing.T) {
	_, err := Parse("16B3D80DEADBEEF")
	assert.Error(t, err)
}

func TestParseRejectsNonHex(t *testing.T) {
	_, err := Parse("ZZ/00")
	assert.Error(t, err)
}
