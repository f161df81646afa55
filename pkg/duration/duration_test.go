package duration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := map[string]int64{
		"1s":  1000,
		"30s": 30_000,
		"5m":  5 * 60_000,
		"2h":  2 * 60 * 60_000,
		"1d":  24 * 60 * 60_000,
		"2w":  2 * 7 * 24 * 60 * 60_000,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "0s", "-1h", "1", "1x", "1S", " 1s", "1s ", "01s"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
		var de *Error
		assert.ErrorAs(t, err, &de)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, canonical := range []string{"1s", "45s", "1m", "5m", "1h", "6h", "1d", "3d", "1w", "4w"} {
		ms, err := Parse(canonical)
		require.NoError(t, err)
		assert.Equal(t, canonical, Format(ms))
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("10m"))
	assert.False(t, Valid("10"))
	assert.False(t, Valid("m10"))
}
