package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBins(t *testing.T) {
	bins, err := ParseBins([]string{"skbin=7", "name=seven", "empty="})
	require.NoError(t, err)
	require.Len(t, bins, 3)
	assert.Equal(t, value.IntegerValue(7), bins[0].Value)
	assert.Equal(t, value.StringValue("seven"), bins[1].Value)
	assert.Equal(t, value.StringValue(""), bins[2].Value)

	_, err = ParseBins([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseBins([]string{"=1"})
	assert.Error(t, err)
}

func TestWrapString(t *testing.T) {
	wrapped := WrapString("one two three four five six seven eight nine ten eleven twelve")
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short", WrapString("  short "))
}

