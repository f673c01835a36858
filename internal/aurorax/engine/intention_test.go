package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntentionDefaults(t *testing.T) {
	in, err := ParseIntention("")
	require.NoError(t, err)
	assert.Equal(t, DefaultIntention(), in)
}

func TestParseIntentionRecognizedKeys(t *testing.T) {
	in, err := ParseIntention("deadline:12.5;reliability:0.95;duty:0.2;optical:off;backscatter:on;ris:4;selector:argmax")
	require.NoError(t, err)
	assert.Equal(t, 12.5, in.DeadlineS)
	assert.Equal(t, 0.95, in.Reliability)
	assert.Equal(t, 0.2, in.Duty)
	assert.False(t, in.Optical)
	assert.True(t, in.Backscatter)
	assert.Equal(t, 4, in.RISTiles)
	assert.True(t, in.UseArgmax)
}

func TestParseIntentionUnknownKeyIgnored(t *testing.T) {
	in, err := ParseIntention("deadline:5;frobnicate:yes")
	require.NoError(t, err)
	assert.Equal(t, 5.0, in.DeadlineS)
}

func TestParseIntentionMalformedValueRejected(t *testing.T) {
	_, err := ParseIntention("deadline:not-a-number")
	assert.Error(t, err)

	_, err = ParseIntention("reliability:1.5")
	assert.Error(t, err)

	_, err = ParseIntention("optical:maybe")
	assert.Error(t, err)
}
