package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyRoundTrip(t *testing.T) {
	s := strings.Repeat("0f", 32)
	k, err := ParseKey(s)
	require.NoError(t, err)
	assert.Equal(t, s, k.String())
	assert.Equal(t, "0f0f0f0f", k.Short())
	assert.False(t, k.IsZero())
}

func TestParseKeyErrors(t *testing.T) {
	_, err := ParseKey("abcd")
	assert.Error(t, err)

	_, err = ParseKey(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestKeyFromBytes(t *testing.T) {
	_, err := KeyFromBytes(make([]byte, 31))
	assert.Error(t, err)

	k, err := KeyFromBytes(make([]byte, 32))
	require.NoError(t, err)
	assert.True(t, k.IsZero())
}

func TestKeyTextMarshaling(t *testing.T) {
	var k Key
	k[31] = 1
	text, err := k.MarshalText()
	require.NoError(t, err)

	var back Key
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, k, back)
	assert.Equal(t, 0, k.Compare(back))
	assert.Equal(t, -1, Key{}.Compare(k))
}
