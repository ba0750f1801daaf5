package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TimeOrdered(t *testing.T) {
	first := New()
	second := New()

	assert.False(t, IsNil(first))
	assert.Equal(t, 7, int(first.Version()))
	assert.Less(t, first.String(), second.String())
}

func TestParse_RoundTrip(t *testing.T) {
	v := New()
	parsed, err := Parse(v.String())
	require.NoError(t, err)
	assert.Equal(t, v, parsed)

	_, err = Parse("not-an-id")
	assert.Error(t, err)
	assert.True(t, IsNil(Nil()))
}
