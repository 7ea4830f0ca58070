package id

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	a, err := gen.NewID()
	require.NoError(t, err)
	b, err := gen.NewID()
	require.NoError(t, err)

	require.True(t, IsUUID(a))
	require.NotEqual(t, a, b)
}

func TestTokenGeneratorLength(t *testing.T) {
	t.Parallel()

	token, err := NewTokenGenerator(8).NewID()
	require.NoError(t, err)
	require.Len(t, token, 16)
	require.False(t, IsUUID(token))
}
