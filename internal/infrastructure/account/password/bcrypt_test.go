package password

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndCompare(t *testing.T) {
	t.Parallel()

	h := NewBcrypt(bcrypt.MinCost)
	hash, err := h.Hash("putt-perfect-21")
	require.NoError(t, err)
	require.NotEqual(t, "putt-perfect-21", hash)

	require.NoError(t, h.Compare(hash, "putt-perfect-21"))
	require.Error(t, h.Compare(hash, "wrong"))
}

func TestNewBcryptClampsCost(t *testing.T) {
	t.Parallel()

	require.Equal(t, bcrypt.DefaultCost, NewBcrypt(99).cost)
	require.Equal(t, bcrypt.DefaultCost, NewBcrypt(0).cost)
}
