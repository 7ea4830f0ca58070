package invitation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentifier(t *testing.T) {
	t.Parallel()

	require.Equal(t, "newuser@example.com", NormalizeIdentifier(IdentifierEmail, "  NewUser@Example.com "))
	require.Equal(t, "+15551234567", NormalizeIdentifier(IdentifierPhone, "+1 (555) 123-4567"))
	require.Equal(t, "putter", NormalizeIdentifier(IdentifierTelegram, "@Putter"))
	require.Equal(t, "Free Form", NormalizeIdentifier(IdentifierOther, " Free Form "))
}

func TestPlaceholderEmail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "newuser@example.com", PlaceholderEmail("newuser@example.com"))
	require.Equal(t, "+15551234567@temp.proofofputt.com", PlaceholderEmail("+1 555 123 4567"))
	require.Equal(t, "invitee@temp.proofofputt.com", PlaceholderEmail("!!!"))
}

func TestTypeValidation(t *testing.T) {
	t.Parallel()

	require.True(t, TypeFriend.Valid())
	require.False(t, Type("party").Valid())
	require.True(t, IdentifierTelegram.Valid())
	require.False(t, IdentifierType("fax").Valid())
}

func TestExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, Invitation{ExpiresAt: now}.Expired(now))
	require.False(t, Invitation{ExpiresAt: now.Add(time.Second)}.Expired(now))
}
