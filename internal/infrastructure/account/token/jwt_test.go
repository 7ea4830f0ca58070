package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/domain/user"
	"github.com/proofofputt/putt-api/internal/usecase"
)

func TestJWTIssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer, err := NewJWT("secret", "putt-api", time.Hour)
	require.NoError(t, err)

	raw, expiresAt, err := issuer.Issue(user.Principal{PlayerID: 1042, Email: "pat@example.com"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	p, err := issuer.VerifyAccessToken(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, int64(1042), p.PlayerID)
	require.Equal(t, "pat@example.com", p.Email)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mine, err := NewJWT("secret", "putt-api", time.Hour)
	require.NoError(t, err)
	other, err := NewJWT("other-secret", "putt-api", time.Hour)
	require.NoError(t, err)

	raw, _, err := other.Issue(user.Principal{PlayerID: 1})
	require.NoError(t, err)
	_, err = mine.VerifyAccessToken(ctx, raw)
	require.True(t, errors.Is(err, usecase.ErrUnauthorized))

	stale, err := NewJWT("secret", "putt-api", time.Hour)
	require.NoError(t, err)
	stale.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, _, err = stale.Issue(user.Principal{PlayerID: 1})
	require.NoError(t, err)
	_, err = mine.VerifyAccessToken(ctx, raw)
	require.True(t, errors.Is(err, usecase.ErrUnauthorized))

	_, err = mine.VerifyAccessToken(ctx, "  ")
	require.True(t, errors.Is(err, usecase.ErrUnauthorized))
}

func TestJWTRejectsOtherSigningMethods(t *testing.T) {
	t.Parallel()

	mine, err := NewJWT("secret", "", time.Hour)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		PlayerID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = mine.VerifyAccessToken(context.Background(), raw)
	require.True(t, errors.Is(err, usecase.ErrUnauthorized))
}

func TestNewJWTRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWT(" ", "putt-api", 0)
	require.Error(t, err)
}
