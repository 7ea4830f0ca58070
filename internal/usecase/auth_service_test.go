package usecase

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/user"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/require"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "h:"+password {
		return errPasswordMismatch
	}
	return nil
}

type stubIssuer struct{ at time.Time }

func (s stubIssuer) Issue(p user.Principal) (string, time.Time, error) {
	if p.PlayerID == 0 {
		return "", time.Time{}, errors.New("missing subject")
	}
	return "token-" + strconv.FormatInt(p.PlayerID, 10), s.at.Add(24 * time.Hour), nil
}

func newAuthService(env *testEnv) *AuthService {
	svc := NewAuthService(env.players, env.duelRepo, plainHasher{}, stubIssuer{at: env.now}, logging.NewNop())
	svc.now = env.clock
	return svc
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := t.Context()

	res, err := svc.Register(ctx, RegisterInput{Name: " Pop ", Email: "Pop@Example.com", Password: "secret1"})
	require.NoError(t, err)
	require.False(t, res.Claimed)
	require.Equal(t, "pop@example.com", res.Player.Email)
	require.Equal(t, "Pop", res.Player.Name)
	require.Empty(t, res.Player.PasswordHash)
	require.Equal(t, "token-"+strconv.FormatInt(res.Player.ID, 10), res.Token)

	_, err = svc.Register(ctx, RegisterInput{Name: "Pop Again", Email: "pop@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrConflict)

	login, err := svc.Login(ctx, LoginInput{Email: "POP@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, res.Player.ID, login.Player.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "pop@example.com", Password: "wrong-one"})
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, LoginInput{Email: "pop@example.com"})
	require.ErrorIs(t, err, ErrInvalidInput)

	profile, err := svc.Me(ctx, res.Player.ID)
	require.NoError(t, err)
	require.Equal(t, res.Player.ID, profile.Stats.PlayerID)
	_, err = svc.Me(ctx, 424242)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newAuthService(env)

	cases := map[string]RegisterInput{
		"missing name":   {Email: "a@example.com", Password: "secret1"},
		"bad email":      {Name: "Al", Email: "not-an-email", Password: "secret1"},
		"display email":  {Name: "Al", Email: "Al <al@example.com>", Password: "secret1"},
		"short password": {Name: "Al", Email: "al@example.com", Password: "12345"},
		"short name":     {Name: "A", Email: "al@example.com", Password: "secret1"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Register(t.Context(), input)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthService_RegisterClaimsInvitedPlaceholder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	svc := newAuthService(env)
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{
		CreatorID:      creator.ID,
		Identifier:     "friend@example.com",
		IdentifierType: invitation.IdentifierEmail,
	})
	require.NoError(t, err)
	require.Equal(t, duel.StatusPendingNewPlayer, d.Status)

	_, err = svc.Login(ctx, LoginInput{Email: "friend@example.com", Password: "anything"})
	require.ErrorIs(t, err, ErrUnauthorized)

	res, err := svc.Register(ctx, RegisterInput{Name: "Friend", Email: "Friend@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.True(t, res.Claimed)
	require.Equal(t, d.InvitedPlayerID, res.Player.ID)
	require.False(t, res.Player.IsHidden)

	promoted, found, err := env.duelRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, duel.StatusPending, promoted.Status)

	_, err = svc.Register(ctx, RegisterInput{Name: "Friend", Email: "friend@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrConflict)
}
