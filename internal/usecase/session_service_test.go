package usecase

import (
	"testing"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/require"
)

type fixedIDs struct {
	next []string
}

func (f *fixedIDs) NewID() (string, error) {
	out := f.next[0]
	f.next = f.next[1:]
	return out, nil
}

func newSessionService(env *testEnv, ids ...string) (*SessionService, *CertificateService) {
	certs := NewCertificateService(memory.NewCertificateRepository(env.store), nil, env.notes, logging.NewNop())
	certs.now = env.clock
	svc := NewSessionService(SessionServiceDeps{
		Sessions:     env.sessions,
		Players:      env.players,
		Leagues:      env.leagueRepo,
		Duels:        env.duels,
		Achievements: certs,
		Leaderboards: newLeaderboardService(env),
		IDs:          &fixedIDs{next: ids},
	}, logging.NewNop())
	svc.now = env.clock
	return svc, certs
}

func TestSessionService_UploadAccumulatesOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Putter", "putter@example.com")
	svc, _ := newSessionService(env, "generated-1")
	ctx := t.Context()

	data := map[string]any{"putts": float64(40), "makes": float64(31), "best_streak": float64(7), "session_duration": "600"}
	res, err := svc.Upload(ctx, UploadSessionInput{PlayerID: p.ID, Data: data, CSV: "putt,result\n1,make\n"})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "generated-1", res.Session.ID)
	require.Equal(t, 9, res.Session.Stats.TotalMisses)
	require.InDelta(t, 600, res.Session.Stats.DurationSeconds, 0.001)
	require.NotNil(t, res.PlayerStats)
	require.Equal(t, 1, res.PlayerStats.TotalSessions)
	require.Equal(t, 31, res.PlayerStats.TotalMakes)
	require.Len(t, res.Achievements, 2)
	require.Equal(t, certificate.TypeConsecutiveMakes, res.Achievements[0].Type)
	require.Len(t, env.notes.For(p.ID), 2)
	require.Equal(t, notification.TypeAchievement, env.notes.For(p.ID)[0].Type)

	again, err := svc.Upload(ctx, UploadSessionInput{PlayerID: p.ID, SessionID: "generated-1", Data: data})
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Nil(t, again.PlayerStats)
	require.Empty(t, again.Achievements)

	stats, _, err := env.players.GetStats(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalSessions)
	require.Equal(t, 40, stats.TotalPutts)

	items, total, err := svc.List(ctx, p.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)
}

func TestSessionService_UploadValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := env.addPlayer(t, "Owner", "owner@example.com")
	other := env.addPlayer(t, "Other", "other@example.com")
	svc, _ := newSessionService(env, "gen-1")
	ctx := t.Context()

	_, err := svc.Upload(ctx, UploadSessionInput{PlayerID: owner.ID})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: owner.ID, Data: map[string]any{"total_putts": 5, "total_makes": 9, "total_misses": 0}})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: owner.ID, SessionID: "mine", Data: map[string]any{"total_putts": 5, "total_makes": 3}})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: other.ID, SessionID: "mine", Data: map[string]any{"total_putts": 5, "total_makes": 3}})
	require.ErrorIs(t, err, ErrForbidden)

	missingRound := int64(404)
	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: owner.ID, Data: map[string]any{"total_putts": 5}, LeagueRoundID: &missingRound})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionService_UploadSubmitsToDuel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	svc, _ := newSessionService(env, "duel-a", "duel-b")
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID})
	require.NoError(t, err)
	_, err = env.duels.Respond(ctx, invited.ID, d.ID, true)
	require.NoError(t, err)

	res, err := svc.Upload(ctx, UploadSessionInput{PlayerID: creator.ID, Data: map[string]any{"total_putts": 20, "total_makes": 12}, DuelID: &d.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Duel)
	require.Equal(t, duel.StatusActive, res.Duel.Status)

	res, err = svc.Upload(ctx, UploadSessionInput{PlayerID: invited.ID, Data: map[string]any{"total_putts": 20, "total_makes": 14}, DuelID: &d.ID})
	require.NoError(t, err)
	require.Equal(t, duel.StatusCompleted, res.Duel.Status)
	require.Equal(t, invited.ID, *res.Duel.WinnerID)
}

func TestSessionService_RejectedDuelUploadStoresNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	creator := env.addPlayer(t, "Creator", "creator@example.com")
	invited := env.addPlayer(t, "Invited", "invited@example.com")
	outsider := env.addPlayer(t, "Outsider", "outsider@example.com")
	svc, _ := newSessionService(env)
	ctx := t.Context()

	d, err := env.duels.Create(ctx, CreateDuelInput{CreatorID: creator.ID, InvitedPlayerID: invited.ID})
	require.NoError(t, err)

	data := map[string]any{"total_putts": 25, "total_makes": 18}
	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: outsider.ID, SessionID: "s1", Data: data, DuelID: &d.ID})
	require.ErrorIs(t, err, ErrForbidden)

	_, found, err := env.sessions.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.False(t, found)

	res, err := svc.Upload(ctx, UploadSessionInput{PlayerID: outsider.ID, SessionID: "s1", Data: data})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Nil(t, res.Session.DuelID)

	stats, _, err := env.players.GetStats(ctx, outsider.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalSessions)
	require.Equal(t, 18, stats.TotalMakes)

	env.advance(d.Deadline().Sub(env.clock()) + time.Minute)
	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: creator.ID, SessionID: "late", Data: data, DuelID: &d.ID})
	require.ErrorIs(t, err, ErrExpired)
	_, found, err = env.sessions.GetByID(ctx, "late")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSessionService_UploadToLeagueRound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := env.addPlayer(t, "Owner", "owner@example.com")
	outsider := env.addPlayer(t, "Outsider", "outsider@example.com")
	svc, _ := newSessionService(env, "round-1", "round-2", "round-3")
	ctx := t.Context()

	irl := true
	l, err := env.leagues.Create(ctx, CreateLeagueInput{
		OwnerID:  owner.ID,
		Name:     "Clubhouse Night",
		Settings: league.SettingsOverrides{NumRounds: intPtr(1), RoundDurationHours: intPtr(48), IsIRL: &irl},
	})
	require.NoError(t, err)
	detail, err := env.leagues.Start(ctx, owner.ID, l.ID)
	require.NoError(t, err)
	roundID := detail.Rounds[0].ID

	_, err = svc.Upload(ctx, UploadSessionInput{PlayerID: outsider.ID, Data: map[string]any{"total_putts": 10, "total_makes": 5}, LeagueRoundID: &roundID})
	require.ErrorIs(t, err, ErrForbidden)

	env.advance(time.Hour)
	res, err := svc.Upload(ctx, UploadSessionInput{PlayerID: owner.ID, Data: map[string]any{"total_putts": 30, "total_makes": 22}, LeagueRoundID: &roundID})
	require.NoError(t, err)
	require.NotNil(t, res.RoundScore)
	require.InDelta(t, 22, *res.RoundScore, 0.001)
	require.False(t, res.RoundReplace)
	require.Nil(t, res.PlayerStats)

	stats, _, err := env.players.GetStats(ctx, owner.ID)
	require.NoError(t, err)
	require.Zero(t, stats.TotalSessions)
}
