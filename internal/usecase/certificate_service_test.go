package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTimestamper struct {
	mock.Mock
}

func (m *mockTimestamper) Stamp(ctx context.Context, digest []byte) ([]byte, error) {
	args := m.Called(ctx, digest)
	proof, _ := args.Get(0).([]byte)
	return proof, args.Error(1)
}

func newCertificateService(env *testEnv, stamper Timestamper) *CertificateService {
	svc := NewCertificateService(memory.NewCertificateRepository(env.store), stamper, env.notes, logging.NewNop())
	svc.now = env.clock
	svc.ids = &fixedIDs{next: []string{"batch-1", "batch-2"}}
	return svc
}

func TestCertificateService_QueueSkipsDuplicates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Putter", "putter@example.com")
	svc := newCertificateService(env, nil)
	ctx := t.Context()

	found := []certificate.Achievement{
		{Type: certificate.TypeConsecutiveMakes, Value: 3, Rarity: "rare", Data: map[string]any{"rarity_tier": "rare"}},
	}
	queued, err := svc.QueueAchievements(ctx, p.ID, "s1", env.now, found)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	queued, err = svc.QueueAchievements(ctx, p.ID, "s2", env.now, found)
	require.NoError(t, err)
	require.Empty(t, queued)
	require.Len(t, env.notes.For(p.ID), 1)
}

func TestCertificateService_RunBatchIssuesVerifiableCertificates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	a := env.addPlayer(t, "Alpha", "alpha@example.com")
	b := env.addPlayer(t, "Bravo", "bravo@example.com")
	stamper := &mockTimestamper{}
	svc := newCertificateService(env, stamper)
	ctx := t.Context()

	empty, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	require.True(t, empty.Empty)

	_, err = svc.QueueAchievements(ctx, a.ID, "s1", env.now, []certificate.Achievement{
		{Type: certificate.TypeConsecutiveMakes, Value: 3, Data: map[string]any{"rarity_tier": "rare"}},
		{Type: certificate.TypeConsecutiveMakes, Value: 7, Data: map[string]any{"rarity_tier": "rare"}},
	})
	require.NoError(t, err)
	_, err = svc.QueueAchievements(ctx, b.ID, "s2", env.now, []certificate.Achievement{
		{Type: certificate.TypePerfectSession, Value: 25, Data: map[string]any{"rarity_tier": "epic"}},
	})
	require.NoError(t, err)

	stamper.On("Stamp", mock.Anything, mock.MatchedBy(func(d []byte) bool { return len(d) == 32 })).
		Return([]byte("ots-proof"), nil).
		Once()

	res, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	require.False(t, res.Empty)
	require.Equal(t, "batch-1", res.Summary.BatchID)
	require.Equal(t, "Satoshi Sunday 2026-04-06", res.Summary.BatchName)
	require.Equal(t, 3, res.Summary.CertificateCount)
	require.Equal(t, 2, res.Summary.UniquePlayers)
	require.Equal(t, map[string]int{"rare": 2, "epic": 1}, res.Summary.ByRarity)
	require.True(t, res.Summary.Timestamped)
	_, err = hex.DecodeString(res.Summary.MerkleRoot)
	require.NoError(t, err)
	stamper.AssertExpectations(t)

	again, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	require.True(t, again.Empty)

	certs, err := svc.List(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	for _, c := range certs {
		v, err := svc.Verify(ctx, c.ID)
		require.NoError(t, err)
		require.True(t, v.HashMatches)
		require.True(t, v.InMerkleTree)
		require.True(t, v.Timestamped)
		require.Equal(t, res.Summary.MerkleRoot, v.Certificate.MerkleRoot)
	}

	_, err = svc.Verify(ctx, 999999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCertificateService_RunBatchWithoutTimestamp(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Putter", "putter@example.com")
	stamper := &mockTimestamper{}
	stamper.On("Stamp", mock.Anything, mock.Anything).Return(nil, errors.New("calendar unreachable")).Once()
	svc := newCertificateService(env, stamper)
	ctx := t.Context()

	_, err := svc.QueueAchievements(ctx, p.ID, "s1", env.now, []certificate.Achievement{
		{Type: certificate.TypeCareerMilestone, Value: 1000},
	})
	require.NoError(t, err)

	res, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Summary.CertificateCount)
	require.False(t, res.Summary.Timestamped)
	require.Equal(t, map[string]int{"common": 1}, res.Summary.ByRarity)
}

func TestCertificateService_RunBatchRefusesOverlap(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCertificateService(env, nil)

	svc.running.Lock()
	defer svc.running.Unlock()

	_, err := svc.RunBatch(t.Context())
	require.ErrorIs(t, err, ErrConflict)
}
