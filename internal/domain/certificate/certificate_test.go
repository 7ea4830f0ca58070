package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
)

func TestHashDataIgnoresKeyOrder(t *testing.T) {
	t.Parallel()

	a, err := HashData(map[string]any{"b": 2, "a": map[string]any{"y": 1, "x": 2}})
	require.NoError(t, err)
	b, err := HashData(map[string]any{"a": map[string]any{"x": 2, "y": 1}, "b": 2})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	raw, err := CanonicalJSON(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1}`, string(raw))
}

func TestMerkleTreeOddLevelsDuplicateLast(t *testing.T) {
	t.Parallel()

	leaves := []string{"a1", "b2", "c3"}
	tree, err := BuildTree(leaves)
	require.NoError(t, err)

	left := hashPair("a1", "b2")
	right := hashPair("c3", "c3")
	require.Equal(t, hashPair(left, right), tree.Root())

	for i, leaf := range leaves {
		proof, err := tree.Proof(i)
		require.NoError(t, err)
		require.True(t, VerifyProof(leaf, proof, tree.Root()), "leaf %d", i)
	}
	proof, _ := tree.Proof(0)
	require.False(t, VerifyProof("tampered", proof, tree.Root()))
}

func TestMerkleSingleLeafIsRoot(t *testing.T) {
	t.Parallel()

	tree, err := BuildTree([]string{"only"})
	require.NoError(t, err)
	require.Equal(t, "only", tree.Root())

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	require.Empty(t, proof)

	_, err = BuildTree(nil)
	require.ErrorIs(t, err, ErrNoLeaves)
}

func TestDetectAchievements(t *testing.T) {
	t.Parallel()

	before := player.Stats{TotalMakes: 990, TotalPutts: 1200}
	got := Detect(before, session.Stats{TotalPutts: 12, TotalMakes: 12, BestStreak: 12})

	types := map[string][]float64{}
	for _, a := range got {
		types[a.Type] = append(types[a.Type], a.Value)
	}
	require.Equal(t, []float64{3, 7, 10}, types[TypeConsecutiveMakes])
	require.Equal(t, []float64{12}, types[TypePerfectSession])
	require.Equal(t, []float64{1000}, types[TypeCareerMilestone])
	require.Equal(t, []float64{80}, types[TypeAccuracyMilestone])
}

func TestDetectSkipsAccuracyBelowMinimumPutts(t *testing.T) {
	t.Parallel()

	got := Detect(player.Stats{}, session.Stats{TotalPutts: 20, TotalMakes: 19, BestStreak: 2})
	require.Empty(t, got)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	batch := Batch{ID: "b1", Name: BatchName(time.Date(2026, 10, 18, 21, 0, 0, 0, time.UTC)), MerkleRoot: "root"}
	s := Summarize(batch, []QueueEntry{
		{PlayerID: 1, AchievementType: TypeConsecutiveMakes, Data: map[string]any{"rarity_tier": "rare"}},
		{PlayerID: 1, AchievementType: TypePerfectSession, Data: map[string]any{"rarity_tier": "epic"}},
		{PlayerID: 2, AchievementType: TypeConsecutiveMakes},
	}, true)

	require.Equal(t, "Satoshi Sunday 2026-10-18", s.BatchName)
	require.Equal(t, 3, s.CertificateCount)
	require.Equal(t, 2, s.ByType[TypeConsecutiveMakes])
	require.Equal(t, map[string]int{"rare": 1, "epic": 1, "common": 1}, s.ByRarity)
	require.Equal(t, 2, s.UniquePlayers)
}
