package league

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSettingsMerge(t *testing.T) {
	t.Parallel()

	rounds := 2
	private := PrivacyPrivate
	irl := true
	s, err := DefaultSettings().Merge(SettingsOverrides{NumRounds: &rounds, Privacy: &private, IsIRL: &irl})
	require.NoError(t, err)
	require.Equal(t, 2, s.NumRounds)
	require.Equal(t, PrivacyPrivate, s.Privacy)
	require.True(t, s.IsIRL)
	require.Equal(t, 168, s.RoundDurationHours)
	require.True(t, s.AllowPlayerInvites)

	weird := Privacy("secret")
	_, err = DefaultSettings().Merge(SettingsOverrides{Privacy: &weird})
	require.Error(t, err)
}

func TestPlanRounds(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	s := DefaultSettings()
	s.NumRounds = 3
	s.RoundDurationHours = 24

	rounds := PlanRounds(9, s, start)
	require.Len(t, rounds, 3)
	require.Equal(t, RoundActive, rounds[0].Status)
	require.Equal(t, RoundScheduled, rounds[1].Status)
	require.Equal(t, start.Add(48*time.Hour), rounds[2].StartTime)
	require.Equal(t, start.Add(72*time.Hour), rounds[2].EndTime)
	require.Equal(t, 3, rounds[2].Number)
}

func TestRankStandingsDense(t *testing.T) {
	t.Parallel()

	ranked := RankStandings([]Standing{
		{PlayerID: 3, TotalScore: 40},
		{PlayerID: 1, TotalScore: 55},
		{PlayerID: 2, TotalScore: 40},
		{PlayerID: 4, TotalScore: 10},
	})
	require.Equal(t, []int64{1, 2, 3, 4}, []int64{ranked[0].PlayerID, ranked[1].PlayerID, ranked[2].PlayerID, ranked[3].PlayerID})
	require.Equal(t, []int{1, 2, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank, ranked[3].Rank})
}

func TestInvitePermissions(t *testing.T) {
	t.Parallel()

	l := League{CreatedBy: 1, Settings: DefaultSettings()}
	member := Membership{PlayerID: 5, Role: RoleMember, IsActive: true}
	require.True(t, member.CanInvite(l))

	l.Settings.AllowPlayerInvites = false
	require.False(t, member.CanInvite(l))
	require.True(t, Membership{PlayerID: 6, Role: RoleAdmin, IsActive: true}.CanInvite(l))
	require.True(t, Membership{PlayerID: 1, Role: RoleMember, IsActive: true}.CanInvite(l))
	require.False(t, Membership{PlayerID: 6, Role: RoleAdmin}.CanInvite(l))
}

func TestJoinableAndFull(t *testing.T) {
	t.Parallel()

	limit := 2
	l := League{Status: StatusActive, Settings: DefaultSettings(), MaxMembers: &limit}
	require.True(t, l.Joinable())
	require.True(t, l.Full(2))
	require.False(t, l.Full(1))

	l.Settings.AllowLateJoiners = false
	require.False(t, l.Joinable())
	require.False(t, League{Status: StatusCompleted}.Joinable())
}
