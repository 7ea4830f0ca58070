package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/platform/logging"
)

func TestSchedulerRunsIntervalJobs(t *testing.T) {
	t.Parallel()

	s, err := New(logging.NewNop(), time.Second)
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Every("tick", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	}))
	s.Start()
	defer func() { require.NoError(t, s.Shutdown()) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerRejectsBadDefinitions(t *testing.T) {
	t.Parallel()

	s, err := New(nil, 0)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	noop := func(context.Context) error { return nil }
	require.Error(t, s.Cron("bad", "not a cron", noop))
	require.Error(t, s.Every("zero", 0, noop))
	require.NoError(t, s.Cron("weekly", "0 21 * * 0", noop))
}

func TestRegisterSkipsNilJobs(t *testing.T) {
	t.Parallel()

	s, err := New(logging.NewNop(), 0)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	counted := Counted(func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, s.Register(Jobs{
		CertificateCron: "0 21 * * 0",
		SweepInterval:   time.Minute,
		RefreshInterval: time.Minute,
		ExpireDuels:     counted,
		RefreshBoards:   counted,
	}))
	require.Len(t, s.s.Jobs(), 2)
	require.NoError(t, counted(context.Background()))
}
