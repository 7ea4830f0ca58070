package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTransitions(t *testing.T) {
	b := NewCircuitBreaker(2, 5*time.Second, 1)
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, CircuitStateClosed, b.State())

	b.RecordFailure()
	require.Equal(t, CircuitStateOpen, b.State())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(6 * time.Second)
	require.NoError(t, b.Allow())
	require.Equal(t, CircuitStateHalfOpen, b.State())

	b.RecordSuccess()
	require.Equal(t, CircuitStateClosed, b.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(1, time.Second, 1)
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen, "only one probe allowed in half-open")

	b.RecordFailure()
	require.Equal(t, CircuitStateOpen, b.State())
}

func TestCircuitBreakerExecuteIgnoresNonCountedErrors(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute, 1)
	clientErr := errors.New("400 bad request")

	err := b.Execute(context.Background(), func(context.Context) error { return clientErr }, func(err error) bool {
		return !errors.Is(err, clientErr)
	})
	require.ErrorIs(t, err, clientErr)
	require.Equal(t, CircuitStateClosed, b.State())

	serverErr := errors.New("503")
	err = b.Execute(context.Background(), func(context.Context) error { return serverErr }, nil)
	require.ErrorIs(t, err, serverErr)
	require.Equal(t, CircuitStateOpen, b.State())

	called := false
	err = b.Execute(context.Background(), func(context.Context) error { called = true; return nil }, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.False(t, called)
}

func TestNilCircuitBreakerAllowsEverything(t *testing.T) {
	b := NewCircuitBreakerFromConfig(CircuitBreakerConfig{Enabled: false})
	require.Nil(t, b)
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }, nil))
	require.Equal(t, CircuitStateClosed, b.State())
}

func TestCircuitBreakerReportsTransitions(t *testing.T) {
	t.Parallel()

	type transition struct{ from, to CircuitState }
	var seen []transition
	b := NewCircuitBreakerFromConfig(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		HalfOpenMaxReq:   1,
		Name:             "calendar",
		OnStateChange: func(name string, from, to CircuitState) {
			require.Equal(t, "calendar", name)
			seen = append(seen, transition{from, to})
		},
	})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	err := b.Allow()
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.ErrorContains(t, err, "calendar")

	now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow())
	b.RecordSuccess()

	require.Equal(t, []transition{
		{CircuitStateClosed, CircuitStateOpen},
		{CircuitStateOpen, CircuitStateHalfOpen},
		{CircuitStateHalfOpen, CircuitStateClosed},
	}, seen)
}
