package opentimestamps

import (
	"context"
	"crypto/sha256"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/resilience"
)

func calendarServer(t *testing.T, status int, attestation []byte, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/digest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != sha256.Size {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(attestation)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStampWrapsAttestationInDetachedFile(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := calendarServer(t, http.StatusOK, []byte{0xf0, 0x10, 0xaa}, &calls)
	client := NewClient(ClientConfig{Calendars: []string{srv.URL}, Timeout: time.Second, Logger: logging.NewNop()})

	root := sha256.Sum256([]byte("merkle-root"))
	proof, err := client.Stamp(context.Background(), root[:])
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	digest, err := DecodeDigest(proof)
	require.NoError(t, err)
	want := sha256.Sum256(root[:])
	require.Equal(t, want[:], digest)
	require.Equal(t, []byte{0xf0, 0x10, 0xaa}, proof[len(proof)-3:])
}

func TestStampFallsBackToNextCalendar(t *testing.T) {
	t.Parallel()

	var downCalls, upCalls atomic.Int32
	down := calendarServer(t, http.StatusServiceUnavailable, nil, &downCalls)
	up := calendarServer(t, http.StatusOK, []byte{0x01}, &upCalls)

	client := NewClient(ClientConfig{Calendars: []string{down.URL, " " + up.URL + "/ "}, Timeout: time.Second, Logger: logging.NewNop()})
	proof, err := client.Stamp(context.Background(), []byte("root"))
	require.NoError(t, err)
	require.NotEmpty(t, proof)
	require.Equal(t, int32(1), downCalls.Load())
	require.Equal(t, int32(1), upCalls.Load())
}

func TestStampFailsWhenEveryCalendarFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	a := calendarServer(t, http.StatusBadRequest, nil, &calls)
	b := calendarServer(t, http.StatusBadGateway, nil, &calls)

	client := NewClient(ClientConfig{Calendars: []string{a.URL, b.URL}, Timeout: time.Second, Logger: logging.NewNop()})
	_, err := client.Stamp(context.Background(), []byte("root"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "all 2 calendars failed")
	require.Equal(t, int32(2), calls.Load())
}

func TestStampStopsWhenCircuitIsOpen(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := calendarServer(t, http.StatusInternalServerError, nil, &calls)
	client := NewClient(ClientConfig{
		Calendars: []string{srv.URL},
		Timeout:   time.Second,
		Logger:    logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})

	_, err := client.Stamp(context.Background(), []byte("root"))
	require.Error(t, err)
	_, err = client.Stamp(context.Background(), []byte("root"))
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	require.Equal(t, int32(1), calls.Load())
}

func TestDecodeDigestRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeDigest([]byte("nope"))
	require.Error(t, err)
}
