package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2.0", body["apiVersion"])
	return body
}

func TestWriteSuccessEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeSuccess(context.Background(), rec, http.StatusOK, map[string]string{"status": "ok"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	require.Contains(t, body, "data")
	require.NotContains(t, body, "error")
}

func TestWriteErrorMapsSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		code   int
		status string
	}{
		{usecase.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{usecase.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{usecase.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED"},
		{usecase.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{usecase.ErrConflict, http.StatusConflict, "ALREADY_EXISTS"},
		{usecase.ErrExpired, http.StatusGone, "FAILED_PRECONDITION"},
		{usecase.ErrRateLimited, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"},
		{usecase.ErrDependencyUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(context.Background(), rec, fmt.Errorf("%w: detail", tc.err))

		require.Equal(t, tc.code, rec.Code, tc.err.Error())
		body := decodeEnvelope(t, rec)
		errObj := body["error"].(map[string]any)
		require.Equal(t, tc.status, errObj["status"])
		require.Contains(t, errObj["message"], "detail")
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeError(context.Background(), rec, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	errObj := decodeEnvelope(t, rec)["error"].(map[string]any)
	require.Equal(t, internalMessage, errObj["message"])

	rec = httptest.NewRecorder()
	writeErrorDetail(context.Background(), rec, errors.New("pq: connection refused"), true)
	errObj = decodeEnvelope(t, rec)["error"].(map[string]any)
	require.Equal(t, "pq: connection refused", errObj["message"])
}

func TestMapErrorUnwrapsChains(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("upload session: %w", fmt.Errorf("%w: not a participant of this duel", usecase.ErrForbidden))
	mapped := mapError(wrapped)
	require.Equal(t, http.StatusForbidden, mapped.HTTPStatus)
	require.Equal(t, "forbidden", mapped.Reason)

	require.Equal(t, http.StatusInternalServerError, mapError(errors.New("boom")).HTTPStatus)
	require.Equal(t, "internalError", mapError(nil).Reason)
}
