package postgres

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	require.True(t, isUniqueViolation(&pq.Error{Code: "23505", Constraint: "players_email_key"}))
	require.True(t, isUniqueViolation(fmt.Errorf("insert player: %w", &pq.Error{Code: "23505"})))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, isUniqueViolation(fmt.Errorf("boom")))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	require.True(t, isNotFound(sql.ErrNoRows))
	require.True(t, isNotFound(fmt.Errorf("get player: %w", sql.ErrNoRows)))
	require.False(t, isNotFound(sql.ErrTxDone))
}

func TestJSONBRoundTrip(t *testing.T) {
	t.Parallel()

	in := jsonOf(map[string]any{"duel_id": 7})
	raw, err := in.Value()
	require.NoError(t, err)
	require.JSONEq(t, `{"duel_id":7}`, raw.(string))

	var out jsonb[map[string]any]
	require.NoError(t, out.Scan([]byte(`{"league_id":3}`)))
	require.EqualValues(t, 3, out.V["league_id"])

	require.NoError(t, out.Scan(nil))
	require.Nil(t, out.V)
	require.Error(t, out.Scan(42))
}

func TestNullableHelpers(t *testing.T) {
	t.Parallel()

	require.Nil(t, stringPtr(sql.NullString{}))
	require.Equal(t, "x", *stringPtr(sql.NullString{String: "x", Valid: true}))
	require.Equal(t, "", nullString(sql.NullString{String: "ignored"}))
	require.False(t, toNullString("").Valid)
	require.Equal(t, int64(9), *int64Ptr(sql.NullInt64{Int64: 9, Valid: true}))
	require.Nil(t, float64Ptr(sql.NullFloat64{}))
}
