package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("d.duel_id", "d.duel_status").
		From("duels d").
		LeftJoin("players p ON p.player_id = d.duel_creator_id").
		Where(
			Or(Eq("d.duel_creator_id", int64(7)), Eq("d.duel_invited_player_id", int64(7))),
			In("d.duel_status", []string{"pending", "active"}),
			IsNull("d.winner_id"),
		).
		OrderBy("d.created_at DESC").
		Limit(20).
		Offset(40).
		ToSQL()
	require.NoError(t, err)

	want := "SELECT d.duel_id, d.duel_status FROM duels d LEFT JOIN players p ON p.player_id = d.duel_creator_id " +
		"WHERE (d.duel_creator_id = $1 OR d.duel_invited_player_id = $2) AND d.duel_status IN ($3, $4) AND d.winner_id IS NULL " +
		"ORDER BY d.created_at DESC LIMIT 20 OFFSET 40"
	require.Equal(t, want, query)
	require.Equal(t, []any{int64(7), int64(7), "pending", "active"}, args)
}

func TestSelectBuilderForUpdateAndExpr(t *testing.T) {
	query, args, err := Select("*").
		From("invitations").
		Where(Expr("expires_at < ? AND status = ?", "2026-01-01", "pending")).
		ForUpdate().
		ToSQL()
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM invitations WHERE expires_at < $1 AND status = $2 FOR UPDATE", query)
	require.Len(t, args, 2)
}

func TestEmptyInMatchesNothing(t *testing.T) {
	query, args, err := Select("player_id").From("players").Where(In("player_id", []int64{})).ToSQL()
	require.NoError(t, err)
	require.Equal(t, "SELECT player_id FROM players WHERE 1=0", query)
	require.Empty(t, args)
}

func TestInsertBuilderWithSuffixArgs(t *testing.T) {
	query, args, err := InsertInto("player_stats").
		Columns("player_id", "total_makes").
		Values(int64(1000), 15).
		Suffix("ON CONFLICT (player_id) DO UPDATE SET total_makes = player_stats.total_makes + ? RETURNING player_id", 15).
		ToSQL()
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO player_stats (player_id, total_makes) VALUES ($1, $2) "+
		"ON CONFLICT (player_id) DO UPDATE SET total_makes = player_stats.total_makes + $3 RETURNING player_id", query)
	require.Equal(t, []any{int64(1000), 15, 15}, args)
}

func TestInsertBuilderRejectsShortRow(t *testing.T) {
	_, _, err := InsertInto("players").Columns("name", "email").Values("only-name").ToSQL()
	require.Error(t, err)
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("zaprite_events").
		Set("processing_error", "boom").
		SetExpr("retry_count", "retry_count + 1").
		SetExpr("processed_at", "?", "now").
		Where(Eq("id", int64(3))).
		Suffix("RETURNING retry_count").
		ToSQL()
	require.NoError(t, err)
	require.Equal(t, "UPDATE zaprite_events SET processing_error = $1, retry_count = retry_count + 1, processed_at = $2 WHERE id = $3 RETURNING retry_count", query)
	require.Equal(t, []any{"boom", "now", int64(3)}, args)
}

func TestDeleteBuilderRequiresWhere(t *testing.T) {
	_, _, err := DeleteFrom("notifications").ToSQL()
	require.Error(t, err)

	query, args, err := DeleteFrom("notifications").Where(Eq("player_id", int64(1)), Lt("id", int64(50))).ToSQL()
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM notifications WHERE player_id = $1 AND id < $2", query)
	require.Len(t, args, 2)
}

type sampleRow struct {
	ID     int64  `db:"id,omitinsert"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Ignore string `db:"-"`
	hidden string
}

func TestInsertModelSkipsOmitted(t *testing.T) {
	query, args, err := InsertModel("players", sampleRow{ID: 9, Name: "Ann", Email: "ann@example.com", hidden: "x"}, "RETURNING id")
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO players (name, email) VALUES ($1, $2) RETURNING id", query)
	require.Equal(t, []any{"Ann", "ann@example.com"}, args)
}

func TestInsertModelRejectsNonStruct(t *testing.T) {
	_, _, err := InsertModel("players", 12, "")
	require.Error(t, err)

	var nilRow *sampleRow
	_, _, err = InsertModel("players", nilRow, "")
	require.Error(t, err)
}
