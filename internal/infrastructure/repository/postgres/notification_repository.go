package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type NotificationRepository struct {
	db *sqlx.DB
}

var notificationSelectColumns = []string{
	"notification_id",
	"player_id",
	"type",
	"title",
	"message",
	"link_path",
	"data",
	"read_status",
	"read_at",
	"created_at",
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	query, args, err := qb.InsertModel("notifications", newNotificationTableModel(n),
		"RETURNING "+strings.Join(notificationSelectColumns, ", "))
	if err != nil {
		return notification.Notification{}, fmt.Errorf("build insert notification query: %w", err)
	}
	var row notificationTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return notification.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return row.toDomain(), nil
}

func (r *NotificationRepository) List(ctx context.Context, playerID int64, f notification.ListFilter) ([]notification.Notification, error) {
	conds := []qb.Condition{qb.Eq("player_id", playerID)}
	if f.UnreadOnly {
		conds = append(conds, qb.Eq("read_status", false))
	}
	query, args, err := qb.Select(notificationSelectColumns...).From("notifications").
		Where(conds...).
		OrderBy("created_at DESC", "notification_id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select notifications query: %w", err)
	}
	var rows []notificationTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	out := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// MarkRead is idempotent: an already-read notification still reports true.
func (r *NotificationRepository) MarkRead(ctx context.Context, playerID, id int64, at time.Time) (bool, error) {
	query, args, err := qb.Update("notifications").
		Set("read_status", true).
		SetExpr("read_at", "COALESCE(read_at, ?)", at).
		Where(qb.Eq("notification_id", id), qb.Eq("player_id", playerID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build mark notification read query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := rowsAffected(res, "mark notification read")
	return n > 0, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, playerID int64, at time.Time) (int, error) {
	query, args, err := qb.Update("notifications").
		Set("read_status", true).
		Set("read_at", at).
		Where(qb.Eq("player_id", playerID), qb.Eq("read_status", false)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build mark all notifications read query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return rowsAffected(res, "mark all notifications read")
}

func (r *NotificationRepository) Delete(ctx context.Context, playerID, id int64) (bool, error) {
	query, args, err := qb.DeleteFrom("notifications").
		Where(qb.Eq("notification_id", id), qb.Eq("player_id", playerID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete notification query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	n, err := rowsAffected(res, "delete notification")
	return n > 0, err
}

func (r *NotificationRepository) Stats(ctx context.Context, playerID int64, since time.Time) (notification.Stats, error) {
	var row struct {
		Total  int `db:"total"`
		Unread int `db:"unread"`
		Today  int `db:"today"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE NOT read_status) AS unread,
		COUNT(*) FILTER (WHERE created_at >= $2) AS today
		FROM notifications WHERE player_id = $1`, playerID, since)
	if err != nil {
		return notification.Stats{}, fmt.Errorf("select notification stats: %w", err)
	}
	return notification.Stats{Total: row.Total, Unread: row.Unread, Today: row.Today}, nil
}

func (r *NotificationRepository) TrimToLatest(ctx context.Context, playerID int64, keep int) (int, error) {
	query, args, err := qb.DeleteFrom("notifications").
		Where(
			qb.Eq("player_id", playerID),
			qb.Expr(`notification_id NOT IN (SELECT notification_id FROM notifications
				WHERE player_id = ? ORDER BY created_at DESC, notification_id DESC LIMIT ?)`, playerID, keep),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build trim notifications query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("trim notifications: %w", err)
	}
	return rowsAffected(res, "trim notifications")
}
