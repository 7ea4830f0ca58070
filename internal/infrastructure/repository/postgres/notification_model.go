package postgres

import (
	"time"

	"github.com/proofofputt/putt-api/internal/domain/notification"
)

type notificationTableModel struct {
	ID         int64                 `db:"notification_id,omitinsert"`
	PlayerID   int64                 `db:"player_id"`
	Type       string                `db:"type"`
	Title      string                `db:"title"`
	Message    string                `db:"message"`
	LinkPath   string                `db:"link_path"`
	Data       jsonb[map[string]any] `db:"data"`
	ReadStatus bool                  `db:"read_status"`
	ReadAt     *time.Time            `db:"read_at"`
	CreatedAt  time.Time             `db:"created_at"`
}

func newNotificationTableModel(n notification.Notification) notificationTableModel {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	return notificationTableModel{
		PlayerID:   n.PlayerID,
		Type:       string(n.Type),
		Title:      n.Title,
		Message:    n.Message,
		LinkPath:   n.LinkPath,
		Data:       jsonOf(data),
		ReadStatus: n.ReadStatus,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

func (m notificationTableModel) toDomain() notification.Notification {
	n := notification.Notification{
		ID:         m.ID,
		PlayerID:   m.PlayerID,
		Type:       notification.Type(m.Type),
		Title:      m.Title,
		Message:    m.Message,
		LinkPath:   m.LinkPath,
		ReadStatus: m.ReadStatus,
		CreatedAt:  m.CreatedAt,
		ReadAt:     m.ReadAt,
	}
	if len(m.Data.V) > 0 {
		n.Data = m.Data.V
	}
	return n
}
