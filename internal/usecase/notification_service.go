package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

const defaultKeepLatestNotifications = 100

type notificationRecorder interface {
	NotificationPublished(kind string)
}

type NotificationService struct {
	repo       notification.Repository
	bus        notification.Bus
	keepLatest int
	recorder   notificationRecorder
	logger     *logging.Logger
	now        func() time.Time
}

func NewNotificationService(repo notification.Repository, bus notification.Bus, keepLatest int, logger *logging.Logger) *NotificationService {
	if keepLatest <= 0 {
		keepLatest = defaultKeepLatestNotifications
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationService{
		repo:       repo,
		bus:        bus,
		keepLatest: keepLatest,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *NotificationService) WithRecorder(r notificationRecorder) *NotificationService {
	s.recorder = r
	return s
}

// Notify persists the notification and pushes it to live subscribers.
// Delivery and trimming failures are logged; only the insert can fail the call.
func (s *NotificationService) Notify(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NotificationService.Notify")
	defer span.End()

	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	if n.PlayerID <= 0 {
		return notification.Notification{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	if n.Title == "" || n.Message == "" {
		return notification.Notification{}, fmt.Errorf("%w: title and message are required", ErrInvalidInput)
	}
	if n.Type == "" {
		n.Type = notification.TypeSystem
	}
	n.CreatedAt = s.now().UTC()

	stored, err := s.repo.Create(ctx, n)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, stored); err != nil {
			s.logger.WarnContext(ctx, "publish notification failed", "player_id", stored.PlayerID, "notification_id", stored.ID, "error", err)
		}
	}
	if s.recorder != nil {
		s.recorder.NotificationPublished(string(stored.Type))
	}

	if removed, err := s.repo.TrimToLatest(ctx, stored.PlayerID, s.keepLatest); err != nil {
		s.logger.WarnContext(ctx, "trim notifications failed", "player_id", stored.PlayerID, "error", err)
	} else if removed > 0 {
		s.logger.DebugContext(ctx, "trimmed notifications", "player_id", stored.PlayerID, "removed", removed)
	}
	return stored, nil
}

type ListNotificationsInput struct {
	PlayerID   int64
	Limit      int
	Offset     int
	UnreadOnly bool
}

func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]notification.Notification, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NotificationService.List")
	defer span.End()

	if input.PlayerID <= 0 {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	items, err := s.repo.List(ctx, input.PlayerID, notification.ListFilter{
		Limit:      clampLimit(input.Limit, 20, 100),
		Offset:     input.Offset,
		UnreadOnly: input.UnreadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, playerID, notificationID int64) error {
	ok, err := s.repo.MarkRead(ctx, playerID, notificationID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification=%d", ErrNotFound, notificationID)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, playerID int64) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, playerID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, playerID, notificationID int64) error {
	ok, err := s.repo.Delete(ctx, playerID, notificationID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification=%d", ErrNotFound, notificationID)
	}
	return nil
}

// Stats counts total, unread and today's notifications; "today" is the UTC calendar day.
func (s *NotificationService) Stats(ctx context.Context, playerID int64) (notification.Stats, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := s.repo.Stats(ctx, playerID, startOfDay)
	if err != nil {
		return notification.Stats{}, fmt.Errorf("notification stats: %w", err)
	}
	return stats, nil
}

func (s *NotificationService) Cleanup(ctx context.Context, playerID int64) (int, error) {
	removed, err := s.repo.TrimToLatest(ctx, playerID, s.keepLatest)
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	return removed, nil
}

// Subscription is a live feed for one stream connection.
type Subscription struct {
	Events <-chan notification.Notification
	Unread int
	Cancel func()
}

func (s *NotificationService) Subscribe(ctx context.Context, playerID int64) (Subscription, error) {
	if playerID <= 0 {
		return Subscription{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	if s.bus == nil {
		return Subscription{}, fmt.Errorf("%w: notification bus is not configured", ErrDependencyUnavailable)
	}
	stats, err := s.Stats(ctx, playerID)
	if err != nil {
		return Subscription{}, err
	}
	events, cancel := s.bus.Subscribe(playerID)
	return Subscription{Events: events, Unread: stats.Unread, Cancel: cancel}, nil
}
