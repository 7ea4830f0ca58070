package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/require"
)

type captureBus struct {
	mu        sync.Mutex
	published []notification.Notification
	fail      bool
}

func (b *captureBus) Publish(_ context.Context, n notification.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("bus closed")
	}
	b.published = append(b.published, n)
	return nil
}

func (b *captureBus) Subscribe(int64) (<-chan notification.Notification, func()) {
	ch := make(chan notification.Notification)
	return ch, func() { close(ch) }
}

type kindCounter struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (k *kindCounter) NotificationPublished(kind string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.kinds == nil {
		k.kinds = map[string]int{}
	}
	k.kinds[kind]++
}

func newNotificationService(env *testEnv, bus notification.Bus, keep int) *NotificationService {
	svc := NewNotificationService(memory.NewNotificationRepository(env.store), bus, keep, logging.NewNop())
	svc.now = env.clock
	return svc
}

func TestNotificationService_NotifyPersistsAndPublishes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Reader", "reader@example.com")
	bus := &captureBus{}
	counter := &kindCounter{}
	svc := newNotificationService(env, bus, 0).WithRecorder(counter)
	ctx := t.Context()

	n, err := svc.Notify(ctx, notification.Notification{PlayerID: p.ID, Title: " Hello ", Message: "First"})
	require.NoError(t, err)
	require.NotZero(t, n.ID)
	require.Equal(t, "Hello", n.Title)
	require.Equal(t, notification.TypeSystem, n.Type)
	require.Equal(t, testNow, n.CreatedAt)
	require.Len(t, bus.published, 1)
	require.Equal(t, 1, counter.kinds["system"])

	bus.fail = true
	_, err = svc.Notify(ctx, notification.Notification{PlayerID: p.ID, Type: notification.TypeMatchResult, Title: "Duel", Message: "You won"})
	require.NoError(t, err)

	_, err = svc.Notify(ctx, notification.Notification{PlayerID: p.ID, Title: "", Message: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Notify(ctx, notification.Notification{Title: "t", Message: "m"})
	require.ErrorIs(t, err, ErrInvalidInput)

	stats, err := svc.Stats(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, notification.Stats{Total: 2, Unread: 2, Today: 2}, stats)
}

func TestNotificationService_ReadDeleteAndTrim(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Reader", "reader@example.com")
	other := env.addPlayer(t, "Other", "other@example.com")
	svc := newNotificationService(env, nil, 3)
	ctx := t.Context()

	var ids []int64
	for i := 0; i < 5; i++ {
		n, err := svc.Notify(ctx, notification.Notification{PlayerID: p.ID, Title: "t", Message: "m"})
		require.NoError(t, err)
		ids = append(ids, n.ID)
		env.advance(1)
	}

	items, err := svc.List(ctx, ListNotificationsInput{PlayerID: p.ID})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, ids[4], items[0].ID)

	require.ErrorIs(t, svc.MarkRead(ctx, other.ID, ids[4]), ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, p.ID, ids[4]))

	unread, err := svc.List(ctx, ListNotificationsInput{PlayerID: p.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)

	marked, err := svc.MarkAllRead(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, marked)

	require.NoError(t, svc.Delete(ctx, p.ID, ids[3]))
	require.ErrorIs(t, svc.Delete(ctx, p.ID, ids[3]), ErrNotFound)

	removed, err := svc.Cleanup(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, removed)

	_, err = svc.List(ctx, ListNotificationsInput{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNotificationService_Subscribe(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Reader", "reader@example.com")
	ctx := t.Context()

	_, err := newNotificationService(env, nil, 0).Subscribe(ctx, p.ID)
	require.ErrorIs(t, err, ErrDependencyUnavailable)

	svc := newNotificationService(env, &captureBus{}, 0)
	_, err = svc.Notify(ctx, notification.Notification{PlayerID: p.ID, Title: "t", Message: "m"})
	require.NoError(t, err)

	sub, err := svc.Subscribe(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, sub.Unread)
	sub.Cancel()
	_, open := <-sub.Events
	require.False(t, open)
}
