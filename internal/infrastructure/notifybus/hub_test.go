package notifybus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

func TestHubDeliversOnlyToTargetPlayer(t *testing.T) {
	t.Parallel()

	hub := NewHub(4, logging.NewNop())
	mine, cancelMine := hub.Subscribe(1)
	defer cancelMine()
	theirs, cancelTheirs := hub.Subscribe(2)
	defer cancelTheirs()

	require.NoError(t, hub.Publish(context.Background(), notification.Notification{ID: 7, PlayerID: 1, Title: "Duel accepted"}))

	select {
	case n := <-mine:
		require.Equal(t, int64(7), n.ID)
	case <-time.After(time.Second):
		t.Fatal("expected notification for player 1")
	}
	select {
	case n := <-theirs:
		t.Fatalf("player 2 received %+v", n)
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, logging.NewNop())
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, notification.Notification{ID: 1, PlayerID: 1}))
	require.NoError(t, hub.Publish(ctx, notification.Notification{ID: 2, PlayerID: 1}))

	require.Equal(t, int64(1), (<-ch).ID)
	select {
	case n := <-ch:
		t.Fatalf("unexpected second event %+v", n)
	default:
	}
}

func TestHubCancelClosesChannelOnce(t *testing.T) {
	t.Parallel()

	hub := NewHub(0, nil)
	ch, cancel := hub.Subscribe(5)
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)
	require.Zero(t, hub.Subscribers())

	require.NoError(t, hub.Publish(context.Background(), notification.Notification{PlayerID: 5}))
}
