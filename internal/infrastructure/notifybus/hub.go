package notifybus

import (
	"context"
	"sync"

	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

const defaultBuffer = 16

type subscriber struct {
	ch   chan notification.Notification
	once sync.Once
}

// Hub fans notifications out to the live subscribers of one process.
// A subscriber that falls behind loses events rather than blocking publishers;
// the stream endpoint resyncs the unread count on reconnect.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64]map[*subscriber]struct{}
	buffer int
	logger *logging.Logger
}

func NewHub(buffer int, logger *logging.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		subs:   make(map[int64]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) Publish(ctx context.Context, n notification.Notification) error {
	h.deliver(ctx, n)
	return nil
}

func (h *Hub) deliver(ctx context.Context, n notification.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[n.PlayerID] {
		select {
		case sub.ch <- n:
		default:
			h.logger.WarnContext(ctx, "notification subscriber is full, dropping event",
				"player_id", n.PlayerID,
				"notification_id", n.ID,
			)
		}
	}
}

func (h *Hub) Subscribe(playerID int64) (<-chan notification.Notification, func()) {
	sub := &subscriber{ch: make(chan notification.Notification, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[playerID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[playerID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[playerID], sub)
			if len(h.subs[playerID]) == 0 {
				delete(h.subs, playerID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers counts open subscriptions across all players.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.subs {
		total += len(set)
	}
	return total
}
