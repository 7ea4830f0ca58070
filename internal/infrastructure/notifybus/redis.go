package notifybus

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "putt:notifications"

// RedisBus publishes through a Redis channel so every API instance delivers to
// its own local subscribers. Publish never touches the local hub directly; the
// instance receives its own messages back from Redis like any other.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *logging.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, hub *Hub, logger *logging.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBus{rdb: rdb, channel: channel, hub: hub, logger: logger}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *RedisBus) Publish(ctx context.Context, n notification.Notification) error {
	payload, err := sonic.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(playerID int64) (<-chan notification.Notification, func()) {
	return b.hub.Subscribe(playerID)
}

// Run relays channel messages into the local hub until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.InfoContext(ctx, "notification relay subscribed", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n notification.Notification
			if err := sonic.UnmarshalString(msg.Payload, &n); err != nil {
				b.logger.WarnContext(ctx, "invalid notification payload", "error", err)
				continue
			}
			b.hub.deliver(ctx, n)
		}
	}
}
