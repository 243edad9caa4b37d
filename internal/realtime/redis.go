package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type RedisListener struct {
	logger *slog.Logger
	client *redis.Client
}

func NewRedisListener(logger *slog.Logger, client *redis.Client) *RedisListener {
	return &RedisListener{
		logger: logger.With("component", "redisListener"),
		client: client,
	}
}

func (that *RedisListener) Subscribe(ctx context.Context, roomID string, handler Handler) (Subscription, error) {
	log := that.logger.With("method", "Subscribe", "roomID", roomID)

	pubsub := that.client.Subscribe(ctx, ChannelName(roomID))

	// wait for the subscription confirmation so no change published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to room changes: %w", err)
	}

	messages := pubsub.Channel()

	go func() {
		for message := range messages {
			room, err := decodeRoom([]byte(message.Payload))
			if err != nil {
				log.Error("failed to decode room change", "error", err)
				continue
			}

			handler(room)
		}
	}()

	return newSubscription(pubsub.Close), nil
}
