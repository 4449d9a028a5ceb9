package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const defaultChannel = "nagarika:events"

// RedisBridge publishes events on a Redis channel and relays everything
// received on it into the local hub, so every instance sees every change.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	logger  *slog.Logger
}

func NewRedisBridge(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, channel: defaultChannel, logger: logger}
}

// Publish sends e to all instances, including this one.
func (b *RedisBridge) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Start subscribes to the channel and relays messages into the hub until
// ctx is cancelled. It returns once the subscription is confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warn("discarding malformed change event", slog.Any("error", err))
					continue
				}
				_ = b.hub.Publish(ctx, e)
			}
		}
	}()
	return nil
}
