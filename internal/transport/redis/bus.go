// Package redis implements the shared publish/subscribe bus on Redis
// channels.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Bus struct {
	logger *slog.Logger
	client *redis.Client
}

func New(ctx context.Context, logger *slog.Logger, addr string) (*Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Bus{
		logger: logger.With("component", "redis-bus"),
		client: client,
	}, nil
}

func (that *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := that.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

// Subscribe - delivers every message on the topic to the handler until the
// context is canceled. The subscription is confirmed before returning, so a
// publish issued after Subscribe will be observed.
func (that *Bus) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error {
	log := that.logger.With("method", "Subscribe", "topic", topic)

	pubsub := that.client.Subscribe(ctx, topic)

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	messages := pubsub.Channel()

	go func() {
		defer func() {
			if err := pubsub.Close(); err != nil {
				log.Error("failed to close subscription", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}

				handler([]byte(message.Payload))
			}
		}
	}()

	log.Info("subscribed")

	return nil
}

func (that *Bus) Close() error {
	if err := that.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}
