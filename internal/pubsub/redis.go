// Package pubsub carries gallery change notifications between server
// processes over Redis.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel gallery changes are published on.
const DefaultChannel = "vidgallery:gallery-changes"

// RedisBus publishes and receives gallery change notifications. The payload of
// each message is the ID of the user whose gallery changed.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// Connect parses redisURL, verifies the server is reachable and returns a bus
// on DefaultChannel.
func Connect(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisBus(client, DefaultChannel, logger), nil
}

// NewRedisBus wraps an existing client.
func NewRedisBus(client *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

// Publish announces that userID's gallery changed.
func (b *RedisBus) Publish(ctx context.Context, userID string) error {
	if err := b.client.Publish(ctx, b.channel, userID).Err(); err != nil {
		return fmt.Errorf("publish gallery change: %w", err)
	}
	return nil
}

// Listen calls handler for every change published on the bus until ctx is
// cancelled. It returns nil on cancellation.
func (b *RedisBus) Listen(ctx context.Context, handler func(userID string)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Receive blocks until the subscription is confirmed so publishes made
	// after Listen starts are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("listening for gallery changes", "channel", b.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			if msg.Payload == "" {
				continue
			}
			handler(msg.Payload)
		}
	}
}

// Close releases the underlying client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
