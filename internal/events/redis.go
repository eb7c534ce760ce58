// Package events bridges change notifications between server instances.
// Each instance publishes the topic of every aggregate it mutates; every
// instance relays received topics into its local hub so watchers connected
// anywhere see writes made everywhere.
package events

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus is a thin pub/sub fan-out over one redis channel. Payloads are bare
// topic strings; subscribers re-read their snapshots, so lost messages
// degrade liveness, never correctness.
type Bus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewBus(redisURL, channel string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Bus{
		client:  redis.NewClient(opts),
		channel: channel,
		logger:  logger,
	}, nil
}

// Publish broadcasts a topic to all instances, including this one.
func (b *Bus) Publish(ctx context.Context, topic string) error {
	return b.client.Publish(ctx, b.channel, topic).Err()
}

// Run subscribes and relays every received topic to notify. Blocks until
// the context ends; intended to run in its own goroutine.
func (b *Bus) Run(ctx context.Context, notify func(topic string)) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				if !errors.Is(ctx.Err(), context.Canceled) {
					b.logger.Warn("event subscription closed", zap.String("channel", b.channel))
				}
				return
			}
			notify(msg.Payload)
		}
	}
}

// Ping verifies connectivity at startup.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the redis connection.
func (b *Bus) Close() error {
	return b.client.Close()
}
