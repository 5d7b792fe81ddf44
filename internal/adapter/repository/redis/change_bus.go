package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
)

// ChangeBus carries change events over a Redis Pub/Sub channel so every
// server instance can notify its own WebSocket clients.
type ChangeBus struct {
	client  *redis.Client
	channel string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewChangeBus creates a ChangeBus on channel.
func NewChangeBus(client *redis.Client, channel string, m *metrics.Metrics, logger zerolog.Logger) *ChangeBus {
	return &ChangeBus{
		client:  client,
		channel: channel,
		metrics: m,
		logger:  logger.With().Str("component", "change_bus").Logger(),
	}
}

// Name implements eventpublisher.Sink.
func (b *ChangeBus) Name() string { return "redis" }

// Publish sends event to the channel.
func (b *ChangeBus) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: encode change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.count("publish", err)
		return fmt.Errorf("redis: publish %s: %w", b.channel, err)
	}
	b.count("publish", nil)
	return nil
}

// Subscribe returns events received on the channel until ctx is cancelled.
// The returned channel is closed when the subscription ends.
func (b *ChangeBus) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		b.count("subscribe", err)
		return nil, fmt.Errorf("redis: subscribe %s: %w", b.channel, err)
	}
	b.count("subscribe", nil)

	out := make(chan domain.ChangeEvent, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn().Err(err).Msg("discarding malformed change event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *ChangeBus) count(op string, err error) {
	if b.metrics == nil {
		return
	}
	if err != nil {
		b.metrics.RedisErrors.WithLabelValues(op).Inc()
		return
	}
	b.metrics.RedisOperations.WithLabelValues(op).Inc()
}
