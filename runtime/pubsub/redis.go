package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker publishes JSON payloads over Redis pub/sub, so subscribers on
// other processes see the same events.
type RedisBroker struct {
	client redis.UniversalClient
	prefix string
	buffer int
	logger *zap.Logger
}

// RedisBrokerConfig holds configuration for the Redis broker
type RedisBrokerConfig struct {
	Client redis.UniversalClient
	// Prefix is prepended to every topic
	Prefix string
	// Buffer is the per-subscription channel buffer
	Buffer int
	Logger *zap.Logger
}

// NewRedisBroker creates a Redis broker
func NewRedisBroker(config RedisBrokerConfig) (*RedisBroker, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Prefix == "" {
		config.Prefix = "typegraph:"
	}
	if config.Buffer <= 0 {
		config.Buffer = 64
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &RedisBroker{
		client: config.Client,
		prefix: config.Prefix,
		buffer: config.Buffer,
		logger: config.Logger,
	}, nil
}

// Publish encodes payload as JSON and publishes it on topic
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}
	if err := b.client.Publish(ctx, b.prefix+topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a Redis subscription to topics. Payloads are decoded from
// JSON into generic values.
func (b *RedisBroker) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = b.prefix + t
	}

	ps := b.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", strings.Join(topics, ", "), err)
	}

	id := uuid.NewString()
	out := make(chan any, b.buffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var payload any
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				b.logger.Warn("dropping undecodable payload",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			select {
			case out <- payload:
			case <-done:
				return
			}
		}
	}()

	release := func() {
		close(done)
		if err := ps.Close(); err != nil {
			b.logger.Debug("closing redis subscription", zap.String("subscription", id), zap.Error(err))
		}
	}
	return NewSubscription(id, topics, out, release), nil
}
