package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "scheduling:events"

// RedisBroadcaster publishes events on a Redis channel so every API instance
// can relay them to its own websocket subscribers.
type RedisBroadcaster struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisBroadcaster(client redis.UniversalClient, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroadcaster{client: client, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Relay feeds events received on the Redis channel into a local Hub.
type Relay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *slog.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewRelay(client redis.UniversalClient, channel string, hub *Hub, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		client:         client,
		channel:        channel,
		hub:            hub,
		logger:         logger,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     10 * time.Second,
	}
}

// Run blocks until ctx is done, resubscribing with exponential backoff
// whenever the subscription fails. ready, if non-nil, is closed the first
// time the server confirms the subscription.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialBackoff
	bo.MaxInterval = r.maxBackoff

	var once sync.Once
	onSubscribed := func() {
		bo.Reset()
		if ready != nil {
			once.Do(func() { close(ready) })
		}
	}

	for {
		err := r.session(ctx, onSubscribed)
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		r.logger.Warn("realtime relay lost its subscription", "channel", r.channel, "err", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (r *Relay) session(ctx context.Context, onSubscribed func()) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	onSubscribed()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription %s closed", r.channel)
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("drop malformed realtime event", "channel", msg.Channel, "err", err)
				continue
			}
			r.hub.Deliver(ev)
		}
	}
}
