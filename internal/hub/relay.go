package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Envelope is one broadcast as it travels between instances.
type Envelope struct {
	Origin  string          `json:"origin"`
	Groups  []string        `json:"groups"`
	Payload json.RawMessage `json:"payload"`
}

// Relay fans broadcasts out to every instance, this one included. Envelopes
// carry their Origin so an instance can recognise its own.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks until ctx is done. ready is called once the
	// subscription is confirmed.
	Subscribe(ctx context.Context, ready func(), deliver func(context.Context, Envelope)) error
}

type RedisRelay struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisRelay(client *redis.Client, channel string, log *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		log:     log.With(slog.String("component", "relay"), slog.String("channel", channel)),
	}
}

func (rr *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: encode envelope: %w", err)
	}
	if err := rr.client.Publish(ctx, rr.channel, data).Err(); err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	return nil
}

func (rr *RedisRelay) Subscribe(ctx context.Context, ready func(), deliver func(context.Context, Envelope)) error {
	pubsub := rr.client.Subscribe(ctx, rr.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so nothing published after
	// ready is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}
	ready()
	rr.log.Info("relay - subscribe - ok")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				rr.log.Warn("relay - decode - dropped", slog.Any("error", err))
				continue
			}
			deliver(ctx, env)
		}
	}
}
