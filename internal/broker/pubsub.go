package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PubSub is the generic fan-out capability the presence service
// publishes through. Any broker with topic publish and pattern
// subscribe satisfies it; the shipped implementation rides redis.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(ctx context.Context, pattern string, handler func(topic string, payload []byte)) error
	Close() error
}

// StatusTopic returns the per-tenant presence channel name.
func StatusTopic(prefix, tenantID string) string {
	return fmt.Sprintf("%s:events:%s", prefix, tenantID)
}

// StatusTopicPattern matches every tenant's presence channel, so one
// PSubscribe serves all tenants on a process.
func StatusTopicPattern(prefix string) string {
	return fmt.Sprintf("%s:events:*", prefix)
}

type redisPubSub struct {
	rdb *redis.Client
}

func NewRedisPubSub(addr, password string, db int) (PubSub, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &redisPubSub{rdb: rdb}, nil
}

func (b *redisPubSub) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return b.rdb.Publish(ctx, topic, data).Err()
}

// Subscribe runs the handler for every message matching pattern until
// ctx is cancelled. The receive loop runs on its own goroutine; the
// caller does not block.
func (b *redisPubSub) Subscribe(ctx context.Context, pattern string, handler func(topic string, payload []byte)) error {
	sub := b.rdb.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
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
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *redisPubSub) Close() error {
	if err := b.rdb.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub redis client")
		return err
	}
	return nil
}
