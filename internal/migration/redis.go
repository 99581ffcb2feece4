package migration

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// Redis fans migrants out over a Redis Pub/Sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

func NewRedis(url, channel string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{rdb: redis.NewClient(opt), channel: channel}, nil
}

func (r *Redis) Publish(ctx context.Context, payload []byte) error {
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ps := r.rdb.Subscribe(ctx, r.channel)
	// the first reply confirms the subscription
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case ch <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()
	return ch, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
