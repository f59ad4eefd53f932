package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// DefaultChannel is the pub/sub channel status events are published on.
const DefaultChannel = "pymonitor:status"

// Redis forwards status events over Redis pub/sub so dashboards in
// other processes can subscribe.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedis(addr, password string, db int, channel string) (*Redis, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, channel: channel}, nil
}

func (r *Redis) Publish(ctx context.Context, ev domain.StatusChangedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
