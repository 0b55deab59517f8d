package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/contravention-api/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Publisher sends payloads to a single Redis pub/sub channel.
type Publisher struct {
	client  redis.UniversalClient
	channel string
}

// NewPublisher builds a channel publisher.
func NewPublisher(client redis.UniversalClient, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Channel returns the destination channel name.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish sends payload and returns the number of subscribers that received it.
func (p *Publisher) Publish(ctx context.Context, payload []byte) (int64, error) {
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return receivers, nil
}
