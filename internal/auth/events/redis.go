package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisConfig is loaded with envdecode.
type RedisConfig struct {
	Addr         string `env:"REDIS_ADDR,default=localhost:6379"`
	Password     string `env:"REDIS_PASSWORD"`
	DB           int    `env:"REDIS_DB,default=0"`
	StreamPrefix string `env:"REDIS_STREAM_PREFIX,default=walletauth:events:"`
	MaxLen       int64  `env:"REDIS_STREAM_MAXLEN,default=100000"`
}

// RedisConfigFromEnv decodes RedisConfig from the environment.
func RedisConfigFromEnv() (RedisConfig, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return RedisConfig{}, fmt.Errorf("events: redis config: %w", err)
	}
	return cfg, nil
}

// RedisPublisher appends events to one Redis stream per event name.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("events: redis ping: %w", err)
	}
	return NewRedisPublisherWithClient(cl, cfg), nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(cl *redis.Client, cfg RedisConfig) *RedisPublisher {
	return &RedisPublisher{client: cl, prefix: cfg.StreamPrefix, maxLen: cfg.MaxLen}
}

// Stream returns the stream key for an event name.
func (p *RedisPublisher) Stream(name string) string { return p.prefix + name }

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Name, err)
	}

	args := &redis.XAddArgs{
		Stream: p.Stream(ev.Name),
		Values: map[string]any{
			"event":   ev.Name,
			"at":      ev.At.UnixMilli(),
			"payload": data,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("events: xadd %s: %w", ev.Name, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.client.Close() }
