package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type failing struct{}

func (failing) Publish(context.Context, events.Event) error { return errors.New("broker down") }
func (failing) Close() error                               { return nil }

func TestDispatcherFiresInBackground(t *testing.T) {
	t.Parallel()

	rec := &events.Recorder{}
	d := events.NewDispatcher(events.Fanout{rec, failing{}}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.Fire(ctx, events.UserSession, map[string]any{"user_id": "u1"})
	d.Fire(ctx, events.RefreshBalances, map[string]any{"user_id": "u1"})
	cancel()

	require.NoError(t, d.Close())
	require.Len(t, rec.Events(), 2)
	require.Len(t, rec.Named(events.UserSession), 1)
	require.Equal(t, "u1", rec.Named(events.RefreshBalances)[0].Payload["user_id"])
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := &events.LogPublisher{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	require.NoError(t, p.Publish(context.Background(), events.Event{Name: events.UserSession, Payload: map[string]any{"user_id": "u"}}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, events.UserSession, line["name"])
}

func TestRedisPublisher(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = cl.Close() })

	prefix := "walletauth:test:" + time.Now().Format("150405.000000") + ":"
	p := events.NewRedisPublisherWithClient(cl, events.RedisConfig{StreamPrefix: prefix, MaxLen: 10})

	err := p.Publish(ctx, events.Event{
		Name:    events.RefreshBalances,
		Payload: map[string]any{"user_id": "u1", "channel_slug": "com.bink.wallet"},
		At:      time.Now(),
	})
	require.NoError(t, err)

	stream := p.Stream(events.RefreshBalances)
	t.Cleanup(func() { cl.Del(context.Background(), stream) })

	msgs, err := cl.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, events.RefreshBalances, msgs[0].Values["event"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &payload))
	require.Equal(t, "u1", payload["user_id"])
}

func TestRedisConfigFromEnvDefaults(t *testing.T) {
	cfg, err := events.RedisConfigFromEnv()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Addr)
	require.NotEmpty(t, cfg.StreamPrefix)
}
