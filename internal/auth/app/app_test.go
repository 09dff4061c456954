package app

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("WALLET_AUTH_PORT", "9090")
	t.Setenv("WALLET_AUTH_DB_DRIVER", "Postgres")
	t.Setenv("WALLET_AUTH_ACCESS_TTL", "20")
	t.Setenv("WALLET_AUTH_REFRESH_TTL", "45m")
	t.Setenv("WALLET_AUTH_WATCH_SECRETS", "false")
	t.Setenv("WALLET_AUTH_SECRET_CACHE_ENTRIES", "not-a-number")

	cfg := LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, 20*time.Minute, cfg.AccessTTL)
	require.Equal(t, 45*time.Minute, cfg.RefreshTTL)
	require.False(t, cfg.WatchSecrets)
	require.EqualValues(t, 10_000, cfg.SecretCacheEntries)
	require.Equal(t, "log", cfg.EventPublisher)
	require.Equal(t, "k1", cfg.AccessKid)
}

func TestInitKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("environment secret", func(t *testing.T) {
		secret := []byte("0123456789abcdef0123456789abcdef")
		kr, file, err := InitKeys(Config{AccessKid: "env-1", AccessSecret: base64.StdEncoding.EncodeToString(secret)}, discardLogger())
		require.NoError(t, err)
		require.Nil(t, file)

		cur, err := kr.CurrentSecret(ctx)
		require.NoError(t, err)
		require.Equal(t, "env-1", cur.Kid)
		require.Equal(t, secret, cur.Secret)
	})

	t.Run("ephemeral secret", func(t *testing.T) {
		kr, _, err := InitKeys(Config{AccessKid: "k1"}, discardLogger())
		require.NoError(t, err)
		cur, err := kr.CurrentSecret(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, cur.Secret)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, _, err := InitKeys(Config{AccessKid: "k1", AccessSecret: "%%%"}, discardLogger())
		require.Error(t, err)
	})

	t.Run("secrets file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secrets.yaml")
		doc := "access_secrets:\n  current: f1\n  keys:\n    - kid: f1\n      secret: " +
			base64.StdEncoding.EncodeToString([]byte("file-secret")) + "\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		kr, file, err := InitKeys(Config{SecretsFile: path}, discardLogger())
		require.NoError(t, err)
		require.NotNil(t, file)

		cur, err := kr.CurrentSecret(ctx)
		require.NoError(t, err)
		require.Equal(t, "f1", cur.Kid)

		_, err = kr.AccessSecret(ctx, "missing")
		require.ErrorIs(t, err, keys.ErrNoKey)
	})

	t.Run("encrypted entry without master key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secrets.yaml")
		doc := "access_secrets:\n  current: f1\n  keys:\n    - kid: f1\n      secret: c2VhbGVk\n      encrypted: true\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		_, _, err := InitKeys(Config{SecretsFile: path}, discardLogger())
		require.Error(t, err)
	})
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), Config{DatabaseDriver: "mysql"})
	require.Error(t, err)
}

func TestNewServesReadyz(t *testing.T) {
	cfg := Config{
		DatabaseDriver:       "sqlite",
		DatabaseDSN:          ":memory:",
		AccessKid:            "k1",
		EventPublisher:       "log",
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "text",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Minute,
	}

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// The housekeeping pass runs against the wired cache and a nil reloader.
	a.housekeepingService.RunOnce()
}

func TestNewRejectsUnknownPublisher(t *testing.T) {
	_, err := New(Config{DatabaseDriver: "sqlite", DatabaseDSN: ":memory:", AccessKid: "k1", EventPublisher: "kafka"})
	require.Error(t, err)
}
