package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
)

type Config struct {
	Port int // HTTP server port (default: 8080)

	DatabaseDriver   string // sqlite or postgres (default: sqlite)
	DatabaseDSN      string // SQLite file or PostgreSQL connection string (default: walletauth.db)
	DatabaseMaxConns int    // PostgreSQL pool size (default: 25)

	SecretsFile   string // Optional: YAML key file. Unset means a single secret from the environment
	WatchSecrets  bool   // Reload the secrets file when it changes (default: true)
	MasterKeyFile string // Optional: key for encrypted entries in the secrets file
	AccessKid     string // kid of the environment secret (default: k1)
	AccessSecret  string // Optional: base64 HS512 secret, generated on startup when empty

	PepperFile string // Optional: pepper mixed into client secret hashes

	AccessTTL  time.Duration // Used when a channel has no lifetime (default: 10m)
	RefreshTTL time.Duration // Used when a channel has no lifetime (default: 15m)

	SecretCacheEntries int64         // default: 10000
	SecretCacheTTL     time.Duration // default: 5m

	EventPublisher string        // log or redis (default: log)
	EventTimeout   time.Duration // per publish (default: 5s)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1m)
}

func LoadConfig() Config {
	return Config{
		Port: getEnvIntOrDefault("WALLET_AUTH_PORT", 8080),

		DatabaseDriver:   strings.ToLower(getEnvOrDefault("WALLET_AUTH_DB_DRIVER", "sqlite")),
		DatabaseDSN:      getEnvOrDefault("WALLET_AUTH_DB_DSN", "walletauth.db"),
		DatabaseMaxConns: getEnvIntOrDefault("WALLET_AUTH_DB_MAX_CONNS", 25),

		SecretsFile:   os.Getenv("WALLET_AUTH_SECRETS_FILE"),
		WatchSecrets:  getEnvBoolOrDefault("WALLET_AUTH_WATCH_SECRETS", true),
		MasterKeyFile: os.Getenv("WALLET_AUTH_MASTER_KEY_FILE"),
		AccessKid:     getEnvOrDefault("WALLET_AUTH_ACCESS_KID", "k1"),
		AccessSecret:  os.Getenv("WALLET_AUTH_ACCESS_SECRET"),

		PepperFile: os.Getenv("WALLET_AUTH_PEPPER_FILE"),

		AccessTTL:  getEnvDurationOrDefault("WALLET_AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL: getEnvDurationOrDefault("WALLET_AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),

		SecretCacheEntries: int64(getEnvIntOrDefault("WALLET_AUTH_SECRET_CACHE_ENTRIES", authn.DefaultSecretCacheEntries)),
		SecretCacheTTL:     getEnvDurationOrDefault("WALLET_AUTH_SECRET_CACHE_TTL", authn.DefaultSecretCacheTTL),

		EventPublisher: strings.ToLower(getEnvOrDefault("WALLET_AUTH_EVENTS", "log")),
		EventTimeout:   getEnvDurationOrDefault("WALLET_AUTH_EVENT_TIMEOUT", 5*time.Second),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// readTrimmedFile returns the file contents without surrounding whitespace.
// An empty path yields an empty value.
func readTrimmedFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(string(raw))), nil
}
