package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/events"
	httpapi "github.com/aussiebroadwan/walletauth/internal/auth/http"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/internal/auth/metrics"
	"github.com/aussiebroadwan/walletauth/internal/auth/service"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/walletauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	keys     keys.Resolver
	keyFile  *keys.File // nil unless a secrets file is configured
	secrets  *authn.SecretCache
	events   *events.Dispatcher
	metrics  *metrics.Metrics
	stopKeys context.CancelFunc

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "wallet-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	ctx := context.Background()

	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully", "driver", cfg.DatabaseDriver)

	if err := app.initKeys(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := app.initServices(ctx); err != nil {
		app.closeDependencies()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Store returns the application's store.
func (app *Application) Store() store.Store { return app.db }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("wallet auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down wallet auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeDependencies(); err != nil {
		return err
	}

	app.logger.Info("wallet auth service stopped")
	return nil
}

// Close releases everything New acquired without serving. Used by tests
// that drive Handler directly.
func (app *Application) Close() error { return app.closeDependencies() }

func (app *Application) closeDependencies() error {
	if app.stopKeys != nil {
		app.stopKeys()
	}

	// Drain in-flight events before the store goes away
	if app.events != nil {
		if err := app.events.Close(); err != nil {
			app.logger.Error("error closing event publisher", "error", err)
		}
	}
	if app.secrets != nil {
		app.secrets.Close()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

type migrator interface {
	store.Store
	ApplyMigrations() error
}

// OpenStore connects the configured driver and applies its migrations.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	var (
		db  migrator
		err error
	)

	switch cfg.DatabaseDriver {
	case "postgres", "postgresql":
		db, err = postgres.New(ctx, postgres.Config{
			DSN:      cfg.DatabaseDSN,
			MaxConns: int32(cfg.DatabaseMaxConns),
		})
	case "sqlite", "":
		dsn := cfg.DatabaseDSN
		if dsn != ":memory:" {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
		}
		db, err = sqlite.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// LoadPepper reads the client secret pepper. No file means no pepper.
func LoadPepper(cfg Config) (string, error) {
	raw, err := readTrimmedFile(cfg.PepperFile)
	if err != nil {
		return "", fmt.Errorf("failed to read pepper: %w", err)
	}
	return string(raw), nil
}

func (app *Application) initKeys(ctx context.Context) error {
	kr, file, err := InitKeys(app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize keys: %w", err)
	}
	app.keys = kr
	app.keyFile = file

	if file != nil && app.cfg.WatchSecrets {
		wctx, cancel := context.WithCancel(ctx)
		if err := file.Watch(wctx); err != nil {
			cancel()
			return err
		}
		app.stopKeys = cancel
	}
	return nil
}

// newPublisher picks the event sink. Session tracking always runs.
func (app *Application) newPublisher(ctx context.Context) (events.Publisher, error) {
	tracker := &service.SessionTracker{Users: app.db.Users()}

	switch app.cfg.EventPublisher {
	case "redis":
		rcfg, err := events.RedisConfigFromEnv()
		if err != nil {
			return nil, err
		}
		rp, err := events.NewRedisPublisher(ctx, rcfg)
		if err != nil {
			return nil, err
		}
		app.logger.Info("publishing events to redis", "addr", rcfg.Addr)
		return events.Fanout{tracker, rp}, nil
	case "log", "":
		return events.Fanout{tracker, &events.LogPublisher{Logger: app.logger}}, nil
	default:
		return nil, fmt.Errorf("unknown event publisher %q", app.cfg.EventPublisher)
	}
}

// initServices initializes all business logic services
func (app *Application) initServices(ctx context.Context) error {
	pepper, err := LoadPepper(app.cfg)
	if err != nil {
		return err
	}

	app.secrets, err = authn.NewSecretCache(
		&authn.StoreSecretChecker{Channels: app.db.Channels(), Pepper: pepper},
		authn.SecretCacheConfig{MaxEntries: app.cfg.SecretCacheEntries, TTL: app.cfg.SecretCacheTTL},
	)
	if err != nil {
		return fmt.Errorf("failed to create secret cache: %w", err)
	}

	pub, err := app.newPublisher(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize events: %w", err)
	}
	app.events = events.NewDispatcher(pub, app.cfg.EventTimeout)

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Keys:       app.keys,
		Events:     app.events,
		Metrics:    app.metrics,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.userService = &service.UserService{Store: app.db}

	// A nil *keys.File must not become a non-nil KeyReloader
	var reloader service.KeyReloader
	if app.keyFile != nil {
		reloader = app.keyFile
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.secrets,
		reloader,
		app.metrics,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.db,
		app.keys,
		app.metrics,
		BuildVersion,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.Secrets = app.secrets
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
