package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/lalith-99/hostchat/internal/api"
	"github.com/lalith-99/hostchat/internal/config"
	"github.com/lalith-99/hostchat/internal/db"
	"github.com/lalith-99/hostchat/internal/events"
	"github.com/lalith-99/hostchat/internal/observ"
	"github.com/lalith-99/hostchat/internal/repository"
	"github.com/lalith-99/hostchat/internal/repository/memory"
	"github.com/lalith-99/hostchat/internal/repository/postgres"
	"github.com/lalith-99/hostchat/internal/repository/sqlite"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 2. Store and event bus
	// ---------------------------------------------------------------
	store, health, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store.Close != nil {
		defer store.Close()
	}

	bus, err := openBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	// ---------------------------------------------------------------
	// 3. Services
	// ---------------------------------------------------------------
	messages := service.NewMessageService(store, bus, logger)
	services := api.Services{
		Users:         service.NewUserService(store, messages, logger),
		Messages:      messages,
		Contacts:      service.NewContactService(store, messages, bus, logger),
		Fanout:        service.NewFanoutService(store, messages, logger),
		Notifications: service.NewNotificationService(messages),
		Stats:         service.NewStatsService(store),
	}

	if cfg.AdminPassword != "" {
		admin, err := services.Users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info("admin account ready", zap.Int64("user_id", admin.ID), zap.String("username", admin.Username))
	}

	// ---------------------------------------------------------------
	// 4. HTTP server
	// ---------------------------------------------------------------
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterConfig{
		Services:        services,
		JWTSecret:       cfg.JWTSecret,
		TokenTTL:        cfg.TokenTTL,
		PollInterval:    cfg.PollInterval,
		LongPollTimeout: cfg.LongPollTimeout,
		Logger:          logger,
		Health:          health,
	})

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.ExposedHeaders([]string{"X-Request-ID", "X-Poll-Interval"}),
		handlers.AllowCredentials(),
	)(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// Long polls hold the response open for up to LongPollTimeout.
		WriteTimeout: cfg.LongPollTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting hostchat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStore returns the repositories for cfg.StoreDriver and, for Postgres,
// a health check for /v1/health.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, func(context.Context) error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		store := postgres.NewStore(database.Pool())
		store.Close = database.Close
		return store, database.Health, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New().Store(), nil, nil
	}
}

func openBus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Bus, error) {
	if cfg.RedisURL == "" {
		return events.NewLocalBus(), nil
	}
	bus, err := events.NewRedisBus(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return bus, nil
}
