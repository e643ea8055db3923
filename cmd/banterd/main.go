// Command banterd runs the group-messaging service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banterhq/banter/internal/auth"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/httpapi"
	"github.com/banterhq/banter/internal/logging"
	"github.com/banterhq/banter/internal/ratelimit"
	"github.com/banterhq/banter/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.Environment)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("banterd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	var err error
	switch cfg.DBDriver {
	case "mysql":
		store, err = storage.NewMySQLFromDSN(cfg.DBDSN)
	default:
		store, err = storage.NewSQLite(cfg.DBDSN)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		limiter = ratelimit.New(client, cfg.MaxLoginAttempts, cfg.LoginCooldown)
		logger.Info("login throttling enabled", slog.String("redis", cfg.RedisAddr))
	}

	var geo *auth.GeoIP
	if cfg.GeoIPDatabasePath != "" {
		geo, err = auth.NewGeoIP(cfg.GeoIPDatabasePath)
		if err != nil {
			return err
		}
		defer geo.Close()
		logger.Info("geoip lookups enabled", slog.String("database", cfg.GeoIPDatabasePath))
	}

	authCfg := auth.Config{
		TTL:           cfg.SessionTTL,
		SweepInterval: cfg.SweepInterval,
		MultiSession:  cfg.MultiSession,
		Logger:        logger.With("component", "auth"),
	}
	registry := auth.NewRegistry(authCfg)

	sweeper := auth.NewSweeper(registry, authCfg)
	sweeper.Start()
	defer sweeper.Close()

	h := httpapi.New(store, registry, limiter, geo, logger)
	mw := auth.NewMiddleware(registry, logger.With("component", "auth"))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: h.Routes(mw),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
