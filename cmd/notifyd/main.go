package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/1vKSfvhNz/farm-backend/internal/config"
	"github.com/1vKSfvhNz/farm-backend/internal/database"
	"github.com/1vKSfvhNz/farm-backend/internal/gateway"
	"github.com/1vKSfvhNz/farm-backend/internal/metrics"
	"github.com/1vKSfvhNz/farm-backend/internal/registry"
	"github.com/1vKSfvhNz/farm-backend/internal/router"
	"github.com/1vKSfvhNz/farm-backend/internal/store"
	"github.com/1vKSfvhNz/farm-backend/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/notifyd.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting notifyd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"port", cfg.Server.Port,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Open the cache tier. A failed ping disables the tier for the process
	// lifetime; it never blocks startup.
	cache := store.NewCache(ctx, cfg.Cache, logger)
	defer cache.Close()

	history := store.NewHistory(pool, logger)
	st := store.New(cache, history, logger)

	// Connection registry and its background reaper
	reg := registry.New(registry.Config{
		HeartbeatInterval: cfg.Heartbeat.Interval,
		PersistTimeout:    cfg.Persist.Timeout,
	}, st, logger)

	reaper := registry.NewReaper(reg, cfg.Heartbeat.Interval, logger)
	go reaper.Run(ctx)

	rt := router.New(reg, logger)

	// HTTP/WebSocket surface
	verifier := gateway.NewTokenVerifier(cfg.Auth.TokenSecret)
	directory := gateway.NewDirectory(pool)
	handler := gateway.NewHandler(reg, rt, verifier, directory, cfg.Server.WriteTimeout, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/ws/notifications", handler.Notifications)
	e.GET("/ws/deliverers", handler.Deliverers)
	e.POST("/notify/broadcast", handler.Broadcast)
	e.GET("/health", gateway.Health(pool, cache, reg))
	e.GET(cfg.Metrics.Path, echo.WrapHandler(metrics.Handler()))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	reg.Shutdown()

	logger.Info("notifyd stopped")
}
