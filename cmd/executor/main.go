package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/whookdev/composer/internal/config"
	"github.com/whookdev/composer/internal/lifecycle"
	"github.com/whookdev/composer/internal/log"
	"github.com/whookdev/composer/internal/metrics"
	"github.com/whookdev/composer/internal/redis"
	"github.com/whookdev/composer/internal/server"
	"github.com/whookdev/composer/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := initiateApp(logger); err != nil {
		logger.Error("error in app lifecycle", "error", err)
		os.Exit(1)
	}
}

func initiateApp(logger *slog.Logger) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err = log.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	slog.SetDefault(logger)

	rdb, err := redis.New(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("creating redis client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := rdb.Start(ctx); err != nil {
		return fmt.Errorf("connecting to redis server: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	client := transport.New(
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithLogger(logger),
		transport.WithMetrics(m),
	)

	srv, err := server.New(cfg, client, m, reg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	lc, err := lifecycle.New(cfg, rdb.Client, srv.ConnectionCount, logger)
	if err != nil {
		return fmt.Errorf("creating lifecycle: %w", err)
	}

	if err = lc.Register(ctx); err != nil {
		return fmt.Errorf("registering executor: %w", err)
	}

	heartbeat := lc.MaintainRegistration(ctx)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	select {
	case <-heartbeat:
		logger.Info("registration cleanup complete")
	case <-shutdownCtx.Done():
		logger.Error("registration cleanup timed out")
	}

	if err := rdb.Stop(); err != nil {
		logger.Error("error stopping redis", "error", err)
	}

	return nil
}
