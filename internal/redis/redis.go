package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

type RedisServer struct {
	url    string
	Client *redis.Client
	logger *slog.Logger
}

func New(url string, logger *slog.Logger) (*RedisServer, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url cannot be empty")
	}
	logger = logger.With("component", "redis")

	rs := &RedisServer{
		url:    url,
		logger: logger,
	}

	return rs, nil
}

// Options accepts both redis:// URLs and bare host:port addresses.
func Options(url string) (*redis.Options, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:     url,
		Password: "",
		DB:       0,
	}, nil
}

func (rs *RedisServer) Start(ctx context.Context) error {
	opts, err := Options(rs.url)
	if err != nil {
		return err
	}
	rs.Client = redis.NewClient(opts)

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		rs.logger.Error("failed to connect to redis", "error", err)
		return err
	}

	rs.logger.Info("redis connection established successfully", "addr", opts.Addr)
	return nil
}

func (rs *RedisServer) Stop() error {
	if rs.Client != nil {
		if err := rs.Client.Close(); err != nil {
			rs.logger.Error("failed to close redis connection", "error", err)
			return fmt.Errorf("failed to close redis connection: %w", err)
		}
		rs.logger.Info("redis connection closed successfully")
	}
	return nil
}
