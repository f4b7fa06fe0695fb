package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of the executor, the process that performs
// HTTP calls on behalf of the composer.
type Config struct {
	Port     int
	Host     string
	ServerID string

	RedisURL string

	WSPort int

	RequestTimeout time.Duration

	HealthCheckInterval int

	LogLevel string
}

// ClientConfig holds the settings of the composer side.
type ClientConfig struct {
	ExecutorURL string
	ServerID    string

	// RedisURL is optional. Without it no connectivity monitor is started
	// and the network status stays online.
	RedisURL string

	HealthCheckInterval int

	LogLevel string
}

func NewConfig() (*Config, error) {
	godotenv.Load()
	port, err := strconv.Atoi(getEnvWithDefault("PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	wsPort, err := strconv.Atoi(getEnvWithDefault("WS_PORT", "3001"))
	if err != nil {
		return nil, fmt.Errorf("invalid websocket port: %w", err)
	}

	timeout, err := requestTimeout()
	if err != nil {
		return nil, err
	}

	interval, err := healthCheckInterval()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                port,
		Host:                getEnvWithDefault("HOST", "0.0.0.0"),
		ServerID:            requireEnv("SERVER_ID"),
		RedisURL:            requireEnv("REDIS_URL"),
		WSPort:              wsPort,
		RequestTimeout:      timeout,
		HealthCheckInterval: interval,
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
	}, nil
}

func NewClientConfig() (*ClientConfig, error) {
	godotenv.Load()

	interval, err := healthCheckInterval()
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		ExecutorURL:         getEnvWithDefault("EXECUTOR_URL", "ws://127.0.0.1:3001/channel"),
		ServerID:            getEnvWithDefault("SERVER_ID", ""),
		RedisURL:            getEnvWithDefault("REDIS_URL", ""),
		HealthCheckInterval: interval,
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
	}, nil
}

func requestTimeout() (time.Duration, error) {
	ms, err := strconv.Atoi(getEnvWithDefault("REQUEST_TIMEOUT_MS", "60000"))
	if err != nil {
		return 0, fmt.Errorf("invalid request timeout: %w", err)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("invalid request timeout: %d must be positive", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func healthCheckInterval() (int, error) {
	interval, err := strconv.Atoi(getEnvWithDefault("HEALTH_CHECK_INTERVAL", "30"))
	if err != nil {
		return 0, fmt.Errorf("invalid health check interval: %w", err)
	}
	return interval, nil
}

func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}

	return val
}

func getEnvWithDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultValue
}
