package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/whookdev/composer/internal/config"
)

// RegistryKey is the redis hash holding one ServerInfo per executor.
const RegistryKey = "executors"

const heartbeatInterval = 15 * time.Second

var ErrNotRegistered = errors.New("executor not registered")

type Lifecycle struct {
	cfg    *config.Config
	logger *slog.Logger
	rdb    *redis.Client
	load   func() int
}

type ServerInfo struct {
	Load          int       `json:"load"`
	ChannelAddr   string    `json:"channel_addr"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// New registers the executor described by cfg. load reports the number of
// open channel connections.
func New(cfg *config.Config, redis *redis.Client, load func() int, logger *slog.Logger) (*Lifecycle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if redis == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if load == nil {
		load = func() int { return 0 }
	}

	logger = logger.With("component", "lifecycle")

	lc := &Lifecycle{
		cfg:    cfg,
		rdb:    redis,
		load:   load,
		logger: logger,
	}

	return lc, nil
}

func (lc *Lifecycle) Register(ctx context.Context) error {
	if err := lc.writeInfo(ctx); err != nil {
		return fmt.Errorf("failed to register executor: %w", err)
	}

	lc.logger.Info("registered executor", "server_id", lc.cfg.ServerID)
	return nil
}

func (lc *Lifecycle) MaintainRegistration(ctx context.Context) chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		if err := lc.writeInfo(ctx); err != nil {
			lc.logger.Error("failed initial heartbeat", "error", err)
		}
		lc.logger.Info("heartbeat routine started")

		for {
			select {
			case <-ticker.C:
				if err := lc.writeInfo(ctx); err != nil {
					lc.logger.Error("failed heartbeat", "error", err)
				}
			case <-ctx.Done():
				lc.logger.Info("context cancelled, cleaning up executor registration")
				if err := lc.deregister(); err != nil {
					lc.logger.Error("failed to de-register executor", "error", err)
				} else {
					lc.logger.Info("de-registered executor")
				}
				lc.logger.Info("heartbeat routine stopped")
				return
			}
		}
	}()

	return done
}

func (lc *Lifecycle) deregister() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := lc.rdb.HDel(ctx, RegistryKey, lc.cfg.ServerID)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to de-register executor: %w", err)
	}
	return nil
}

func (lc *Lifecycle) writeInfo(ctx context.Context) error {
	info := &ServerInfo{
		Load:          lc.load(),
		ChannelAddr:   fmt.Sprintf("%s:%d", lc.cfg.Host, lc.cfg.WSPort),
		LastHeartbeat: time.Now(),
	}

	val, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat info: %w", err)
	}

	result := lc.rdb.HSet(ctx, RegistryKey, lc.cfg.ServerID, string(val))
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}

	lc.logger.Debug("heartbeat update", "server_id", lc.cfg.ServerID, "info", info)
	return nil
}

// Registry reads executor heartbeats on the composer side.
type Registry struct {
	rdb *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

func (r *Registry) LastHeartbeat(ctx context.Context, serverID string) (time.Time, error) {
	val, err := r.rdb.HGet(ctx, RegistryKey, serverID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrNotRegistered
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading heartbeat: %w", err)
	}

	info, err := ParseServerInfo(val)
	if err != nil {
		return time.Time{}, err
	}
	return info.LastHeartbeat, nil
}

func ParseServerInfo(val string) (*ServerInfo, error) {
	var info ServerInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server info: %w", err)
	}
	return &info, nil
}
