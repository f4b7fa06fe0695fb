// Package connectivity reports whether the executor is reachable, based on
// the heartbeat it keeps in redis.
package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/whookdev/composer/internal/store"
)

type HeartbeatSource interface {
	LastHeartbeat(ctx context.Context, serverID string) (time.Time, error)
}

// Reporter receives status changes. *dispatcher.Dispatcher is one.
type Reporter interface {
	SetNetworkStatus(status store.NetworkStatus)
}

type Monitor struct {
	source     HeartbeatSource
	reporter   Reporter
	serverID   string
	staleAfter time.Duration
	logger     *slog.Logger

	now  func() time.Time
	last store.NetworkStatus
}

// New returns a Monitor that considers the executor offline once its last
// heartbeat is older than staleAfter.
func New(source HeartbeatSource, reporter Reporter, serverID string, staleAfter time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		source:     source,
		reporter:   reporter,
		serverID:   serverID,
		staleAfter: staleAfter,
		logger:     logger.With("component", "connectivity", "server_id", serverID),
		now:        time.Now,
		last:       store.Online,
	}
}

// Check probes once and reports the status if it changed.
func (m *Monitor) Check(ctx context.Context) store.NetworkStatus {
	status := store.Online

	beat, err := m.source.LastHeartbeat(ctx, m.serverID)
	switch {
	case err != nil:
		m.logger.Debug("heartbeat unavailable", "error", err)
		status = store.Offline
	case m.now().Sub(beat) > m.staleAfter:
		m.logger.Debug("heartbeat is stale", "last_heartbeat", beat)
		status = store.Offline
	}

	if status != m.last {
		m.logger.Info("network status changed", "from", m.last, "to", status)
		m.reporter.SetNetworkStatus(status)
		m.last = status
	}
	return status
}

// Run checks every half staleAfter until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.staleAfter / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
