package coordinator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/metrics"
	"github.com/getpup/sharding-orchestrator/store"
)

// MonitorConfig configures the shard health monitor.
type MonitorConfig struct {
	// Interval is the time between health checks (default: 10s).
	Interval time.Duration

	// MaxFailures is the number of consecutive failed pings after which a
	// shard is considered unhealthy (default: 3).
	MaxFailures int
}

// Monitor pings the shards of the active project on an interval. When a
// shard fails MaxFailures consecutive pings the project is deactivated
// first, then the shard, so the project never stays active with an
// inactive shard.
type Monitor struct {
	coordinator *Coordinator
	config      MonitorConfig

	mu       sync.Mutex
	failures map[string]int
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor for the coordinator's active project.
func NewMonitor(c *Coordinator, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	return &Monitor{
		coordinator: c,
		config:      cfg,
		failures:    make(map[string]int),
		stop:        make(chan struct{}),
	}
}

// Start runs health checks until the context is cancelled or Stop is called.
// The first check runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Stop ends a running Start loop. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Check pings every shard of the active project once and deactivates the
// project and any shard that reached the failure limit. It returns the IDs
// of the shards deactivated by this check.
func (m *Monitor) Check(ctx context.Context) []string {
	c := m.coordinator

	project, err := c.config.Store.GetActiveProject(ctx)
	if errors.Is(err, store.ErrProjectNotFound) {
		m.reset(nil)
		return nil
	}
	if err != nil {
		c.logError(ctx, "health check failed to get active project", "error", err)
		return nil
	}

	shards, err := c.config.Store.ListShards(ctx, project.ID)
	if err != nil {
		c.logError(ctx, "health check failed to list shards", "projectID", project.ID, "error", err)
		return nil
	}
	m.reset(shards)

	var unhealthy []sharding.Shard
	for _, shard := range shards {
		if shard.Status != sharding.ShardStatusActive {
			continue
		}
		if m.ping(ctx, shard) {
			unhealthy = append(unhealthy, shard)
		}
	}
	if len(unhealthy) == 0 {
		return nil
	}

	return m.deactivate(ctx, project.ID, unhealthy)
}

// ping records the outcome of one ping and reports whether the shard has
// reached the failure limit.
func (m *Monitor) ping(ctx context.Context, shard sharding.Shard) bool {
	c := m.coordinator
	err := c.config.Pool.Ping(ctx, shard.ID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		m.failures[shard.ID] = 0
		return false
	}

	m.failures[shard.ID]++
	c.logError(ctx, "shard health check failed",
		"projectID", shard.ProjectID,
		"shardID", shard.ID,
		"consecutiveFailures", m.failures[shard.ID],
		"error", err)

	return m.failures[shard.ID] >= m.config.MaxFailures
}

func (m *Monitor) deactivate(ctx context.Context, projectID string, shards []sharding.Shard) []string {
	c := m.coordinator
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deactivate(ctx, projectID); err != nil {
		c.logError(ctx, "failed to deactivate project with unhealthy shards", "projectID", projectID, "error", err)
		return nil
	}
	c.config.Events.Warn(eventSource, "project deactivated after shard health check failures", map[string]string{
		"project_id": projectID,
	})

	collector := metrics.For(metrics.Enabled(c.config.MetricsEnabled), projectID)
	var deactivated []string
	for _, shard := range shards {
		if err := c.deactivateShard(ctx, shard); err != nil {
			c.logError(ctx, "failed to deactivate unhealthy shard", "shardID", shard.ID, "error", err)
			continue
		}

		m.mu.Lock()
		delete(m.failures, shard.ID)
		m.mu.Unlock()

		collector.IncUnhealthyShards()
		c.config.Events.Warn(eventSource, "shard deactivated after failed health checks", map[string]string{
			"project_id":  projectID,
			"shard_id":    shard.ID,
			"shard_index": strconv.Itoa(shard.ShardIndex),
		})
		deactivated = append(deactivated, shard.ID)
	}

	return deactivated
}

// reset forgets failure counts of shards that are no longer monitored.
func (m *Monitor) reset(shards []sharding.Shard) {
	keep := make(map[string]bool, len(shards))
	for _, shard := range shards {
		if shard.Status == sharding.ShardStatusActive {
			keep[shard.ID] = true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.failures {
		if !keep[id] {
			delete(m.failures, id)
		}
	}
}

// Failures returns the current consecutive failure count of a shard.
func (m *Monitor) Failures(shardID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[shardID]
}
