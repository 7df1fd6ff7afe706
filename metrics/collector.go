package metrics

import "time"

// Collector wraps metrics and provides helper methods with a pre-filled project label.
// A nil Collector discards every observation.
type Collector struct {
	project string
}

// NewCollector creates a new Collector for the given project.
func NewCollector(project string) *Collector {
	return &Collector{project: project}
}

// IncSchemaExecution increments the schema executions counter for an outcome.
func (c *Collector) IncSchemaExecution(outcome string) {
	if c == nil {
		return
	}
	SchemaExecutionsTotal.WithLabelValues(c.project, outcome).Inc()
}

// ObserveShardExecution records one shard call and its latency.
func (c *Collector) ObserveShardExecution(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	ShardExecutionsTotal.WithLabelValues(c.project, outcome).Inc()
	ShardExecutionDuration.WithLabelValues(c.project).Observe(d.Seconds())
}

// IncActivation increments the activation counter for an outcome.
func (c *Collector) IncActivation(outcome string) {
	if c == nil {
		return
	}
	ProjectActivationsTotal.WithLabelValues(c.project, outcome).Inc()
}

// SetActive sets the active project gauge.
func (c *Collector) SetActive(active bool) {
	if c == nil {
		return
	}
	value := 0.0
	if active {
		value = 1
	}
	ActiveProject.WithLabelValues(c.project).Set(value)
}

// IncShardKeyRecomputations increments the shard key recomputation counter.
func (c *Collector) IncShardKeyRecomputations() {
	if c == nil {
		return
	}
	ShardKeyRecomputationsTotal.WithLabelValues(c.project).Inc()
}

// IncUnhealthyShards increments the unhealthy shard counter.
func (c *Collector) IncUnhealthyShards() {
	if c == nil {
		return
	}
	UnhealthyShardsTotal.WithLabelValues(c.project).Inc()
}

// SetPooledConnections sets the pooled connection gauge.
func SetPooledConnections(count int) {
	PooledConnections.Set(float64(count))
}

// Enabled reports whether metrics are enabled for a *bool config flag (default: true).
func Enabled(flag *bool) bool {
	return flag == nil || *flag
}

// For returns a Collector for project when enabled is true, otherwise nil.
func For(enabled bool, project string) *Collector {
	if !enabled {
		return nil
	}
	return NewCollector(project)
}
