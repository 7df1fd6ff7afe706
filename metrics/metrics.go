package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchemaExecutionsTotal tracks schema executions and retries by outcome.
var SchemaExecutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sharding_orchestrator_schema_executions_total",
		Help: "Total schema executions by outcome (applied, failed)",
	},
	[]string{"project", "outcome"},
)

// ShardExecutionsTotal tracks individual shard calls by outcome.
var ShardExecutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sharding_orchestrator_shard_executions_total",
		Help: "Total shard statement executions by outcome (success, error, timeout)",
	},
	[]string{"project", "outcome"},
)

// ShardExecutionDuration tracks the latency of a statement on one shard.
var ShardExecutionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sharding_orchestrator_shard_execution_duration_seconds",
		Help:    "Latency of a statement on a single shard",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"project"},
)

// ProjectActivationsTotal tracks project activation attempts by outcome.
var ProjectActivationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sharding_orchestrator_project_activations_total",
		Help: "Total project activation attempts by outcome",
	},
	[]string{"project", "outcome"},
)

// ActiveProject is 1 for the active project and 0 for projects that were deactivated.
var ActiveProject = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "sharding_orchestrator_active_project",
		Help: "Active project (1 when active, 0 otherwise)",
	},
	[]string{"project"},
)

// PooledConnections tracks the number of open shard connection handles.
var PooledConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "sharding_orchestrator_pooled_connections",
		Help: "Current open shard connection handles",
	},
)

// ShardKeyRecomputationsTotal tracks shard key recomputations.
var ShardKeyRecomputationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sharding_orchestrator_shard_key_recomputations_total",
		Help: "Total shard key recomputations",
	},
	[]string{"project"},
)

// UnhealthyShardsTotal tracks shards deactivated by the health monitor.
var UnhealthyShardsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sharding_orchestrator_unhealthy_shards_total",
		Help: "Total shards deactivated after failed health checks",
	},
	[]string{"project"},
)
