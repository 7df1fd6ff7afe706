package executor

import (
	"context"
	"database/sql"

	"github.com/getpup/sharding-orchestrator"
)

// Conn is the subset of *sql.DB used to run a statement on one shard.
// Implementations must be safe for concurrent use.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Target is one shard a statement is dispatched to.
type Target struct {
	ShardID    string
	ShardIndex int
	Conn       Conn
}

// ResultFunc receives each shard's result as soon as that shard settles.
// It may be called concurrently from several goroutines.
type ResultFunc func(result sharding.ExecutionResult)

// Runner fans a statement out to a set of shards and collects one result per shard.
// This interface allows for mock implementations in tests.
type Runner interface {
	Run(ctx context.Context, projectID string, targets []Target, statement string, onResult ResultFunc) []sharding.ExecutionResult
}
