package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/ddl"
	"github.com/getpup/sharding-orchestrator/metrics"
)

// ErrShardTimeout is recorded for a shard whose call did not finish within ShardTimeout.
var ErrShardTimeout = errors.New("shard call timed out")

// ErrNoConnection is recorded for a target without a connection handle.
var ErrNoConnection = errors.New("no connection for shard")

// Config configures the shard executor.
type Config struct {
	// MaxWorkers caps the number of concurrent shard calls (default: 8).
	MaxWorkers int

	// ShardTimeout bounds a single shard call (default: 30s).
	ShardTimeout time.Duration

	// Logger is an optional logger for observability.
	Logger es.Logger

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	MetricsEnabled *bool
}

// Executor runs one statement against many shards with bounded parallelism.
// A failing or slow shard never cancels or blocks its siblings.
type Executor struct {
	config Config
}

// Compile-time check that Executor implements Runner.
var _ Runner = (*Executor)(nil)

// New creates a new Executor with the given configuration.
// It applies default values for MaxWorkers and ShardTimeout if zero.
func New(cfg Config) *Executor {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.ShardTimeout <= 0 {
		cfg.ShardTimeout = 30 * time.Second
	}

	return &Executor{config: cfg}
}

// Run dispatches statement to every target and waits for all of them to settle.
//
// Shard calls are detached from ctx cancellation so that a caller going away
// does not abort a shard mid-DDL; each call is still bounded by ShardTimeout.
// onResult, when non-nil, is invoked once per shard as it settles.
// The returned results are ordered by shard index.
func (e *Executor) Run(ctx context.Context, projectID string, targets []Target, statement string, onResult ResultFunc) []sharding.ExecutionResult {
	if len(targets) == 0 {
		return nil
	}

	workers := e.config.MaxWorkers
	if workers > len(targets) {
		workers = len(targets)
	}

	collector := metrics.For(metrics.Enabled(e.config.MetricsEnabled), projectID)
	detached := context.WithoutCancel(ctx)
	returnsRows := ddl.ReturnsRows(statement)

	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "dispatching statement to shards",
			"projectID", projectID, "shards", len(targets), "workers", workers)
	}

	results := make([]sharding.ExecutionResult, len(targets))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				result := e.runOne(detached, targets[i], statement, returnsRows)
				collector.ObserveShardExecution(outcome(result.Err), time.Since(start))

				if result.Err != nil && e.config.Logger != nil {
					e.config.Logger.Error(ctx, "shard statement failed",
						"projectID", projectID, "shardID", result.ShardID, "shardIndex", result.ShardIndex, "error", result.Err)
				}

				results[i] = result
				if onResult != nil {
					onResult(result)
				}
			}
		}()
	}

	for i := range targets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ShardIndex < results[j].ShardIndex
	})

	return results
}

// runOne executes the statement on one shard and enforces the timeout even if
// the driver ignores context cancellation.
func (e *Executor) runOne(ctx context.Context, target Target, statement string, returnsRows bool) sharding.ExecutionResult {
	result := sharding.ExecutionResult{ShardID: target.ShardID, ShardIndex: target.ShardIndex}
	if target.Conn == nil {
		return withErr(result, ErrNoConnection)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.ShardTimeout)
	defer cancel()

	done := make(chan sharding.ExecutionResult, 1)
	go func() {
		done <- call(callCtx, target.Conn, statement, returnsRows, result)
	}()

	select {
	case r := <-done:
		if r.Err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return withErr(result, fmt.Errorf("%w after %s", ErrShardTimeout, e.config.ShardTimeout))
		}
		return r
	case <-callCtx.Done():
		return withErr(result, fmt.Errorf("%w after %s", ErrShardTimeout, e.config.ShardTimeout))
	}
}

func call(ctx context.Context, conn Conn, statement string, returnsRows bool, result sharding.ExecutionResult) sharding.ExecutionResult {
	if !returnsRows {
		res, err := conn.ExecContext(ctx, statement)
		if err != nil {
			return withErr(result, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			result.RowsAffected = n
		}
		return result
	}

	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return withErr(result, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return withErr(result, err)
	}
	result.Columns = cols

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return withErr(result, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return withErr(result, err)
	}
	result.RowsAffected = int64(len(result.Rows))

	return result
}

func withErr(result sharding.ExecutionResult, err error) sharding.ExecutionResult {
	result.Err = err
	result.Error = err.Error()
	result.Columns = nil
	result.Rows = nil
	return result
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrShardTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// FirstFailure returns the failed result with the lowest shard index, if any.
func FirstFailure(results []sharding.ExecutionResult) (sharding.ExecutionResult, bool) {
	var (
		first sharding.ExecutionResult
		found bool
	)
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if !found || r.ShardIndex < first.ShardIndex {
			first = r
			found = true
		}
	}
	return first, found
}
