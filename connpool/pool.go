// Package connpool owns one live database handle per activated shard.
package connpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/executor"
	"github.com/getpup/sharding-orchestrator/metrics"

	// Shard drivers; mysql is registered by dsn.go's import.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNoConnection indicates the shard has no open handle in the pool.
var ErrNoConnection = errors.New("no pooled connection for shard")

// Opener opens a database handle. It defaults to sql.Open.
type Opener func(driver, dsn string) (*sql.DB, error)

// Config configures the connection pool.
type Config struct {
	// PingTimeout bounds the validation ping when a handle is opened (default: 5s).
	PingTimeout time.Duration

	// MaxOpenConns caps the driver-level pool of each shard handle (default: 4).
	MaxOpenConns int

	// Opener opens handles (default: sql.Open).
	Opener Opener

	// Logger is an optional logger for observability.
	Logger es.Logger
}

// Pool maps shard IDs to open handles.
// A *sql.DB is safe for concurrent use, so callers share one handle per shard.
type Pool struct {
	config Config

	mu    sync.RWMutex
	conns map[string]*sql.DB
}

// New creates an empty pool, applying defaults for zero config values.
func New(cfg Config) *Pool {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.Opener == nil {
		cfg.Opener = sql.Open
	}

	return &Pool{
		config: cfg,
		conns:  make(map[string]*sql.DB),
	}
}

// Open opens and pings a handle for the shard. The handle is kept only if the
// ping succeeds; an existing handle for the shard is replaced.
func (p *Pool) Open(ctx context.Context, conn sharding.ShardConnection) error {
	db, err := p.open(conn)
	if err != nil {
		return err
	}

	if err := p.ping(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to reach shard %s: %w", conn.ShardID, err)
	}

	p.put(conn.ShardID, db)
	return nil
}

// Ensure opens a handle for the shard and keeps it even when the validation
// ping fails. The ping error is returned so the caller can report it.
// An existing handle is left untouched and only re-pinged.
func (p *Pool) Ensure(ctx context.Context, conn sharding.ShardConnection) error {
	p.mu.RLock()
	db, ok := p.conns[conn.ShardID]
	p.mu.RUnlock()

	if !ok {
		var err error
		db, err = p.open(conn)
		if err != nil {
			return err
		}
		p.put(conn.ShardID, db)
	}

	if err := p.ping(ctx, db); err != nil {
		return fmt.Errorf("failed to reach shard %s: %w", conn.ShardID, err)
	}
	return nil
}

// Conn returns the handle for a shard.
func (p *Pool) Conn(shardID string) (executor.Conn, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	db, ok := p.conns[shardID]
	if !ok {
		return nil, ErrNoConnection
	}
	return db, nil
}

// Ping validates the handle of a shard.
func (p *Pool) Ping(ctx context.Context, shardID string) error {
	p.mu.RLock()
	db, ok := p.conns[shardID]
	p.mu.RUnlock()

	if !ok {
		return ErrNoConnection
	}
	return p.ping(ctx, db)
}

// Has reports whether the shard has an open handle.
func (p *Pool) Has(shardID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.conns[shardID]
	return ok
}

// Len returns the number of open handles.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Close closes and forgets the handle of a shard. Closing an unknown shard is a no-op.
// database/sql lets statements already running on the handle finish.
func (p *Pool) Close(shardID string) error {
	p.mu.Lock()
	db, ok := p.conns[shardID]
	delete(p.conns, shardID)
	count := len(p.conns)
	p.mu.Unlock()

	metrics.SetPooledConnections(count)
	if !ok {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close shard %s: %w", shardID, err)
	}
	return nil
}

// CloseAll closes every handle in the pool.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*sql.DB)
	p.mu.Unlock()

	metrics.SetPooledConnections(0)

	var errs []error
	for shardID, db := range conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close shard %s: %w", shardID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) open(conn sharding.ShardConnection) (*sql.DB, error) {
	driver, dsn, err := DSN(conn)
	if err != nil {
		return nil, err
	}

	db, err := p.config.Opener(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard %s: %w", conn.ShardID, err)
	}
	db.SetMaxOpenConns(p.config.MaxOpenConns)

	if p.config.Logger != nil {
		p.config.Logger.Debug(context.Background(), "opened shard handle", "shardID", conn.ShardID, "driver", driver)
	}

	return db, nil
}

func (p *Pool) ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.PingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

func (p *Pool) put(shardID string, db *sql.DB) {
	p.mu.Lock()
	old, ok := p.conns[shardID]
	p.conns[shardID] = db
	count := len(p.conns)
	p.mu.Unlock()

	metrics.SetPooledConnections(count)
	if ok && old != db {
		_ = old.Close()
	}
}
