package main

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/getpup/pupsourcing/es"
	_ "github.com/lib/pq"

	"github.com/getpup/sharding-orchestrator/api"
	"github.com/getpup/sharding-orchestrator/config"
	"github.com/getpup/sharding-orchestrator/connpool"
	"github.com/getpup/sharding-orchestrator/coordinator"
	"github.com/getpup/sharding-orchestrator/events"
	"github.com/getpup/sharding-orchestrator/executor"
	"github.com/getpup/sharding-orchestrator/lifecycle"
	"github.com/getpup/sharding-orchestrator/service"
	"github.com/getpup/sharding-orchestrator/shardkey"
	"github.com/getpup/sharding-orchestrator/store"
	"github.com/getpup/sharding-orchestrator/store/memory"
	pgstore "github.com/getpup/sharding-orchestrator/store/postgres"
)

// app holds the wired components of a running shardd.
type app struct {
	logger      es.Logger
	db          *sql.DB
	pool        *connpool.Pool
	lifecycle   *lifecycle.Manager
	coordinator *coordinator.Coordinator
	monitor     *coordinator.Monitor
	hub         *events.Hub
	api         *api.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newApp(ctx context.Context, cfg config.Config, logger es.Logger) (*app, error) {
	a := &app{logger: logger}

	metaStore, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	metricsEnabled := cfg.Metrics.Enabled

	bus := events.NewBus(0)
	emitter := events.NewEmitter(bus)
	a.hub = events.NewHub(bus, logger, cfg.HTTP.AllowedOrigins)

	a.pool = connpool.New(connpool.Config{Logger: logger})

	runner := executor.New(executor.Config{
		MaxWorkers:     cfg.Executor.MaxWorkers,
		ShardTimeout:   cfg.Executor.ShardTimeout,
		Logger:         logger,
		MetricsEnabled: metricsEnabled,
	})

	keys := shardkey.New(shardkey.Config{
		Store:          metaStore,
		Logger:         logger,
		MetricsEnabled: metricsEnabled,
	})

	a.lifecycle = lifecycle.New(lifecycle.Config{
		Store:          metaStore,
		Runner:         runner,
		Conns:          a.pool,
		OnApplied:      keys.OnApplied,
		Logger:         logger,
		Events:         emitter,
		MetricsEnabled: metricsEnabled,
	})

	a.coordinator = coordinator.New(coordinator.Config{
		Store:          metaStore,
		Pool:           a.pool,
		Logger:         logger,
		Events:         emitter,
		MetricsEnabled: metricsEnabled,
	})

	a.monitor = coordinator.NewMonitor(a.coordinator, coordinator.MonitorConfig{
		Interval:    cfg.Monitor.Interval,
		MaxFailures: cfg.Monitor.MaxFailures,
	})

	svc := service.New(service.Config{
		Store:       metaStore,
		Lifecycle:   a.lifecycle,
		ShardKeys:   keys,
		Coordinator: a.coordinator,
		Runner:      runner,
		Conns:       a.pool,
		Logger:      logger,
		Events:      emitter,
	})

	a.api = api.New(api.Config{
		Service:        svc,
		Events:         a.hub,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
	})

	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.StoreConfig) (store.MetadataStore, error) {
	if cfg.Driver != config.StorePostgres {
		return memory.New(), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach metadata database: %w", err)
	}
	a.db = db

	s := pgstore.New(db)
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate metadata database: %w", err)
		}
		a.logger.Info(ctx, "metadata tables migrated")
	}
	return s, nil
}

// start restores shard handles, fails executions interrupted by a previous
// shutdown and launches the background loops.
func (a *app) start(ctx context.Context) error {
	if err := a.coordinator.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore shard handles: %w", err)
	}

	recovered, err := a.lifecycle.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted executions: %w", err)
	}
	if recovered > 0 {
		a.logger.Info(ctx, "interrupted executions marked failed", "schemas", recovered)
	}

	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.monitor.Start(ctx)
	}()
	return nil
}

// close stops the background loops and releases every database handle.
func (a *app) close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.monitor.Stop()
	a.wg.Wait()

	if err := a.pool.CloseAll(); err != nil {
		a.logger.Error(context.Background(), "failed to close shard handles", "error", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(context.Background(), "failed to close metadata database", "error", err)
		}
	}
}
