//go:build integration

package integration_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	_ "github.com/lib/pq"

	"github.com/getpup/sharding-orchestrator/connpool"
	"github.com/getpup/sharding-orchestrator/coordinator"
	"github.com/getpup/sharding-orchestrator/events"
	"github.com/getpup/sharding-orchestrator/executor"
	"github.com/getpup/sharding-orchestrator/lifecycle"
	"github.com/getpup/sharding-orchestrator/service"
	"github.com/getpup/sharding-orchestrator/shardkey"
	pgstore "github.com/getpup/sharding-orchestrator/store/postgres"
)

// getTestDB returns a database connection for integration tests.
// It reads the DATABASE_URL environment variable and skips the test if not set.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

// setupTables creates the metadata tables using the default configuration.
func setupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec(pgstore.MigrationUp(pgstore.DefaultTableConfig())); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
}

// cleanupTables truncates the metadata tables to clean up test data.
// Errors are logged but don't fail the test (cleanup is best-effort).
func cleanupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	// Every other table cascades from projects
	config := pgstore.DefaultTableConfig()
	if _, err := db.Exec("TRUNCATE " + config.ProjectsTable + " CASCADE"); err != nil {
		t.Logf("warning: failed to truncate projects table: %v", err)
	}
}

// teardownTables drops the metadata tables using the default configuration.
// Errors are logged but don't fail the test.
func teardownTables(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec(pgstore.MigrationDown(pgstore.DefaultTableConfig())); err != nil {
		t.Logf("warning: failed to drop tables: %v", err)
	}
}

// instance is one shardd process worth of components sharing the metadata database.
type instance struct {
	service     *service.Service
	coordinator *coordinator.Coordinator
	lifecycle   *lifecycle.Manager
	pool        *connpool.Pool
	bus         *events.Bus
}

// newInstance wires the components the way shardd does, against db.
func newInstance(t *testing.T, db *sql.DB) *instance {
	t.Helper()

	disabled := false
	metaStore := pgstore.New(db)
	pool := connpool.New(connpool.Config{})
	t.Cleanup(func() { _ = pool.CloseAll() })

	bus := events.NewBus(256)
	emitter := events.NewEmitter(bus)
	runner := executor.New(executor.Config{MetricsEnabled: &disabled})
	keys := shardkey.New(shardkey.Config{Store: metaStore, MetricsEnabled: &disabled})

	inst := &instance{pool: pool, bus: bus}
	inst.lifecycle = lifecycle.New(lifecycle.Config{
		Store:          metaStore,
		Runner:         runner,
		Conns:          pool,
		OnApplied:      keys.OnApplied,
		Events:         emitter,
		MetricsEnabled: &disabled,
	})
	inst.coordinator = coordinator.New(coordinator.Config{
		Store:          metaStore,
		Pool:           pool,
		Events:         emitter,
		MetricsEnabled: &disabled,
	})
	inst.service = service.New(service.Config{
		Store:       metaStore,
		Lifecycle:   inst.lifecycle,
		ShardKeys:   keys,
		Coordinator: inst.coordinator,
		Runner:      runner,
		Conns:       pool,
		Events:      emitter,
	})
	return inst
}

// shardFile returns the path of a sqlite shard database under dir.
func shardFile(dir string, index int) string {
	return filepath.Join(dir, "shard"+strconv.Itoa(index)+".db")
}
