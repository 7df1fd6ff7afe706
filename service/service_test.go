package service

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/connpool"
	"github.com/getpup/sharding-orchestrator/coordinator"
	"github.com/getpup/sharding-orchestrator/events"
	"github.com/getpup/sharding-orchestrator/executor"
	"github.com/getpup/sharding-orchestrator/lifecycle"
	"github.com/getpup/sharding-orchestrator/shardkey"
	"github.com/getpup/sharding-orchestrator/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenConns hides the pooled handle of selected shards, which makes the
// executor fail them as if they were unreachable.
type brokenConns struct {
	pool *connpool.Pool

	mu     sync.Mutex
	broken map[string]bool
}

func (b *brokenConns) Conn(shardID string) (executor.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken[shardID] {
		return nil, errors.New("connection refused")
	}
	return b.pool.Conn(shardID)
}

func (b *brokenConns) set(shardID string, broken bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken[shardID] = broken
}

type fixture struct {
	service *Service
	store   *memory.Store
	pool    *connpool.Pool
	conns   *brokenConns
	bus     *events.Bus
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	disabled := false
	f := &fixture{
		store: memory.New(),
		pool:  connpool.New(connpool.Config{}),
		bus:   events.NewBus(256),
		dir:   t.TempDir(),
	}
	t.Cleanup(func() { _ = f.pool.CloseAll() })
	f.conns = &brokenConns{pool: f.pool, broken: make(map[string]bool)}

	emitter := events.NewEmitter(f.bus)
	keys := shardkey.New(shardkey.Config{Store: f.store, MetricsEnabled: &disabled})
	runner := executor.New(executor.Config{MetricsEnabled: &disabled})

	f.service = New(Config{
		Store: f.store,
		Lifecycle: lifecycle.New(lifecycle.Config{
			Store:          f.store,
			Runner:         runner,
			Conns:          f.conns,
			OnApplied:      keys.OnApplied,
			Events:         emitter,
			MetricsEnabled: &disabled,
		}),
		ShardKeys: keys,
		Coordinator: coordinator.New(coordinator.Config{
			Store:          f.store,
			Pool:           f.pool,
			Events:         emitter,
			MetricsEnabled: &disabled,
		}),
		Runner: runner,
		Conns:  f.conns,
		Events: emitter,
	})
	return f
}

// projectWithShards creates a project whose shards are sqlite files, all active.
func (f *fixture) projectWithShards(t *testing.T, count int) (sharding.Project, []sharding.Shard) {
	t.Helper()
	ctx := context.Background()

	project, err := f.service.CreateProject(ctx, "orders", "order history")
	require.NoError(t, err)

	shards := make([]sharding.Shard, 0, count)
	for i := 0; i < count; i++ {
		shard, err := f.service.AddShard(ctx, project.ID)
		require.NoError(t, err)
		require.NoError(t, f.service.AddConnection(ctx, sharding.ShardConnection{
			ShardID:      shard.ID,
			Driver:       sharding.DriverSQLite,
			DatabaseName: filepath.Join(f.dir, "shard"+strconv.Itoa(i)+".db"),
		}))
		require.NoError(t, f.service.ActivateShard(ctx, shard.ID))
		shards = append(shards, shard)
	}
	return project, shards
}

func (f *fixture) statesByShard(t *testing.T, schemaID string) map[string]sharding.ExecutionState {
	t.Helper()
	statuses, err := f.service.GetSchemaExecutionStatus(context.Background(), schemaID)
	require.NoError(t, err)

	states := make(map[string]sharding.ExecutionState, len(statuses))
	for _, s := range statuses {
		states[s.ShardID] = s.State
	}
	return states
}

func TestCreateProject_RejectsBlankName(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateProject(context.Background(), "   ", "")

	assert.True(t, sharding.IsValidation(err))
	projects, err := f.service.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestFetchProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, err := f.service.CreateProject(ctx, " orders ", "")
	require.NoError(t, err)
	assert.Equal(t, "orders", project.Name)

	got, err := f.service.FetchProjectByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)

	status, err := f.service.FetchProjectStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, sharding.ProjectStatusInactive, status)

	_, err = f.service.FetchProjectByID(ctx, "missing")
	assert.True(t, sharding.IsNotFound(err))
}

func TestSchemaApplied_OnAllShards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, shards := f.projectWithShards(t, 3)

	draft, err := f.service.CreateSchemaDraft(ctx, project.ID, "CREATE TABLE t (id int PRIMARY KEY, name text)")
	require.NoError(t, err)
	committed, err := f.service.CommitSchemaDraft(ctx, project.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, sharding.SchemaStatePending, committed.State)

	require.NoError(t, f.service.ActivateProject(ctx, project.ID))

	schema, err := f.service.ExecuteProjectSchema(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, sharding.SchemaStateApplied, schema.State)

	states := f.statesByShard(t, draft.ID)
	require.Len(t, states, 3)
	for _, shard := range shards {
		assert.Equal(t, sharding.ExecutionStateApplied, states[shard.ID])
	}

	keys, err := f.service.FetchShardKeys(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "t", keys[0].TableName)
	assert.Equal(t, "id", keys[0].ShardKeyColumn)

	caps, err := f.service.GetSchemaCapabilities(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, caps.CanCreateDraft)
	assert.False(t, caps.CanExecute)
}

func TestSchemaRetry_OnlyFailedShard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, shards := f.projectWithShards(t, 3)

	draft, err := f.service.CreateSchemaDraft(ctx, project.ID, "CREATE TABLE t (id int)")
	require.NoError(t, err)
	_, err = f.service.CommitSchemaDraft(ctx, project.ID, draft.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.ActivateProject(ctx, project.ID))

	f.conns.set(shards[1].ID, true)
	schema, err := f.service.ExecuteProjectSchema(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, sharding.SchemaStateFailed, schema.State)
	assert.Contains(t, schema.ErrorMessage, "shard 1 ")

	states := f.statesByShard(t, draft.ID)
	assert.Equal(t, sharding.ExecutionStateApplied, states[shards[0].ID])
	assert.Equal(t, sharding.ExecutionStateFailed, states[shards[1].ID])
	assert.Equal(t, sharding.ExecutionStateApplied, states[shards[2].ID])

	failed, err := f.service.GetFailedShardExecutions(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, shards[1].ID, failed[0].ShardID)

	caps, err := f.service.GetSchemaCapabilities(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, caps.CanRetry)

	// Shards 0 and 2 already hold the table, so a retry there would fail.
	f.conns.set(shards[1].ID, false)
	schema, err = f.service.RetrySchemaExecution(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, sharding.SchemaStateApplied, schema.State)

	states = f.statesByShard(t, draft.ID)
	for _, shard := range shards {
		assert.Equal(t, sharding.ExecutionStateApplied, states[shard.ID])
	}

	schema, err = f.service.RetrySchemaExecution(ctx, project.ID)
	require.NoError(t, err, "retry of an applied schema is a no-op")
	assert.Equal(t, sharding.SchemaStateApplied, schema.State)
}

func TestCommitAndExecuteGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, _ := f.projectWithShards(t, 1)

	draft, err := f.service.CreateSchemaDraft(ctx, project.ID, "CREATE TABLE t (id int)")
	require.NoError(t, err)
	require.NoError(t, f.service.ActivateProject(ctx, project.ID))

	_, err = f.service.CommitSchemaDraft(ctx, project.ID, draft.ID)
	assert.Equal(t, sharding.ReasonProjectActive, sharding.ReasonOf(err))

	require.NoError(t, f.service.DeactivateProject(ctx, project.ID))
	_, err = f.service.CommitSchemaDraft(ctx, project.ID, draft.ID)
	require.NoError(t, err)

	_, err = f.service.ExecuteProjectSchema(ctx, project.ID)
	assert.Equal(t, sharding.ReasonProjectInactive, sharding.ReasonOf(err))
}

func TestDeleteShard_GuardAndNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, shards := f.projectWithShards(t, 1)
	shardID := shards[0].ID

	result, err := f.service.DeleteShard(ctx, shardID)
	require.NoError(t, err)
	assert.Equal(t, sharding.DeleteShardActive, result)

	status, err := f.service.FetchShardStatus(ctx, shardID)
	require.NoError(t, err)
	assert.Equal(t, sharding.ShardStatusActive, status)

	require.NoError(t, f.service.DeactivateShard(ctx, shardID))
	result, err = f.service.DeleteShard(ctx, shardID)
	require.NoError(t, err)
	assert.Equal(t, sharding.DeleteShardDeleted, result)

	_, err = f.service.FetchShardStatus(ctx, shardID)
	assert.True(t, sharding.IsNotFound(err))
	assert.False(t, f.pool.Has(shardID))
}

func TestFetchConnectionInfo_RedactsPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, err := f.service.CreateProject(ctx, "orders", "")
	require.NoError(t, err)
	shard, err := f.service.AddShard(ctx, project.ID)
	require.NoError(t, err)

	_, err = f.service.FetchConnectionInfo(ctx, shard.ID)
	assert.True(t, sharding.IsNotFound(err))

	require.NoError(t, f.service.AddConnection(ctx, sharding.ShardConnection{
		ShardID: shard.ID, Host: "db", Port: 5432, DatabaseName: "orders", Username: "app", Password: "secret",
	}))

	conn, err := f.service.FetchConnectionInfo(ctx, shard.ID)
	require.NoError(t, err)
	assert.Equal(t, "db", conn.Host)
	assert.Empty(t, conn.Password)
}

func TestExecuteSQL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, shards := f.projectWithShards(t, 2)

	_, err := f.service.ExecuteSQL(ctx, project.ID, "SELECT 1")
	assert.Equal(t, sharding.ReasonProjectInactive, sharding.ReasonOf(err))

	require.NoError(t, f.service.ActivateProject(ctx, project.ID))

	_, err = f.service.ExecuteSQL(ctx, project.ID, "  ")
	assert.True(t, sharding.IsValidation(err))

	_, err = f.service.ExecuteSQL(ctx, project.ID, "CREATE TABLE kv (k text, v text)")
	require.NoError(t, err)

	results, err := f.service.ExecuteSQL(ctx, project.ID, "INSERT INTO kv (k, v) VALUES ('a', 'b')")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, shards[i].ID, r.ShardID)
		assert.Empty(t, r.Error)
		assert.Equal(t, int64(1), r.RowsAffected)
	}

	results, err = f.service.ExecuteSQL(ctx, project.ID, "SELECT k, v FROM kv")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"k", "v"}, results[0].Columns)
	assert.Len(t, results[0].Rows, 1)

	f.conns.set(shards[0].ID, true)
	results, err = f.service.ExecuteSQL(ctx, project.ID, "SELECT k FROM kv")
	require.NoError(t, err, "shard failures are reported per result")
	assert.NotEmpty(t, results[0].Error)
	assert.Empty(t, results[1].Error)
}

func TestReplaceShardKeys_ManualOverrideSurvivesRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, _ := f.projectWithShards(t, 1)

	draft, err := f.service.CreateSchemaDraft(ctx, project.ID,
		"CREATE TABLE orders (id int PRIMARY KEY, customer_id int UNIQUE)")
	require.NoError(t, err)
	_, err = f.service.CommitSchemaDraft(ctx, project.ID, draft.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.ActivateProject(ctx, project.ID))
	_, err = f.service.ExecuteProjectSchema(ctx, project.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.ReplaceShardKeys(ctx, project.ID, []sharding.ShardKeyRecord{
		{TableName: "orders", ShardKeyColumn: "customer_id", IsManualOverride: true},
	}))

	keys, err := f.service.RecomputeKeys(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "customer_id", keys[0].ShardKeyColumn)
	assert.True(t, keys[0].IsManualOverride)
}

func TestEvents_ReportOutcomes(t *testing.T) {
	f := newFixture(t)
	sub, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	_, err := f.service.CreateProject(context.Background(), "orders", "")
	require.NoError(t, err)
	_, err = f.service.CreateProject(context.Background(), "", "")
	require.Error(t, err)

	first := <-sub
	assert.Equal(t, events.LevelInfo, first.Level)
	assert.Equal(t, "service - CreateProject", first.Source)
	assert.NotEmpty(t, first.Fields["project_id"])
	assert.NotEmpty(t, first.Timestamp)

	second := <-sub
	assert.Equal(t, events.LevelError, second.Level)
	assert.Contains(t, second.Fields["error"], "must not be empty")
}

func TestRetryShardConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, shards := f.projectWithShards(t, 2)
	require.NoError(t, f.pool.CloseAll())
	assert.Equal(t, 0, f.pool.Len())

	require.NoError(t, f.service.RetryShardConnections(ctx))

	for _, shard := range shards {
		assert.True(t, f.pool.Has(shard.ID))
	}
}
