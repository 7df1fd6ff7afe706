package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/getpup/sharding-orchestrator/store"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMigrations(t *testing.T) {
	t.Run("MigrationUp creates every table", func(t *testing.T) {
		sql := MigrationUp(DefaultTableConfig())

		assert.Contains(t, sql, "CREATE TABLE sharding_projects")
		assert.Contains(t, sql, "CREATE TABLE sharding_shards")
		assert.Contains(t, sql, "CREATE TABLE sharding_shard_connections")
		assert.Contains(t, sql, "CREATE TABLE sharding_project_schemas")
		assert.Contains(t, sql, "CREATE TABLE sharding_schema_executions")
		assert.Contains(t, sql, "CREATE TABLE sharding_shard_keys")
	})

	t.Run("MigrationUp guards single active project", func(t *testing.T) {
		sql := MigrationUp(DefaultTableConfig())

		assert.Contains(t, sql, "CREATE UNIQUE INDEX idx_sharding_projects_single_active")
		assert.Contains(t, sql, "WHERE status = 'active'")
	})

	t.Run("MigrationUp guards single non-terminal schema", func(t *testing.T) {
		sql := MigrationUp(DefaultTableConfig())

		assert.Contains(t, sql, "CREATE UNIQUE INDEX idx_sharding_project_schemas_single_in_flight")
		assert.Contains(t, sql, "WHERE state IN ('draft', 'pending', 'applying')")
	})

	t.Run("MigrationUp with custom table names", func(t *testing.T) {
		config := DefaultTableConfig()
		config.ProjectsTable = "custom_projects"
		config.ShardsTable = "custom_shards"
		sql := MigrationUp(config)

		assert.Contains(t, sql, "CREATE TABLE custom_projects")
		assert.Contains(t, sql, "REFERENCES custom_projects(id)")
		assert.Contains(t, sql, "REFERENCES custom_shards(id)")
		assert.NotContains(t, sql, "sharding_projects")
	})

	t.Run("MigrationDown drops dependents before parents", func(t *testing.T) {
		sql := MigrationDown(DefaultTableConfig())

		keys := strings.Index(sql, "sharding_shard_keys")
		executions := strings.Index(sql, "sharding_schema_executions")
		schemas := strings.Index(sql, "sharding_project_schemas")
		shards := strings.Index(sql, "DROP TABLE IF EXISTS sharding_shards;")
		projects := strings.Index(sql, "sharding_projects")

		assert.Less(t, keys, projects)
		assert.Less(t, executions, schemas)
		assert.Less(t, executions, shards)
		assert.Less(t, shards, projects)
		assert.Less(t, schemas, projects)
	})
}

func TestStoreInitialization(t *testing.T) {
	t.Run("New uses default table names", func(t *testing.T) {
		s := New(nil)
		assert.Equal(t, DefaultTableConfig(), s.tables)
	})

	t.Run("NewWithConfig uses custom table names", func(t *testing.T) {
		config := DefaultTableConfig()
		config.ShardKeysTable = "my_keys"
		s := NewWithConfig(nil, config)
		assert.Equal(t, "my_keys", s.tables.ShardKeysTable)
	})

	t.Run("implements MetadataStore", func(t *testing.T) {
		var _ store.MetadataStore = (*Store)(nil)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestDriverOrDefault(t *testing.T) {
	assert.Equal(t, "postgres", driverOrDefault(""))
	assert.Equal(t, "mysql", driverOrDefault("mysql"))
}
