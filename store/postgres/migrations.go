package postgres

import "fmt"

// TableConfig configures the table names used by the metadata store.
type TableConfig struct {
	// ProjectsTable stores projects.
	ProjectsTable string

	// ShardsTable stores shards.
	ShardsTable string

	// ConnectionsTable stores one connection row per shard.
	ConnectionsTable string

	// SchemasTable stores project schemas.
	SchemasTable string

	// ExecutionsTable stores per-shard schema execution statuses.
	ExecutionsTable string

	// ShardKeysTable stores shard key records.
	ShardKeysTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		ProjectsTable:    "sharding_projects",
		ShardsTable:      "sharding_shards",
		ConnectionsTable: "sharding_shard_connections",
		SchemasTable:     "sharding_project_schemas",
		ExecutionsTable:  "sharding_schema_executions",
		ShardKeysTable:   "sharding_shard_keys",
	}
}

// MigrationUp returns the SQL to create the metadata tables.
//
// Two partial unique indexes back the store-level invariants: at most one
// active project, and at most one draft, pending or applying schema per project.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Create %[1]s table
CREATE TABLE %[1]s (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'inactive',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- At most one active project system-wide
CREATE UNIQUE INDEX idx_%[1]s_single_active ON %[1]s ((status)) WHERE status = 'active';

-- Create %[2]s table
CREATE TABLE %[2]s (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
    shard_index INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'inactive',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (project_id, shard_index)
);

-- Create %[3]s table
CREATE TABLE %[3]s (
    shard_id UUID PRIMARY KEY REFERENCES %[2]s(id) ON DELETE CASCADE,
    driver TEXT NOT NULL DEFAULT 'postgres',
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    database_name TEXT NOT NULL,
    username TEXT NOT NULL,
    password TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Create %[4]s table
CREATE TABLE %[4]s (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
    version INTEGER,
    state TEXT NOT NULL DEFAULT 'draft',
    ddl_sql TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    committed_at TIMESTAMPTZ,
    applied_at TIMESTAMPTZ,
    UNIQUE (project_id, version)
);

-- At most one draft, pending or applying schema per project
CREATE UNIQUE INDEX idx_%[4]s_single_in_flight ON %[4]s (project_id)
    WHERE state IN ('draft', 'pending', 'applying');

-- Create %[5]s table
CREATE TABLE %[5]s (
    id UUID PRIMARY KEY,
    schema_id UUID NOT NULL REFERENCES %[4]s(id) ON DELETE CASCADE,
    shard_id UUID NOT NULL REFERENCES %[2]s(id) ON DELETE CASCADE,
    state TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    executed_at TIMESTAMPTZ,
    UNIQUE (schema_id, shard_id)
);

-- Create %[6]s table
CREATE TABLE %[6]s (
    project_id UUID NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
    table_name TEXT NOT NULL,
    shard_key_column TEXT NOT NULL,
    is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (project_id, table_name)
);
`, config.ProjectsTable, config.ShardsTable, config.ConnectionsTable,
		config.SchemasTable, config.ExecutionsTable, config.ShardKeysTable)
}

// MigrationDown returns the SQL to drop the metadata tables in dependency order.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
`, config.ShardKeysTable, config.ExecutionsTable, config.ConnectionsTable,
		config.SchemasTable, config.ShardsTable, config.ProjectsTable)
}
