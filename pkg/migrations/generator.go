package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	pgstore "github.com/getpup/sharding-orchestrator/store/postgres"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// validateIdentifier ensures an identifier contains only safe characters for SQL.
// Returns an error if the identifier contains characters that could be used for SQL injection.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// validateConfig validates all configuration values to prevent SQL injection.
func validateConfig(config *Config) error {
	fields := []struct {
		value, name string
	}{
		{config.SchemaName, "SchemaName"},
		{config.Tables.ProjectsTable, "ProjectsTable"},
		{config.Tables.ShardsTable, "ShardsTable"},
		{config.Tables.ConnectionsTable, "ConnectionsTable"},
		{config.Tables.SchemasTable, "SchemasTable"},
		{config.Tables.ExecutionsTable, "ExecutionsTable"},
		{config.Tables.ShardKeysTable, "ShardKeysTable"},
	}
	for _, f := range fields {
		if err := validateIdentifier(f.value, f.name); err != nil {
			return err
		}
	}
	return nil
}

// Config configures migration generation for the metadata tables.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// SchemaName is the database schema name (PostgreSQL) or database name (MySQL).
	// For SQLite it is used as a table name prefix (e.g., sharding_projects).
	SchemaName string

	// Tables names the metadata tables.
	Tables pgstore.TableConfig
}

// DefaultConfig returns the default configuration for metadata migrations.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_sharding_metadata.sql", timestamp),
		SchemaName:     "sharding",
		Tables: pgstore.TableConfig{
			ProjectsTable:    "projects",
			ShardsTable:      "shards",
			ConnectionsTable: "shard_connections",
			SchemasTable:     "project_schemas",
			ExecutionsTable:  "schema_executions",
			ShardKeysTable:   "shard_keys",
		},
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
// The tables are the ones the postgres metadata store creates with Migrate.
func GeneratePostgres(config *Config) error {
	return generate(config, generatePostgresSQL)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	return generate(config, generateMySQLSQL)
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return generate(config, generateSQLiteSQL)
}

func generate(config *Config, render func(*Config) string) error {
	// Validate configuration to prevent SQL injection
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(render(config)), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generatePostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Sharding Metadata Migration
-- Generated: %s
-- Database: PostgreSQL

CREATE SCHEMA IF NOT EXISTS %s;
SET search_path TO %s;

%s`,
		time.Now().Format(time.RFC3339),
		config.SchemaName,
		config.SchemaName,
		pgstore.MigrationUp(config.Tables),
	)
}

func generateMySQLSQL(config *Config) string {
	t := config.Tables
	return fmt.Sprintf(`-- Sharding Metadata Migration
-- Generated: %[1]s
-- Database: MySQL/MariaDB

-- In MySQL, we use a separate database instead of schema
CREATE DATABASE IF NOT EXISTS %[2]s
    DEFAULT CHARACTER SET utf8mb4
    DEFAULT COLLATE utf8mb4_unicode_ci;

USE %[2]s;

-- Projects; active_marker is NULL unless active, so the unique key
-- admits at most one active project
CREATE TABLE IF NOT EXISTS %[3]s (
    id CHAR(36) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    status ENUM('inactive', 'active') NOT NULL DEFAULT 'inactive',
    active_marker TINYINT GENERATED ALWAYS AS (IF(status = 'active', 1, NULL)) STORED,
    created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    UNIQUE KEY uq_%[3]s_single_active (active_marker)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS %[4]s (
    id CHAR(36) PRIMARY KEY,
    project_id CHAR(36) NOT NULL,
    shard_index INT NOT NULL,
    status ENUM('inactive', 'active') NOT NULL DEFAULT 'inactive',
    created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    UNIQUE KEY uq_%[4]s_index (project_id, shard_index),
    FOREIGN KEY (project_id) REFERENCES %[3]s(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS %[5]s (
    shard_id CHAR(36) PRIMARY KEY,
    driver VARCHAR(32) NOT NULL DEFAULT 'postgres',
    host VARCHAR(255) NOT NULL,
    port INT NOT NULL,
    database_name VARCHAR(255) NOT NULL,
    username VARCHAR(255) NOT NULL,
    password TEXT NOT NULL,
    created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
    FOREIGN KEY (shard_id) REFERENCES %[4]s(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

-- Schemas; in_flight_project is set only for draft, pending and applying
-- rows, so the unique key admits one non-terminal schema per project
CREATE TABLE IF NOT EXISTS %[6]s (
    id CHAR(36) PRIMARY KEY,
    project_id CHAR(36) NOT NULL,
    version INT NULL,
    state ENUM('draft', 'pending', 'applying', 'applied', 'failed') NOT NULL DEFAULT 'draft',
    ddl_sql MEDIUMTEXT NOT NULL,
    error_message TEXT NOT NULL,
    in_flight_project CHAR(36) GENERATED ALWAYS AS (IF(state IN ('draft', 'pending', 'applying'), project_id, NULL)) STORED,
    created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    committed_at TIMESTAMP(6) NULL,
    applied_at TIMESTAMP(6) NULL,
    UNIQUE KEY uq_%[6]s_version (project_id, version),
    UNIQUE KEY uq_%[6]s_single_in_flight (in_flight_project),
    FOREIGN KEY (project_id) REFERENCES %[3]s(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS %[7]s (
    id CHAR(36) PRIMARY KEY,
    schema_id CHAR(36) NOT NULL,
    shard_id CHAR(36) NOT NULL,
    state ENUM('pending', 'applying', 'applied', 'failed') NOT NULL,
    error_message TEXT NOT NULL,
    executed_at TIMESTAMP(6) NULL,
    UNIQUE KEY uq_%[7]s_pair (schema_id, shard_id),
    FOREIGN KEY (schema_id) REFERENCES %[6]s(id) ON DELETE CASCADE,
    FOREIGN KEY (shard_id) REFERENCES %[4]s(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS %[8]s (
    project_id CHAR(36) NOT NULL,
    table_name VARCHAR(255) NOT NULL,
    shard_key_column VARCHAR(255) NOT NULL,
    is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    PRIMARY KEY (project_id, table_name),
    FOREIGN KEY (project_id) REFERENCES %[3]s(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`,
		time.Now().Format(time.RFC3339),
		config.SchemaName,
		t.ProjectsTable, t.ShardsTable, t.ConnectionsTable,
		t.SchemasTable, t.ExecutionsTable, t.ShardKeysTable,
	)
}

func generateSQLiteSQL(config *Config) string {
	// SQLite doesn't support schemas, so we use table name prefixes instead
	prefix := config.SchemaName + "_"
	t := config.Tables

	return fmt.Sprintf(`-- Sharding Metadata Migration
-- Generated: %[1]s
-- Database: SQLite

CREATE TABLE IF NOT EXISTS %[2]s (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'inactive' CHECK (status IN ('inactive', 'active')),
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- At most one active project system-wide
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[2]s_single_active
    ON %[2]s (status) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS %[3]s (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES %[2]s(id) ON DELETE CASCADE,
    shard_index INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'inactive' CHECK (status IN ('inactive', 'active')),
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE (project_id, shard_index)
);

CREATE TABLE IF NOT EXISTS %[4]s (
    shard_id TEXT PRIMARY KEY REFERENCES %[3]s(id) ON DELETE CASCADE,
    driver TEXT NOT NULL DEFAULT 'postgres',
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    database_name TEXT NOT NULL,
    username TEXT NOT NULL,
    password TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS %[5]s (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES %[2]s(id) ON DELETE CASCADE,
    version INTEGER,
    state TEXT NOT NULL DEFAULT 'draft' CHECK (state IN ('draft', 'pending', 'applying', 'applied', 'failed')),
    ddl_sql TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    committed_at TEXT,
    applied_at TEXT,
    UNIQUE (project_id, version)
);

-- At most one draft, pending or applying schema per project
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[5]s_single_in_flight
    ON %[5]s (project_id) WHERE state IN ('draft', 'pending', 'applying');

CREATE TABLE IF NOT EXISTS %[6]s (
    id TEXT PRIMARY KEY,
    schema_id TEXT NOT NULL REFERENCES %[5]s(id) ON DELETE CASCADE,
    shard_id TEXT NOT NULL REFERENCES %[3]s(id) ON DELETE CASCADE,
    state TEXT NOT NULL CHECK (state IN ('pending', 'applying', 'applied', 'failed')),
    error_message TEXT NOT NULL DEFAULT '',
    executed_at TEXT,
    UNIQUE (schema_id, shard_id)
);

CREATE TABLE IF NOT EXISTS %[7]s (
    project_id TEXT NOT NULL REFERENCES %[2]s(id) ON DELETE CASCADE,
    table_name TEXT NOT NULL,
    shard_key_column TEXT NOT NULL,
    is_manual_override INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (project_id, table_name)
);
`,
		time.Now().Format(time.RFC3339),
		prefix+t.ProjectsTable, prefix+t.ShardsTable, prefix+t.ConnectionsTable,
		prefix+t.SchemasTable, prefix+t.ExecutionsTable, prefix+t.ShardKeysTable,
	)
}
