package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgstore "github.com/getpup/sharding-orchestrator/store/postgres"
)

func testConfig(t *testing.T, filename string) Config {
	t.Helper()
	config := DefaultConfig()
	config.OutputFolder = t.TempDir()
	config.OutputFilename = filename
	return config
}

func readGenerated(t *testing.T, config Config) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(config.OutputFolder, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	return string(content)
}

func assertContains(t *testing.T, sql string, required []string) {
	t.Helper()
	for _, s := range required {
		if !strings.Contains(sql, s) {
			t.Errorf("migration missing required string: %s", s)
		}
	}
}

func TestGeneratePostgres(t *testing.T) {
	config := testConfig(t, "test_migration.sql")

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	sql := readGenerated(t, config)

	assertContains(t, sql, []string{
		"-- Database: PostgreSQL",
		"CREATE SCHEMA IF NOT EXISTS sharding;",
		"SET search_path TO sharding;",
		"CREATE TABLE projects (",
		"CREATE UNIQUE INDEX idx_projects_single_active ON projects ((status)) WHERE status = 'active';",
		"CREATE TABLE shards (",
		"UNIQUE (project_id, shard_index)",
		"CREATE TABLE shard_connections (",
		"shard_id UUID PRIMARY KEY REFERENCES shards(id) ON DELETE CASCADE",
		"CREATE TABLE project_schemas (",
		"WHERE state IN ('draft', 'pending', 'applying');",
		"CREATE TABLE schema_executions (",
		"UNIQUE (schema_id, shard_id)",
		"CREATE TABLE shard_keys (",
		"PRIMARY KEY (project_id, table_name)",
	})

	// The generated tables are exactly those the postgres store migrates.
	if !strings.Contains(sql, pgstore.MigrationUp(config.Tables)) {
		t.Error("postgres migration diverges from the store migration")
	}
}

func TestGeneratePostgres_CustomNames(t *testing.T) {
	config := testConfig(t, "custom.sql")
	config.SchemaName = "metadata"
	config.Tables.ProjectsTable = "tenants"
	config.Tables.ShardsTable = "tenant_shards"

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	sql := readGenerated(t, config)

	assertContains(t, sql, []string{
		"CREATE SCHEMA IF NOT EXISTS metadata;",
		"CREATE TABLE tenants (",
		"CREATE TABLE tenant_shards (",
		"project_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE",
	})
	if strings.Contains(sql, "CREATE TABLE projects (") {
		t.Error("default projects table name leaked into custom migration")
	}
}

func TestGenerateMySQL(t *testing.T) {
	config := testConfig(t, "mysql.sql")

	if err := GenerateMySQL(&config); err != nil {
		t.Fatalf("GenerateMySQL failed: %v", err)
	}

	sql := readGenerated(t, config)

	assertContains(t, sql, []string{
		"-- Database: MySQL/MariaDB",
		"CREATE DATABASE IF NOT EXISTS sharding",
		"USE sharding;",
		"CREATE TABLE IF NOT EXISTS projects (",
		"active_marker TINYINT GENERATED ALWAYS AS (IF(status = 'active', 1, NULL)) STORED",
		"UNIQUE KEY uq_projects_single_active (active_marker)",
		"CREATE TABLE IF NOT EXISTS shards (",
		"UNIQUE KEY uq_shards_index (project_id, shard_index)",
		"CREATE TABLE IF NOT EXISTS shard_connections (",
		"ON UPDATE CURRENT_TIMESTAMP(6)",
		"CREATE TABLE IF NOT EXISTS project_schemas (",
		"in_flight_project CHAR(36) GENERATED ALWAYS AS (IF(state IN ('draft', 'pending', 'applying'), project_id, NULL)) STORED",
		"UNIQUE KEY uq_project_schemas_single_in_flight (in_flight_project)",
		"CREATE TABLE IF NOT EXISTS schema_executions (",
		"UNIQUE KEY uq_schema_executions_pair (schema_id, shard_id)",
		"CREATE TABLE IF NOT EXISTS shard_keys (",
		"ENGINE=InnoDB",
	})
}

func TestGenerateMySQL_CustomNames(t *testing.T) {
	config := testConfig(t, "mysql_custom.sql")
	config.SchemaName = "metadata"
	config.Tables.SchemasTable = "ddl_versions"

	if err := GenerateMySQL(&config); err != nil {
		t.Fatalf("GenerateMySQL failed: %v", err)
	}

	sql := readGenerated(t, config)

	assertContains(t, sql, []string{
		"USE metadata;",
		"CREATE TABLE IF NOT EXISTS ddl_versions (",
		"FOREIGN KEY (schema_id) REFERENCES ddl_versions(id) ON DELETE CASCADE",
	})
}

func TestGenerateSQLite(t *testing.T) {
	config := testConfig(t, "sqlite.sql")

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	sql := readGenerated(t, config)

	assertContains(t, sql, []string{
		"-- Database: SQLite",
		"CREATE TABLE IF NOT EXISTS sharding_projects (",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_sharding_projects_single_active",
		"ON sharding_projects (status) WHERE status = 'active';",
		"CREATE TABLE IF NOT EXISTS sharding_shards (",
		"CREATE TABLE IF NOT EXISTS sharding_shard_connections (",
		"CREATE TABLE IF NOT EXISTS sharding_project_schemas (",
		"ON sharding_project_schemas (project_id) WHERE state IN ('draft', 'pending', 'applying');",
		"CREATE TABLE IF NOT EXISTS sharding_schema_executions (",
		"CREATE TABLE IF NOT EXISTS sharding_shard_keys (",
	})

	if strings.Contains(sql, "CREATE SCHEMA") {
		t.Error("SQLite migration should not create a schema")
	}
}

func TestGenerateSQLite_CustomNames(t *testing.T) {
	config := testConfig(t, "sqlite_custom.sql")
	config.SchemaName = "meta"
	config.Tables.ShardKeysTable = "keys"

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	sql := readGenerated(t, config)

	assertContains(t, sql, []string{
		"CREATE TABLE IF NOT EXISTS meta_projects (",
		"CREATE TABLE IF NOT EXISTS meta_keys (",
		"project_id TEXT NOT NULL REFERENCES meta_projects(id) ON DELETE CASCADE",
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OutputFolder != "migrations" {
		t.Errorf("Expected OutputFolder 'migrations', got '%s'", config.OutputFolder)
	}
	if config.SchemaName != "sharding" {
		t.Errorf("Expected SchemaName 'sharding', got '%s'", config.SchemaName)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_sharding_metadata.sql") {
		t.Errorf("Unexpected OutputFilename '%s'", config.OutputFilename)
	}
	if config.Tables.ProjectsTable != "projects" || config.Tables.ShardKeysTable != "shard_keys" {
		t.Errorf("Unexpected default table names: %+v", config.Tables)
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "projects", false},
		{"with underscore", "shard_keys", false},
		{"with digits", "shards2", false},
		{"empty", "", true},
		{"leading digit", "1shards", true},
		{"leading underscore", "_shards", true},
		{"semicolon", "shards; DROP TABLE projects", true},
		{"dot", "public.shards", true},
		{"quote", "shards'", true},
		{"dash", "shard-keys", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIdentifier(tt.input, "field")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad schema", func(c *Config) { c.SchemaName = "bad-schema" }, "SchemaName"},
		{"bad projects table", func(c *Config) { c.Tables.ProjectsTable = "p;" }, "ProjectsTable"},
		{"bad shards table", func(c *Config) { c.Tables.ShardsTable = "" }, "ShardsTable"},
		{"bad connections table", func(c *Config) { c.Tables.ConnectionsTable = "a b" }, "ConnectionsTable"},
		{"bad schemas table", func(c *Config) { c.Tables.SchemasTable = "9" }, "SchemasTable"},
		{"bad executions table", func(c *Config) { c.Tables.ExecutionsTable = "x.y" }, "ExecutionsTable"},
		{"bad shard keys table", func(c *Config) { c.Tables.ShardKeysTable = "k'" }, "ShardKeysTable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)

			err := validateConfig(&config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	generators := map[string]func(*Config) error{
		"postgres": GeneratePostgres,
		"mysql":    GenerateMySQL,
		"sqlite":   GenerateSQLite,
	}

	for name, generate := range generators {
		t.Run(name, func(t *testing.T) {
			config := testConfig(t, "invalid.sql")
			config.Tables.ShardsTable = "shards; DROP TABLE projects"

			err := generate(&config)
			if err == nil {
				t.Fatal("expected error for invalid table name")
			}
			if !strings.Contains(err.Error(), "invalid configuration") {
				t.Errorf("unexpected error: %v", err)
			}
			if _, statErr := os.Stat(filepath.Join(config.OutputFolder, config.OutputFilename)); !os.IsNotExist(statErr) {
				t.Error("migration file should not be written for invalid configuration")
			}
		})
	}
}
