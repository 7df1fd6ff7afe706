// Command migrate-gen generates SQL migration files for the sharding metadata tables.
//
// Usage:
//
//	go run github.com/getpup/sharding-orchestrator/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getpup/sharding-orchestrator/cmd/migrate-gen -output migrations
//
// Generate migrations for different database adapters:
//
//	go run github.com/getpup/sharding-orchestrator/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getpup/sharding-orchestrator/cmd/migrate-gen -adapter mysql -output migrations
//	go run github.com/getpup/sharding-orchestrator/cmd/migrate-gen -adapter sqlite -output migrations
//
// Customize table names:
//
//	go run github.com/getpup/sharding-orchestrator/cmd/migrate-gen -schema metadata -projects-table tenants
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/sharding-orchestrator/pkg/migrations"
)

func main() {
	defaults := migrations.DefaultConfig()

	var (
		adapter          = flag.String("adapter", "postgres", "Database adapter: postgres, mysql, or sqlite")
		outputFolder     = flag.String("output", defaults.OutputFolder, "Output folder for migration file")
		outputFilename   = flag.String("filename", "", "Output filename (default: timestamp-based)")
		schemaName       = flag.String("schema", defaults.SchemaName, "Schema name (PostgreSQL), database name (MySQL) or table prefix (SQLite)")
		projectsTable    = flag.String("projects-table", defaults.Tables.ProjectsTable, "Name of projects table")
		shardsTable      = flag.String("shards-table", defaults.Tables.ShardsTable, "Name of shards table")
		connectionsTable = flag.String("connections-table", defaults.Tables.ConnectionsTable, "Name of shard connections table")
		schemasTable     = flag.String("schemas-table", defaults.Tables.SchemasTable, "Name of project schemas table")
		executionsTable  = flag.String("executions-table", defaults.Tables.ExecutionsTable, "Name of schema executions table")
		shardKeysTable   = flag.String("shard-keys-table", defaults.Tables.ShardKeysTable, "Name of shard keys table")
	)

	flag.Parse()

	config := defaults
	config.OutputFolder = *outputFolder
	config.SchemaName = *schemaName
	config.Tables.ProjectsTable = *projectsTable
	config.Tables.ShardsTable = *shardsTable
	config.Tables.ConnectionsTable = *connectionsTable
	config.Tables.SchemasTable = *schemasTable
	config.Tables.ExecutionsTable = *executionsTable
	config.Tables.ShardKeysTable = *shardKeysTable

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	var err error
	switch *adapter {
	case "postgres":
		err = migrations.GeneratePostgres(&config)
	case "mysql":
		err = migrations.GenerateMySQL(&config)
	case "sqlite":
		err = migrations.GenerateSQLite(&config)
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported adapter '%s'. Supported adapters are: postgres, mysql, sqlite\n", *adapter)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", *adapter, config.OutputFolder, config.OutputFilename)
}
