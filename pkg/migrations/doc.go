// Package migrations generates SQL migration files for the sharding metadata
// tables (projects, shards, shard connections, project schemas, per-shard
// execution statuses and shard keys) for PostgreSQL, MySQL/MariaDB and SQLite.
package migrations
